package convert

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// ErrNoOpenBox is returned for a box note paragraph with no box open. It
// means the source is structurally malformed.
var ErrNoOpenBox = errors.New("box note without an open box")

// openBox pushes a box and its title wrapper, fills the wrapper with the
// title paragraph's content, and closes both unless the next element
// sibling is a note.
func (w *walker) openBox(title *html.Node) error {
	if w.insideBox {
		w.logger.Debug("box title inside open box; closing previous box")
		w.closeBox()
	}

	w.open("div", classAttr("box"))
	w.open("div", classAttr("box-title"))
	w.insideBox = true
	w.stats.Boxes++

	if err := w.processBoxContent(title); err != nil {
		return err
	}
	w.closeBoxUnlessContinued(title)
	return nil
}

// appendToBox replaces the open item wrapper with a note wrapper for the
// paragraph, then applies the same continuation check as openBox.
func (w *walker) appendToBox(note *html.Node) error {
	if !w.insideBox {
		return fmt.Errorf("%w: %q", ErrNoOpenBox, excerpt(textContent(note)))
	}

	w.close()
	w.open("div", classAttr("box-note"))

	if err := w.processBoxContent(note); err != nil {
		return err
	}
	w.closeBoxUnlessContinued(note)
	return nil
}

func (w *walker) processBoxContent(paragraph *html.Node) error {
	previous := w.inBoxContent
	w.inBoxContent = true
	defer func() { w.inBoxContent = previous }()
	return w.processChildren(paragraph)
}

func (w *walker) closeBoxUnlessContinued(paragraph *html.Node) {
	if w.classifier.continuesBox(nextElementSibling(paragraph)) {
		return
	}
	w.closeBox()
}

// closeBox pops the item wrapper and the box.
func (w *walker) closeBox() {
	w.close()
	w.close()
	w.insideBox = false
	w.logger.Debug("closed box", zap.Int("depth", w.stack.depth()))
}
