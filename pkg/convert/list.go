package convert

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// markerSelector finds the glyph run Word puts in front of a list paragraph.
const markerSelector = `span[style*="mso-list:Ignore"]`

// startList opens lists down to level for a paragraph that begins a list
// run. A run that starts while another is still open closes it first.
func (w *walker) startList(paragraph *html.Node, level int) {
	if w.listLevel > 0 {
		w.logger.Debug("list start inside open list; closing previous run", zap.Int("level", w.listLevel))
		w.closeAllLists()
	}
	for w.listLevel < level {
		w.openListLevel(paragraph)
	}
}

// continueList moves from the current level to level for a paragraph in the
// middle or at the end of a run. Raising closes one item and list per step;
// deepening opens one list and item per step inside the current item. When
// the run did not deepen, the paragraph starts a fresh sibling item.
func (w *walker) continueList(paragraph *html.Node, level int) {
	for level < w.listLevel {
		w.closeListLevel()
	}
	if level > w.listLevel {
		for w.listLevel < level {
			w.openListLevel(paragraph)
		}
		return
	}
	if w.listLevel == 0 {
		return
	}
	w.close()
	w.open("li")
}

// openListLevel pushes a list and its first item. The marker kind is
// decided here, once per opened list.
func (w *walker) openListLevel(paragraph *html.Node) {
	tag := w.listTag(paragraph)
	w.open(tag)
	w.open("li")
	w.listLevel++
	w.stats.Lists++
	w.logger.Debug("opened list", zap.String("tag", tag), zap.Int("level", w.listLevel))
}

// closeListLevel pops the current item and its list.
func (w *walker) closeListLevel() {
	if w.listLevel == 0 {
		return
	}
	w.close()
	w.close()
	w.listLevel--
}

func (w *walker) closeAllLists() {
	for w.listLevel > 0 {
		w.closeListLevel()
	}
}

// listTag decides between ordered and unordered from the first marker glyph:
// a letter or digit means ordered. Without a marker the list is unordered.
func (w *walker) listTag(paragraph *html.Node) string {
	marker := goquery.NewDocumentFromNode(paragraph).Find(markerSelector).First()
	glyph := strings.TrimSpace(normalizeText(marker.Text()))
	if marker.Length() == 0 || glyph == "" {
		w.logger.Warn("list paragraph has no marker glyph; using unordered list",
			zap.String("text", excerpt(textContent(paragraph))),
		)
		return "ul"
	}
	first := []rune(glyph)[0]
	if unicode.IsLetter(first) || unicode.IsDigit(first) {
		return "ol"
	}
	return "ul"
}

// excerpt shortens text for log fields.
func excerpt(text string) string {
	text = strings.TrimSpace(normalizeText(text))
	runes := []rune(text)
	if len(runes) > 60 {
		return string(runes[:60]) + "…"
	}
	return text
}
