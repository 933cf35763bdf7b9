package convert

import (
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// processParagraph classifies a paragraph once and hands it to the box,
// list or ordinary-paragraph logic.
func (w *walker) processParagraph(paragraph *html.Node) error {
	w.resetOpenCitationField()
	w.stats.Paragraphs++

	class := w.classifier.classify(paragraph, w.listLevel > 0)
	if class.kind.isList() {
		w.logger.Debug("list paragraph",
			zap.Stringer("kind", class.kind),
			zap.Int("level", class.level),
			zap.Int("current", w.listLevel),
			zap.Bool("implicit", class.implicit),
		)
	}

	switch class.kind {
	case kindTitle:
		return w.openBox(paragraph)
	case kindNote:
		return w.appendToBox(paragraph)
	case kindListStart:
		w.startList(paragraph, class.level)
		return w.processChildren(paragraph)
	case kindListMiddle:
		w.continueList(paragraph, class.level)
		return w.processChildren(paragraph)
	case kindListEnd:
		w.continueList(paragraph, class.level)
		if err := w.processChildren(paragraph); err != nil {
			return err
		}
		w.closeListLevel()
		return nil
	case kindListSolo:
		// startList has already closed any open run, so everything open
		// afterwards belongs to this paragraph.
		w.startList(paragraph, class.level)
		if err := w.processChildren(paragraph); err != nil {
			return err
		}
		w.closeAllLists()
		return nil
	}

	if w.listLevel > 0 && class.kind != kindPlainIndented {
		w.logger.Debug("paragraph without list signal closes open list", zap.Int("level", w.listLevel))
		w.closeAllLists()
	}
	return w.emitParagraph(paragraph, class)
}

// emitParagraph writes an ordinary paragraph. Indented paragraphs become
// blockquotes; centered ones are marked as title or subtitle; an "Example:"
// label is kept with what follows it.
func (w *walker) emitParagraph(paragraph *html.Node, class paragraphClass) error {
	paragraphStyle := styleOf(paragraph)

	tag := "p"
	if class.kind == kindPlainIndented {
		tag = "blockquote"
	}

	var classes []string
	if paragraphStyle.centered() {
		if paragraphStyle.has("line-height") {
			classes = append(classes, "title")
		} else {
			classes = append(classes, "subtitle")
		}
	}
	if isExampleLabel(textContent(paragraph)) {
		classes = append(classes, "example", "keep-with-next")
	}
	if paragraphStyle.avoidsBreakAfter() {
		classes = append(classes, "keep-with-next")
	}

	var attrs []html.Attribute
	if len(classes) > 0 {
		attrs = append(attrs, classAttr(classes...))
	}
	return w.container(paragraph, tag, attrs...)
}
