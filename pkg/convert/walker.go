package convert

import (
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/coolbeans/indigo/pkg/citation"
	"github.com/coolbeans/indigo/pkg/config"
)

// droppedTags are removed together with their content.
var droppedTags = map[atom.Atom]bool{
	atom.Head:   true,
	atom.Style:  true,
	atom.Script: true,
	atom.Title:  true,
	atom.Meta:   true,
	atom.Link:   true,
}

// copiedTags are emitted as the same element with their children walked in
// their own list scope.
var copiedTags = map[atom.Atom]bool{
	atom.B:          true,
	atom.I:          true,
	atom.U:          true,
	atom.Em:         true,
	atom.Strong:     true,
	atom.Sup:        true,
	atom.Sub:        true,
	atom.Tbody:      true,
	atom.Thead:      true,
	atom.Tr:         true,
	atom.Li:         true,
	atom.Blockquote: true,
}

// walker converts one source document. It is the only component with
// memory across nodes; its whole state is the fields below.
type walker struct {
	cfg        *config.Config
	classifier classifier
	decoder    *citation.Decoder
	logger     *zap.Logger

	tree  *arena
	stack *contextStack

	// listLevel is the current list nesting depth, 0 outside lists.
	listLevel int

	insideBox bool
	inHeading bool
	inAnchor  bool

	// inBoxContent is set while a box title or note's children are walked;
	// styled spans are passed through only there.
	inBoxContent bool

	// fields tracks open Word fields, innermost last; true marks a citation
	// field whose rendered result is replaced by the decoded citation.
	fields []bool

	stats Stats
}

func newWalker(cfg *config.Config, decoder *citation.Decoder, logger *zap.Logger, root *html.Node) *walker {
	return &walker{
		cfg:        cfg,
		classifier: classifier{classes: cfg.Classes},
		decoder:    decoder,
		logger:     logger,
		tree:       newArena(root),
		stack:      newContextStack(),
	}
}

// processNode visits one source node, appending output to the current
// append point.
func (w *walker) processNode(node *html.Node) error {
	switch node.Type {
	case html.TextNode:
		w.processText(node.Data)
		return nil
	case html.CommentNode:
		return w.processComment(node)
	case html.DocumentNode:
		return w.processChildren(node)
	case html.ElementNode:
		if styleOf(node).listIgnore() {
			return nil
		}
		if node.FirstChild == nil {
			return nil
		}
		return w.processElement(node)
	}
	return nil
}

func (w *walker) processChildren(node *html.Node) error {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if err := w.processNode(child); err != nil {
			return err
		}
	}
	return nil
}

// processElement dispatches on the tag; tags outside the allow-list are
// transparent.
func (w *walker) processElement(node *html.Node) error {
	switch {
	case droppedTags[node.DataAtom]:
		return nil
	case node.DataAtom == atom.P:
		return w.processParagraph(node)
	case isHeading(node.DataAtom):
		return w.processHeading(node)
	case node.DataAtom == atom.Span:
		return w.processSpan(node)
	case node.DataAtom == atom.A:
		return w.processAnchor(node)
	case node.DataAtom == atom.Table:
		w.closeAllLists()
		return w.container(node, "table")
	case node.DataAtom == atom.Td || node.DataAtom == atom.Th:
		return w.processCell(node)
	case node.DataAtom == atom.Ul || node.DataAtom == atom.Ol:
		return w.container(node, node.Data)
	case copiedTags[node.DataAtom]:
		return w.container(node, node.Data)
	default:
		return w.processChildren(node)
	}
}

// processText applies the text-node rule.
func (w *walker) processText(data string) {
	if w.suppressingField() {
		return
	}
	text := normalizeText(data)
	if strings.TrimSpace(text) == "" {
		return
	}

	if w.inAnchor {
		w.tree.text(w.stack.top(), breakURLs(text))
		return
	}
	if w.inHeading {
		w.tree.text(w.stack.top(), text)
		return
	}

	for _, segment := range splitCrossReferences(text) {
		if segment.target == "" {
			w.tree.text(w.stack.top(), segment.text)
			continue
		}
		link := w.tree.element(w.stack.top(), "a", attr("href", "#"+segment.target), classAttr("xref"))
		w.tree.text(link, segment.text)
		w.stats.CrossReferences++
	}
}

// processComment handles Word field codes; other comments are ignored.
func (w *walker) processComment(node *html.Node) error {
	field, err := citation.ParseComment(node.Data)
	if err != nil {
		return err
	}

	if field.IsCitation() && w.decoder != nil {
		decoded, err := w.decoder.DecodeField(field.Payload)
		if err != nil {
			return fmt.Errorf("failed to decode citation field: %w", err)
		}
		cite := w.tree.element(w.stack.top(), "span", classAttr("cite"), attr("data-info", decoded.Key))
		if decoded.PlainCitation != "" {
			w.tree.text(cite, decoded.PlainCitation)
		}
		w.stats.Citations++
	}

	switch {
	case field.Begin && !field.End:
		w.fields = append(w.fields, field.IsCitation() && w.decoder != nil)
	case field.End && !field.Begin && len(w.fields) > 0:
		w.fields = w.fields[:len(w.fields)-1]
	}
	return nil
}

// suppressingField reports whether text belongs to the rendered result of a
// decoded citation field.
func (w *walker) suppressingField() bool {
	for _, isCitation := range w.fields {
		if isCitation {
			return true
		}
	}
	return false
}

// resetOpenCitationField drops a citation field that was never closed, so a
// missing field-end cannot swallow the rest of the document.
func (w *walker) resetOpenCitationField() {
	if !w.suppressingField() {
		return
	}
	w.logger.Warn("citation field left open at paragraph boundary; resuming text output")
	kept := w.fields[:0]
	for _, isCitation := range w.fields {
		if !isCitation {
			kept = append(kept, isCitation)
		}
	}
	w.fields = kept
}

// open appends an element to the append point and makes it the new one.
func (w *walker) open(tag string, attrs ...html.Attribute) handle {
	h := w.tree.element(w.stack.top(), tag, attrs...)
	w.stack.push(h)
	return h
}

func (w *walker) close() {
	w.stack.pop()
}

// container emits tag, walks the node's children into it, and closes it.
// The children get a fresh list and box scope: whatever they open is closed
// before the container itself, so the container always pops its own
// element even when the source nests paragraphs inside inline markup.
func (w *walker) container(node *html.Node, tag string, attrs ...html.Attribute) error {
	w.open(tag, attrs...)
	depth := w.stack.depth()
	savedLevel, savedBox := w.listLevel, w.insideBox
	w.listLevel, w.insideBox = 0, false

	if err := w.processChildren(node); err != nil {
		return err
	}

	w.closeAllLists()
	if w.insideBox {
		w.closeBox()
	}
	if w.stack.depth() != depth {
		w.logger.Warn("unwinding containers left open inside element",
			zap.String("tag", tag),
			zap.Int("extra", w.stack.depth()-depth),
		)
		for w.stack.depth() > depth {
			w.close()
		}
	}
	w.listLevel, w.insideBox = savedLevel, savedBox
	w.close()
	return nil
}

// processHeading closes any open list and emits the heading with a derived
// anchor id.
func (w *walker) processHeading(node *html.Node) error {
	w.closeAllLists()

	text := textContent(node)
	id := headingID(text, w.cfg.HeadingLabels)
	var attrs []html.Attribute
	if id == "" {
		w.logger.Warn("heading has no recognizable identifier",
			zap.String("heading", strings.TrimSpace(normalizeText(text))),
		)
	} else {
		attrs = append(attrs, attr("id", id))
	}

	previous := w.inHeading
	w.inHeading = true
	defer func() { w.inHeading = previous }()

	w.stats.Headings++
	return w.container(node, node.Data, attrs...)
}

// processSpan keeps only recognized span kinds; other spans are transparent.
func (w *walker) processSpan(node *html.Node) error {
	spanStyle := styleOf(node)
	class := getAttr(node, "class")

	switch {
	case spanStyle.smallCaps():
		return w.container(node, "span", classAttr("small-caps"))
	case strings.Contains(class, "cite") && hasAttr(node, "data-info"):
		return w.container(node, "span", classAttr("cite"), attr("data-info", getAttr(node, "data-info")))
	case spanStyle.wideSpace():
		if w.suppressingField() {
			return nil
		}
		space := w.tree.element(w.stack.top(), "span", classAttr("wide-space"))
		w.tree.text(space, " ")
		return nil
	case w.inBoxContent && spanStyle.raw != "":
		return w.container(node, "span", attr("style", spanStyle.raw))
	default:
		return w.processChildren(node)
	}
}

// processAnchor emits links that have an href outside the skip-list.
// Skipped anchors are transparent so their text survives.
func (w *walker) processAnchor(node *html.Node) error {
	href := getAttr(node, "href")
	if href == "" || w.skipsAnchor(href) {
		return w.processChildren(node)
	}

	attrs := []html.Attribute{attr("href", href)}
	if parsed, err := url.Parse(href); err == nil && parsed.Scheme != "" {
		attrs = append(attrs, attr("target", "_blank"))
	}

	previous := w.inAnchor
	w.inAnchor = true
	defer func() { w.inAnchor = previous }()

	return w.container(node, "a", attrs...)
}

func (w *walker) skipsAnchor(href string) bool {
	for _, prefix := range w.cfg.AnchorSkipPrefixes {
		if prefix != "" && strings.HasPrefix(href, prefix) {
			return true
		}
	}
	return false
}

// processCell copies row and column spans and marks layout and shaded cells.
func (w *walker) processCell(node *html.Node) error {
	var attrs []html.Attribute
	for _, key := range []string{"rowspan", "colspan"} {
		if value := getAttr(node, key); value != "" {
			attrs = append(attrs, attr(key, value))
		}
	}

	var classes []string
	if hasAttr(node, "colspan") && isLayoutCell(node) {
		classes = append(classes, "multicol")
	}
	if w.cfg.ShadedBackground != "" && strings.Contains(compact(getAttr(node, "style")), compact(w.cfg.ShadedBackground)) {
		classes = append(classes, "shaded")
	}
	if len(classes) > 0 {
		attrs = append(attrs, classAttr(classes...))
	}

	return w.container(node, node.Data, attrs...)
}

// isLayoutCell reports a spanning cell that is not a bold header: either no
// bold run at all, or bold text followed by ordinary text.
func isLayoutCell(cell *html.Node) bool {
	var boldText, plainText strings.Builder
	var collect func(*html.Node, bool)
	collect = func(current *html.Node, bold bool) {
		if current.Type == html.TextNode {
			if bold {
				boldText.WriteString(current.Data)
			} else {
				plainText.WriteString(current.Data)
			}
			return
		}
		if current.Type == html.ElementNode {
			if styleOf(current).listIgnore() {
				return
			}
			if current.DataAtom == atom.B || current.DataAtom == atom.Strong {
				bold = true
			}
		}
		for child := current.FirstChild; child != nil; child = child.NextSibling {
			collect(child, bold)
		}
	}
	collect(cell, false)

	hasBold := strings.TrimSpace(normalizeText(boldText.String())) != ""
	hasPlain := strings.TrimSpace(normalizeText(plainText.String())) != ""
	return !hasBold || hasPlain
}

func isHeading(a atom.Atom) bool {
	switch a {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}
