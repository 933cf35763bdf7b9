// Package convert turns a parsed Word "Save as Web Page" document into clean
// publication HTML.
//
// A single walker visits the source tree depth-first and appends to an
// output tree through a stack of open containers. Paragraphs are classified
// once into a paragraphKind; list runs, boxes and ordinary paragraphs are
// then handled by separate state transitions over that stack.
package convert

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/coolbeans/indigo/pkg/citation"
	"github.com/coolbeans/indigo/pkg/config"
)

// ErrUnbalanced is returned when containers are still open after the walk.
var ErrUnbalanced = errors.New("unbalanced output containers")

// Stats counts what one conversion produced.
type Stats struct {
	Paragraphs      int
	Headings        int
	Lists           int
	Boxes           int
	CrossReferences int
	Citations       int
}

// Result is a converted document.
type Result struct {
	// Document is the output tree rooted at a DocumentNode.
	Document *html.Node

	// Body is the output body element inside Document.
	Body *html.Node

	Stats Stats
}

// Converter converts source documents. It holds no per-document state and
// may be reused for every document of a run.
type Converter struct {
	cfg     config.Config
	decoder *citation.Decoder
	logger  *zap.Logger
}

// New creates a Converter. A nil decoder leaves citation fields as the word
// processor rendered them.
func New(cfg config.Config, decoder *citation.Decoder, logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{cfg: cfg, decoder: decoder, logger: logger}
}

// Convert walks the body of source and returns the output document.
func (c *Converter) Convert(source *html.Node) (*Result, error) {
	if source == nil {
		return nil, fmt.Errorf("failed to convert: nil source document")
	}

	document, body := newDocument(documentTitle(source))
	w := newWalker(&c.cfg, c.decoder, c.logger, body)

	if err := w.processChildren(sourceBody(source)); err != nil {
		return nil, err
	}

	w.closeAllLists()
	if w.insideBox {
		w.closeBox()
	}
	if depth := w.stack.depth(); depth != 1 {
		return nil, fmt.Errorf("%w: %d containers left open", ErrUnbalanced, depth-1)
	}

	c.logger.Info("converted document",
		zap.Int("paragraphs", w.stats.Paragraphs),
		zap.Int("headings", w.stats.Headings),
		zap.Int("lists", w.stats.Lists),
		zap.Int("boxes", w.stats.Boxes),
		zap.Int("cross_references", w.stats.CrossReferences),
		zap.Int("citations", w.stats.Citations),
	)

	return &Result{Document: document, Body: body, Stats: w.stats}, nil
}

// newDocument builds the output skeleton and returns the document and its
// body.
func newDocument(title string) (*html.Node, *html.Node) {
	document := &html.Node{Type: html.DocumentNode}
	root := &html.Node{Type: html.ElementNode, Data: "html", DataAtom: atom.Html}
	head := &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

	head.AppendChild(&html.Node{
		Type:     html.ElementNode,
		Data:     "meta",
		DataAtom: atom.Meta,
		Attr:     []html.Attribute{attr("charset", "utf-8")},
	})
	if title != "" {
		titleNode := &html.Node{Type: html.ElementNode, Data: "title", DataAtom: atom.Title}
		titleNode.AppendChild(&html.Node{Type: html.TextNode, Data: title})
		head.AppendChild(titleNode)
	}

	root.AppendChild(head)
	root.AppendChild(body)
	document.AppendChild(root)
	return document, body
}

func documentTitle(source *html.Node) string {
	title := goquery.NewDocumentFromNode(source).Find("head title").First().Text()
	return strings.TrimSpace(normalizeText(title))
}

// sourceBody returns the body element, or source itself for fragments.
func sourceBody(source *html.Node) *html.Node {
	if body := goquery.NewDocumentFromNode(source).Find("body").First(); body.Length() > 0 {
		return body.Get(0)
	}
	return source
}
