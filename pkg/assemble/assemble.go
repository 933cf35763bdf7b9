// Package assemble combines several converted documents into one
// manuscript. Consecutive documents of the same page type share a page
// container; a cover fragment may be placed ahead of all pages.
package assemble

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Assembler accumulates converted documents. The first document added
// supplies the head of the combined output.
type Assembler struct {
	logger *zap.Logger

	document *html.Node
	body     *html.Node
	cover    []*html.Node

	pageType string
	page     *html.Node
	pages    int
}

// New creates an empty Assembler.
func New(logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{logger: logger}
}

// Add moves the body content of doc into the current page container,
// opening a new container when pageType differs from the previous
// document's.
func (a *Assembler) Add(pageType string, doc *html.Node) error {
	body := findBody(doc)
	if body == nil {
		return fmt.Errorf("failed to assemble %q page: document has no body", pageType)
	}

	if a.document == nil {
		a.document = doc
		a.body = body
		content := detachChildren(body)
		a.openPage(pageType)
		appendAll(a.page, content)
		return nil
	}

	if a.page == nil || pageType != a.pageType {
		a.openPage(pageType)
	}
	appendAll(a.page, detachChildren(body))
	return nil
}

func (a *Assembler) openPage(pageType string) {
	a.pageType = pageType
	a.page = &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr: []html.Attribute{
			{Key: "id", Val: pageType},
			{Key: "page", Val: pageType},
		},
	}
	a.body.AppendChild(a.page)
	a.pages++
	a.logger.Debug("opened page container", zap.String("page_type", pageType))
}

// SetCover parses a cover fragment to place at the start of the body.
func (a *Assembler) SetCover(r io.Reader) error {
	bodyContext := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(r, bodyContext)
	if err != nil {
		return fmt.Errorf("failed to parse cover: %w", err)
	}
	a.cover = nodes
	return nil
}

// Pages returns how many page containers have been opened.
func (a *Assembler) Pages() int {
	return a.pages
}

// Document returns the combined document, or nil when nothing was added.
// The cover, if any, is inserted ahead of the first page.
func (a *Assembler) Document() *html.Node {
	if a.document == nil {
		return nil
	}
	if len(a.cover) > 0 {
		first := a.body.FirstChild
		for _, node := range a.cover {
			a.body.InsertBefore(node, first)
		}
		a.cover = nil
	}
	return a.document
}

func findBody(doc *html.Node) *html.Node {
	if doc == nil {
		return nil
	}
	if doc.Type == html.ElementNode && doc.DataAtom == atom.Body {
		return doc
	}
	if body := goquery.NewDocumentFromNode(doc).Find("body").First(); body.Length() > 0 {
		return body.Get(0)
	}
	return nil
}

// detachChildren removes and returns the children of node.
func detachChildren(node *html.Node) []*html.Node {
	var children []*html.Node
	for node.FirstChild != nil {
		child := node.FirstChild
		node.RemoveChild(child)
		children = append(children, child)
	}
	return children
}

func appendAll(parent *html.Node, children []*html.Node) {
	for _, child := range children {
		parent.AppendChild(child)
	}
}
