package convert

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/coolbeans/indigo/pkg/config"
)

// paragraphKind is the structural role of one source paragraph.
type paragraphKind int

const (
	kindPlain paragraphKind = iota
	kindPlainIndented
	kindPlainCentered
	kindTitle
	kindNote
	kindListStart
	kindListMiddle
	kindListEnd
	kindListSolo
)

func (kind paragraphKind) String() string {
	names := []string{
		"plain", "plain-indented", "plain-centered", "title", "note",
		"list-start", "list-middle", "list-end", "list-solo",
	}
	if int(kind) < len(names) {
		return names[kind]
	}
	return "unknown"
}

// isList reports whether the kind participates in list reconstruction.
func (kind paragraphKind) isList() bool {
	return kind >= kindListStart
}

// paragraphClass is the classifier's verdict for one paragraph.
type paragraphClass struct {
	kind  paragraphKind
	level int

	// implicit is set when list membership was inferred from the nesting
	// level of an ordinary paragraph rather than from its class.
	implicit bool
}

// classifier maps source paragraphs to paragraph kinds. It is a pure
// function of the paragraph, its following siblings and whether a list is
// currently open.
type classifier struct {
	classes config.Classes
}

// classify applies the dispatch rules in priority order; the first match
// wins.
func (c classifier) classify(paragraph *html.Node, listOpen bool) paragraphClass {
	class := getAttr(paragraph, "class")
	paragraphStyle := styleOf(paragraph)
	level := paragraphStyle.listLevel()

	switch {
	case class == c.classes.BoxTitle:
		return paragraphClass{kind: kindTitle}
	case class == c.classes.BoxNote:
		return paragraphClass{kind: kindNote}
	case class == c.classes.ListFirst && level > 0:
		return paragraphClass{kind: kindListStart, level: level}
	case class == c.classes.ListMiddle && level > 0:
		return paragraphClass{kind: kindListMiddle, level: level}
	case class == c.classes.ListLast && level > 0:
		return paragraphClass{kind: kindListEnd, level: level}
	case class == c.classes.ListSolo && level > 0:
		return paragraphClass{kind: kindListSolo, level: level}
	case level > 0 && c.isPlain(class) && !listOpen:
		return paragraphClass{kind: kindListStart, level: level, implicit: true}
	case level > 0 && c.isPlain(class) && c.continuesList(nextElementSibling(paragraph)):
		return paragraphClass{kind: kindListMiddle, level: level, implicit: true}
	case level > 0 && c.isPlain(class):
		return paragraphClass{kind: kindListEnd, level: level, implicit: true}
	case paragraphStyle.indented():
		return paragraphClass{kind: kindPlainIndented}
	case paragraphStyle.centered():
		return paragraphClass{kind: kindPlainCentered}
	default:
		return paragraphClass{kind: kindPlain}
	}
}

// isPlain reports whether a class names an ordinary paragraph. Paragraphs
// without a class count as ordinary.
func (c classifier) isPlain(class string) bool {
	return class == "" || c.classes.IsPlainClass(class)
}

func (c classifier) isListClass(class string) bool {
	switch class {
	case c.classes.ListFirst, c.classes.ListMiddle, c.classes.ListLast, c.classes.ListSolo:
		return true
	}
	return false
}

// continuesList reports whether node is a paragraph carrying a list signal.
func (c classifier) continuesList(node *html.Node) bool {
	if !isParagraph(node) {
		return false
	}
	if styleOf(node).listLevel() == 0 {
		return false
	}
	class := getAttr(node, "class")
	return c.isListClass(class) || c.isPlain(class)
}

// continuesBox reports whether node is a box note paragraph.
func (c classifier) continuesBox(node *html.Node) bool {
	return isParagraph(node) && getAttr(node, "class") == c.classes.BoxNote
}

func isParagraph(node *html.Node) bool {
	return node != nil && node.Type == html.ElementNode && node.DataAtom == atom.P
}

// nextElementSibling skips text and comment siblings.
func nextElementSibling(node *html.Node) *html.Node {
	for sibling := node.NextSibling; sibling != nil; sibling = sibling.NextSibling {
		if sibling.Type == html.ElementNode {
			return sibling
		}
	}
	return nil
}
