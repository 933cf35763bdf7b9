package convert

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// handle identifies a node in the output arena.
type handle int

// rootHandle is the output body, the bottom of every context stack.
const rootHandle handle = 0

// arena owns every node of the output tree. The walker only refers to nodes
// by handle; the html.Node links are an output detail.
type arena struct {
	nodes []*html.Node
}

func newArena(root *html.Node) *arena {
	return &arena{nodes: []*html.Node{root}}
}

// element creates an element under parent and returns its handle.
func (a *arena) element(parent handle, tag string, attrs ...html.Attribute) handle {
	node := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     compactAttrs(attrs),
	}
	a.nodes[parent].AppendChild(node)
	a.nodes = append(a.nodes, node)
	return handle(len(a.nodes) - 1)
}

// text appends a text node under parent, merging with a preceding text node.
func (a *arena) text(parent handle, data string) {
	parentNode := a.nodes[parent]
	if last := parentNode.LastChild; last != nil && last.Type == html.TextNode {
		last.Data += data
		return
	}
	parentNode.AppendChild(&html.Node{Type: html.TextNode, Data: data})
}

func (a *arena) node(h handle) *html.Node {
	return a.nodes[h]
}

// contextStack is the ordered set of open output containers; the top is the
// current append point. It is never empty: the bottom is the output body.
type contextStack struct {
	handles []handle
}

func newContextStack() *contextStack {
	return &contextStack{handles: []handle{rootHandle}}
}

func (stack *contextStack) push(h handle) {
	stack.handles = append(stack.handles, h)
}

// pop removes the top container. Popping the root is a walker bug.
func (stack *contextStack) pop() handle {
	if len(stack.handles) == 1 {
		panic("convert: pop of root container")
	}
	top := stack.handles[len(stack.handles)-1]
	stack.handles = stack.handles[:len(stack.handles)-1]
	return top
}

func (stack *contextStack) top() handle {
	return stack.handles[len(stack.handles)-1]
}

func (stack *contextStack) depth() int {
	return len(stack.handles)
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

// classAttr joins the non-empty classes into one class attribute.
func classAttr(classes ...string) html.Attribute {
	var kept []string
	seen := make(map[string]bool, len(classes))
	for _, class := range classes {
		if class == "" || seen[class] {
			continue
		}
		seen[class] = true
		kept = append(kept, class)
	}
	return attr("class", strings.Join(kept, " "))
}

// compactAttrs drops attributes with an empty key or an empty class list.
func compactAttrs(attrs []html.Attribute) []html.Attribute {
	if len(attrs) == 0 {
		return nil
	}
	kept := make([]html.Attribute, 0, len(attrs))
	for _, attribute := range attrs {
		if attribute.Key == "" || (attribute.Key == "class" && attribute.Val == "") {
			continue
		}
		kept = append(kept, attribute)
	}
	return kept
}
