// Package finalize turns a converted output tree into the published file:
// empty leftovers are stripped, block elements are put on their own lines,
// and the serialized markup gets a doctype and entity fixes.
package finalize

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Doctype is written before the serialized document.
const Doctype = "<!DOCTYPE html>"

// keptEmpty are elements that stay even without children.
var keptEmpty = map[atom.Atom]bool{
	atom.Br:    true,
	atom.Hr:    true,
	atom.Img:   true,
	atom.Meta:  true,
	atom.Link:  true,
	atom.Col:   true,
	atom.Td:    true,
	atom.Th:    true,
	atom.Tr:    true,
	atom.Title: true,
	atom.Head:  true,
	atom.Body:  true,
	atom.Html:  true,
}

// blockElements start on their own line in the output.
var blockElements = map[atom.Atom]bool{
	atom.Html:       true,
	atom.Head:       true,
	atom.Meta:       true,
	atom.Title:      true,
	atom.Body:       true,
	atom.Div:        true,
	atom.P:          true,
	atom.Blockquote: true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Ul:         true,
	atom.Ol:         true,
	atom.Li:         true,
	atom.Table:      true,
	atom.Tbody:      true,
	atom.Thead:      true,
	atom.Tr:         true,
	atom.Td:         true,
	atom.Th:         true,
}

var (
	tagPattern = regexp.MustCompile(`<[^>]*>`)

	// doubleEscapedPattern matches a character reference whose ampersand
	// was escaped a second time ("&amp;#8217;").
	doubleEscapedPattern = regexp.MustCompile(`&amp;#(x[0-9a-fA-F]+|\d+);`)
)

// StripEmpty removes elements left without children, innermost first, and
// returns how many were removed. Void elements and table structure stay.
func StripEmpty(root *html.Node) int {
	removed := 0
	var strip func(*html.Node)
	strip = func(node *html.Node) {
		child := node.FirstChild
		for child != nil {
			next := child.NextSibling
			if child.Type == html.ElementNode {
				strip(child)
				if child.FirstChild == nil && !keptEmpty[child.DataAtom] && !hasID(child) {
					node.RemoveChild(child)
					removed++
				}
			}
			child = next
		}
	}
	strip(root)
	return removed
}

func hasID(node *html.Node) bool {
	for _, attribute := range node.Attr {
		if attribute.Key == "id" && attribute.Val != "" {
			return true
		}
	}
	return false
}

// BreakBlocks inserts a line break before every block element that follows
// another node, so each block starts on its own line. Whitespace between
// block elements does not render.
func BreakBlocks(root *html.Node) {
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode {
			continue
		}
		if blockElements[child.DataAtom] && child.PrevSibling != nil && !endsWithNewline(child.PrevSibling) {
			root.InsertBefore(&html.Node{Type: html.TextNode, Data: "\n"}, child)
		}
		BreakBlocks(child)
	}
}

func endsWithNewline(node *html.Node) bool {
	return node.Type == html.TextNode && strings.HasSuffix(node.Data, "\n")
}

// FixEntities rewrites the character references the serializer produces
// back to literal characters where that is safe: apostrophes everywhere,
// double quotes outside tags, and references whose ampersand was escaped
// twice.
func FixEntities(markup string) string {
	var fixed strings.Builder
	fixed.Grow(len(markup))

	cursor := 0
	for _, tag := range tagPattern.FindAllStringIndex(markup, -1) {
		fixed.WriteString(fixText(markup[cursor:tag[0]]))
		fixed.WriteString(strings.ReplaceAll(markup[tag[0]:tag[1]], "&#39;", "'"))
		cursor = tag[1]
	}
	fixed.WriteString(fixText(markup[cursor:]))
	return fixed.String()
}

func fixText(text string) string {
	text = strings.NewReplacer("&#39;", "'", "&#34;", `"`, "&#160;", "\u00a0").Replace(text)
	return doubleEscapedPattern.ReplaceAllStringFunc(text, func(reference string) string {
		number := doubleEscapedPattern.FindStringSubmatch(reference)[1]
		base := 10
		if strings.HasPrefix(number, "x") {
			number, base = number[1:], 16
		}
		code, err := strconv.ParseInt(number, base, 32)
		if err != nil || code <= 0 || code > 0x10FFFF {
			return reference
		}
		switch rune(code) {
		case '<':
			return "&lt;"
		case '>':
			return "&gt;"
		case '&':
			return "&amp;"
		}
		return string(rune(code))
	})
}

// Render serializes doc with a doctype and entity fixes.
func Render(w io.Writer, doc *html.Node) error {
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return fmt.Errorf("failed to render document: %w", err)
	}

	output := Doctype + "\n" + FixEntities(buf.String()) + "\n"
	if _, err := io.WriteString(w, output); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// Finalize strips, lays out and renders doc into memory.
func Finalize(doc *html.Node) ([]byte, error) {
	StripEmpty(doc)
	BreakBlocks(doc)

	var buf bytes.Buffer
	if err := Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile finalizes doc and writes it to outputPath, creating parent
// directories. Nothing is written when finalizing fails.
func WriteFile(outputPath string, doc *html.Node) error {
	data, err := Finalize(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	return nil
}
