// Package loader reads word-processor "Save as Web Page" exports into a source
// tree ready for conversion.
package loader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ErrInputNotFound is returned when the input document does not exist.
var ErrInputNotFound = errors.New("input file not found")

// Loader parses source documents.
type Loader struct {
	// emptyMarkup lists literal tag sequences removed before parsing. Long
	// runs of them push the parser's open-element stack very deep.
	emptyMarkup []string
}

// New creates a Loader that strips the given empty tag sequences.
func New(emptyMarkup []string) *Loader {
	return &Loader{emptyMarkup: emptyMarkup}
}

// Load reads and parses a file.
func (loader *Loader) Load(path string) (*html.Node, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := loader.Parse(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}

// Parse strips empty markup, parses the document and removes blank
// paragraphs.
func (loader *Loader) Parse(reader io.Reader) (*html.Node, error) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	cleaned := StripEmptyMarkup(string(raw), loader.emptyMarkup)
	doc, err := html.Parse(strings.NewReader(cleaned))
	if err != nil {
		return nil, err
	}
	RemoveBlankParagraphs(doc)
	return doc, nil
}

// StripEmptyMarkup removes each literal sequence from the raw markup.
func StripEmptyMarkup(raw string, sequences []string) string {
	for _, sequence := range sequences {
		if sequence == "" {
			continue
		}
		raw = strings.ReplaceAll(raw, sequence, "")
	}
	return raw
}

// RemoveBlankParagraphs detaches paragraphs whose text is only whitespace
// (including non-breaking spaces) and that hold no images or field comments.
// Sibling lookahead during conversion relies on these being gone. It returns
// the number removed.
func RemoveBlankParagraphs(doc *html.Node) int {
	removed := 0
	goquery.NewDocumentFromNode(doc).Find("p").Each(func(_ int, paragraph *goquery.Selection) {
		if !IsBlank(paragraph.Text()) {
			return
		}
		if paragraph.Find("img").Length() > 0 || hasComment(paragraph.Get(0)) {
			return
		}
		paragraph.Remove()
		removed++
	})
	return removed
}

// IsBlank reports whether text has nothing but whitespace and NBSPs.
func IsBlank(text string) bool {
	return strings.TrimFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\u00a0'
	}) == ""
}

func hasComment(node *html.Node) bool {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.CommentNode || hasComment(child) {
			return true
		}
	}
	return false
}
