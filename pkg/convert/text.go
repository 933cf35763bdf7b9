package convert

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// zeroWidthSpace is a line-break opportunity with no visible width.
const zeroWidthSpace = "\u200b"

var (
	whitespaceRunPattern = regexp.MustCompile(`[\s\x{00a0}]+`)

	// crossReferencePattern finds "Rule 3.2" and "Table 1" in running text.
	crossReferencePattern = regexp.MustCompile(`\b(Rule|Table)\s+(\d+(?:\.\d+)*)`)

	// bareURLPattern finds URLs written out as link text.
	bareURLPattern = regexp.MustCompile(`(?:https?://|www\.)\S+`)

	// letterHeadingPattern matches "A. Basic Citation".
	letterHeadingPattern = regexp.MustCompile(`^([A-Z])\.\s+\S`)

	// codeHeadingPattern matches "R3.2 Subsequent References" and "T1".
	codeHeadingPattern = regexp.MustCompile(`^([A-Z]\d+(?:\.\d+)*)\b`)

	exampleLabelPattern = regexp.MustCompile(`^Examples?:$`)

	basicEntities = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&amp;", "&")
)

// normalizeText collapses whitespace and non-breaking spaces to single
// spaces and undoes a second layer of basic entity escaping.
func normalizeText(data string) string {
	text := norm.NFC.String(data)
	text = whitespaceRunPattern.ReplaceAllString(text, " ")
	return basicEntities.Replace(text)
}

// textSegment is either plain text or a cross-reference to splice in as a
// link.
type textSegment struct {
	text   string
	target string
}

// splitCrossReferences splits text around "Rule n" / "Table n" references.
// Reference segments carry the slug of the heading they point at.
func splitCrossReferences(text string) []textSegment {
	matches := crossReferencePattern.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return []textSegment{{text: text}}
	}

	segments := make([]textSegment, 0, 2*len(matches)+1)
	cursor := 0
	for _, match := range matches {
		start, end := match[0], match[1]
		keyword := text[match[2]:match[3]]
		number := text[match[4]:match[5]]
		if start > cursor {
			segments = append(segments, textSegment{text: text[cursor:start]})
		}
		segments = append(segments, textSegment{
			text:   text[start:end],
			target: slugify(keyword[:1] + number),
		})
		cursor = end
	}
	if cursor < len(text) {
		segments = append(segments, textSegment{text: text[cursor:]})
	}
	return segments
}

// breakURLs inserts zero-width spaces before the punctuation of bare URLs so
// long links can wrap.
func breakURLs(text string) string {
	return bareURLPattern.ReplaceAllStringFunc(text, func(url string) string {
		head := ""
		if schemeEnd := strings.Index(url, "://"); schemeEnd >= 0 {
			head, url = url[:schemeEnd+3], url[schemeEnd+3:]
		}
		var broken strings.Builder
		broken.WriteString(head)
		for index, r := range url {
			if index > 0 && strings.ContainsRune("/.?&=#_-", r) {
				broken.WriteString(zeroWidthSpace)
			}
			broken.WriteRune(r)
		}
		return broken.String()
	})
}

// slugify lower-cases and joins alphanumeric runs with hyphens.
func slugify(text string) string {
	var slug strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && slug.Len() > 0 {
				slug.WriteByte('-')
			}
			pendingHyphen = false
			slug.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return slug.String()
}

// headingID derives an anchor id from heading text: a known section label,
// a "A." letter prefix or a "R3.2" code prefix. Other headings get "".
func headingID(text string, labels []string) string {
	text = strings.TrimSpace(normalizeText(text))
	for _, label := range labels {
		if text == label {
			return slugify(label)
		}
	}
	if match := codeHeadingPattern.FindStringSubmatch(text); match != nil {
		return slugify(match[1])
	}
	if match := letterHeadingPattern.FindStringSubmatch(text); match != nil {
		return slugify(match[1])
	}
	return ""
}

func isExampleLabel(text string) bool {
	return exampleLabelPattern.MatchString(strings.TrimSpace(normalizeText(text)))
}

// textContent returns the text under node, leaving out list glyph runs and
// comments.
func textContent(node *html.Node) string {
	var text strings.Builder
	var collect func(*html.Node)
	collect = func(current *html.Node) {
		switch current.Type {
		case html.TextNode:
			text.WriteString(current.Data)
			return
		case html.CommentNode:
			return
		case html.ElementNode:
			if styleOf(current).listIgnore() {
				return
			}
		}
		for child := current.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(node)
	return text.String()
}
