package convert

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var (
	listLevelPattern = regexp.MustCompile(`level(\d+)`)
	lengthPattern    = regexp.MustCompile(`^(\d*\.?\d+)`)
)

// style is a parsed inline style attribute. Keys are lower-cased; values keep
// their case because Word's "mso-list:Ignore" is case-sensitive in practice.
type style struct {
	raw          string
	declarations map[string]string
}

func parseStyle(raw string) style {
	parsed := style{raw: raw, declarations: make(map[string]string)}
	for _, declaration := range strings.Split(raw, ";") {
		key, value, found := strings.Cut(declaration, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		parsed.declarations[key] = strings.Join(strings.Fields(value), " ")
	}
	return parsed
}

func styleOf(node *html.Node) style {
	return parseStyle(getAttr(node, "style"))
}

func (s style) get(key string) string {
	return s.declarations[key]
}

func (s style) has(key string) bool {
	_, ok := s.declarations[key]
	return ok
}

// contains reports whether the raw style mentions a keyword.
func (s style) contains(keyword string) bool {
	return strings.Contains(s.raw, keyword)
}

// listIgnore marks the glyph runs Word inserts in front of list paragraphs.
func (s style) listIgnore() bool {
	return strings.EqualFold(s.get("mso-list"), "ignore")
}

// listLevel returns the declared nesting level, or 0.
func (s style) listLevel() int {
	match := listLevelPattern.FindStringSubmatch(s.get("mso-list"))
	if match == nil {
		return 0
	}
	level, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return level
}

// indented reports a positive, non-negative left margin.
func (s style) indented() bool {
	value := strings.TrimSpace(s.get("margin-left"))
	if value == "" || strings.HasPrefix(value, "-") {
		return false
	}
	match := lengthPattern.FindStringSubmatch(value)
	if match == nil {
		return false
	}
	length, err := strconv.ParseFloat(match[1], 64)
	return err == nil && length > 0
}

func (s style) centered() bool {
	return strings.EqualFold(s.get("text-align"), "center")
}

func (s style) avoidsBreakAfter() bool {
	return strings.EqualFold(s.get("page-break-after"), "avoid")
}

func (s style) smallCaps() bool {
	return s.contains("small-caps")
}

// wideSpace marks tab and space-run spans.
func (s style) wideSpace() bool {
	return s.contains("mso-tab-count") || s.contains("mso-spacerun")
}

// compact removes whitespace and lower-cases, for comparing declarations
// written with varying spacing.
func compact(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), ""))
}

func getAttr(node *html.Node, key string) string {
	for _, attribute := range node.Attr {
		if attribute.Key == key {
			return attribute.Val
		}
	}
	return ""
}

func hasAttr(node *html.Node, key string) bool {
	for _, attribute := range node.Attr {
		if attribute.Key == key {
			return true
		}
	}
	return false
}
