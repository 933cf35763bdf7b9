package citation

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// signalPattern matches the introductory signals of the citation manual,
	// longest forms first so "see also" is not read as "see".
	signalPattern = regexp.MustCompile(`(?i)^\s*(see,?\s+e\.g\.,?|see\s+also|see\s+generally|see|but\s+see,?\s+e\.g\.,?|but\s+see|but\s+cf\.|cf\.|compare|contra|accord|e\.g\.,?)(?:[\s,]|$)`)

	// markupPattern strips inline markup Zotero keeps in prefixes ("<i>See</i>").
	markupPattern = regexp.MustCompile(`<[^>]*>`)
)

// DetectSignal returns the signal token for a citation prefix: the matched
// signal lower-cased with everything but letters removed ("See also" →
// "seealso", "cf." → "cf"), or "none".
func DetectSignal(prefix string) string {
	plain := markupPattern.ReplaceAllString(prefix, "")
	match := signalPattern.FindStringSubmatch(plain)
	if match == nil {
		return noSignal
	}
	var token strings.Builder
	for _, r := range strings.ToLower(match[1]) {
		if unicode.IsLetter(r) {
			token.WriteRune(r)
		}
	}
	return token.String()
}
