package citation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	fieldCommentOpen  = "[if supportFields]>"
	fieldCommentClose = "<![endif]"

	// fieldInstruction starts the Zotero field code; the JSON payload sits at
	// a fixed offset after it.
	fieldInstruction = "ADDIN ZOTERO_ITEM CSL_CITATION "

	fieldBeginSelector = `span[style*="mso-element:field-begin"]`
	fieldEndSelector   = `span[style*="mso-element:field-end"]`
)

var (
	lineBreakPattern         = regexp.MustCompile(`\r\n|\n|\r`)
	formattedCitationPattern = regexp.MustCompile(`formattedCitation.*plainCitation`)
)

// CommentField is what a conditional comment says about field codes.
type CommentField struct {
	// Begin is set when the comment opens a field.
	Begin bool

	// End is set when the comment closes a field.
	End bool

	// Payload is the cleaned JSON of a citation field; empty for other
	// field types (page references, hyperlinks, TOC entries).
	Payload string
}

// IsCitation reports whether the comment opened a citation field.
func (field CommentField) IsCitation() bool {
	return field.Begin && field.Payload != ""
}

// ParseComment inspects raw comment data. Only comments bracketed exactly by
// "[if supportFields]>" and "<![endif]" are considered; anything else yields
// a zero CommentField.
func ParseComment(data string) (CommentField, error) {
	if !strings.HasPrefix(data, fieldCommentOpen) || !strings.HasSuffix(data, fieldCommentClose) {
		return CommentField{}, nil
	}
	if len(data) < len(fieldCommentOpen)+len(fieldCommentClose) {
		return CommentField{}, nil
	}
	inner := data[len(fieldCommentOpen) : len(data)-len(fieldCommentClose)]

	fragment, err := goquery.NewDocumentFromReader(strings.NewReader(inner))
	if err != nil {
		return CommentField{}, fmt.Errorf("failed to parse field comment: %w", err)
	}

	field := CommentField{
		Begin: fragment.Find(fieldBeginSelector).Length() > 0,
		End:   fragment.Find(fieldEndSelector).Length() > 0,
	}
	if !field.Begin {
		return field, nil
	}

	text := fragment.Find("body").Text()
	instructionStart := strings.Index(text, "ADDIN ZOTERO_ITEM")
	if instructionStart < 0 {
		return field, nil
	}
	payloadStart := instructionStart + len(fieldInstruction)
	if payloadStart > len(text) {
		return CommentField{}, fmt.Errorf("%w: truncated field instruction", ErrMalformedField)
	}
	field.Payload = CleanPayload(text[payloadStart:])
	if field.Payload == "" {
		return CommentField{}, fmt.Errorf("%w: empty payload", ErrMalformedField)
	}
	return field, nil
}

// CleanPayload undoes the escaping Word applies to the field JSON and drops
// the formattedCitation property, whose embedded markup does not survive the
// round trip through the comment.
func CleanPayload(raw string) string {
	cleaned := strings.ReplaceAll(raw, "&quot;", `"`)
	cleaned = lineBreakPattern.ReplaceAllString(cleaned, " ")
	cleaned = formattedCitationPattern.ReplaceAllString(cleaned, "plainCitation")
	return strings.TrimSpace(cleaned)
}
