// Package citation decodes the citation field codes Word stores in
// conditional comments, resolves their jurisdictions, encodes each field as
// a compact positional key and persists one bibliographic record per
// citation item.
package citation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrMalformedField is returned when a field payload cannot be decoded.
// A broken citation corrupts downstream legal references, so callers treat
// it as fatal for the document.
var ErrMalformedField = errors.New("malformed citation field")

const (
	// positionPlaceholder fills the position slot of every encoded item;
	// positions are assigned downstream.
	positionPlaceholder = "0"

	// itemSeparator joins the encoded items of one field.
	itemSeparator = "+"

	// noSignal is the signal token for items without an introductory signal.
	noSignal = "none"
)

// Payload is the CSL citation object carried by a field code.
type Payload struct {
	CitationID    string     `json:"citationID"`
	Properties    Properties `json:"properties"`
	CitationItems []Item     `json:"citationItems"`
	Schema        string     `json:"schema,omitempty"`
}

// Properties holds the rendered forms Word stored alongside the items.
type Properties struct {
	PlainCitation string `json:"plainCitation"`
	NoteIndex     int    `json:"noteIndex"`
}

// Item is one cited source within a field.
type Item struct {
	ID             json.RawMessage `json:"id"`
	URIs           []string        `json:"uris"`
	URI            []string        `json:"uri"`
	ItemData       map[string]any  `json:"itemData"`
	Prefix         string          `json:"prefix,omitempty"`
	Suffix         string          `json:"suffix,omitempty"`
	Locator        string          `json:"locator,omitempty"`
	Label          string          `json:"label,omitempty"`
	SuppressAuthor bool            `json:"suppress-author,omitempty"`
}

// ParsePayload decodes a cleaned field payload.
func ParsePayload(raw string) (*Payload, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedField, err)
	}
	if len(payload.CitationItems) == 0 {
		return nil, fmt.Errorf("%w: no citation items", ErrMalformedField)
	}
	return &payload, nil
}

// Identifier returns the stable item identifier: the last path segment of
// the item's first URI.
func (item Item) Identifier() (string, error) {
	uris := item.URIs
	if len(uris) == 0 {
		uris = item.URI
	}
	if len(uris) == 0 || strings.TrimSpace(uris[0]) == "" {
		return "", fmt.Errorf("%w: citation item has no uri", ErrMalformedField)
	}

	rawURI := strings.TrimRight(strings.TrimSpace(uris[0]), "/")
	itemPath := rawURI
	if parsed, err := url.Parse(rawURI); err == nil && parsed.Path != "" {
		itemPath = parsed.Path
	}
	identifier := path.Base(itemPath)
	if identifier == "." || identifier == "/" || identifier == "" {
		return "", fmt.Errorf("%w: cannot derive identifier from uri %q", ErrMalformedField, uris[0])
	}
	return identifier, nil
}

// EncodedItem is the positional encoding of one citation item.
type EncodedItem struct {
	Signal         string
	Identifier     string
	SuppressAuthor bool
	Locator        string
}

// String renders signal-identifier-position-suppress[-locator].
func (encoded EncodedItem) String() string {
	suppressFlag := "0"
	if encoded.SuppressAuthor {
		suppressFlag = "1"
	}
	parts := []string{encoded.Signal, encoded.Identifier, positionPlaceholder, suppressFlag}
	if encoded.Locator != "" {
		parts = append(parts, encoded.Locator)
	}
	return strings.Join(parts, "-")
}

// JoinKeys joins encoded items into a field key.
func JoinKeys(items []EncodedItem) string {
	keys := make([]string, len(items))
	for index, item := range items {
		keys[index] = item.String()
	}
	return strings.Join(keys, itemSeparator)
}
