// Package jurisdiction builds the flat jurisdiction lookup used to expand the
// colon-joined codes found in citation data (e.g. "us:ca") into display-name
// paths ("United States|California").
package jurisdiction

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ErrInvalidTaxonomy is returned when an entry references a parent that does
// not exist or the parent chain loops.
var ErrInvalidTaxonomy = errors.New("invalid jurisdiction taxonomy")

// noParent marks an entry with no parent index (the root).
const noParent = -1

// Entry is one taxonomy row: [code, displayName, parentIndex].
type Entry struct {
	Code        string
	DisplayName string
	Parent      int
}

// UnmarshalJSON decodes the positional array form. The parent index is
// optional and may be null for the root.
func (entry *Entry) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("taxonomy entry must be an array: %w", err)
	}
	if len(fields) < 2 {
		return fmt.Errorf("taxonomy entry needs at least code and name, got %d fields", len(fields))
	}
	if err := json.Unmarshal(fields[0], &entry.Code); err != nil {
		return fmt.Errorf("taxonomy entry code: %w", err)
	}
	if err := json.Unmarshal(fields[1], &entry.DisplayName); err != nil {
		return fmt.Errorf("taxonomy entry %q name: %w", entry.Code, err)
	}
	entry.Parent = noParent
	if len(fields) > 2 && string(fields[2]) != "null" {
		if err := json.Unmarshal(fields[2], &entry.Parent); err != nil {
			return fmt.Errorf("taxonomy entry %q parent: %w", entry.Code, err)
		}
	}
	return nil
}

// taxonomyFile mirrors { jurisdictions: { default: [...] } }.
type taxonomyFile struct {
	Jurisdictions struct {
		Default []Entry `json:"default"`
	} `json:"jurisdictions"`
}

// Jurisdiction is a resolved taxonomy entry.
type Jurisdiction struct {
	Code  string
	Names []string
}

// NamePath joins the display names from the root down.
func (j Jurisdiction) NamePath() string {
	return strings.Join(j.Names, "|")
}

// Packed returns the zero-padded code length, the code and the name path
// concatenated, e.g. "005us:caUnited States|California".
func (j Jurisdiction) Packed() string {
	return fmt.Sprintf("%03d%s%s", len(j.Code), j.Code, j.NamePath())
}

// Map is the flat lookup from full jurisdiction code to its resolved entry.
// It is built once and never mutated.
type Map struct {
	entries map[string]Jurisdiction
}

// Decode reads a taxonomy JSON document and builds the Map.
func Decode(reader io.Reader) (*Map, error) {
	var file taxonomyFile
	if err := json.NewDecoder(reader).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode jurisdiction taxonomy: %w", err)
	}
	return Build(file.Jurisdictions.Default)
}

// LoadFile opens and decodes a taxonomy file.
func LoadFile(path string) (*Map, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open jurisdiction taxonomy: %w", err)
	}
	defer file.Close()
	return Decode(file)
}

// Build resolves every entry against its parent chain. Children's codes and
// names are the parent's with their own appended.
func Build(entries []Entry) (*Map, error) {
	resolved := make([]*Jurisdiction, len(entries))
	visiting := make([]bool, len(entries))

	var resolve func(index int) (*Jurisdiction, error)
	resolve = func(index int) (*Jurisdiction, error) {
		if resolved[index] != nil {
			return resolved[index], nil
		}
		if visiting[index] {
			return nil, fmt.Errorf("%w: parent cycle at entry %d (%s)", ErrInvalidTaxonomy, index, entries[index].Code)
		}
		visiting[index] = true

		entry := entries[index]
		jurisdiction := &Jurisdiction{
			Code:  entry.Code,
			Names: []string{entry.DisplayName},
		}
		if index != 0 && entry.Parent != noParent {
			if entry.Parent < 0 || entry.Parent >= len(entries) {
				return nil, fmt.Errorf("%w: entry %d (%s) references parent %d", ErrInvalidTaxonomy, index, entry.Code, entry.Parent)
			}
			parent, err := resolve(entry.Parent)
			if err != nil {
				return nil, err
			}
			names := make([]string, 0, len(parent.Names)+1)
			names = append(names, parent.Names...)
			jurisdiction.Code = parent.Code + ":" + entry.Code
			jurisdiction.Names = append(names, entry.DisplayName)
		}

		resolved[index] = jurisdiction
		return jurisdiction, nil
	}

	lookup := &Map{entries: make(map[string]Jurisdiction, len(entries))}
	for index := range entries {
		jurisdiction, err := resolve(index)
		if err != nil {
			return nil, err
		}
		lookup.entries[jurisdiction.Code] = *jurisdiction
	}
	return lookup, nil
}

// Resolve looks up a full colon-joined code.
func (lookup *Map) Resolve(code string) (Jurisdiction, bool) {
	if lookup == nil {
		return Jurisdiction{}, false
	}
	jurisdiction, ok := lookup.entries[code]
	return jurisdiction, ok
}

// Pack returns the packed form of a code, or false when it is unknown.
func (lookup *Map) Pack(code string) (string, bool) {
	jurisdiction, ok := lookup.Resolve(code)
	if !ok {
		return "", false
	}
	return jurisdiction.Packed(), true
}

// Len returns the number of codes in the map.
func (lookup *Map) Len() int {
	if lookup == nil {
		return 0
	}
	return len(lookup.entries)
}

// Codes returns all codes in sorted order.
func (lookup *Map) Codes() []string {
	if lookup == nil {
		return []string{}
	}
	codes := make([]string, 0, len(lookup.entries))
	for code := range lookup.entries {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
