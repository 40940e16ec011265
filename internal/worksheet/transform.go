package worksheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/local/homeworkhero/internal/selector"
)

const (
	KeySeed     = "seed"
	KeyTheme    = "theme"
	KeySections = "sections"
	KeySection  = "section"
)

// ShapeError reports a "sections" value that is not a JSON array.
type ShapeError struct {
	Got string // JSON kind found instead of an array
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("input JSON 'sections' field must be a list, got %s", e.Got)
}

// Metadata is stamped onto every transformed document.
type Metadata struct {
	Seed  int64
	Theme string
}

// Transform builds the output document: "seed" and "theme" first, then the
// input keys in order, then "sections". A nil filter keeps every section
// untouched; otherwise only object entries whose "section" id is in the
// filter survive, in their original order. doc is not modified.
func Transform(doc *Document, meta Metadata, filter selector.Set) (*Document, error) {
	sections, err := sectionEntries(doc)
	if err != nil {
		return nil, err
	}

	out := NewDocument()
	if err := out.SetValue(KeySeed, meta.Seed); err != nil {
		return nil, err
	}
	if err := out.SetValue(KeyTheme, meta.Theme); err != nil {
		return nil, err
	}
	for _, f := range doc.fields {
		switch f.key {
		case KeySections:
			continue
		case KeySeed, KeyTheme:
			// stamped above
			continue
		}
		out.Set(f.key, f.value)
	}

	if filter == nil {
		if raw, ok := doc.Get(KeySections); ok {
			out.Set(KeySections, raw)
		} else {
			out.Set(KeySections, json.RawMessage("[]"))
		}
		return out, nil
	}

	kept := make([]json.RawMessage, 0, len(sections))
	for _, entry := range sections {
		if id, ok := SectionID(entry); ok && filter.Contains(id) {
			kept = append(kept, entry)
		}
	}
	if err := out.SetValue(KeySections, kept); err != nil {
		return nil, err
	}
	return out, nil
}

// Sections returns the raw entries of doc's "sections" array. A missing
// key yields no entries; any non-array value is a ShapeError.
func Sections(doc *Document) ([]json.RawMessage, error) {
	return sectionEntries(doc)
}

func sectionEntries(doc *Document) ([]json.RawMessage, error) {
	raw, ok := doc.Get(KeySections)
	if !ok {
		return nil, nil
	}
	if kind := jsonKind(raw); kind != "array" {
		return nil, &ShapeError{Got: kind}
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode sections: %w", err)
	}
	return entries, nil
}

// SectionID extracts the integer "section" member of an object entry.
// Entries that are not objects, lack the member, or hold anything other
// than an integral number report false.
func SectionID(entry json.RawMessage) (int, bool) {
	if jsonKind(entry) != "object" {
		return 0, false
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(entry, &members); err != nil {
		return 0, false
	}
	raw, ok := members[KeySection]
	if !ok || jsonKind(raw) != "number" {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return int(i), true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int(f), true
}

func jsonKind(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "nothing"
	}
	switch c := raw[0]; {
	case c == '{':
		return "object"
	case c == '[':
		return "array"
	case c == '"':
		return "string"
	case c == 't' || c == 'f':
		return "boolean"
	case c == 'n':
		return "null"
	default:
		return "number"
	}
}
