// Package worksheet reshapes worksheet documents: it stamps run metadata
// onto a parsed document and narrows its sections to a selection.
package worksheet

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNotObject is returned when a document's top level is not a JSON object.
var ErrNotObject = errors.New("document must be a JSON object")

// ErrTrailingData is returned by Decode when more input follows the document.
var ErrTrailingData = errors.New("unexpected data after document")

type field struct {
	key   string
	value json.RawMessage
}

// Document is a JSON object that remembers the order of its keys. Values
// are kept as raw JSON so nested content is reproduced byte for byte
// (modulo whitespace) when the document is written back out.
type Document struct {
	fields []field
	index  map[string]int
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{index: map[string]int{}}
}

// Decode reads exactly one JSON object from r; trailing data is an error.
func Decode(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	d := NewDocument()
	if err := dec.Decode(d); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrTrailingData
	}
	return d, nil
}

// Parse decodes a document from bytes.
func Parse(data []byte) (*Document, error) {
	return Decode(bytes.NewReader(data))
}

// Len reports the number of keys.
func (d *Document) Len() int { return len(d.fields) }

// Keys returns the keys in document order.
func (d *Document) Keys() []string {
	keys := make([]string, len(d.fields))
	for i, f := range d.fields {
		keys[i] = f.key
	}
	return keys
}

// Get returns the raw value stored under key.
func (d *Document) Get(key string) (json.RawMessage, bool) {
	i, ok := d.index[key]
	if !ok {
		return nil, false
	}
	return d.fields[i].value, true
}

// Set stores raw JSON under key. An existing key keeps its position.
func (d *Document) Set(key string, value json.RawMessage) {
	if d.index == nil {
		d.index = map[string]int{}
	}
	if i, ok := d.index[key]; ok {
		d.fields[i].value = value
		return
	}
	d.index[key] = len(d.fields)
	d.fields = append(d.fields, field{key: key, value: value})
}

// SetValue marshals v and stores it under key.
func (d *Document) SetValue(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	d.Set(key, raw)
	return nil
}

// Delete removes key if present.
func (d *Document) Delete(key string) {
	i, ok := d.index[key]
	if !ok {
		return
	}
	d.fields = append(d.fields[:i:i], d.fields[i+1:]...)
	delete(d.index, key)
	for j := i; j < len(d.fields); j++ {
		d.index[d.fields[j].key] = j
	}
}

// Clone returns a shallow copy: new key order, shared raw values.
func (d *Document) Clone() *Document {
	c := &Document{
		fields: make([]field, len(d.fields)),
		index:  make(map[string]int, len(d.fields)),
	}
	copy(c.fields, d.fields)
	for k, v := range d.index {
		c.index[k] = v
	}
	return c
}

// MarshalJSON writes the object with keys in document order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(f.value) == 0 {
			buf.WriteString("null")
			continue
		}
		buf.Write(f.value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping key order. A repeated key
// keeps its first position and its last value.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ErrNotObject
	}
	d.fields = nil
	d.index = map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("value of %q: %w", key, err)
		}
		d.Set(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Encode writes doc as two-space indented JSON followed by a newline.
// Non-ASCII text and HTML characters are written as-is.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
