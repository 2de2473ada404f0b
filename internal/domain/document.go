// Package domain defines the core interfaces and types for Harpia.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is a scanned file submitted for analysis.
type Document struct {
	// Name is the document reference carried into the report (file name or path).
	Name        string
	ContentType string
	Content     []byte
}

// ExtractedData is what the document extraction service found in a document.
// It is produced once per document and not modified afterwards.
type ExtractedData struct {
	KeyValuePairs Fields        `json:"key_value_pairs"`
	Tables        [][]TableCell `json:"tables"`

	// Error is only set by the not-configured extraction payload.
	Error string `json:"error,omitempty"`
}

// MarshalJSON writes the not-configured payload as {"error": ...} only.
// Otherwise both pairs and tables are always present, empty as {} and [].
func (d ExtractedData) MarshalJSON() ([]byte, error) {
	if d.Error != "" {
		return marshalNoEscape(struct {
			Error string `json:"error"`
		}{d.Error})
	}

	tables := d.Tables
	if tables == nil {
		tables = [][]TableCell{}
	}
	return marshalNoEscape(struct {
		KeyValuePairs Fields        `json:"key_value_pairs"`
		Tables        [][]TableCell `json:"tables"`
	}{d.KeyValuePairs, tables})
}

// TableCell is a single cell of a table found in a document.
type TableCell struct {
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	Content string `json:"content"`
}

// Field is a label/value pair located on a document.
type Field struct {
	Key   string
	Value string
}

// Fields is an ordered set of key/value pairs. It serializes as a JSON object
// and keeps document order in both directions, so validation buckets built by
// iterating it are reproducible.
type Fields []Field

// Set stores value under key. An existing key keeps its position.
func (f *Fields) Set(key, value string) {
	for i := range *f {
		if (*f)[i].Key == key {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Key: key, Value: value})
}

// Get returns the value stored under key.
func (f Fields) Get(key string) (string, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return "", false
}

// MarshalJSON writes the pairs as a JSON object in order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(field.Key)
		if err != nil {
			return nil, err
		}
		value, err := marshalNoEscape(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of string values, keeping key order.
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*f = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("key_value_pairs: expected object, got %v", tok)
	}

	fields := Fields{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("key_value_pairs: expected string key, got %v", tok)
		}

		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("key_value_pairs: value for %q: %w", key, err)
		}
		fields.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*f = fields
	return nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
