package cdm

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is a single named value produced by the extraction service.
type Field struct {
	Name  string
	Value any
}

// Fields is an ordered name→value collection.
// Order follows the source JSON object so "first match" lookups are stable.
type Fields []Field

// Get returns the value stored under name.
func (f Fields) Get(name string) (any, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

// Has reports whether name is present.
func (f Fields) Has(name string) bool {
	_, ok := f.Get(name)
	return ok
}

// Set replaces the value for name in place, or appends it.
func (f *Fields) Set(name string, value any) {
	for i := range *f {
		if (*f)[i].Name == name {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Name: name, Value: value})
}

// Union returns a new collection holding f followed by other.
// Values in other replace values in f with the same name, keeping f's position.
func (f Fields) Union(other Fields) Fields {
	out := make(Fields, 0, len(f)+len(other))
	out = append(out, f...)
	for _, field := range other {
		out.Set(field.Name, field.Value)
	}
	return out
}

// UnmarshalJSON decodes a JSON object while preserving key order.
func (f *Fields) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields: expected object, got %v", tok)
	}

	var out Fields
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("fields: expected string key, got %v", keyTok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("fields: decode %q: %w", key, err)
		}
		out.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*f = out
	return nil
}

// MarshalJSON encodes the collection as a JSON object in stored order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, fmt.Errorf("fields: encode %q: %w", field.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Table is one table detected by the extraction service.
// Rows[0] is conventionally the header row.
type Table struct {
	Rows [][]string `json:"rows"`
}

// RawExtraction is the input contract from the extraction service.
// The core treats it as read-only.
type RawExtraction struct {
	Fields           Fields             `json:"fields"`
	Tables           []Table            `json:"tables"`
	KeyValuePairs    Fields             `json:"key_value_pairs"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
}

// ParseRawExtraction decodes the extraction service's JSON payload.
func ParseRawExtraction(data []byte) (*RawExtraction, error) {
	var raw RawExtraction
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse raw extraction: %w", err)
	}
	return &raw, nil
}

// SourceFields returns the union of fields and key-value pairs used by lookups.
func (r *RawExtraction) SourceFields() Fields {
	if r == nil {
		return nil
	}
	return r.Fields.Union(r.KeyValuePairs)
}
