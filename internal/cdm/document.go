// Package cdm defines the canonical data model shared by every pipeline stage:
// the raw extraction input, the canonical document, and their helpers.
package cdm

import (
	"strings"
	"time"
)

// Document types recognized by the classifier.
const (
	DocTypeInvoice       = "INVOICE"
	DocTypePurchaseOrder = "PURCHASE_ORDER"
)

// DocTypes lists the supported document types in a stable order.
var DocTypes = []string{DocTypeInvoice, DocTypePurchaseOrder}

// SchemaVersion is stamped into every document's doc.schema_version.
const SchemaVersion = "1.0"

// Line is one line item. Keys are the configured header targets
// (description, qty, unit_price, amount, tax_rate, ...).
type Line map[string]any

// Totals holds canonical totals such as subtotal, tax and grand_total.
type Totals map[string]float64

// UnmappedField records a raw name that no mapping source referenced.
type UnmappedField struct {
	Field        string `json:"field"`
	ValuePreview string `json:"value_preview"`
	Source       string `json:"source"`
}

// Metadata carries extraction diagnostics alongside the canonical data.
type Metadata struct {
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
	UnmappedFields   []UnmappedField    `json:"unmapped_fields"`
}

// Document is the canonical record built by the mapper and enriched by the validator.
type Document struct {
	Doc      map[string]any `json:"doc"`
	Lines    []Line         `json:"lines"`
	Totals   Totals         `json:"totals"`
	Metadata Metadata       `json:"metadata"`
}

// New returns a fresh document stamped with type, schema version and timestamp.
// An empty vendor is stored as null.
func New(docType, vendor string, extractedAt time.Time) *Document {
	var v any
	if vendor != "" {
		v = vendor
	}
	return &Document{
		Doc: map[string]any{
			"type":                 docType,
			"schema_version":       SchemaVersion,
			"extraction_timestamp": extractedAt.UTC().Format(time.RFC3339),
			"vendor":               v,
		},
		Lines:  []Line{},
		Totals: Totals{},
		Metadata: Metadata{
			ConfidenceScores: map[string]float64{},
			UnmappedFields:   []UnmappedField{},
		},
	}
}

// Clone returns a copy whose maps and slices can be mutated independently.
// Values stored inside doc and lines are copied shallowly.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Doc:    make(map[string]any, len(d.Doc)),
		Lines:  make([]Line, len(d.Lines)),
		Totals: make(Totals, len(d.Totals)),
		Metadata: Metadata{
			ConfidenceScores: make(map[string]float64, len(d.Metadata.ConfidenceScores)),
			UnmappedFields:   append([]UnmappedField(nil), d.Metadata.UnmappedFields...),
		},
	}
	for k, v := range d.Doc {
		out.Doc[k] = v
	}
	for i, line := range d.Lines {
		cp := make(Line, len(line))
		for k, v := range line {
			cp[k] = v
		}
		out.Lines[i] = cp
	}
	for k, v := range d.Totals {
		out.Totals[k] = v
	}
	for k, v := range d.Metadata.ConfidenceScores {
		out.Metadata.ConfidenceScores[k] = v
	}
	return out
}

// String returns doc[key] when it holds a string.
func (d *Document) String(key string) string {
	if d == nil {
		return ""
	}
	s, _ := d.Doc[key].(string)
	return s
}

// Type returns doc.type.
func (d *Document) Type() string { return d.String("type") }

// Vendor returns doc.vendor, or "" when absent.
func (d *Document) Vendor() string { return d.String("vendor") }

// DocumentNo returns doc.document_no when it is a string.
func (d *Document) DocumentNo() string { return d.String("document_no") }

// Lookup resolves a dotted path such as "doc.document_no" or "totals.tax".
// Only map nesting is walked; a list on the path yields no value.
func (d *Document) Lookup(path string) (any, bool) {
	if d == nil || path == "" {
		return nil, false
	}

	var current any = d.tree()
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// tree exposes the document as nested generic maps for path lookups.
func (d *Document) tree() map[string]any {
	lines := make([]any, len(d.Lines))
	for i, line := range d.Lines {
		lines[i] = map[string]any(line)
	}
	totals := make(map[string]any, len(d.Totals))
	for k, v := range d.Totals {
		totals[k] = v
	}
	return map[string]any{
		"doc":    d.Doc,
		"lines":  lines,
		"totals": totals,
		"metadata": map[string]any{
			"confidence_scores": d.Metadata.ConfidenceScores,
			"unmapped_fields":   d.Metadata.UnmappedFields,
		},
	}
}

// IsEmptyValue reports whether v counts as "not provided":
// nil, empty or whitespace string, zero number, false, or an empty collection.
func IsEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case float32:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
