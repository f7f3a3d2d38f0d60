package store

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/cdm/internal/cdm"
)

// ErrNotFound is returned by Get when no document has the requested ID.
var ErrNotFound = errors.New("document not found")

// Record is one stored document with the fields indexed for lookup.
// Document holds the full canonical document.
type Record struct {
	ID                  string        `json:"id"`
	PartitionKey        string        `json:"partition_key"`
	RunID               string        `json:"run_id,omitempty"`
	DocType             string        `json:"doc_type"`
	DocumentNo          string        `json:"document_no,omitempty"`
	IssueDate           string        `json:"issue_date,omitempty"`
	DueDate             string        `json:"due_date,omitempty"`
	Vendor              string        `json:"vendor,omitempty"`
	VendorID            string        `json:"vendor_id,omitempty"`
	CustomerID          string        `json:"customer_id,omitempty"`
	Currency            string        `json:"currency,omitempty"`
	Totals              cdm.Totals    `json:"totals"`
	LineItemCount       int           `json:"line_item_count"`
	ExtractionTimestamp string        `json:"extraction_timestamp,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	Document            *cdm.Document `json:"document"`
}

// NewRecord flattens doc into a Record keyed by DocumentID.
func NewRecord(doc *cdm.Document, runID string, now time.Time) Record {
	return Record{
		ID:                  DocumentID(doc, now),
		PartitionKey:        PartitionKey(doc),
		RunID:               runID,
		DocType:             doc.Type(),
		DocumentNo:          documentNo(doc),
		IssueDate:           doc.String("issue_date"),
		DueDate:             doc.String("due_date"),
		Vendor:              doc.Vendor(),
		VendorID:            doc.String("vendor_id"),
		CustomerID:          doc.String("customer_id"),
		Currency:            doc.String("currency"),
		Totals:              doc.Totals,
		LineItemCount:       len(doc.Lines),
		ExtractionTimestamp: doc.String("extraction_timestamp"),
		CreatedAt:           now.UTC(),
		Document:            doc,
	}
}

// Store persists canonical documents.
type Store interface {
	// Save inserts rec or replaces the record with the same ID.
	Save(ctx context.Context, rec Record) error
	// Get returns the record with id, or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)
	// List returns the most recent records, newest first. A non-empty
	// partition restricts the result to one vendor.
	List(ctx context.Context, partition string, limit int) ([]Record, error)
	Close() error
}

// DefaultListLimit applies when List is called without a positive limit.
const DefaultListLimit = 50

const maxListLimit = 500

func listLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}
