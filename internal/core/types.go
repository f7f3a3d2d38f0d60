package core

import (
	"context"

	"github.com/JonMunkholm/cdm/internal/cdm"
	"github.com/JonMunkholm/cdm/internal/store"
)

// Input is one document submitted to the pipeline.
type Input struct {
	Name       string             // Source name, used for the report and artifact paths
	Text       string             // Plain text used for classification
	Extraction *cdm.RawExtraction // Extraction service output, when already available
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID      string
	Success    bool
	DocType    string
	Vendor     string
	Document   *cdm.Document      // Nil when the run stopped before mapping
	Report     *cdm.Report        // Always set
	Raw        *cdm.RawExtraction // Nil when extraction failed
	DocumentID string             // Set when the document was stored
	Artifacts  []string           // Artifact paths written for this run
	Err        error              // Stage error; nil on success
}

// Extractor produces the raw extraction for a classified document.
type Extractor interface {
	Extract(ctx context.Context, in Input, docType string) (*cdm.RawExtraction, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, in Input, docType string) (*cdm.RawExtraction, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, in Input, docType string) (*cdm.RawExtraction, error) {
	return f(ctx, in, docType)
}

// ProvidedExtraction is the default Extractor. It returns the extraction
// supplied with the input.
var ProvidedExtraction = ExtractorFunc(func(_ context.Context, in Input, _ string) (*cdm.RawExtraction, error) {
	if in.Extraction == nil {
		return nil, ErrExtraction
	}
	return in.Extraction, nil
})

// DocumentStore persists successfully validated documents.
type DocumentStore interface {
	Save(ctx context.Context, rec store.Record) error
}

// ArtifactSink persists the raw, canonical, report and audit outputs of a run.
type ArtifactSink interface {
	Save(ctx context.Context, set store.Artifacts) ([]string, error)
}
