package cdm

// Report collects the outcome of one pipeline run. Entries are appended in
// the order the stages produce them.
type Report struct {
	BlobName string           `json:"blob_name"`
	Errors   []string         `json:"errors"`
	Warnings []string         `json:"warnings"`
	Info     []map[string]any `json:"info"`
}

// NewReport returns an empty report for the named source document.
func NewReport(blobName string) *Report {
	return &Report{
		BlobName: blobName,
		Errors:   []string{},
		Warnings: []string{},
		Info:     []map[string]any{},
	}
}

// AddError appends an error entry.
func (r *Report) AddError(msg string) { r.Errors = append(r.Errors, msg) }

// AddWarning appends a warning entry.
func (r *Report) AddWarning(msg string) { r.Warnings = append(r.Warnings, msg) }

// AddInfo appends a structured info entry.
func (r *Report) AddInfo(entry map[string]any) { r.Info = append(r.Info, entry) }

// OK reports whether no errors were recorded.
func (r *Report) OK() bool { return len(r.Errors) == 0 }
