package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/cdm/internal/cdm"
)

// ArtifactTimestampLayout stamps artifact file names.
const ArtifactTimestampLayout = "20060102_150405"

// AuditRecord summarizes one pipeline run.
type AuditRecord struct {
	BlobName     string `json:"blob_name"`
	RunID        string `json:"run_id,omitempty"`
	ProcessedAt  string `json:"processed_at"`
	Success      bool   `json:"success"`
	ErrorCount   int    `json:"error_count"`
	WarningCount int    `json:"warning_count"`
	Source       string `json:"source,omitempty"`
	RemoteAddr   string `json:"remote_addr,omitempty"`
}

// Artifacts is everything written for one run. Document may be nil when the
// pipeline stopped before mapping.
type Artifacts struct {
	BlobName string
	Raw      *cdm.RawExtraction
	Document *cdm.Document
	Report   *cdm.Report
	Audit    AuditRecord
}

// ArtifactDir writes artifacts as JSON files under a root directory:
//
//	<root>/<blob base>/raw_<ts>.json
//	<root>/<blob base>/cdm_<ts>.json
//	<root>/<blob base>/validation_<ts>.json
//	<root>/<blob base>/audit_<ts>.json
type ArtifactDir struct {
	root   string
	logger *slog.Logger
	now    func() time.Time
}

// NewArtifactDir returns a sink rooted at root.
func NewArtifactDir(root string, logger *slog.Logger) *ArtifactDir {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtifactDir{root: root, logger: logger, now: time.Now}
}

// Root returns the directory artifacts are written under.
func (a *ArtifactDir) Root() string { return a.root }

// Save writes the run's artifacts and returns their paths relative to the
// root. The CDM file is skipped when there is no document.
func (a *ArtifactDir) Save(ctx context.Context, set Artifacts) ([]string, error) {
	base, err := BlobBase(set.BlobName)
	if err != nil {
		return nil, err
	}
	ts := a.now().UTC().Format(ArtifactTimestampLayout)

	var raw any = set.Raw
	if set.Raw == nil {
		raw = map[string]any{}
	}

	files := []struct {
		kind string
		data any
	}{
		{"raw", raw},
		{"cdm", set.Document},
		{"validation", set.Report},
		{"audit", set.Audit},
	}

	var written []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if f.kind == "cdm" && set.Document == nil {
			continue
		}
		rel := path.Join(base, fmt.Sprintf("%s_%s.json", f.kind, ts))
		if err := a.writeJSON(rel, f.data); err != nil {
			return written, err
		}
		a.logger.Debug("saved artifact", "path", rel)
		written = append(written, rel)
	}
	a.logger.Info("saved artifacts", "blob_name", set.BlobName, "files", len(written))
	return written, nil
}

func (a *ArtifactDir) writeJSON(rel string, v any) error {
	full := filepath.Join(a.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", rel, err)
	}
	if err := os.WriteFile(full, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// Load decodes an artifact file previously written by Save.
func (a *ArtifactDir) Load(rel string, v any) error {
	clean := path.Clean(rel)
	if !fs.ValidPath(clean) {
		return fmt.Errorf("invalid artifact path %q", rel)
	}
	data, err := os.ReadFile(filepath.Join(a.root, filepath.FromSlash(clean)))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// BlobBase strips the extension from a blob name and rejects names that
// would escape the artifact root.
func BlobBase(blobName string) (string, error) {
	name := strings.ReplaceAll(blobName, `\`, "/")
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" || name == "." {
		return "", errors.New("artifact: empty blob name")
	}
	return strings.TrimSuffix(name, path.Ext(name)), nil
}
