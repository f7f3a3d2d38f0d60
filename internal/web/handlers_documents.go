package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/cdm/internal/cdm"
	"github.com/JonMunkholm/cdm/internal/core"
	"github.com/JonMunkholm/cdm/internal/export"
	"github.com/JonMunkholm/cdm/internal/logging"
	"github.com/JonMunkholm/cdm/internal/store"
	"github.com/JonMunkholm/cdm/internal/web/templates"
)

// defaultDocumentName is used when a request does not name its document.
const defaultDocumentName = "document"

// processRequest is the body of POST /api/documents.
type processRequest struct {
	Name       string             `json:"name"`
	Text       string             `json:"text"`
	Extraction *cdm.RawExtraction `json:"extraction"`
}

// processResponse is the outcome of one pipeline run.
type processResponse struct {
	RunID      string        `json:"run_id"`
	Success    bool          `json:"success"`
	DocType    string        `json:"doc_type,omitempty"`
	Vendor     string        `json:"vendor,omitempty"`
	DocumentID string        `json:"document_id,omitempty"`
	Document   *cdm.Document `json:"document"`
	Report     *cdm.Report   `json:"report"`
	Artifacts  []string      `json:"artifacts,omitempty"`
}

// handleProcess runs a submitted document through the pipeline. Successful
// runs answer 200; runs that fail a stage answer 422 with the same body.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	req, err := decodeProcessRequest(w, r, s.opts.MaxBodyBytes)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	if err := s.opts.Limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	defer s.opts.Limiter.Release()

	ctx, cancel := context.WithTimeout(WithRequestMetadata(r.Context(), r), s.opts.RunTimeout)
	defer cancel()

	logger := logging.WithFields(ctx, "name", req.Name)
	logger.Info("document received", "text_bytes", len(req.Text), "has_extraction", req.Extraction != nil)

	res := s.service.Process(ctx, core.Input{Name: req.Name, Text: req.Text, Extraction: req.Extraction})

	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, r, status, processResponse{
		RunID:      res.RunID,
		Success:    res.Success,
		DocType:    res.DocType,
		Vendor:     res.Vendor,
		DocumentID: res.DocumentID,
		Document:   res.Document,
		Report:     res.Report,
		Artifacts:  res.Artifacts,
	})
}

func decodeProcessRequest(w http.ResponseWriter, r *http.Request, maxBytes int64) (processRequest, error) {
	var req processRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, tooLarge.Limit)
		}
		return req, fmt.Errorf("%w: %w", errInvalidBody, err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return req, fmt.Errorf("%w: text is required", errInvalidBody)
	}
	if req.Name == "" {
		req.Name = defaultDocumentName
	}
	return req, nil
}

// handleListDocuments lists stored documents, newest first, optionally
// limited to one vendor partition. The document bodies are omitted.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.opts.Documents == nil {
		s.respondError(w, r, errStoreDisabled, statusFor(errStoreDisabled))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.opts.Documents.List(r.Context(), r.URL.Query().Get("partition"), limit)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	for i := range records {
		records[i].Document = nil
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"documents": records, "count": len(records)})
}

// handleGetDocument returns one stored document record.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	rec, err := s.lookupDocument(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

// handleExportDocument downloads a stored document as an xlsx workbook,
// together with a fresh validation report.
func (s *Server) handleExportDocument(w http.ResponseWriter, r *http.Request) {
	rec, err := s.lookupDocument(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	report := s.service.Revalidate(r.Context(), rec.Document, rec.ID)

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.ID+".xlsx"))
	if err := export.WriteXLSX(w, rec.Document, report); err != nil {
		logging.FromContext(r.Context()).Error("xlsx export failed", "id", rec.ID, "error", err)
	}
}

// handleReportPage renders a stored document and its current validation
// report as HTML.
func (s *Server) handleReportPage(w http.ResponseWriter, r *http.Request) {
	rec, err := s.lookupDocument(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	report := s.service.Revalidate(r.Context(), rec.Document, rec.ID)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.ReportPage(templates.ReportParams{
		ID:       rec.ID,
		Document: rec.Document,
		Report:   report,
	}).Render(r.Context(), w)
}

func (s *Server) lookupDocument(r *http.Request) (store.Record, error) {
	if s.opts.Documents == nil {
		return store.Record{}, errStoreDisabled
	}
	id := chi.URLParam(r, "id")
	rec, err := s.opts.Documents.Get(r.Context(), id)
	if err != nil {
		return store.Record{}, fmt.Errorf("get %s: %w", id, err)
	}
	return rec, nil
}
