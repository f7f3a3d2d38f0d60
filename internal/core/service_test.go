package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/cdm/internal/cdm"
	"github.com/JonMunkholm/cdm/internal/resolver"
	"github.com/JonMunkholm/cdm/internal/store"
)

const sampleConfigDir = "../../config"

const acmeInvoiceText = `請求書
請求番号 INV-2024-001
発行元 株式会社アクメ
請求金額 ¥110,000 日付 2024年1月15日
振込先 みずほ銀行`

type memoryStore struct {
	saved []store.Record
	err   error
}

func (m *memoryStore) Save(_ context.Context, rec store.Record) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, rec)
	return nil
}

type memorySink struct {
	sets []store.Artifacts
}

func (m *memorySink) Save(_ context.Context, set store.Artifacts) ([]string, error) {
	m.sets = append(m.sets, set)
	return []string{set.BlobName + "/audit.json"}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return NewService(resolver.New(sampleConfigDir, quietLogger()), opts...)
}

func acmeExtraction() *cdm.RawExtraction {
	return &cdm.RawExtraction{
		Fields: cdm.Fields{
			{Name: "伝票番号", Value: "INV-2024-001"},
			{Name: "発行日", Value: "2024年1月15日"},
			{Name: "支払期限", Value: "令和6年2月15日"},
			{Name: "小計", Value: "100,000"},
			{Name: "消費税", Value: "10,000"},
			{Name: "合計", Value: "¥110,000"},
		},
		KeyValuePairs: cdm.Fields{
			{Name: "宛先", Value: "サンプル商事株式会社"},
			{Name: "電話番号", Value: "０３－１２３４－５６７８"},
			{Name: "担当者", Value: "山田"},
		},
		Tables: []cdm.Table{{Rows: [][]string{
			{"品名", "数量", "単価", "金額"},
			{"システム保守", "1", "100,000", "100,000"},
		}}},
		ConfidenceScores: map[string]float64{"伝票番号": 0.98},
	}
}

func TestProcess_EndToEnd(t *testing.T) {
	docs := &memoryStore{}
	sink := &memorySink{}
	svc := newTestService(t, WithDocumentStore(docs), WithArtifactSink(sink))

	ctx := ContextWithSource(context.Background(), "test")
	res := svc.Process(ctx, Input{Name: "acme/invoice.pdf", Text: acmeInvoiceText, Extraction: acmeExtraction()})

	require.True(t, res.Success, "errors: %v", res.Report.Errors)
	require.NoError(t, res.Err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, cdm.DocTypeInvoice, res.DocType)
	assert.Equal(t, "acme", res.Vendor)

	doc := res.Document
	assert.Equal(t, "INV-2024-001", doc.Doc["document_no"])
	assert.Equal(t, "2024-01-15", doc.Doc["issue_date"])
	assert.Equal(t, "2024-02-15", doc.Doc["due_date"])
	assert.Equal(t, "JPY", doc.Doc["currency"])
	assert.Equal(t, "03-1234-5678", doc.Doc["phone"])
	assert.Equal(t, "V-0001", doc.Doc["vendor_id"])
	assert.Equal(t, "C-0001", doc.Doc["customer_id"])
	assert.Equal(t, cdm.Totals{"subtotal": 100000, "tax": 10000, "grand_total": 110000, "line_count": 1}, doc.Totals)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, 100000.0, doc.Lines[0]["amount"])
	assert.Equal(t, 0.1, doc.Lines[0]["tax_rate"])
	assert.Equal(t, 0.98, doc.Metadata.ConfidenceScores["伝票番号"])

	var unmapped []string
	for _, u := range doc.Metadata.UnmappedFields {
		unmapped = append(unmapped, u.Field)
	}
	assert.ElementsMatch(t, []string{"小計", "消費税", "合計", "担当者"}, unmapped)
	assert.Equal(t, []string{"4 unmapped field(s) kept in metadata"}, res.Report.Warnings)

	info := res.Report.Info
	require.Len(t, info, 1)
	assert.Equal(t, "classification", info[0]["step"])
	assert.Equal(t, cdm.DocTypeInvoice, info[0]["doc_type"])
	assert.Equal(t, "acme", info[0]["vendor"])
	assert.InDelta(t, 1.0, info[0]["confidence"], 1e-9)

	require.Len(t, docs.saved, 1)
	assert.Equal(t, "INVOICE_acme_INV-2024-001", docs.saved[0].ID)
	assert.Equal(t, "INVOICE_acme_INV-2024-001", res.DocumentID)
	assert.Equal(t, res.RunID, docs.saved[0].RunID)

	require.Len(t, sink.sets, 1)
	audit := sink.sets[0].Audit
	assert.True(t, audit.Success)
	assert.Equal(t, "test", audit.Source)
	assert.Equal(t, 0, audit.ErrorCount)
	assert.Equal(t, []string{"acme/invoice.pdf/audit.json"}, res.Artifacts)
}

func TestProcess_ClassificationFailure(t *testing.T) {
	sink := &memorySink{}
	svc := newTestService(t, WithArtifactSink(sink))

	res := svc.Process(context.Background(), Input{Name: "memo.txt", Text: "meeting notes", Extraction: acmeExtraction()})

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrClassification)
	assert.Equal(t, []string{"Failed to classify document type"}, res.Report.Errors)
	assert.Nil(t, res.Report.Info[0]["doc_type"])
	assert.Nil(t, res.Document)
	assert.Nil(t, res.Raw)

	require.Len(t, sink.sets, 1, "artifacts are saved for failed runs too")
	assert.False(t, sink.sets[0].Audit.Success)
	assert.Equal(t, 1, sink.sets[0].Audit.ErrorCount)
}

func TestProcess_ExtractionFailure(t *testing.T) {
	svc := newTestService(t)
	res := svc.Process(context.Background(), Input{Name: "x.pdf", Text: acmeInvoiceText})

	assert.ErrorIs(t, res.Err, ErrExtraction)
	assert.Equal(t, []string{"Failed to extract data from document"}, res.Report.Errors)
	assert.Equal(t, "EXT001", MapError(res.Err).Code)

	failing := ExtractorFunc(func(context.Context, Input, string) (*cdm.RawExtraction, error) {
		return nil, errors.New("service unavailable")
	})
	res = newTestService(t, WithExtractor(failing)).Process(context.Background(), Input{Name: "x.pdf", Text: acmeInvoiceText})
	assert.ErrorIs(t, res.Err, ErrExtraction)
	assert.Contains(t, res.Err.Error(), "service unavailable")
}

func TestProcess_MappingFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapping", "doc_type", "INVOICE.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("mappings: [1, 2]\n"), 0o644))

	svc := NewService(resolver.New(dir, quietLogger()), WithLogger(quietLogger()))
	res := svc.Process(context.Background(), Input{Name: "x.pdf", Text: acmeInvoiceText, Extraction: acmeExtraction()})

	assert.ErrorIs(t, res.Err, ErrMapping)
	assert.Equal(t, []string{"Failed to map data to CDM schema"}, res.Report.Errors)
	assert.NotNil(t, res.Raw, "raw extraction is kept for diagnostics")
	assert.Nil(t, res.Document)
}

func TestProcess_ValidationFailure(t *testing.T) {
	docs := &memoryStore{}
	svc := newTestService(t, WithDocumentStore(docs))

	raw := &cdm.RawExtraction{Fields: cdm.Fields{
		{Name: "請求番号", Value: "INV-9"},
		{Name: "発行日", Value: "2024-03-01"},
		{Name: "小計", Value: "100000"},
		{Name: "消費税", Value: "10000"},
		{Name: "合計", Value: "110002"},
	}}
	text := "請求書 請求番号 INV-9 お支払い 振込先"
	res := svc.Process(context.Background(), Input{Name: "inv9.pdf", Text: text, Extraction: raw})

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrValidation)
	require.NotNil(t, res.Document, "invalid documents are still returned")
	assert.Contains(t, res.Report.Errors, "Amount calculation mismatch: 100000 + 10000 = 110000, but grand_total is 110002")
	assert.Contains(t, res.Report.Warnings, "Vendor not identified; default mapping applied")
	assert.Empty(t, docs.saved, "only valid documents are stored")
}

func TestProcess_StoreFailureIsAWarning(t *testing.T) {
	docs := &memoryStore{err: errors.New("connection refused")}
	svc := newTestService(t, WithDocumentStore(docs))

	res := svc.Process(context.Background(), Input{Name: "a.pdf", Text: acmeInvoiceText, Extraction: acmeExtraction()})
	assert.True(t, res.Success)
	assert.Empty(t, res.DocumentID)
	assert.Contains(t, res.Report.Warnings, "Failed to save document: connection refused")
}

func TestProcess_RecoversFromPanic(t *testing.T) {
	sink := &memorySink{}
	boom := ExtractorFunc(func(context.Context, Input, string) (*cdm.RawExtraction, error) {
		panic("boom")
	})
	svc := newTestService(t, WithExtractor(boom), WithArtifactSink(sink))

	res := svc.Process(context.Background(), Input{Name: "p.pdf", Text: acmeInvoiceText})
	assert.False(t, res.Success)
	assert.Contains(t, res.Report.Errors, "Pipeline error: boom")
	assert.Len(t, sink.sets, 1)
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestService(t).Process(ctx, Input{Name: "c.pdf", Text: acmeInvoiceText, Extraction: acmeExtraction()})
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, "REQ004", MapError(res.Err).Code)
}

func TestRevalidate(t *testing.T) {
	svc := newTestService(t)
	res := svc.Process(context.Background(), Input{Name: "a.pdf", Text: acmeInvoiceText, Extraction: acmeExtraction()})
	require.True(t, res.Success)

	report := svc.Revalidate(context.Background(), res.Document, "a.pdf")
	assert.True(t, report.OK(), "errors: %v", report.Errors)
	assert.Equal(t, "a.pdf", report.BlobName)

	broken := res.Document.Clone()
	broken.Totals["grand_total"] = 1
	report = svc.Revalidate(context.Background(), broken, "a.pdf")
	assert.False(t, report.OK())
	assert.Equal(t, 110000.0, res.Document.Totals["grand_total"], "input document is not modified")

	assert.Equal(t, []string{"No document to validate"}, svc.Revalidate(context.Background(), nil, "x").Errors)
}
