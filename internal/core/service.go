package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/cdm/internal/cdm"
	"github.com/JonMunkholm/cdm/internal/classify"
	"github.com/JonMunkholm/cdm/internal/logging"
	"github.com/JonMunkholm/cdm/internal/mapper"
	"github.com/JonMunkholm/cdm/internal/resolver"
	"github.com/JonMunkholm/cdm/internal/store"
	"github.com/JonMunkholm/cdm/internal/transform"
	"github.com/JonMunkholm/cdm/internal/validate"
)

// Stage errors. Result.Err wraps one of these when a run does not succeed.
var (
	ErrClassification = errors.New("failed to classify document type")
	ErrExtraction     = errors.New("failed to extract data from document")
	ErrMapping        = errors.New("failed to map data to CDM schema")
	ErrValidation     = errors.New("document failed validation")
)

// Report messages for fatal stages.
const (
	msgClassificationFailed = "Failed to classify document type"
	msgExtractionFailed     = "Failed to extract data from document"
	msgMappingFailed        = "Failed to map data to CDM schema"
)

// Service runs documents through classification, mapping and validation.
type Service struct {
	configs    *resolver.Resolver
	classifier *classify.Classifier
	mapper     *mapper.Mapper
	validator  *validate.Validator

	extractor Extractor
	documents DocumentStore
	artifacts ArtifactSink
	logger    *slog.Logger
	now       func() time.Time

	duplicates validate.DuplicateChecker
}

// Option configures a Service.
type Option func(*Service)

// WithExtractor replaces ProvidedExtraction.
func WithExtractor(e Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

// WithDocumentStore stores each successfully validated document.
func WithDocumentStore(d DocumentStore) Option {
	return func(s *Service) { s.documents = d }
}

// WithArtifactSink saves the outputs of every run.
func WithArtifactSink(a ArtifactSink) Option {
	return func(s *Service) { s.artifacts = a }
}

// WithLogger sets the logger. Without it each run logs through
// logging.FromContext.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithDuplicateChecker enables duplicate detection in validation.
func WithDuplicateChecker(d validate.DuplicateChecker) Option {
	return func(s *Service) { s.duplicates = d }
}

// NewService wires the pipeline components around configs.
func NewService(configs *resolver.Resolver, opts ...Option) *Service {
	s := &Service{
		configs:   configs,
		extractor: ProvidedExtraction,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	var vopts []validate.Option
	if s.duplicates != nil {
		vopts = append(vopts, validate.WithDuplicateChecker(s.duplicates))
	}
	s.classifier = classify.New(configs, s.logger)
	s.mapper = mapper.New(configs, transform.NewEngine(s.logger), s.logger)
	s.validator = validate.New(configs, s.logger, vopts...)
	return s
}

// Configs returns the configuration resolver.
func (s *Service) Configs() *resolver.Resolver { return s.configs }

// Process runs one document through the pipeline. It never returns nil;
// failures are recorded in the report and in Result.Err.
func (s *Service) Process(ctx context.Context, in Input) (res *Result) {
	res = &Result{RunID: uuid.NewString(), Report: cdm.NewReport(in.Name)}
	logger := s.loggerFor(ctx).With("run_id", res.RunID, "blob_name", in.Name)
	start := s.now()
	logger.Info("starting pipeline")

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in pipeline", "panic", r, "stack", string(debug.Stack()))
			res.Success = false
			res.Err = fmt.Errorf("pipeline panic: %v", r)
			res.Report.AddError(fmt.Sprintf("Pipeline error: %v", r))
		}
		s.persist(ctx, res, logger)
		logger.Info("pipeline finished",
			"success", res.Success,
			"errors", len(res.Report.Errors),
			"duration_ms", s.now().Sub(start).Milliseconds(),
		)
	}()

	s.run(ctx, in, res, logger)
	return res
}

func (s *Service) run(ctx context.Context, in Input, res *Result, logger *slog.Logger) {
	report := res.Report
	if err := ctx.Err(); err != nil {
		res.Err = err
		report.AddError(fmt.Sprintf("Pipeline error: %v", err))
		return
	}

	logger.Debug("classifying document")
	cls := s.classifier.Classify(in.Text)
	res.DocType, res.Vendor = cls.DocType, cls.Vendor
	report.AddInfo(map[string]any{
		"step":       "classification",
		"doc_type":   nullable(cls.DocType),
		"vendor":     nullable(cls.Vendor),
		"confidence": cls.Confidence,
	})
	if !cls.Classified() {
		logger.Warn("document type not determined", "confidence", cls.Confidence)
		report.AddError(msgClassificationFailed)
		res.Err = ErrClassification
		return
	}
	logger.Info("document classified", "doc_type", cls.DocType, "vendor", cls.Vendor, "confidence", cls.Confidence)
	if cls.Vendor == "" {
		report.AddWarning("Vendor not identified; default mapping applied")
	}

	raw, err := s.extractor.Extract(ctx, in, cls.DocType)
	if err == nil && raw == nil {
		err = ErrExtraction
	}
	if err != nil {
		logger.Error("extraction failed", "error", err)
		report.AddError(msgExtractionFailed)
		res.Err = wrapStage(ErrExtraction, err)
		return
	}
	res.Raw = raw

	doc, err := s.mapper.Map(raw, cls.DocType, cls.Vendor)
	if err != nil {
		logger.Error("mapping failed", "error", err)
		report.AddError(msgMappingFailed)
		res.Err = wrapStage(ErrMapping, err)
		return
	}
	if n := len(doc.Metadata.UnmappedFields); n > 0 {
		report.AddWarning(fmt.Sprintf("%d unmapped field(s) kept in metadata", n))
	}

	ok, resolved, errs := s.validator.ValidateAndResolve(ctx, doc, cls.DocType)
	for _, e := range errs {
		report.AddError(e)
	}
	res.Document = resolved
	if !ok {
		logger.Warn("document validation failed", "errors", len(errs))
		res.Err = ErrValidation
		return
	}
	res.Success = true
}

// persist stores the document (successful runs only) and then the artifacts
// of every run. Persistence failures are logged; they do not fail the run.
func (s *Service) persist(ctx context.Context, res *Result, logger *slog.Logger) {
	if s.documents != nil && res.Success && res.Document != nil {
		rec := store.NewRecord(res.Document, res.RunID, s.now())
		if err := s.documents.Save(ctx, rec); err != nil {
			logger.Error("failed to save document", "error", err)
			res.Report.AddWarning(fmt.Sprintf("Failed to save document: %v", err))
		} else {
			res.DocumentID = rec.ID
			logger.Info("saved document", "id", rec.ID)
		}
	}

	if s.artifacts == nil {
		return
	}
	set := store.Artifacts{
		BlobName: res.Report.BlobName,
		Raw:      res.Raw,
		Document: res.Document,
		Report:   res.Report,
		Audit: store.AuditRecord{
			BlobName:     res.Report.BlobName,
			RunID:        res.RunID,
			ProcessedAt:  s.now().UTC().Format(time.RFC3339),
			Success:      res.Success,
			ErrorCount:   len(res.Report.Errors),
			WarningCount: len(res.Report.Warnings),
			Source:       SourceFromContext(ctx),
			RemoteAddr:   RemoteAddrFromContext(ctx),
		},
	}
	paths, err := s.artifacts.Save(ctx, set)
	if err != nil {
		logger.Error("failed to save artifacts", "error", err)
	}
	res.Artifacts = paths
}

// Revalidate checks a stored document against the current rules and
// returns a fresh report for it. doc is not modified.
func (s *Service) Revalidate(ctx context.Context, doc *cdm.Document, blobName string) *cdm.Report {
	report := cdm.NewReport(blobName)
	if doc == nil {
		report.AddError("No document to validate")
		return report
	}
	_, _, errs := s.validator.ValidateAndResolve(ctx, doc, doc.Type())
	for _, e := range errs {
		report.AddError(e)
	}
	return report
}

func (s *Service) loggerFor(ctx context.Context) *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.FromContext(ctx)
}

func wrapStage(stage, err error) error {
	if errors.Is(err, stage) {
		return err
	}
	return fmt.Errorf("%w: %w", stage, err)
}

// nullable maps "" to nil so absent values encode as JSON null.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
