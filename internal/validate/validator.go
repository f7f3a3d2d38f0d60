// Package validate checks canonical documents against their JSON schema and
// the configured business rules, and enriches them from the entity
// dictionary.
//
// Every check category runs independently; their errors accumulate and a
// document is valid only when no category reported anything.
package validate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/cdm/internal/cdm"
	"github.com/JonMunkholm/cdm/internal/resolver"
)

// ConfigSource supplies schemas, rules and reference data.
type ConfigSource interface {
	CDMSchema(docType string) ([]byte, bool)
	ValidationRules() (resolver.ValidationRules, error)
	EntityDictionary() (resolver.EntityDictionary, error)
}

// DuplicateChecker reports whether a document with the given
// "vendor:document_no" key was already processed.
type DuplicateChecker interface {
	IsDuplicate(ctx context.Context, key string) (bool, error)
}

// NoDuplicates never reports a duplicate.
type NoDuplicates struct{}

// IsDuplicate implements DuplicateChecker.
func (NoDuplicates) IsDuplicate(context.Context, string) (bool, error) { return false, nil }

// Validator runs schema, rule, entity and format checks.
type Validator struct {
	configs    ConfigSource
	duplicates DuplicateChecker
	logger     *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithDuplicateChecker replaces the default checker.
func WithDuplicateChecker(d DuplicateChecker) Option {
	return func(v *Validator) {
		if d != nil {
			v.duplicates = d
		}
	}
}

// New returns a validator reading configuration from configs.
func New(configs ConfigSource, logger *slog.Logger, opts ...Option) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Validator{configs: configs, duplicates: NoDuplicates{}, logger: logger}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateAndResolve validates doc and returns an enriched copy together
// with every error found. The copy is returned even when invalid; doc itself
// is never modified.
func (v *Validator) ValidateAndResolve(ctx context.Context, doc *cdm.Document, docType string) (bool, *cdm.Document, []string) {
	errs := []string{}
	if doc == nil {
		return false, nil, append(errs, "Validation system error: no document")
	}
	resolved := doc.Clone()

	if schema, ok := v.configs.CDMSchema(docType); ok {
		errs = append(errs, ValidateSchema(resolved, docType, schema)...)
	}

	rules, err := v.configs.ValidationRules()
	if err != nil {
		errs = append(errs, fmt.Sprintf("Validation system error: %v", err))
	} else {
		errs = append(errs, CheckRules(resolved, rules)...)
	}

	if dict, err := v.configs.EntityDictionary(); err != nil {
		errs = append(errs, fmt.Sprintf("Validation system error: %v", err))
	} else {
		ResolveEntities(resolved, dict)
	}

	if key := DuplicateKey(resolved); key != "" {
		dup, err := v.duplicates.IsDuplicate(ctx, key)
		switch {
		case err != nil:
			v.logger.Warn("duplicate check failed", "key", key, "error", err)
		case dup:
			errs = append(errs, fmt.Sprintf("Duplicate document detected: %s", key))
		}
	}

	errs = append(errs, CheckFormats(resolved)...)

	if len(errs) > 0 {
		v.logger.Warn("validation errors", "doc_type", docType, "count", len(errs), "errors", errs)
	} else {
		v.logger.Info("validation passed", "doc_type", docType)
	}
	return len(errs) == 0, resolved, errs
}

// DuplicateKey returns "vendor:document_no", or "" when either is missing.
func DuplicateKey(doc *cdm.Document) string {
	vendor, docNo := doc.Vendor(), doc.DocumentNo()
	if vendor == "" || docNo == "" {
		return ""
	}
	return vendor + ":" + docNo
}
