// Package mapper projects a raw extraction onto the canonical document using
// the layered mapping configuration.
package mapper

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/cdm/internal/cdm"
	"github.com/JonMunkholm/cdm/internal/expr"
	"github.com/JonMunkholm/cdm/internal/resolver"
	"github.com/JonMunkholm/cdm/internal/transform"
)

// linesTarget is reserved for line items and never mapped as a doc field.
const linesTarget = "lines"

// previewLength bounds the value preview stored for unmapped fields.
const previewLength = 100

// totalAliases are the raw names each canonical total is read from.
var totalAliases = []struct {
	target  string
	aliases []string
}{
	{"subtotal", []string{"小計", "税抜金額", "subtotal", "net_amount"}},
	{"tax", []string{"消費税", "税額", "tax", "vat"}},
	{"grand_total", []string{"合計", "総額", "合計金額", "total", "grand_total", "お支払金額"}},
}

// numericLineTargets are parsed as numbers when extracted from tables.
var numericLineTargets = map[string]bool{"qty": true, "unit_price": true, "amount": true}

var lineNumberCleaner = strings.NewReplacer(",", "", "￥", "", "¥", "", "$", "")

// ErrNoRawData is returned when Map is called without an extraction.
var ErrNoRawData = errors.New("no raw extraction")

// ConfigSource supplies merged mapping configuration.
type ConfigSource interface {
	MappingConfig(docType, vendor string) (resolver.MappingConfig, error)
}

// Mapper builds canonical documents. It is safe for concurrent use.
type Mapper struct {
	configs ConfigSource
	engine  *transform.Engine
	logger  *slog.Logger
	now     func() time.Time
}

// New returns a mapper. A nil engine uses one logging to logger.
func New(configs ConfigSource, engine *transform.Engine, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = transform.NewEngine(logger)
	}
	return &Mapper{configs: configs, engine: engine, logger: logger, now: time.Now}
}

// Map projects raw onto a new document of docType. An empty vendor mapping
// falls back to the vendor-less configuration.
func (m *Mapper) Map(raw *cdm.RawExtraction, docType, vendor string) (*cdm.Document, error) {
	if raw == nil {
		return nil, ErrNoRawData
	}

	cfg, err := m.configs.MappingConfig(docType, vendor)
	if err != nil {
		return nil, fmt.Errorf("load mapping config: %w", err)
	}
	if cfg.Empty() && vendor != "" {
		m.logger.Warn("no mapping config found, retrying without vendor",
			"doc_type", docType, "vendor", vendor)
		if cfg, err = m.configs.MappingConfig(docType, ""); err != nil {
			return nil, fmt.Errorf("load mapping config: %w", err)
		}
	}

	doc := cdm.New(docType, vendor, m.now())
	for k, v := range raw.ConfidenceScores {
		doc.Metadata.ConfidenceScores[k] = v
	}

	src := raw.SourceFields()
	for k, v := range m.mapFields(src, cfg) {
		doc.Doc[k] = v
	}
	doc.Lines = extractLines(raw.Tables, cfg.Table())
	doc.Totals = extractTotals(src)
	m.postCompute(doc, cfg.PostCompute)
	doc.Metadata.UnmappedFields = unmappedFields(raw, cfg.Sources())

	if n := len(doc.Metadata.UnmappedFields); n > 0 {
		m.logger.Info("found unmapped fields", "count", n)
	}
	m.logger.Info("mapped document",
		"doc_type", docType,
		"vendor", vendor,
		"doc_fields", len(doc.Doc),
		"line_items", len(doc.Lines),
	)
	return doc, nil
}

// mapFields resolves each configured target, in name order.
func (m *Mapper) mapFields(src cdm.Fields, cfg resolver.MappingConfig) map[string]any {
	targets := make([]string, 0, len(cfg.Mappings))
	for target := range cfg.Mappings {
		if target != linesTarget {
			targets = append(targets, target)
		}
	}
	sort.Strings(targets)

	out := make(map[string]any, len(targets))
	for _, target := range targets {
		fm := cfg.Mappings[target]
		if v, _, ok := FindValue(src, fm.From); ok {
			out[target] = m.engine.Apply(v, fm.Transform)
			continue
		}
		if fm.Default != nil {
			out[target] = fm.Default
		}
	}
	return out
}

// extractLines reads line items from every table with a header and at least
// one data row.
func extractLines(tables []cdm.Table, cfg *resolver.TableMapping) []cdm.Line {
	lines := []cdm.Line{}
	if cfg == nil || len(tables) == 0 {
		return lines
	}

	for _, table := range tables {
		if len(table.Rows) < 2 {
			continue
		}
		header := mapHeaders(table.Rows[0], cfg.Headers)
		for _, row := range table.Rows[1:] {
			if !isDataRow(row) {
				continue
			}
			if line := extractLine(row, header, cfg.Defaults); len(line) > 0 {
				lines = append(lines, line)
			}
		}
	}
	return lines
}

// mapHeaders maps column index to line target. Targets are tried in name
// order so a header matching several aliases resolves deterministically.
func mapHeaders(row []string, headers map[string]resolver.StringList) map[int]string {
	targets := make([]string, 0, len(headers))
	for t := range headers {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	out := make(map[int]string)
	for idx, cell := range row {
		name := NormalizeName(cell)
	targetLoop:
		for _, target := range targets {
			for _, alias := range headers[target] {
				if NormalizeName(alias) == name {
					out[idx] = target
					break targetLoop
				}
			}
		}
	}
	return out
}

func isDataRow(row []string) bool {
	n := 0
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			n++
		}
	}
	return n >= 2
}

func extractLine(row []string, header map[int]string, defaults map[string]any) cdm.Line {
	line := cdm.Line{}
	for idx, cell := range row {
		target, ok := header[idx]
		if !ok || cell == "" {
			continue
		}
		if numericLineTargets[target] {
			if f, err := strconv.ParseFloat(strings.TrimSpace(lineNumberCleaner.Replace(cell)), 64); err == nil {
				line[target] = f
				continue
			}
		}
		line[target] = cell
	}
	for k, v := range defaults {
		if _, ok := line[k]; !ok {
			line[k] = v
		}
	}
	return line
}

// extractTotals reads subtotal, tax and grand total through the alias table.
func extractTotals(src cdm.Fields) cdm.Totals {
	totals := cdm.Totals{}
	for _, t := range totalAliases {
		v, _, ok := FindValue(src, t.aliases)
		if !ok {
			continue
		}
		if f, err := transform.ToFloat(v); err == nil {
			totals[t.target] = f
			continue
		}
		s := transform.StripCurrency(fmt.Sprint(v))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			totals[t.target] = f
		}
	}
	return totals
}

// postCompute runs each statement in order. A failing statement is logged
// and the rest still run.
func (m *Mapper) postCompute(doc *cdm.Document, statements []string) {
	for _, src := range statements {
		st, err := expr.Parse(src)
		if err != nil {
			m.logger.Warn("post-compute parse error", "expression", src, "error", err)
			continue
		}
		if err := st.Apply(doc); err != nil {
			m.logger.Warn("post-compute error", "expression", src, "error", err)
		}
	}
}

// unmappedFields records every raw name with a value that no mapping
// source refers to.
func unmappedFields(raw *cdm.RawExtraction, sources []string) []cdm.UnmappedField {
	mapped := make(map[string]bool, len(sources))
	for _, s := range sources {
		mapped[NormalizeName(s)] = true
	}

	out := []cdm.UnmappedField{}
	seen := map[string]bool{}
	collect := func(fields cdm.Fields, source string) {
		for _, f := range fields {
			if seen[f.Name] || mapped[NormalizeName(f.Name)] || cdm.IsEmptyValue(f.Value) {
				continue
			}
			seen[f.Name] = true
			out = append(out, cdm.UnmappedField{
				Field:        f.Name,
				ValuePreview: preview(f.Value),
				Source:       source,
			})
		}
	}
	collect(raw.Fields, "fields")
	collect(raw.KeyValuePairs, "key_value_pairs")
	return out
}

func preview(v any) string {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if r := []rune(s); len(r) > previewLength {
		return string(r[:previewLength])
	}
	return s
}
