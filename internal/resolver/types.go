package resolver

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// StringList accepts either a single string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	return fmt.Errorf("line %d: expected string or list of strings", node.Line)
}

// FieldMapping maps one canonical target to its ordered raw source names.
type FieldMapping struct {
	From      StringList `yaml:"from"`
	Transform StringList `yaml:"transform"`
	Default   any        `yaml:"default"`
}

// TableMapping configures line item extraction from raw tables.
type TableMapping struct {
	// Headers maps a line target such as "qty" to its header aliases.
	Headers  map[string]StringList `yaml:"headers"`
	Defaults map[string]any        `yaml:"defaults"`
}

// LinesMapping wraps the table mapping.
type LinesMapping struct {
	Table *TableMapping `yaml:"table"`
}

// MappingConfig is the merged mapping for one doc type and vendor.
type MappingConfig struct {
	Mappings    map[string]FieldMapping `yaml:"mappings"`
	Lines       *LinesMapping           `yaml:"lines"`
	PostCompute []string                `yaml:"post_compute"`
}

// Empty reports whether no layer contributed anything usable.
func (c MappingConfig) Empty() bool {
	return len(c.Mappings) == 0 && c.Table() == nil && len(c.PostCompute) == 0
}

// Table returns the line table mapping, or nil when none is configured.
func (c MappingConfig) Table() *TableMapping {
	if c.Lines == nil {
		return nil
	}
	return c.Lines.Table
}

// Sources returns every raw field name referenced by a document mapping.
func (c MappingConfig) Sources() []string {
	var out []string
	for _, m := range c.Mappings {
		out = append(out, m.From...)
	}
	return out
}

// AmountChecks configures totals reconciliation.
type AmountChecks struct {
	CheckTaxCalculation *bool    `yaml:"check_tax_calculation"`
	Tolerance           *float64 `yaml:"tolerance"`
	CheckLineTotals     *bool    `yaml:"check_line_totals"`
	LineTolerance       *float64 `yaml:"line_tolerance"`
}

// TaxCalculationEnabled defaults to true.
func (a *AmountChecks) TaxCalculationEnabled() bool {
	return a == nil || a.CheckTaxCalculation == nil || *a.CheckTaxCalculation
}

// TaxTolerance defaults to 1.0.
func (a *AmountChecks) TaxTolerance() float64 {
	if a == nil || a.Tolerance == nil {
		return 1.0
	}
	return *a.Tolerance
}

// LineTotalsEnabled defaults to true.
func (a *AmountChecks) LineTotalsEnabled() bool {
	return a == nil || a.CheckLineTotals == nil || *a.CheckLineTotals
}

// LineTotalsTolerance defaults to 10.0.
func (a *AmountChecks) LineTotalsTolerance() float64 {
	if a == nil || a.LineTolerance == nil {
		return 10.0
	}
	return *a.LineTolerance
}

// DateChecks configures issue/due date rules.
type DateChecks struct {
	DueAfterIssue   *bool `yaml:"due_after_issue"`
	MaxPaymentTerms *int  `yaml:"max_payment_terms"`
}

// DueAfterIssueEnabled defaults to true.
func (d *DateChecks) DueAfterIssueEnabled() bool {
	return d == nil || d.DueAfterIssue == nil || *d.DueAfterIssue
}

// FieldConstraint bounds a single document field.
type FieldConstraint struct {
	MinLength *int     `yaml:"min_length"`
	MaxLength *int     `yaml:"max_length"`
	Pattern   string   `yaml:"pattern"`
	MinValue  *float64 `yaml:"min_value"`
	MaxValue  *float64 `yaml:"max_value"`
}

// ValidationRules is the decoded validation/rules file.
type ValidationRules struct {
	AmountChecks     *AmountChecks              `yaml:"amount_checks"`
	DateChecks       *DateChecks                `yaml:"date_checks"`
	RequiredFields   map[string][]string        `yaml:"required_fields"`
	FieldConstraints map[string]FieldConstraint `yaml:"field_constraints"`
}

// Entity is one entry of the entity dictionary.
type Entity struct {
	ID             string         `yaml:"id" json:"id"`
	NormalizedName string         `yaml:"normalized_name" json:"normalized_name"`
	AdditionalInfo map[string]any `yaml:"additional_info" json:"additional_info,omitempty"`
}

// EntityDictionary is the decoded entity/dictionary file.
type EntityDictionary struct {
	Vendors   map[string]Entity `yaml:"vendors"`
	Customers map[string]Entity `yaml:"customers"`
}

// VendorPattern holds the identification patterns for one vendor.
type VendorPattern struct {
	Name          string     `yaml:"-" json:"name"`
	CompanyNames  StringList `yaml:"company_names" json:"company_names,omitempty"`
	PhonePatterns StringList `yaml:"phone_patterns" json:"phone_patterns,omitempty"`
	Domains       StringList `yaml:"domains" json:"domains,omitempty"`
	Addresses     StringList `yaml:"addresses" json:"addresses,omitempty"`
}

// VendorMapping lists the doc types a vendor directory overrides.
type VendorMapping struct {
	Vendor   string   `json:"vendor"`
	Mappings []string `json:"mappings"`
}

// Issues is the result of a configuration self check.
type Issues struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// OK reports whether the check found no errors.
func (i Issues) OK() bool { return len(i.Errors) == 0 }
