package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/cdm/internal/cdm"
	"github.com/JonMunkholm/cdm/internal/resolver"
)

const dateLayout = "2006-01-02"

// CheckRules runs amount, date, required-field and constraint checks. Each
// category runs regardless of the others.
func CheckRules(doc *cdm.Document, rules resolver.ValidationRules) []string {
	var errs []string
	if rules.AmountChecks != nil {
		errs = append(errs, CheckAmounts(doc, rules.AmountChecks)...)
	}
	if rules.DateChecks != nil {
		errs = append(errs, CheckDates(doc, rules.DateChecks)...)
	}
	if rules.RequiredFields != nil {
		errs = append(errs, CheckRequired(doc, rules.RequiredFields)...)
	}
	if rules.FieldConstraints != nil {
		errs = append(errs, CheckConstraints(doc, rules.FieldConstraints)...)
	}
	return errs
}

// CheckAmounts reconciles subtotal + tax against grand_total, and the sum of
// line amounts against subtotal. Zero or missing amounts skip a check.
func CheckAmounts(doc *cdm.Document, checks *resolver.AmountChecks) []string {
	var errs []string
	subtotal := doc.Totals["subtotal"]
	tax := doc.Totals["tax"]
	grand := doc.Totals["grand_total"]

	if checks.TaxCalculationEnabled() && subtotal != 0 && tax != 0 && grand != 0 {
		calc := decimal.NewFromFloat(subtotal).Add(decimal.NewFromFloat(tax))
		diff := calc.Sub(decimal.NewFromFloat(grand)).Abs()
		if diff.GreaterThan(decimal.NewFromFloat(checks.TaxTolerance())) {
			errs = append(errs, fmt.Sprintf(
				"Amount calculation mismatch: %s + %s = %s, but grand_total is %s",
				formatAmount(subtotal), formatAmount(tax), calc.String(), formatAmount(grand)))
		}
	}

	if checks.LineTotalsEnabled() {
		lineTotal := decimal.Zero
		for _, line := range doc.Lines {
			if f, ok := numeric(line["amount"]); ok {
				lineTotal = lineTotal.Add(decimal.NewFromFloat(f))
			}
		}
		if !lineTotal.IsZero() && subtotal != 0 {
			diff := lineTotal.Sub(decimal.NewFromFloat(subtotal)).Abs()
			if diff.GreaterThan(decimal.NewFromFloat(checks.LineTotalsTolerance())) {
				errs = append(errs, fmt.Sprintf("Line items total %s doesn't match subtotal %s",
					lineTotal.String(), formatAmount(subtotal)))
			}
		}
	}
	return errs
}

// CheckDates enforces due date ordering and the maximum payment term when
// both issue_date and due_date are set.
func CheckDates(doc *cdm.Document, checks *resolver.DateChecks) []string {
	issueRaw, dueRaw := doc.Doc["issue_date"], doc.Doc["due_date"]
	if cdm.IsEmptyValue(issueRaw) || cdm.IsEmptyValue(dueRaw) {
		return nil
	}
	issueStr, dueStr := fmt.Sprint(issueRaw), fmt.Sprint(dueRaw)

	issue, err := time.Parse(dateLayout, issueStr)
	if err != nil {
		return []string{fmt.Sprintf("Invalid date format: %v", err)}
	}
	due, err := time.Parse(dateLayout, dueStr)
	if err != nil {
		return []string{fmt.Sprintf("Invalid date format: %v", err)}
	}

	var errs []string
	if checks.DueAfterIssueEnabled() && due.Before(issue) {
		errs = append(errs, fmt.Sprintf("Due date %s is before issue date %s", dueStr, issueStr))
	}
	if checks.MaxPaymentTerms != nil {
		days := int(due.Sub(issue).Hours() / 24)
		if days > *checks.MaxPaymentTerms {
			errs = append(errs, fmt.Sprintf("Payment terms exceed %d days", *checks.MaxPaymentTerms))
		}
	}
	return errs
}

// CheckRequired reports each configured path that is missing or empty, for
// the rule set matching the document's type.
func CheckRequired(doc *cdm.Document, required map[string][]string) []string {
	paths, ok := required[doc.Type()]
	if !ok {
		return nil
	}
	var errs []string
	for _, path := range paths {
		if v, ok := doc.Lookup(path); !ok || cdm.IsEmptyValue(v) {
			errs = append(errs, fmt.Sprintf("Required field missing: %s", path))
		}
	}
	return errs
}

// CheckConstraints applies length, pattern and range constraints to every
// configured path that holds a value. Paths are checked in name order.
func CheckConstraints(doc *cdm.Document, constraints map[string]resolver.FieldConstraint) []string {
	paths := make([]string, 0, len(constraints))
	for p := range constraints {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var errs []string
	for _, path := range paths {
		value, ok := doc.Lookup(path)
		if !ok || value == nil {
			continue
		}
		c := constraints[path]
		text := stringify(value)

		if c.MinLength != nil && utf8.RuneCountInString(text) < *c.MinLength {
			errs = append(errs, fmt.Sprintf("%s is too short", path))
		}
		if c.MaxLength != nil && utf8.RuneCountInString(text) > *c.MaxLength {
			errs = append(errs, fmt.Sprintf("%s is too long", path))
		}
		if c.Pattern != "" {
			re, err := regexp.Compile(`^(?:` + c.Pattern + `)`)
			if err != nil {
				errs = append(errs, fmt.Sprintf("Invalid pattern for %s: %v", path, err))
			} else if !re.MatchString(text) {
				errs = append(errs, fmt.Sprintf("%s doesn't match required pattern", path))
			}
		}
		if f, isNum := numeric(value); isNum {
			if c.MinValue != nil && f < *c.MinValue {
				errs = append(errs, fmt.Sprintf("%s is below minimum value", path))
			}
			if c.MaxValue != nil && f > *c.MaxValue {
				errs = append(errs, fmt.Sprintf("%s exceeds maximum value", path))
			}
		}
	}
	return errs
}

// numeric reports the value of a number; strings do not count.
func numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return formatAmount(t)
	}
	return fmt.Sprint(v)
}

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
