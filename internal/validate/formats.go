package validate

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/JonMunkholm/cdm/internal/cdm"
)

const maxDocumentNoLength = 50

var (
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	isoDateRegex  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// CheckFormats validates currency, document number and date formats of the
// fields that are present.
func CheckFormats(doc *cdm.Document) []string {
	var errs []string

	if v, ok := doc.Doc["currency"]; ok && v != nil {
		if s, isStr := v.(string); !isStr || !currencyRegex.MatchString(s) {
			errs = append(errs, fmt.Sprintf("Invalid currency code: %v", v))
		}
	}

	if v, ok := doc.Doc["document_no"]; ok && v != nil {
		if s := stringify(v); utf8.RuneCountInString(s) > maxDocumentNoLength {
			errs = append(errs, fmt.Sprintf("Document number too long: %s", s))
		}
	}

	for _, field := range []string{"issue_date", "due_date"} {
		v, ok := doc.Doc[field]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); !isStr || !isoDateRegex.MatchString(s) {
			errs = append(errs, fmt.Sprintf("Invalid date format for %s: %v", field, v))
		}
	}
	return errs
}
