package transform

import (
	"regexp"
	"strings"
)

var (
	phoneStripRegex  = regexp.MustCompile(`[^\d+\-]`)
	hyphenRunRegex   = regexp.MustCompile(`[\-\s]+`)
	postalStripRegex = regexp.MustCompile(`[^\d\-]`)
	sevenDigitsRegex = regexp.MustCompile(`^\d{7}$`)
)

// NormalizePhone folds width, keeps digits, plus and hyphen, and collapses
// hyphen runs to a single hyphen.
//
//	NormalizePhone("０３－１２３４－５６７８") == "03-1234-5678"
func NormalizePhone(s string) string {
	s = ZenkakuToHankaku(strings.TrimSpace(s), false)
	s = phoneStripRegex.ReplaceAllString(s, "")
	return hyphenRunRegex.ReplaceAllString(s, "-")
}

// NormalizePostalCode folds width, keeps digits and hyphen, and inserts a
// hyphen into a bare seven digit code.
//
//	NormalizePostalCode("〒1000001") == "100-0001"
func NormalizePostalCode(s string) string {
	s = ZenkakuToHankaku(strings.TrimSpace(s), false)
	s = postalStripRegex.ReplaceAllString(s, "")
	if sevenDigitsRegex.MatchString(s) {
		return s[:3] + "-" + s[3:]
	}
	return s
}
