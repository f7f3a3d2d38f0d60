// Package classify decides a document's type and vendor from its plain text.
package classify

import (
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/JonMunkholm/cdm/internal/cdm"
	"github.com/JonMunkholm/cdm/internal/resolver"
	"github.com/JonMunkholm/cdm/internal/transform"
)

var (
	invoiceKeywords = []string{
		"請求書", "invoice", "bill", "請求番号", "請求金額",
		"お支払い", "payment", "支払期限", "振込先",
	}
	purchaseOrderKeywords = []string{
		"発注書", "purchase order", "注文書", "発注番号", "注文番号",
		"納期", "delivery", "納品先", "発注金額",
	}

	// confidenceMarkers each add a share of the field component when present.
	confidenceMarkers = []string{"金額", "日付", "番号"}
)

const (
	minKeywordScore   = 2
	docTypeWeight     = 0.5
	vendorWeight      = 0.3
	fieldMarkerWeight = 0.2
)

// kanaKanji matches a run of kanji, hiragana or katakana.
const kanaKanji = `[\x{4e00}-\x{9faf}\x{3040}-\x{309f}\x{30a0}-\x{30ff}]+`

// companyPatterns are legal-entity name forms tried when no configured vendor matches.
var companyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(株式会社[\s　]*` + kanaKanji + `)`),
	regexp.MustCompile(`(` + kanaKanji + `[\s　]*株式会社)`),
	regexp.MustCompile(`(合同会社[\s　]*` + kanaKanji + `)`),
	regexp.MustCompile(`(有限会社[\s　]*` + kanaKanji + `)`),
}

var whitespaceRun = regexp.MustCompile(`[\s　]+`)

// Result is the outcome of classifying one document.
type Result struct {
	DocType    string  `json:"doc_type"`
	Vendor     string  `json:"vendor"`
	Confidence float64 `json:"confidence"`
}

// Classified reports whether a doc type was determined.
func (r Result) Classified() bool { return r.DocType != "" }

// PatternSource supplies vendor identification patterns.
type PatternSource interface {
	VendorPatterns() ([]resolver.VendorPattern, error)
}

// Classifier scores keyword hits and matches vendor patterns.
type Classifier struct {
	patterns PatternSource
	logger   *slog.Logger
}

// New returns a classifier reading vendor patterns from src.
func New(src PatternSource, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{patterns: src, logger: logger}
}

// Classify determines doc type, vendor and a confidence score for text.
// Missing vendor configuration is not an error.
func (c *Classifier) Classify(text string) Result {
	lower := strings.ToLower(text)
	normalized := NormalizeText(text)

	res := Result{
		DocType: DetectDocType(lower, normalized),
		Vendor:  c.DetectVendor(text),
	}
	res.Confidence = Confidence(res.DocType, res.Vendor, text)

	c.logger.Info("classification result",
		"doc_type", res.DocType,
		"vendor", res.Vendor,
		"confidence", res.Confidence,
	)
	return res
}

// NormalizeText collapses whitespace runs (ideographic space included) to a
// single space and folds full-width alphanumerics to half-width.
func NormalizeText(text string) string {
	return transform.ZenkakuToHankaku(whitespaceRun.ReplaceAllString(text, " "), true)
}

// DetectDocType returns the type whose keyword score strictly exceeds the
// other and reaches the minimum, or "" when neither does.
func DetectDocType(lower, normalized string) string {
	invoice := score(invoiceKeywords, lower, normalized)
	po := score(purchaseOrderKeywords, lower, normalized)

	switch {
	case invoice > po && invoice >= minKeywordScore:
		return cdm.DocTypeInvoice
	case po > invoice && po >= minKeywordScore:
		return cdm.DocTypePurchaseOrder
	}
	return ""
}

func score(keywords []string, lower, normalized string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) || strings.Contains(normalized, kw) {
			n++
		}
	}
	return n
}

// DetectVendor checks configured vendors in declared order and falls back
// to legal-entity name patterns.
func (c *Classifier) DetectVendor(text string) string {
	if c.patterns != nil {
		patterns, err := c.patterns.VendorPatterns()
		if err != nil {
			c.logger.Warn("vendor detection error", "error", err)
			return ""
		}
		for _, p := range patterns {
			if c.matches(p, text) {
				return p.Name
			}
		}
	}
	return ExtractCompanyName(text)
}

// matches checks company names, then phone patterns, then domains, then
// addresses.
func (c *Classifier) matches(p resolver.VendorPattern, text string) bool {
	for _, name := range p.CompanyNames {
		if name != "" && strings.Contains(text, name) {
			return true
		}
	}
	for _, phone := range p.PhonePatterns {
		re, err := PhoneRegexp(phone)
		if err != nil {
			c.logger.Warn("invalid phone pattern", "vendor", p.Name, "pattern", phone, "error", err)
			continue
		}
		if re.MatchString(text) {
			return true
		}
	}
	for _, domain := range p.Domains {
		if domain != "" && strings.Contains(text, domain) {
			return true
		}
	}
	for _, addr := range p.Addresses {
		if addr != "" && strings.Contains(text, addr) {
			return true
		}
	}
	return false
}

// PhoneRegexp compiles a configured phone pattern, letting each literal
// hyphen match an optional hyphen or whitespace.
func PhoneRegexp(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(strings.ReplaceAll(pattern, "-", `[\-\s]?`))
}

// ExtractCompanyName returns the first legal-entity name found in text.
func ExtractCompanyName(text string) string {
	for _, re := range companyPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// Confidence combines doc type, vendor and field-marker evidence, capped at 1.
func Confidence(docType, vendor, text string) float64 {
	s := 0.0
	if docType != "" {
		s += docTypeWeight
	}
	if vendor != "" {
		s += vendorWeight
	}
	found := 0
	for _, m := range confidenceMarkers {
		if strings.Contains(text, m) {
			found++
		}
	}
	s += float64(found) / float64(len(confidenceMarkers)) * fieldMarkerWeight
	return math.Min(s, 1.0)
}
