package transform

import "strings"

// Kind identifies one transform in the fixed catalog.
type Kind int

const (
	KindUnknown Kind = iota
	KindTrim
	KindUpper
	KindLower
	KindRemoveSpaces
	KindStripCurrency
	KindToDecimal
	KindToDate
	KindNormalizeJapanese
	KindExtractNumber
	KindZenkakuToHankaku
	KindHankakuToZenkaku
	KindParseJapaneseDate
	KindNormalizePhone
	KindNormalizePostalCode
	KindSplit
	KindJoin
	KindReplace
	KindRegex
	KindDefault
	KindRound
	KindAbs
	KindMultiply
	KindDivide
)

// kindNames maps configuration names to kinds. It is the only place the
// string form of a transform is interpreted.
var kindNames = map[string]Kind{
	"trim":                  KindTrim,
	"upper":                 KindUpper,
	"lower":                 KindLower,
	"remove_spaces":         KindRemoveSpaces,
	"strip_currency":        KindStripCurrency,
	"to_decimal":            KindToDecimal,
	"to_date":               KindToDate,
	"normalize_japanese":    KindNormalizeJapanese,
	"extract_number":        KindExtractNumber,
	"zenkaku_to_hankaku":    KindZenkakuToHankaku,
	"hankaku_to_zenkaku":    KindHankakuToZenkaku,
	"parse_japanese_date":   KindParseJapaneseDate,
	"normalize_phone":       KindNormalizePhone,
	"normalize_postal_code": KindNormalizePostalCode,
	"split":                 KindSplit,
	"join":                  KindJoin,
	"replace":               KindReplace,
	"regex":                 KindRegex,
	"default":               KindDefault,
	"round":                 KindRound,
	"abs":                   KindAbs,
	"multiply":              KindMultiply,
	"divide":                KindDivide,
}

// String returns the configuration name of the kind.
func (k Kind) String() string {
	for name, kind := range kindNames {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// KindOf resolves a configuration name.
func KindOf(name string) Kind {
	if k, ok := kindNames[name]; ok {
		return k
	}
	return KindUnknown
}

// Step is one parsed step of a transform chain.
type Step struct {
	Raw      string // original "name" or "name:param"
	Name     string
	Kind     Kind
	Param    string
	HasParam bool
}

// ParseStep splits "name:param" on the first colon and resolves the kind.
func ParseStep(raw string) Step {
	step := Step{Raw: raw, Name: raw}
	if name, param, ok := strings.Cut(raw, ":"); ok {
		step.Name = name
		step.Param = param
		step.HasParam = true
	}
	step.Kind = KindOf(step.Name)
	return step
}

// ParseChain parses every step of a chain.
func ParseChain(raw []string) []Step {
	steps := make([]Step, len(raw))
	for i, r := range raw {
		steps[i] = ParseStep(r)
	}
	return steps
}

// paramOr returns the parameter, or def when none was given.
func (s Step) paramOr(def string) string {
	if s.HasParam && s.Param != "" {
		return s.Param
	}
	return def
}
