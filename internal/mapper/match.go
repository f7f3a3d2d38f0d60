package mapper

import (
	"regexp"
	"strings"

	"github.com/JonMunkholm/cdm/internal/cdm"
)

var (
	nameSpaceRegex   = regexp.MustCompile(`[\s　]+`)
	nameBracketRegex = regexp.MustCompile(`[（）()【】\[\]「」]`)
)

// NormalizeName lower-cases a field name and strips whitespace and brackets
// so "請求 番号（No）" and "請求番号no" compare equal.
func NormalizeName(name string) string {
	n := strings.ToLower(name)
	n = nameSpaceRegex.ReplaceAllString(n, "")
	return nameBracketRegex.ReplaceAllString(n, "")
}

// FindValue searches src for the first candidate, in order. For each
// candidate an exact normalized-name match is tried over all names before a
// case-insensitive substring match. Null values never match.
func FindValue(src cdm.Fields, candidates []string) (value any, name string, ok bool) {
	for _, candidate := range candidates {
		want := NormalizeName(candidate)
		for _, f := range src {
			if f.Value != nil && NormalizeName(f.Name) == want {
				return f.Value, f.Name, true
			}
		}

		lower := strings.ToLower(candidate)
		if lower == "" {
			continue
		}
		for _, f := range src {
			if f.Value != nil && strings.Contains(strings.ToLower(f.Name), lower) {
				return f.Value, f.Name, true
			}
		}
	}
	return nil, "", false
}
