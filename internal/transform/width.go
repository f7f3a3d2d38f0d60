package transform

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/width"
)

var (
	// Full-width digits and Latin letters.
	fullwidthAlnum = &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0xFF10, Hi: 0xFF19, Stride: 1},
		{Lo: 0xFF21, Hi: 0xFF3A, Stride: 1},
		{Lo: 0xFF41, Hi: 0xFF5A, Stride: 1},
	}}

	// Ideographic space plus the full-width forms of printable ASCII.
	fullwidthASCII = &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x3000, Hi: 0x3000, Stride: 1},
		{Lo: 0xFF01, Hi: 0xFF5E, Stride: 1},
	}}

	halfwidthAlnum = &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x0030, Hi: 0x0039, Stride: 1},
		{Lo: 0x0041, Hi: 0x005A, Stride: 1},
		{Lo: 0x0061, Hi: 0x007A, Stride: 1},
	}, LatinOffset: 3}
)

// foldRange applies t to the runes of s that fall in set and leaves the rest alone.
func foldRange(s string, set *unicode.RangeTable, t transform.Transformer) string {
	out, _, err := transform.String(runes.If(runes.In(set), t, nil), s)
	if err != nil {
		return s
	}
	return out
}

// ZenkakuToHankaku converts full-width characters to half-width.
// With alnumOnly set only digits and Latin letters are converted; otherwise
// full-width ASCII symbols and the ideographic space are converted as well.
func ZenkakuToHankaku(s string, alnumOnly bool) string {
	if alnumOnly {
		return foldRange(s, fullwidthAlnum, width.Narrow)
	}
	return foldRange(s, fullwidthASCII, width.Narrow)
}

// HankakuToZenkaku converts ASCII digits and Latin letters to full-width.
func HankakuToZenkaku(s string) string {
	return foldRange(s, halfwidthAlnum, width.Widen)
}

// NormalizeJapanese folds full-width alphanumerics, collapses every run of
// whitespace (ideographic space included) to one space and trims.
// NormalizeJapanese(NormalizeJapanese(s)) == NormalizeJapanese(s).
func NormalizeJapanese(s string) string {
	s = strings.ReplaceAll(s, "　", " ")
	s = ZenkakuToHankaku(s, true)
	return strings.Join(strings.Fields(s), " ")
}

// RemoveSpaces drops all whitespace.
func RemoveSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
