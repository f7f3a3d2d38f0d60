package transform

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() (*Engine, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewEngine(slog.New(slog.NewTextHandler(&buf, nil))), &buf
}

func TestParseStep(t *testing.T) {
	s := ParseStep("replace:a|b:c")
	assert.Equal(t, KindReplace, s.Kind)
	assert.Equal(t, "a|b:c", s.Param)
	assert.True(t, s.HasParam)

	s = ParseStep("trim")
	assert.Equal(t, KindTrim, s.Kind)
	assert.False(t, s.HasParam)

	assert.Equal(t, KindUnknown, ParseStep("frobnicate").Kind)
	assert.Equal(t, "to_decimal", KindToDecimal.String())
}

func TestParseChainAndApply(t *testing.T) {
	chain := []string{"trim", "frobnicate", "strip_currency", "to_decimal"}
	steps := ParseChain(chain)
	assert.Len(t, steps, 4)
	assert.Equal(t, []Kind{KindTrim, KindUnknown, KindStripCurrency, KindToDecimal},
		[]Kind{steps[0].Kind, steps[1].Kind, steps[2].Kind, steps[3].Kind})
	assert.Equal(t, "frobnicate", steps[1].Raw)

	assert.Equal(t, 1234567.0, NewEngine(nil).Apply("  ￥1,234,567 ", chain))
}

func TestStripCurrencyAndToDecimal(t *testing.T) {
	assert.Equal(t, "1234567", StripCurrency("￥1,234,567"))
	assert.Equal(t, "110000", StripCurrency("110,000円"))
	assert.Equal(t, 1234567.0, ToDecimal("￥1,234,567", 2))
	assert.Equal(t, 12.35, ToDecimal("12.345", 2))
	assert.Equal(t, 1500.0, ToDecimal("１，５００円", 0))
	assert.Equal(t, 0.0, ToDecimal("n/a", 2))
}

func TestParseJapaneseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"令和6年1月15日", "2024-01-15", true},
		{"平成31年4月30日", "2019-04-30", true},
		{"令和元年5月1日", "2019-05-01", true},
		{"昭和64年1月7日", "1989-01-07", true},
		{"令和６年１２月１日", "2024-12-01", true},
		{"2024年3月5日", "2024-03-05", true},
		{"発行日 2024/3/5", "2024-03-05", true},
		{"来月", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseJapaneseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToDate(t *testing.T) {
	assert.Equal(t, "2024-01-15", ToDate("2024/01/15", ""))
	assert.Equal(t, "2024-01-15", ToDate("15.01.2024", "%d.%m.%Y"))
	assert.Equal(t, "2024-01-15", ToDate("令和6年1月15日", ""))
	assert.Equal(t, "2024-01-15", ToDate("令和6年1月15日", "%Y-%m-%d"))
	assert.Equal(t, "someday", ToDate("someday", ""))
	assert.Nil(t, ToDate("  ", ""))
}

func TestWidthConversion(t *testing.T) {
	assert.Equal(t, "ABC123", ZenkakuToHankaku("ＡＢＣ１２３", true))
	assert.Equal(t, "（株）", ZenkakuToHankaku("（株）", true))
	assert.Equal(t, "(株) 1", ZenkakuToHankaku("（株）　１", false))
	assert.Equal(t, "ＡＢＣ１２３", HankakuToZenkaku("ABC123"))
}

func TestNormalizeJapaneseIsIdempotent(t *testing.T) {
	inputs := []string{
		"  株式会社　ＡＢＣ  商事 ",
		"請求書\n\tNo．１２３",
		"",
		"plain text",
	}
	for _, in := range inputs {
		once := NormalizeJapanese(in)
		assert.Equal(t, once, NormalizeJapanese(once), "input %q", in)
	}
	assert.Equal(t, "株式会社 ABC 商事", NormalizeJapanese("  株式会社　ＡＢＣ  商事 "))
}

func TestContactNormalizers(t *testing.T) {
	assert.Equal(t, "03-1234-5678", NormalizePhone("０３－１２３４－５６７８"))
	assert.Equal(t, "+81-3-1234", NormalizePhone("+81--3 - 1234"))
	assert.Equal(t, "100-0001", NormalizePostalCode("〒1000001"))
	assert.Equal(t, "100-0001", NormalizePostalCode("１００－０００１"))
	assert.Equal(t, "12345", NormalizePostalCode("12345"))
}

func TestEngineApply(t *testing.T) {
	e, _ := newTestEngine()

	tests := []struct {
		name  string
		value any
		chain []string
		want  any
	}{
		{"currency chain", " ￥1,234,567 ", []string{"trim", "strip_currency", "to_decimal"}, 1234567.0},
		{"nil passes through", nil, []string{"default:x"}, nil},
		{"default on empty", "", []string{"default:JPY"}, "JPY"},
		{"default keeps value", "USD", []string{"default:JPY"}, "USD"},
		{"split then join", "a,b,c", []string{"split", "join:-"}, "a-b-c"},
		{"replace", "INV_001", []string{"replace:_|-"}, "INV-001"},
		{"replace without separator", "INV_001", []string{"replace:_"}, "INV_001"},
		{"regex group", "No. INV-42 dated", []string{`regex:(INV-\d+)`}, "INV-42"},
		{"regex whole match", "No. 42", []string{`regex:\d+`}, "42"},
		{"regex no match", "none", []string{`regex:\d+`}, "none"},
		{"round", "2.5", []string{"round"}, 3.0},
		{"abs", -4.5, []string{"abs"}, 4.5},
		{"multiply", "100", []string{"multiply:1.1", "round:2"}, 110.0},
		{"divide", 100.0, []string{"divide:4"}, 25.0},
		{"divide by zero", 100.0, []string{"divide:0"}, nil},
		{"era date", "令和6年1月15日", []string{"parse_japanese_date"}, "2024-01-15"},
		{"upper lower", "Ab", []string{"upper"}, "AB"},
		{"remove spaces", "1 2　3", []string{"remove_spaces"}, "123"},
		{"extract number", "金額：１，２３４円", []string{"extract_number"}, "1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Apply(tt.value, tt.chain))
		})
	}
}

func TestEngineApply_FailuresKeepValue(t *testing.T) {
	e, logs := newTestEngine()

	assert.Equal(t, "abc", e.Apply("abc", []string{"no_such_transform"}))
	require.Contains(t, logs.String(), "unknown transform")

	logs.Reset()
	assert.Equal(t, "abc", e.Apply("abc", []string{"multiply:2"}))
	assert.Contains(t, logs.String(), "transform failed")

	logs.Reset()
	assert.Equal(t, "abc", e.Apply("abc", []string{"regex:(unclosed"}))
	assert.Contains(t, logs.String(), "transform failed")

	// Later steps still run after a failed one.
	assert.Equal(t, "ABC", e.Apply("abc", []string{"abs", "upper"}))
}
