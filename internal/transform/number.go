package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// currencyTokens are removed verbatim by StripCurrency, in this order.
var currencyTokens = []string{"¥", "￥", "$", "€", "£", "円", "yen", "jpy", "USD", "EUR", "GBP"}

var (
	separatorRegex = regexp.MustCompile(`[,，、]`)
	nonNumericRe   = regexp.MustCompile(`[^\d.\-]`)
	numberRunRegex = regexp.MustCompile(`[\d,.\-]+`)
)

// StripCurrency removes currency symbols, currency words and thousands
// separators (ASCII and full-width), then trims.
//
//	StripCurrency("￥1,234,567") == "1234567"
func StripCurrency(s string) string {
	for _, token := range currencyTokens {
		s = strings.ReplaceAll(s, token, "")
	}
	s = separatorRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ToDecimal parses a currency-formatted value and rounds it to precision
// places. Unparseable input yields 0.
//
//	ToDecimal("￥1,234,567", 2) == 1234567.0
func ToDecimal(v any, precision int) float64 {
	s := StripCurrency(ZenkakuToHankaku(toString(v), true))
	s = nonNumericRe.ReplaceAllString(s, "")

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	if precision >= 0 {
		f = Round(f, precision)
	}
	return f
}

// ExtractNumber returns the first run of digits, commas, periods and minus
// signs with the commas removed, or "" when there is none.
func ExtractNumber(s string) string {
	s = ZenkakuToHankaku(s, false)
	m := numberRunRegex.FindString(s)
	return strings.ReplaceAll(m, ",", "")
}

// Round rounds half away from zero to the given number of decimal places.
func Round(f float64, places int) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	return decimal.NewFromFloat(f).Round(int32(places)).InexactFloat64()
}

// ToFloat coerces numbers and numeric strings to float64.
func ToFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("not a number: nil")
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

// toString renders a value the way chains expect to see it as text.
func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []string:
		return "[" + strings.Join(t, " ") + "]"
	}
	return fmt.Sprint(v)
}
