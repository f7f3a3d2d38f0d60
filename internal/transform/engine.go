// Package transform implements the closed catalog of value transforms used by
// mapping configuration chains such as ["trim", "strip_currency", "to_decimal:0"].
package transform

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/cdm/internal/cdm"
)

// Engine applies transform chains. Failures inside a step are logged and
// the value from before that step is kept, so Apply never fails.
type Engine struct {
	logger *slog.Logger
}

// NewEngine returns an engine logging to logger, or to slog.Default when nil.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Apply runs the chain in order. A nil value passes through untouched and
// unknown transform names are skipped with a warning.
func (e *Engine) Apply(value any, chain []string) any {
	if value == nil {
		return nil
	}

	result := value
	for _, step := range ParseChain(chain) {
		if step.Kind == KindUnknown {
			e.logger.Warn("unknown transform", "transform", step.Name)
			continue
		}

		next, err := e.safeStep(result, step)
		if err != nil {
			e.logger.Warn("transform failed",
				"transform", step.Raw,
				"value", fmt.Sprint(value),
				"error", err,
			)
			continue
		}
		result = next
	}
	return result
}

// safeStep turns a panic inside a step into an error.
func (e *Engine) safeStep(value any, step Step) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", step.Name, r)
		}
	}()
	return ApplyStep(value, step)
}

// ApplyStep applies a single parsed transform.
func ApplyStep(value any, step Step) (any, error) {
	switch step.Kind {
	case KindTrim:
		return strings.TrimSpace(toString(value)), nil
	case KindUpper:
		return strings.ToUpper(toString(value)), nil
	case KindLower:
		return strings.ToLower(toString(value)), nil
	case KindRemoveSpaces:
		return RemoveSpaces(toString(value)), nil
	case KindStripCurrency:
		return StripCurrency(toString(value)), nil
	case KindToDecimal:
		precision := 2
		if step.HasParam && step.Param != "" {
			p, err := strconv.Atoi(step.Param)
			if err != nil {
				return nil, fmt.Errorf("invalid precision %q", step.Param)
			}
			precision = p
		}
		return ToDecimal(value, precision), nil
	case KindToDate:
		return ToDate(toString(value), step.Param), nil
	case KindNormalizeJapanese:
		return NormalizeJapanese(toString(value)), nil
	case KindExtractNumber:
		return ExtractNumber(toString(value)), nil
	case KindZenkakuToHankaku:
		return ZenkakuToHankaku(toString(value), step.HasParam && step.Param != ""), nil
	case KindHankakuToZenkaku:
		return HankakuToZenkaku(toString(value)), nil
	case KindParseJapaneseDate:
		if iso, ok := ParseJapaneseDate(toString(value)); ok {
			return iso, nil
		}
		return nil, nil
	case KindNormalizePhone:
		return NormalizePhone(toString(value)), nil
	case KindNormalizePostalCode:
		return NormalizePostalCode(toString(value)), nil
	case KindSplit:
		return strings.Split(toString(value), step.paramOr(",")), nil
	case KindJoin:
		return join(value, step.paramOr(",")), nil
	case KindReplace:
		old, repl, ok := strings.Cut(step.Param, "|")
		if !ok {
			return value, nil
		}
		return strings.ReplaceAll(toString(value), old, repl), nil
	case KindRegex:
		return applyRegex(value, step.Param)
	case KindDefault:
		if !cdm.IsEmptyValue(value) {
			return value, nil
		}
		if step.HasParam {
			return step.Param, nil
		}
		return nil, nil
	case KindRound:
		f, err := ToFloat(value)
		if err != nil {
			return nil, err
		}
		places := 0
		if step.HasParam && step.Param != "" {
			if places, err = strconv.Atoi(step.Param); err != nil {
				return nil, fmt.Errorf("invalid precision %q", step.Param)
			}
		}
		return Round(f, places), nil
	case KindAbs:
		f, err := ToFloat(value)
		if err != nil {
			return nil, err
		}
		return math.Abs(f), nil
	case KindMultiply, KindDivide:
		f, err := ToFloat(value)
		if err != nil {
			return nil, err
		}
		factor, err := ToFloat(step.Param)
		if err != nil {
			return nil, fmt.Errorf("invalid factor: %w", err)
		}
		if step.Kind == KindMultiply {
			return f * factor, nil
		}
		if factor == 0 {
			return nil, nil
		}
		return f / factor, nil
	}
	return nil, fmt.Errorf("unsupported transform %q", step.Name)
}

// join concatenates list values; anything else is rendered as text.
func join(value any, sep string) string {
	switch t := value.(type) {
	case []string:
		return strings.Join(t, sep)
	case []any:
		parts := make([]string, len(t))
		for i, v := range t {
			parts[i] = toString(v)
		}
		return strings.Join(parts, sep)
	}
	return toString(value)
}

// applyRegex returns the first capture group, the whole match when the
// pattern has no groups, or the value unchanged when nothing matches.
func applyRegex(value any, pattern string) (any, error) {
	if pattern == "" {
		return value, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	m := re.FindStringSubmatch(toString(value))
	if m == nil {
		return value, nil
	}
	if len(m) > 1 {
		return m[1], nil
	}
	return m[0], nil
}
