package expr

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/cdm/internal/cdm"
	"github.com/JonMunkholm/cdm/internal/transform"
)

// ErrDivideByZero is returned when a divisor evaluates to zero.
var ErrDivideByZero = errors.New("division by zero")

// value is either a scalar or a column of line values.
type value struct {
	scalar   float64
	column   []float64
	isColumn bool
}

func scalar(f float64) value { return value{scalar: f} }

// flatten returns the numbers a value contributes to an aggregate.
func (v value) flatten() []float64 {
	if v.isColumn {
		return v.column
	}
	return []float64{v.scalar}
}

type function func(args []value) (value, error)

var functions = map[string]function{
	"round": fnRound,
	"sum":   fnSum,
	"count": fnCount,
	"min":   fnExtreme(math.Min),
	"max":   fnExtreme(math.Max),
}

// Apply evaluates the statement and stores the result in doc.Totals.
func (s *Statement) Apply(doc *cdm.Document) error {
	f, err := s.Eval(doc)
	if err != nil {
		return err
	}
	if doc.Totals == nil {
		doc.Totals = cdm.Totals{}
	}
	doc.Totals[s.Target] = f
	return nil
}

// Eval evaluates the statement's expression against doc.
func (s *Statement) Eval(doc *cdm.Document) (float64, error) {
	v, err := eval(s.Expr, doc)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s.Source, err)
	}
	if v.isColumn {
		return 0, fmt.Errorf("%s: expression yields a column, aggregate it with sum, count, min or max", s.Source)
	}
	if math.IsNaN(v.scalar) || math.IsInf(v.scalar, 0) {
		return 0, fmt.Errorf("%s: result is not a finite number", s.Source)
	}
	return v.scalar, nil
}

func eval(n Node, doc *cdm.Document) (value, error) {
	switch n := n.(type) {
	case Number:
		return scalar(n.Value), nil

	case Ref:
		return resolve(n, doc)

	case Unary:
		x, err := evalScalar(n.X, doc)
		if err != nil {
			return value{}, err
		}
		return scalar(-x), nil

	case Binary:
		l, err := evalScalar(n.L, doc)
		if err != nil {
			return value{}, err
		}
		r, err := evalScalar(n.R, doc)
		if err != nil {
			return value{}, err
		}
		switch n.Op {
		case '+':
			return scalar(l + r), nil
		case '-':
			return scalar(l - r), nil
		case '*':
			return scalar(l * r), nil
		case '/':
			if r == 0 {
				return value{}, ErrDivideByZero
			}
			return scalar(l / r), nil
		}
		return value{}, fmt.Errorf("unknown operator %q", n.Op)

	case Call:
		args := make([]value, len(n.Args))
		for i, a := range n.Args {
			v, err := eval(a, doc)
			if err != nil {
				return value{}, err
			}
			args[i] = v
		}
		return functions[n.Name](args)
	}
	return value{}, fmt.Errorf("unsupported node %T", n)
}

func evalScalar(n Node, doc *cdm.Document) (float64, error) {
	v, err := eval(n, doc)
	if err != nil {
		return 0, err
	}
	if v.isColumn {
		return 0, fmt.Errorf("%s is a column, aggregate it with sum, count, min or max", n)
	}
	return v.scalar, nil
}

func resolve(r Ref, doc *cdm.Document) (value, error) {
	name := r.Path[len(r.Path)-1]
	switch r.Path[0] {
	case "totals":
		f, ok := doc.Totals[name]
		if !ok {
			return value{}, fmt.Errorf("%s is not set", r)
		}
		return scalar(f), nil

	case "lines":
		col := value{isColumn: true, column: []float64{}}
		for _, line := range doc.Lines {
			if f, err := transform.ToFloat(line[name]); err == nil {
				col.column = append(col.column, f)
			}
		}
		return col, nil
	}

	raw, ok := doc.Lookup(strings.Join(r.Path, "."))
	if !ok {
		return value{}, fmt.Errorf("%s is not set", r)
	}
	f, err := transform.ToFloat(raw)
	if err != nil {
		return value{}, fmt.Errorf("%s: %w", r, err)
	}
	return scalar(f), nil
}

func fnRound(args []value) (value, error) {
	if len(args) < 1 || len(args) > 2 {
		return value{}, fmt.Errorf("round takes 1 or 2 arguments, got %d", len(args))
	}
	for _, a := range args {
		if a.isColumn {
			return value{}, errors.New("round takes scalar arguments")
		}
	}
	places := 0
	if len(args) == 2 {
		places = int(args[1].scalar)
	}
	return scalar(transform.Round(args[0].scalar, places)), nil
}

func fnSum(args []value) (value, error) {
	total := decimal.Zero
	for _, a := range args {
		for _, f := range a.flatten() {
			total = total.Add(decimal.NewFromFloat(f))
		}
	}
	return scalar(total.InexactFloat64()), nil
}

func fnCount(args []value) (value, error) {
	n := 0
	for _, a := range args {
		n += len(a.flatten())
	}
	return scalar(float64(n)), nil
}

func fnExtreme(pick func(a, b float64) float64) function {
	return func(args []value) (value, error) {
		var all []float64
		for _, a := range args {
			all = append(all, a.flatten()...)
		}
		if len(all) == 0 {
			return value{}, errors.New("min/max of no values")
		}
		out := all[0]
		for _, f := range all[1:] {
			out = pick(out, f)
		}
		return scalar(out), nil
	}
}
