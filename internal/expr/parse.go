// Package expr parses and evaluates post-compute statements such as
//
//	totals.tax = round(totals.subtotal * 0.1)
//	totals.subtotal = sum(lines.amount)
//
// Statements can only assign a total. Expressions are built from number
// literals, references rooted at doc, totals or lines, the four arithmetic
// operators, unary minus, parentheses and the functions round, sum, count,
// min and max. Nothing else is evaluated.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Node is an expression tree node.
type Node interface {
	String() string
}

// Number is a numeric literal.
type Number struct{ Value float64 }

// Ref is a dotted reference such as totals.tax or lines.amount.
type Ref struct{ Path []string }

// Unary is a negation.
type Unary struct{ X Node }

// Binary is an arithmetic operation.
type Binary struct {
	Op   byte
	L, R Node
}

// Call is a function application.
type Call struct {
	Name string
	Args []Node
}

func (n Number) String() string { return strconv.FormatFloat(n.Value, 'g', -1, 64) }
func (r Ref) String() string    { return strings.Join(r.Path, ".") }
func (u Unary) String() string  { return "-" + u.X.String() }
func (b Binary) String() string {
	return "(" + b.L.String() + " " + string(b.Op) + " " + b.R.String() + ")"
}
func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return c.Name + "(" + strings.Join(args, ", ") + ")"
}

// Statement assigns the value of an expression to one total.
type Statement struct {
	Source string
	Target string
	Expr   Node
}

// roots are the reference prefixes an expression may use.
var roots = map[string]bool{"doc": true, "totals": true, "lines": true}

// Parse compiles a single "totals.<name> = <expr>" statement.
func Parse(src string) (*Statement, error) {
	lhs, rhs, ok := strings.Cut(src, "=")
	if !ok {
		return nil, fmt.Errorf("missing '=' in %q", src)
	}

	target := strings.TrimSpace(lhs)
	name, found := strings.CutPrefix(target, "totals.")
	if !found || !isIdent(name) {
		return nil, fmt.Errorf("assignment target must be totals.<name>, got %q", target)
	}

	toks, err := lex(rhs)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	node, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at offset %d", p.peek().text, p.peek().pos)
	}
	return &Statement{Source: src, Target: name, Expr: node}, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokDot
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func lex(s string) ([]token, error) {
	var toks []token
	runes := []rune(s)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r):
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			toks = append(toks, token{tokNumber, string(runes[start:i]), start})
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(runes) && (runes[i] == '_' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			toks = append(toks, token{tokIdent, string(runes[start:i]), start})
		case strings.ContainsRune("+-*/", r):
			toks = append(toks, token{tokOp, string(r), i})
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case r == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case r == '.':
			toks = append(toks, token{tokDot, ".", i})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(runes)}), nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// expr := term (("+" | "-") term)*
func (p *parser) expr() (Node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t.kind == tokOp && (t.text == "+" || t.text == "-"); t = p.peek() {
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: t.text[0], L: left, R: right}
	}
	return left, nil
}

// term := unary (("*" | "/") unary)*
func (p *parser) term() (Node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t.kind == tokOp && (t.text == "*" || t.text == "/"); t = p.peek() {
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: t.text[0], L: left, R: right}
	}
	return left, nil
}

// unary := "-" unary | primary
func (p *parser) unary() (Node, error) {
	if t := p.peek(); t.kind == tokOp && t.text == "-" {
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return Unary{X: x}, nil
	}
	return p.primary()
}

// primary := number | "(" expr ")" | ident "(" args ")" | ident ("." ident)*
func (p *parser) primary() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", t.text)
		}
		return Number{Value: v}, nil

	case tokLParen:
		x, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokRParen {
			return nil, fmt.Errorf("missing ')' for '(' at offset %d", t.pos)
		}
		return x, nil

	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.call(t)
		}
		return p.ref(t)
	}

	if t.kind == tokEOF {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	return nil, fmt.Errorf("unexpected %q at offset %d", t.text, t.pos)
}

func (p *parser) call(name token) (Node, error) {
	if _, ok := functions[name.text]; !ok {
		return nil, fmt.Errorf("unknown function %q", name.text)
	}
	p.next() // (

	c := Call{Name: name.text}
	if p.peek().kind == tokRParen {
		p.next()
		return c, nil
	}
	for {
		arg, err := p.expr()
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, arg)

		switch t := p.next(); t.kind {
		case tokComma:
			continue
		case tokRParen:
			return c, nil
		default:
			return nil, fmt.Errorf("expected ',' or ')' in call to %s", name.text)
		}
	}
}

func (p *parser) ref(first token) (Node, error) {
	if !roots[first.text] {
		return nil, fmt.Errorf("unknown reference %q: must start with doc, totals or lines", first.text)
	}
	path := []string{first.text}
	for p.peek().kind == tokDot {
		p.next()
		t := p.next()
		if t.kind != tokIdent {
			return nil, fmt.Errorf("expected name after '.' at offset %d", t.pos)
		}
		path = append(path, t.text)
	}
	if len(path) != 2 && first.text != "doc" {
		return nil, fmt.Errorf("reference %q must name exactly one field", strings.Join(path, "."))
	}
	if len(path) < 2 {
		return nil, fmt.Errorf("reference %q must name a field", first.text)
	}
	return Ref{Path: path}, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
