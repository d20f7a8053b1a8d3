package query

import (
	"fmt"

	"bdicore/internal/term"
)

// Parse reads a query: literals joined by `,` (and) and `;` (or), negated
// with `not` or `\+`, grouped with parentheses. `true` is the empty query.
func Parse(src string) (Query, error) {
	p, err := term.NewParser(src)
	if err != nil {
		return nil, err
	}
	q, err := ParseFrom(p)
	if err != nil {
		return nil, err
	}
	p.Accept(".")
	if !p.AtEOF() {
		return nil, p.Errorf("unexpected %s after query", p.Peek())
	}
	return q, nil
}

// MustParse is Parse for queries known to be well formed.
func MustParse(src string) Query {
	q, err := Parse(src)
	if err != nil {
		panic(fmt.Sprintf("query.MustParse(%q): %v", src, err))
	}
	return q
}

// ParseFrom reads a query from an existing parser, stopping before the first
// token that cannot continue it.
func ParseFrom(p *term.Parser) (Query, error) {
	first, err := parseConj(p)
	if err != nil {
		return nil, err
	}
	parts := []Query{first}
	for p.Accept(";") {
		next, err := parseConj(p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, next)
	}
	if len(parts) == 1 {
		return first, nil
	}
	return Or{Parts: parts}, nil
}

func parseConj(p *term.Parser) (Query, error) {
	first, err := parseUnit(p)
	if err != nil {
		return nil, err
	}
	parts := []Query{first}
	for p.Accept(",") {
		next, err := parseUnit(p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, next)
	}
	return Conj(parts...), nil
}

func parseUnit(p *term.Parser) (Query, error) {
	tok := p.Peek()
	switch {
	case tok.Is("not") && !p.PeekAt(1).Is(",") && !p.PeekAt(1).Is(")"), tok.Is(`\+`):
		p.Next()
		inner, err := parseUnit(p)
		if err != nil {
			return nil, err
		}
		if l, ok := inner.(Literal); ok {
			return l.Negate(), nil
		}
		return Not{Q: inner}, nil
	case tok.Is("true") && !p.PeekAt(1).Is("("):
		p.Next()
		return True{}, nil
	case tok.Is("("):
		mark := p.Mark()
		p.Next()
		inner, err := ParseFrom(p)
		if err == nil && p.Accept(")") && !continuesTerm(p.Peek()) {
			return inner, nil
		}
		p.Reset(mark)
	}
	t, err := p.ParseRelation()
	if err != nil {
		return nil, err
	}
	return Pos(t), nil
}

// continuesTerm reports whether a parenthesised group is really the left
// operand of an arithmetic or comparison expression.
func continuesTerm(tok term.Token) bool {
	if term.IsComparison(tok) {
		return true
	}
	for _, op := range []string{"+", "-", "*", "/"} {
		if tok.Is(op) {
			return true
		}
	}
	return false
}
