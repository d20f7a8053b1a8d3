package term

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// TokenKind classifies lexer tokens.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokVar
	TokNum
	TokPunct
	TokOp
)

// Token is a lexeme of the data syntax.
type Token struct {
	Kind   TokenKind
	Text   string
	Quoted bool
	Pos    int
}

func (t Token) String() string {
	if t.Kind == TokEOF {
		return "end of input"
	}
	return strconv.Quote(t.Text)
}

// Is reports whether the token is the unquoted symbol or keyword text.
func (t Token) Is(text string) bool {
	return !t.Quoted && t.Kind != TokEOF && t.Text == text
}

var multiOps = []string{":-", "=<", ">=", `\=`, `\+`}

const singleOps = "<>=+-*/"
const puncts = "()[],|.;"

func lex(src string) ([]Token, error) {
	var toks []Token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '%':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && isDigit(src[i]) {
				i++
			}
			if i+1 < len(src) && src[i] == '.' && isDigit(src[i+1]) {
				i++
				for i < len(src) && isDigit(src[i]) {
					i++
				}
			}
			toks = append(toks, Token{Kind: TokNum, Text: src[start:i], Pos: start})
		case c == '_' || c >= 'A' && c <= 'Z':
			start := i
			for i < len(src) && isWordChar(src[i]) {
				i++
			}
			toks = append(toks, Token{Kind: TokVar, Text: src[start:i], Pos: start})
		case c >= 'a' && c <= 'z':
			start := i
			for i < len(src) && isWordChar(src[i]) {
				i++
			}
			toks = append(toks, Token{Kind: TokIdent, Text: src[start:i], Pos: start})
		case c == '\'':
			start := i
			i++
			var sb strings.Builder
			closed := false
			for i < len(src) {
				if src[i] == '\\' && i+1 < len(src) {
					sb.WriteByte(src[i+1])
					i += 2
					continue
				}
				if src[i] == '\'' {
					closed = true
					i++
					break
				}
				sb.WriteByte(src[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated quoted atom at offset %d", start)
			}
			toks = append(toks, Token{Kind: TokIdent, Text: sb.String(), Quoted: true, Pos: start})
		default:
			matched := false
			for _, op := range multiOps {
				if strings.HasPrefix(src[i:], op) {
					toks = append(toks, Token{Kind: TokOp, Text: op, Pos: i})
					i += len(op)
					matched = true
					break
				}
			}
			if matched {
				continue
			}
			if strings.IndexByte(singleOps, c) >= 0 {
				toks = append(toks, Token{Kind: TokOp, Text: string(c), Pos: i})
				i++
				continue
			}
			if strings.IndexByte(puncts, c) >= 0 {
				toks = append(toks, Token{Kind: TokPunct, Text: string(c), Pos: i})
				i++
				continue
			}
			if unicode.IsSpace(rune(c)) {
				i++
				continue
			}
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return append(toks, Token{Kind: TokEOF, Pos: len(src)}), nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordChar(c byte) bool {
	return c == '_' || isDigit(c) || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// Parser reads terms from the Prolog-style data syntax. It is exported so
// the query and belief readers can layer their own grammar on top.
type Parser struct {
	toks []Token
	pos  int
	anon int
}

// NewParser tokenises src.
func NewParser(src string) (*Parser, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	return &Parser{toks: toks}, nil
}

// Peek returns the next token without consuming it.
func (p *Parser) Peek() Token { return p.toks[p.pos] }

// PeekAt returns the token n positions ahead.
func (p *Parser) PeekAt(n int) Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

// Next consumes a token.
func (p *Parser) Next() Token {
	t := p.toks[p.pos]
	if t.Kind != TokEOF {
		p.pos++
	}
	return t
}

// Accept consumes the next token if it is the given symbol.
func (p *Parser) Accept(text string) bool {
	if p.Peek().Is(text) {
		p.pos++
		return true
	}
	return false
}

// Expect consumes the given symbol or fails.
func (p *Parser) Expect(text string) error {
	if !p.Accept(text) {
		return p.Errorf("expected %q, found %s", text, p.Peek())
	}
	return nil
}

// AtEOF reports whether all input was consumed.
func (p *Parser) AtEOF() bool { return p.Peek().Kind == TokEOF }

// Mark returns the current position for a later Reset.
func (p *Parser) Mark() int { return p.pos }

// Reset rewinds to a position returned by Mark.
func (p *Parser) Reset(pos int) { p.pos = pos }

// Errorf formats a parse error located at the next token.
func (p *Parser) Errorf(format string, args ...any) error {
	return fmt.Errorf("offset %d: %s", p.Peek().Pos, fmt.Sprintf(format, args...))
}

var comparisonOps = map[string]bool{"<": true, ">": true, "=<": true, ">=": true, "=": true, `\=`: true, "is": true}

// IsComparison reports whether the token is a comparison operator or `is`.
func IsComparison(t Token) bool {
	return !t.Quoted && (t.Kind == TokOp || t.Kind == TokIdent) && comparisonOps[t.Text]
}

// ParseRelation reads a term optionally followed by a comparison operator and
// a second term, as in `X < 3` or `Y is X + 1`.
func (p *Parser) ParseRelation() (Term, error) {
	left, err := p.ParseTerm()
	if err != nil {
		return nil, err
	}
	if IsComparison(p.Peek()) {
		op := p.Next().Text
		right, err := p.ParseTerm()
		if err != nil {
			return nil, err
		}
		return Compound{Name: op, Args: []Term{left, right}}, nil
	}
	return left, nil
}

// ParseTerm reads one term including arithmetic.
func (p *Parser) ParseTerm() (Term, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.Peek().Is("+") || p.Peek().Is("-") {
		op := p.Next().Text
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = Compound{Name: op, Args: []Term{left, right}}
	}
	return left, nil
}

func (p *Parser) parseMul() (Term, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.Peek().Is("*") || p.Peek().Is("/") {
		op := p.Next().Text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = Compound{Name: op, Args: []Term{left, right}}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Term, error) {
	if p.Accept("-") {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if n, ok := operand.(Num); ok {
			return Num{Value: -n.Value}, nil
		}
		return Compound{Name: "-", Args: []Term{operand}}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Term, error) {
	tok := p.Peek()
	switch tok.Kind {
	case TokNum:
		p.Next()
		v, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, fmt.Errorf("offset %d: bad number %q: %w", tok.Pos, tok.Text, err)
		}
		return Num{Value: v}, nil
	case TokVar:
		p.Next()
		if tok.Text == "_" {
			p.anon++
			return Var{Name: "_G" + strconv.Itoa(p.anon)}, nil
		}
		return Var{Name: tok.Text}, nil
	case TokIdent:
		p.Next()
		if !p.Peek().Is("(") {
			return Ident{Name: tok.Text}, nil
		}
		p.Next()
		args, err := p.parseArgs(")")
		if err != nil {
			return nil, err
		}
		return Compound{Name: tok.Text, Args: args}, nil
	case TokPunct:
		switch tok.Text {
		case "[":
			p.Next()
			return p.parseList()
		case "(":
			p.Next()
			inner, err := p.ParseRelation()
			if err != nil {
				return nil, err
			}
			if err := p.Expect(")"); err != nil {
				return nil, err
			}
			return inner, nil
		}
	}
	return nil, p.Errorf("unexpected %s", tok)
}

func (p *Parser) parseArgs(closing string) ([]Term, error) {
	var args []Term
	for {
		a, err := p.ParseRelation()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.Accept(",") {
			continue
		}
		if err := p.Expect(closing); err != nil {
			return nil, err
		}
		return args, nil
	}
}

func (p *Parser) parseList() (Term, error) {
	if p.Accept("]") {
		return List{}, nil
	}
	var elems []Term
	for {
		e, err := p.ParseTerm()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.Accept(",") {
			continue
		}
		break
	}
	var tail *Var
	if p.Accept("|") {
		tok := p.Next()
		if tok.Kind != TokVar {
			return nil, fmt.Errorf("offset %d: list tail must be a variable, found %s", tok.Pos, tok)
		}
		tail = &Var{Name: tok.Text}
	}
	if err := p.Expect("]"); err != nil {
		return nil, err
	}
	return List{Elems: elems, Tail: tail}, nil
}

// Parse reads a single term (or relation) from src. A trailing full stop is
// allowed.
func Parse(src string) (Term, error) {
	p, err := NewParser(src)
	if err != nil {
		return nil, err
	}
	t, err := p.ParseRelation()
	if err != nil {
		return nil, err
	}
	p.Accept(".")
	if !p.AtEOF() {
		return nil, p.Errorf("unexpected %s after term", p.Peek())
	}
	return t, nil
}

// MustParse is Parse for literals known to be well formed. It panics on error.
func MustParse(src string) Term {
	t, err := Parse(src)
	if err != nil {
		panic(fmt.Sprintf("term.MustParse(%q): %v", src, err))
	}
	return t
}
