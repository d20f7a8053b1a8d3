// Package term implements the logic terms manipulated by the reasoning core:
// identifiers, numerals, variables, compound terms and lists, together with
// substitutions, unification and variable renaming.
//
// Terms are immutable values. Every operation that "changes" a term returns a
// new one, so a term can be shared freely between rules, plans and goals.
package term

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnboundVariable is returned when a term that must be ground still
// carries a free variable.
var ErrUnboundVariable = errors.New("unbound variable")

// Term is one of Ident, Num, Var, Compound or List.
type Term interface {
	String() string
	isTerm()
}

// Ident is an atom such as `foo` or `'hello world'`.
type Ident struct {
	Name string
}

// Num is a numeral. All numerals are float64; integers print without a
// fractional part.
type Num struct {
	Value float64
}

// Var is a logic variable. Whether it is bound is decided by the substitution
// it is looked up in, never by the variable itself.
type Var struct {
	Name string
}

// Compound is a function term name(args...). A compound always has at least
// one argument; zero-arity functors are Idents.
type Compound struct {
	Name string
	Args []Term
}

// List is [e1, ..., en | Tail]. Tail is nil for a proper list.
type List struct {
	Elems []Term
	Tail  *Var
}

func (Ident) isTerm()    {}
func (Num) isTerm()      {}
func (Var) isTerm()      {}
func (Compound) isTerm() {}
func (List) isTerm()     {}

// Fn builds a function term: an Ident when no arguments are given.
func Fn(name string, args ...Term) Term {
	if len(args) == 0 {
		return Ident{Name: name}
	}
	return Compound{Name: name, Args: args}
}

// Int builds a numeral from an int.
func Int(n int) Num {
	return Num{Value: float64(n)}
}

// Int returns the numeral as an int when it has no fractional part.
func (n Num) Int() (int, bool) {
	i := int(n.Value)
	return i, float64(i) == n.Value
}

// Functor returns the name and arity of an Ident or Compound.
func Functor(t Term) (string, int, bool) {
	switch x := t.(type) {
	case Ident:
		return x.Name, 0, true
	case Compound:
		return x.Name, len(x.Args), true
	}
	return "", 0, false
}

// Args returns the arguments of a Compound, or nil for any other term.
func Args(t Term) []Term {
	if c, ok := t.(Compound); ok {
		return c.Args
	}
	return nil
}

// =============================================================================
// PRINTING
// =============================================================================

var infixOps = map[string]bool{
	"<": true, ">": true, "=<": true, ">=": true, "=": true, `\=`: true, "is": true,
	"+": true, "-": true, "*": true, "/": true,
}

var arithOps = map[string]bool{"+": true, "-": true, "*": true, "/": true}

func (i Ident) String() string {
	if isPlainAtom(i.Name) {
		return i.Name
	}
	return "'" + strings.ReplaceAll(i.Name, "'", `\'`) + "'"
}

func (n Num) String() string {
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

func (v Var) String() string {
	return v.Name
}

func (c Compound) String() string {
	if c.infix() {
		s := operand(c.Args[0]) + " " + c.Name + " " + operand(c.Args[1])
		if arithOps[c.Name] {
			return "(" + s + ")"
		}
		return s
	}
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return Ident{Name: c.Name}.String() + "(" + strings.Join(parts, ", ") + ")"
}

func (c Compound) infix() bool {
	return len(c.Args) == 2 && infixOps[c.Name]
}

// operand prints an argument of an infix term or a list element.
// Comparisons are bracketed there so that `(a < b) = c` and `a < (b = c)`
// print differently; arithmetic brackets itself.
func operand(t Term) string {
	if c, ok := t.(Compound); ok && c.infix() && !arithOps[c.Name] {
		return "(" + c.String() + ")"
	}
	return t.String()
}

func (l List) String() string {
	parts := make([]string, len(l.Elems))
	for i, e := range l.Elems {
		parts[i] = operand(e)
	}
	s := "[" + strings.Join(parts, ", ")
	if l.Tail != nil {
		if len(l.Elems) > 0 {
			s += " | " + l.Tail.Name
		} else {
			s += "| " + l.Tail.Name
		}
	}
	return s + "]"
}

func isPlainAtom(s string) bool {
	if s == "" {
		return false
	}
	if s == "[]" {
		return true
	}
	c := s[0]
	if c < 'a' || c > 'z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return false
		}
	}
	return true
}

// =============================================================================
// STRUCTURE
// =============================================================================

// Equal reports structural equality. Variables are equal iff their names are.
func Equal(a, b Term) bool {
	switch x := a.(type) {
	case Ident:
		y, ok := b.(Ident)
		return ok && x.Name == y.Name
	case Num:
		y, ok := b.(Num)
		return ok && x.Value == y.Value
	case Var:
		y, ok := b.(Var)
		return ok && x.Name == y.Name
	case Compound:
		y, ok := b.(Compound)
		if !ok || x.Name != y.Name || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !Equal(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	case List:
		y, ok := b.(List)
		if !ok || len(x.Elems) != len(y.Elems) {
			return false
		}
		if (x.Tail == nil) != (y.Tail == nil) {
			return false
		}
		if x.Tail != nil && x.Tail.Name != y.Tail.Name {
			return false
		}
		for i := range x.Elems {
			if !Equal(x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Vars returns the variable names occurring in t, in order of first
// occurrence.
func Vars(terms ...Term) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range terms {
		collectVars(t, seen, &out)
	}
	return out
}

func collectVars(t Term, seen map[string]struct{}, out *[]string) {
	switch x := t.(type) {
	case Var:
		if _, ok := seen[x.Name]; !ok {
			seen[x.Name] = struct{}{}
			*out = append(*out, x.Name)
		}
	case Compound:
		for _, a := range x.Args {
			collectVars(a, seen, out)
		}
	case List:
		for _, e := range x.Elems {
			collectVars(e, seen, out)
		}
		if x.Tail != nil {
			collectVars(*x.Tail, seen, out)
		}
	}
}

// Ground reports whether t contains no variables.
func Ground(t Term) bool {
	switch x := t.(type) {
	case Var:
		return false
	case Compound:
		for _, a := range x.Args {
			if !Ground(a) {
				return false
			}
		}
	case List:
		if x.Tail != nil {
			return false
		}
		for _, e := range x.Elems {
			if !Ground(e) {
				return false
			}
		}
	}
	return true
}

// RequireGround returns an ErrUnboundVariable wrapping error when t is not
// ground.
func RequireGround(t Term) error {
	if Ground(t) {
		return nil
	}
	return fmt.Errorf("%w: %s in %s", ErrUnboundVariable, strings.Join(Vars(t), ", "), t)
}

// NestedFunctors returns the names of the compound terms occurring strictly
// inside t's arguments. For t(v(X), w) it returns [v].
func NestedFunctors(t Term) []string {
	var out []string
	seen := make(map[string]struct{})
	var walk func(Term)
	walk = func(u Term) {
		switch x := u.(type) {
		case Compound:
			if _, ok := seen[x.Name]; !ok {
				seen[x.Name] = struct{}{}
				out = append(out, x.Name)
			}
			for _, a := range x.Args {
				walk(a)
			}
		case List:
			for _, e := range x.Elems {
				walk(e)
			}
		}
	}
	for _, a := range Args(t) {
		walk(a)
	}
	return out
}
