// Package query implements belief and goal queries: trees of conjunction,
// disjunction and negation over signed literals.
package query

import (
	"strings"

	"bdicore/internal/term"
)

// Query is one of True, Literal, And, Or or Not.
type Query interface {
	String() string
	isQuery()
}

// True is the query that always holds.
type True struct{}

// Literal is an atom with a sign.
type Literal struct {
	Positive bool
	Atom     term.Term
}

// And holds when all parts hold, tested left to right.
type And struct {
	Parts []Query
}

// Or holds when any part holds, tested left to right.
type Or struct {
	Parts []Query
}

// Not holds when Q fails (negation as failure).
type Not struct {
	Q Query
}

func (True) isQuery()    {}
func (Literal) isQuery() {}
func (And) isQuery()     {}
func (Or) isQuery()      {}
func (Not) isQuery()     {}

// Pos returns the positive literal for atom.
func Pos(atom term.Term) Literal { return Literal{Positive: true, Atom: atom} }

// Neg returns the negative literal for atom.
func Neg(atom term.Term) Literal { return Literal{Positive: false, Atom: atom} }

// Negate flips the sign.
func (l Literal) Negate() Literal { return Literal{Positive: !l.Positive, Atom: l.Atom} }

// Predicate returns the functor name of the literal's atom.
func (l Literal) Predicate() string {
	name, _, _ := term.Functor(l.Atom)
	return name
}

// Arity returns the arity of the literal's atom.
func (l Literal) Arity() int {
	_, n, _ := term.Functor(l.Atom)
	return n
}

func (True) String() string { return "true" }

func (l Literal) String() string {
	if l.Positive {
		return l.Atom.String()
	}
	return "not " + l.Atom.String()
}

func (a And) String() string { return join(a.Parts, ", ") }

func (o Or) String() string { return "(" + join(o.Parts, " ; ") + ")" }

func (n Not) String() string {
	switch n.Q.(type) {
	case Literal, True:
		return "not " + n.Q.String()
	}
	return "not (" + n.Q.String() + ")"
}

func join(qs []Query, sep string) string {
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = q.String()
	}
	return strings.Join(parts, sep)
}

// Conj builds a conjunction. A single part is returned as is and no parts
// yield True.
func Conj(qs ...Query) Query {
	switch len(qs) {
	case 0:
		return True{}
	case 1:
		return qs[0]
	}
	return And{Parts: qs}
}

// FromLiterals builds the conjunction of lits.
func FromLiterals(lits []Literal) Query {
	qs := make([]Query, len(lits))
	for i, l := range lits {
		qs[i] = l
	}
	return Conj(qs...)
}

// Apply substitutes theta into every literal of q.
func Apply(q Query, theta *term.Subst) Query {
	return mapAtoms(q, func(t term.Term) term.Term { return term.Apply(t, theta) })
}

// Rename renames the variables of q.
func Rename(q Query, r term.Renaming) Query {
	return mapAtoms(q, func(t term.Term) term.Term { return term.Rename(t, r) })
}

func mapAtoms(q Query, fn func(term.Term) term.Term) Query {
	switch x := q.(type) {
	case Literal:
		return Literal{Positive: x.Positive, Atom: fn(x.Atom)}
	case And:
		parts := make([]Query, len(x.Parts))
		for i, p := range x.Parts {
			parts[i] = mapAtoms(p, fn)
		}
		return And{Parts: parts}
	case Or:
		parts := make([]Query, len(x.Parts))
		for i, p := range x.Parts {
			parts[i] = mapAtoms(p, fn)
		}
		return Or{Parts: parts}
	case Not:
		return Not{Q: mapAtoms(x.Q, fn)}
	}
	return q
}

// Literals flattens q into its literals, pushing negation into the signs.
func Literals(q Query) []Literal {
	var out []Literal
	collect(q, true, &out)
	return out
}

func collect(q Query, positive bool, out *[]Literal) {
	switch x := q.(type) {
	case Literal:
		if positive {
			*out = append(*out, x)
		} else {
			*out = append(*out, x.Negate())
		}
	case And:
		for _, p := range x.Parts {
			collect(p, positive, out)
		}
	case Or:
		for _, p := range x.Parts {
			collect(p, positive, out)
		}
	case Not:
		collect(x.Q, !positive, out)
	}
}

// Vars returns the variables of q in order of first occurrence.
func Vars(q Query) []string {
	lits := Literals(q)
	ts := make([]term.Term, len(lits))
	for i, l := range lits {
		ts[i] = l.Atom
	}
	return term.Vars(ts...)
}

// Predicates returns the distinct predicate names used by q.
func Predicates(q Query) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, l := range Literals(q) {
		p := l.Predicate()
		if p == "" {
			continue
		}
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// Functions returns the distinct function names nested inside q's literals.
func Functions(q Query) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, l := range Literals(q) {
		for _, f := range term.NestedFunctors(l.Atom) {
			if _, ok := seen[f]; !ok {
				seen[f] = struct{}{}
				out = append(out, f)
			}
		}
	}
	return out
}

// Ground reports whether q has no variables.
func Ground(q Query) bool {
	return len(Vars(q)) == 0
}

// Equal reports structural equality.
func Equal(a, b Query) bool {
	switch x := a.(type) {
	case True:
		_, ok := b.(True)
		return ok
	case Literal:
		y, ok := b.(Literal)
		return ok && x.Positive == y.Positive && term.Equal(x.Atom, y.Atom)
	case And:
		y, ok := b.(And)
		return ok && equalParts(x.Parts, y.Parts)
	case Or:
		y, ok := b.(Or)
		return ok && equalParts(x.Parts, y.Parts)
	case Not:
		y, ok := b.(Not)
		return ok && Equal(x.Q, y.Q)
	}
	return false
}

func equalParts(a, b []Query) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
