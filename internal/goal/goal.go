// Package goal implements the goal base: an ordered list of declarative
// goals, each a conjunction of ground atoms the agent wants to believe.
package goal

import (
	"fmt"
	"sort"
	"strings"

	"bdicore/internal/query"
	"bdicore/internal/term"
)

// Goal is a conjunction of atoms.
type Goal []term.Term

// Parse reads a goal written as a conjunction of positive literals.
func Parse(src string) (Goal, error) {
	q, err := query.Parse(src)
	if err != nil {
		return nil, err
	}
	return FromQuery(q)
}

// MustParse is Parse for goals known to be well formed.
func MustParse(src string) Goal {
	g, err := Parse(src)
	if err != nil {
		panic(fmt.Sprintf("goal.MustParse(%q): %v", src, err))
	}
	return g
}

// FromQuery converts a conjunction of positive literals into a goal.
func FromQuery(q query.Query) (Goal, error) {
	var g Goal
	switch x := q.(type) {
	case query.Literal:
		if !x.Positive {
			return nil, fmt.Errorf("goal cannot contain negation: %s", q)
		}
		return Goal{x.Atom}, nil
	case query.And:
		for _, p := range x.Parts {
			sub, err := FromQuery(p)
			if err != nil {
				return nil, err
			}
			g = append(g, sub...)
		}
		return g, nil
	}
	return nil, fmt.Errorf("goal must be a conjunction of atoms: %s", q)
}

func (g Goal) String() string {
	parts := make([]string, len(g))
	for i, t := range g {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// Query returns the goal as a belief query.
func (g Goal) Query() query.Query {
	return query.FromLiterals(g.Literals())
}

// Literals returns the goal's atoms as positive literals.
func (g Goal) Literals() []query.Literal {
	lits := make([]query.Literal, len(g))
	for i, t := range g {
		lits[i] = query.Pos(t)
	}
	return lits
}

// Apply substitutes theta into every atom.
func (g Goal) Apply(theta *term.Subst) Goal {
	return Goal(term.ApplyAll(g, theta))
}

// Ground reports whether every atom is ground.
func (g Goal) Ground() bool {
	for _, t := range g {
		if !term.Ground(t) {
			return false
		}
	}
	return true
}

// Key is an order-insensitive identity for the goal.
func (g Goal) Key() string {
	parts := make([]string, len(g))
	for i, t := range g {
		parts[i] = t.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, " & ")
}

// Equal reports whether both goals contain the same atoms, ignoring order.
func (g Goal) Equal(o Goal) bool {
	return len(g) == len(o) && g.Key() == o.Key()
}

// Contains reports whether every atom of sub occurs in g.
func (g Goal) Contains(sub Goal) bool {
	for _, s := range sub {
		found := false
		for _, t := range g {
			if term.Equal(s, t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Entails proves q against the atoms of g: positive literals must unify
// with an atom of g, negative ones with none. k receives every solution and
// stops the search by returning true.
func (g Goal) Entails(q query.Query, theta *term.Subst, k func(*term.Subst) bool) bool {
	switch x := q.(type) {
	case nil, query.True:
		return k(theta)
	case query.Literal:
		if !x.Positive {
			if g.Entails(x.Negate(), theta.Clone(), func(*term.Subst) bool { return true }) {
				return false
			}
			return k(theta)
		}
		for _, t := range g {
			s := theta.Clone()
			if term.Unify(x.Atom, t, s) && k(s) {
				return true
			}
		}
		return false
	case query.And:
		return g.entailsAll(x.Parts, theta, k)
	case query.Or:
		for _, p := range x.Parts {
			if g.Entails(p, theta.Clone(), k) {
				return true
			}
		}
		return false
	case query.Not:
		if g.Entails(x.Q, theta.Clone(), func(*term.Subst) bool { return true }) {
			return false
		}
		return k(theta)
	}
	return false
}

func (g Goal) entailsAll(parts []query.Query, theta *term.Subst, k func(*term.Subst) bool) bool {
	if len(parts) == 0 {
		return k(theta)
	}
	return g.Entails(parts[0], theta, func(s *term.Subst) bool {
		return g.entailsAll(parts[1:], s, k)
	})
}
