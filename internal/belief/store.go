// Package belief implements the agent's belief store: ground facts plus
// inference rules, queried with negation as failure.
//
// Two backends are provided. Base is a Prolog-style store answering queries
// by depth-first resolution. Datalog evaluates its rules bottom-up through
// Google Mangle and answers queries from the materialised facts.
package belief

import (
	"errors"

	"bdicore/internal/query"
	"bdicore/internal/term"
)

var (
	// ErrFactLimit is returned when an assert would exceed the fact limit.
	ErrFactLimit = errors.New("fact limit exceeded")
	// ErrUnsupportedTerm is returned when a backend cannot represent a term.
	ErrUnsupportedTerm = errors.New("unsupported term")
)

// Store is the belief store consulted by guards, tests and belief updates.
type Store interface {
	// Query proves q. On success theta is extended with the bindings of
	// the first solution; on failure it is left untouched.
	Query(q query.Query, theta *term.Subst) bool
	// Assert adds a positive ground literal or removes the atom of a
	// negative one.
	Assert(lit query.Literal) error
	// Retract is the inverse of Assert.
	Retract(lit query.Literal) error
	// InferenceRules maps every inference-rule head predicate to the
	// predicate and function names its bodies mention.
	InferenceRules() map[string][]string
}

// Clause is an inference rule Head :- Body. A fact is a clause with a True
// body.
type Clause struct {
	Head term.Term
	Body query.Query
}

func (c Clause) String() string {
	if _, ok := c.Body.(query.True); ok || c.Body == nil {
		return c.Head.String() + "."
	}
	return c.Head.String() + " :- " + c.Body.String() + "."
}

// Config configures a belief store.
type Config struct {
	MaxProofDepth int
	FactLimit     int
	Seed          int64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxProofDepth: 256,
		FactLimit:     100000,
	}
}

// bindQueryVars copies the bindings found by a proof for the variables of q,
// and of q under theta, into theta. Variables already bound in theta are left
// alone.
func bindQueryVars(q query.Query, found, theta *term.Subst) {
	vars := append(query.Vars(q), query.Vars(query.Apply(q, theta))...)
	for _, v := range vars {
		if _, ok := theta.Get(v); ok {
			continue
		}
		if b, ok := found.Get(v); ok {
			theta.Bind(v, b)
		}
	}
}
