package belief

import (
	"fmt"
	"strconv"
	"sync"

	"bdicore/internal/logging"
	"bdicore/internal/query"
	"bdicore/internal/term"
)

// Base is the Prolog-style belief store. Facts are kept per predicate in
// assertion order; clauses in declaration order.
type Base struct {
	cfg Config

	mu      sync.RWMutex
	keys    []string
	byKey   map[string][]term.Term
	index   map[string]struct{}
	count   int
	rules   map[string][]Clause
	ruleKey []string

	solver *solver
}

// NewBase creates an empty belief base.
func NewBase(cfg Config) *Base {
	b := &Base{
		cfg:   cfg,
		byKey: make(map[string][]term.Term),
		index: make(map[string]struct{}),
		rules: make(map[string][]Clause),
	}
	b.solver = newSolver(b, cfg)
	return b
}

func predKey(name string, arity int) string {
	return name + "/" + strconv.Itoa(arity)
}

// facts and clauses implement source. Callers hold b.mu.
func (b *Base) facts(name string, arity int) []term.Term {
	return b.byKey[predKey(name, arity)]
}

func (b *Base) clauses(name string, arity int) []Clause {
	return b.rules[predKey(name, arity)]
}

// Load parses a program of facts and clauses and adds it to the base.
func (b *Base) Load(src string) error {
	facts, clauses, err := ParseProgram(src)
	if err != nil {
		return err
	}
	for _, c := range clauses {
		if err := b.AddClause(c); err != nil {
			return err
		}
	}
	for _, f := range facts {
		if err := b.Assert(query.Pos(f)); err != nil {
			return err
		}
	}
	return nil
}

// AddClause adds an inference rule.
func (b *Base) AddClause(c Clause) error {
	name, arity, ok := term.Functor(c.Head)
	if !ok {
		return fmt.Errorf("clause head must be an atom or compound: %s", c.Head)
	}
	if c.Body == nil {
		c.Body = query.True{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := predKey(name, arity)
	if _, ok := b.rules[key]; !ok {
		b.ruleKey = append(b.ruleKey, key)
	}
	b.rules[key] = append(b.rules[key], c)
	return nil
}

// Query implements Store.
func (b *Base) Query(q query.Query, theta *term.Subst) bool {
	b.mu.RLock()
	found, ok := b.solver.prove(q, theta)
	b.mu.RUnlock()
	if ok {
		bindQueryVars(q, found, theta)
	}
	return ok
}

// Assert implements Store.
func (b *Base) Assert(lit query.Literal) error {
	if !lit.Positive {
		return b.Retract(lit.Negate())
	}
	if err := term.RequireGround(lit.Atom); err != nil {
		return fmt.Errorf("assert %s: %w", lit, err)
	}
	name, arity, ok := term.Functor(lit.Atom)
	if !ok {
		return fmt.Errorf("assert %s: %w", lit, ErrUnsupportedTerm)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s := lit.Atom.String()
	if _, ok := b.index[s]; ok {
		return nil
	}
	if b.cfg.FactLimit > 0 && b.count >= b.cfg.FactLimit {
		return fmt.Errorf("assert %s: %w (%d)", lit, ErrFactLimit, b.cfg.FactLimit)
	}
	key := predKey(name, arity)
	if _, ok := b.byKey[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.byKey[key] = append(b.byKey[key], lit.Atom)
	b.index[s] = struct{}{}
	b.count++
	logging.BeliefsDebug("asserted %s", s)
	return nil
}

// Retract implements Store.
func (b *Base) Retract(lit query.Literal) error {
	if !lit.Positive {
		return b.Assert(lit.Negate())
	}
	if err := term.RequireGround(lit.Atom); err != nil {
		return fmt.Errorf("retract %s: %w", lit, err)
	}
	name, arity, _ := term.Functor(lit.Atom)

	b.mu.Lock()
	defer b.mu.Unlock()

	s := lit.Atom.String()
	if _, ok := b.index[s]; !ok {
		return nil
	}
	key := predKey(name, arity)
	facts := b.byKey[key]
	for i, f := range facts {
		if term.Equal(f, lit.Atom) {
			b.byKey[key] = append(facts[:i:i], facts[i+1:]...)
			break
		}
	}
	delete(b.index, s)
	b.count--
	logging.BeliefsDebug("retracted %s", s)
	return nil
}

// Facts returns a snapshot of all facts, grouped by predicate in first
// assertion order.
func (b *Base) Facts() []term.Term {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]term.Term, 0, b.count)
	for _, k := range b.keys {
		out = append(out, b.byKey[k]...)
	}
	return out
}

// Len returns the number of facts.
func (b *Base) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// InferenceRules implements Store.
func (b *Base) InferenceRules() map[string][]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string][]string)
	for _, key := range b.ruleKey {
		for _, c := range b.rules[key] {
			head, _, _ := term.Functor(c.Head)
			names := append(query.Predicates(c.Body), query.Functions(c.Body)...)
			out[head] = appendUnique(out[head], names...)
		}
	}
	return out
}

func appendUnique(dst []string, names ...string) []string {
	for _, n := range names {
		dup := false
		for _, d := range dst {
			if d == n {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, n)
		}
	}
	return dst
}
