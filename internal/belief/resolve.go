package belief

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"bdicore/internal/query"
	"bdicore/internal/term"
)

// source supplies the facts and clauses of one predicate to the solver.
type source interface {
	facts(pred string, arity int) []term.Term
	clauses(pred string, arity int) []Clause
}

// solver proves queries depth first. A continuation returning true stops the
// search.
type solver struct {
	src      source
	maxDepth int
	rng      *lockedRand
	renames  atomic.Uint64
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func newSolver(src source, cfg Config) *solver {
	depth := cfg.MaxProofDepth
	if depth <= 0 {
		depth = DefaultConfig().MaxProofDepth
	}
	return &solver{src: src, maxDepth: depth, rng: newLockedRand(cfg.Seed)}
}

// prove returns the substitution of the first solution of q.
func (s *solver) prove(q query.Query, theta *term.Subst) (*term.Subst, bool) {
	var found *term.Subst
	s.solve(q, theta.Clone(), 0, func(r *term.Subst) bool {
		found = r
		return true
	})
	return found, found != nil
}

func stop(*term.Subst) bool { return true }

func (s *solver) solve(q query.Query, theta *term.Subst, depth int, k func(*term.Subst) bool) bool {
	switch x := q.(type) {
	case nil, query.True:
		return k(theta)
	case query.Literal:
		if !x.Positive {
			if s.solveAtom(x.Atom, theta.Clone(), depth, stop) {
				return false
			}
			return k(theta)
		}
		return s.solveAtom(x.Atom, theta, depth, k)
	case query.And:
		return s.solveAnd(x.Parts, theta, depth, k)
	case query.Or:
		for _, p := range x.Parts {
			if s.solve(p, theta.Clone(), depth, k) {
				return true
			}
		}
		return false
	case query.Not:
		if s.solve(x.Q, theta.Clone(), depth, stop) {
			return false
		}
		return k(theta)
	}
	return false
}

func (s *solver) solveAnd(parts []query.Query, theta *term.Subst, depth int, k func(*term.Subst) bool) bool {
	if len(parts) == 0 {
		return k(theta)
	}
	return s.solve(parts[0], theta, depth, func(t *term.Subst) bool {
		return s.solveAnd(parts[1:], t, depth, k)
	})
}

func (s *solver) solveAtom(atom term.Term, theta *term.Subst, depth int, k func(*term.Subst) bool) bool {
	atom = term.Apply(atom, theta)
	name, arity, ok := term.Functor(atom)
	if !ok {
		return false
	}
	if b, ok := builtins[name+"/"+strconv.Itoa(arity)]; ok {
		return b(s, term.Args(atom), theta, k)
	}

	for _, f := range s.src.facts(name, arity) {
		t := theta.Clone()
		if term.Unify(atom, f, t) && k(t) {
			return true
		}
	}

	clauses := s.src.clauses(name, arity)
	if len(clauses) == 0 || depth >= s.maxDepth {
		return false
	}
	for _, c := range clauses {
		r := s.clauseRenaming(c)
		head := term.Rename(c.Head, r)
		t := theta.Clone()
		if !term.Unify(atom, head, t) {
			continue
		}
		if s.solve(query.Rename(c.Body, r), t, depth+1, k) {
			return true
		}
	}
	return false
}

// clauseRenaming gives every variable of c a name no query can contain.
func (s *solver) clauseRenaming(c Clause) term.Renaming {
	n := s.renames.Add(1)
	vars := term.Vars(c.Head)
	if c.Body != nil {
		vars = append(vars, query.Vars(c.Body)...)
	}
	r := make(term.Renaming, len(vars))
	for _, v := range vars {
		r[v] = v + "#" + strconv.FormatUint(n, 10)
	}
	return r
}

// =============================================================================
// BUILTINS
// =============================================================================

type builtin func(s *solver, args []term.Term, theta *term.Subst, k func(*term.Subst) bool) bool

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"=/2":      unifyBuiltin,
		`\=/2`:     notUnifyBuiltin,
		"</2":      compareBuiltin(func(a, b float64) bool { return a < b }),
		">/2":      compareBuiltin(func(a, b float64) bool { return a > b }),
		"=</2":     compareBuiltin(func(a, b float64) bool { return a <= b }),
		">=/2":     compareBuiltin(func(a, b float64) bool { return a >= b }),
		"is/2":     isBuiltin,
		"rand/1":   randBuiltin,
		"random/1": randBuiltin,
		"true/0": func(_ *solver, _ []term.Term, theta *term.Subst, k func(*term.Subst) bool) bool {
			return k(theta)
		},
		"fail/0": func(*solver, []term.Term, *term.Subst, func(*term.Subst) bool) bool { return false },
	}
}

// Builtin reports whether name/arity is evaluated by the solver rather than
// looked up in the store.
func Builtin(name string, arity int) bool {
	_, ok := builtins[name+"/"+strconv.Itoa(arity)]
	return ok
}

func unifyBuiltin(_ *solver, args []term.Term, theta *term.Subst, k func(*term.Subst) bool) bool {
	t := theta.Clone()
	return term.Unify(args[0], args[1], t) && k(t)
}

func notUnifyBuiltin(_ *solver, args []term.Term, theta *term.Subst, k func(*term.Subst) bool) bool {
	if term.Unify(args[0], args[1], theta.Clone()) {
		return false
	}
	return k(theta)
}

func compareBuiltin(cmp func(a, b float64) bool) builtin {
	return func(_ *solver, args []term.Term, theta *term.Subst, k func(*term.Subst) bool) bool {
		a, err := Eval(args[0])
		if err != nil {
			return false
		}
		b, err := Eval(args[1])
		if err != nil {
			return false
		}
		return cmp(a, b) && k(theta)
	}
}

func isBuiltin(_ *solver, args []term.Term, theta *term.Subst, k func(*term.Subst) bool) bool {
	v, err := Eval(args[1])
	if err != nil {
		return false
	}
	t := theta.Clone()
	return term.Unify(args[0], term.Num{Value: v}, t) && k(t)
}

func randBuiltin(s *solver, args []term.Term, theta *term.Subst, k func(*term.Subst) bool) bool {
	t := theta.Clone()
	return term.Unify(args[0], term.Num{Value: s.rng.Float64()}, t) && k(t)
}

var errDivByZero = errors.New("division by zero")

// Eval evaluates a ground arithmetic expression.
func Eval(t term.Term) (float64, error) {
	switch x := t.(type) {
	case term.Num:
		return x.Value, nil
	case term.Var:
		return 0, fmt.Errorf("%w: %s", term.ErrUnboundVariable, x.Name)
	case term.Compound:
		if len(x.Args) == 1 && x.Name == "-" {
			v, err := Eval(x.Args[0])
			return -v, err
		}
		if len(x.Args) != 2 {
			break
		}
		a, err := Eval(x.Args[0])
		if err != nil {
			return 0, err
		}
		b, err := Eval(x.Args[1])
		if err != nil {
			return 0, err
		}
		switch x.Name {
		case "+":
			return a + b, nil
		case "-":
			return a - b, nil
		case "*":
			return a * b, nil
		case "/":
			if b == 0 {
				return 0, errDivByZero
			}
			return a / b, nil
		}
	}
	return 0, fmt.Errorf("not an arithmetic expression: %s", t)
}
