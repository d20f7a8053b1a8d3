package belief

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/mangle/ast"

	"bdicore/internal/logging"
	"bdicore/internal/mangle"
	"bdicore/internal/query"
	"bdicore/internal/term"
)

// Datalog is a belief store whose inference rules are a Mangle program.
// Facts may only carry identifiers and numerals as arguments; identifiers
// map to Mangle names (/foo) and numerals to numbers or float64 constants.
//
// Queries are answered from the materialised store, so negation, comparison
// and arithmetic in guards work as with Base.
type Datalog struct {
	engine *mangle.Engine
	solver *solver
}

// NewDatalog loads program (Mangle syntax, every predicate declared) into a
// fresh engine.
func NewDatalog(cfg Config, program string) (*Datalog, error) {
	engine := mangle.NewEngine(mangle.Config{FactLimit: cfg.FactLimit, AutoEval: true})
	if strings.TrimSpace(program) != "" {
		if err := engine.LoadProgramString(program); err != nil {
			return nil, err
		}
	}
	d := &Datalog{engine: engine}
	d.solver = newSolver(d, cfg)
	return d, nil
}

// Engine exposes the underlying Mangle engine.
func (d *Datalog) Engine() *mangle.Engine { return d.engine }

func (d *Datalog) facts(name string, arity int) []term.Term {
	atoms, err := d.engine.Facts(ast.PredicateSym{Symbol: name, Arity: arity})
	if err != nil {
		logging.Get(logging.CategoryBeliefs).Warn("datalog lookup %s/%d: %v", name, arity, err)
		return nil
	}
	out := make([]term.Term, 0, len(atoms))
	for _, a := range atoms {
		t, err := fromAtom(a)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (d *Datalog) clauses(string, int) []Clause { return nil }

// Query implements Store.
func (d *Datalog) Query(q query.Query, theta *term.Subst) bool {
	found, ok := d.solver.prove(q, theta)
	if ok {
		bindQueryVars(q, found, theta)
	}
	return ok
}

// Assert implements Store.
func (d *Datalog) Assert(lit query.Literal) error {
	if !lit.Positive {
		return d.Retract(lit.Negate())
	}
	atom, err := toAtom(lit.Atom)
	if err != nil {
		return fmt.Errorf("assert %s: %w", lit, err)
	}
	added, err := d.engine.Add(atom)
	if err != nil {
		return fmt.Errorf("assert %s: %w", lit, err)
	}
	if added {
		logging.BeliefsDebug("datalog asserted %s", atom)
	}
	return nil
}

// Retract implements Store.
func (d *Datalog) Retract(lit query.Literal) error {
	if !lit.Positive {
		return d.Assert(lit.Negate())
	}
	atom, err := toAtom(lit.Atom)
	if err != nil {
		return fmt.Errorf("retract %s: %w", lit, err)
	}
	if _, err := d.engine.Remove(atom); err != nil {
		return fmt.Errorf("retract %s: %w", lit, err)
	}
	return nil
}

// InferenceRules implements Store.
func (d *Datalog) InferenceRules() map[string][]string {
	return d.engine.RuleDependencies()
}

func toAtom(t term.Term) (ast.Atom, error) {
	if err := term.RequireGround(t); err != nil {
		return ast.Atom{}, err
	}
	name, arity, ok := term.Functor(t)
	if !ok {
		return ast.Atom{}, fmt.Errorf("%w: %s", ErrUnsupportedTerm, t)
	}
	args := make([]ast.BaseTerm, arity)
	for i, a := range term.Args(t) {
		c, err := toConstant(a)
		if err != nil {
			return ast.Atom{}, err
		}
		args[i] = c
	}
	return ast.Atom{Predicate: ast.PredicateSym{Symbol: name, Arity: arity}, Args: args}, nil
}

func toConstant(t term.Term) (ast.BaseTerm, error) {
	switch x := t.(type) {
	case term.Ident:
		if name, err := ast.Name("/" + x.Name); err == nil {
			return name, nil
		}
		return ast.String(x.Name), nil
	case term.Num:
		if i, ok := x.Int(); ok {
			return ast.Number(int64(i)), nil
		}
		return ast.Float64(x.Value), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedTerm, t)
}

func fromAtom(a ast.Atom) (term.Term, error) {
	args := make([]term.Term, len(a.Args))
	for i, arg := range a.Args {
		c, ok := arg.(ast.Constant)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedTerm, arg)
		}
		switch c.Type {
		case ast.NameType:
			args[i] = term.Ident{Name: strings.TrimPrefix(c.Symbol, "/")}
		case ast.StringType:
			args[i] = term.Ident{Name: c.Symbol}
		case ast.NumberType:
			args[i] = term.Num{Value: float64(c.NumValue)}
		case ast.Float64Type:
			args[i] = term.Num{Value: math.Float64frombits(uint64(c.NumValue))}
		default:
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedTerm, c)
		}
	}
	return term.Fn(a.Predicate.Symbol, args...), nil
}
