package plan

import (
	"fmt"

	"bdicore/internal/goal"
	"bdicore/internal/logging"
	"bdicore/internal/query"
	"bdicore/internal/term"
)

// Activation records which rule instance produced a plan.
type Activation struct {
	RuleID string
	// Head is the goal query of a goal rule; nil for other rules.
	Head query.Query
	// Goal is the goal instance the plan works on, nil if none.
	Goal    goal.Goal
	Applied *term.Subst
}

// AppliedHead returns the instantiated head literals, sorted so that two
// activations of the same rule for the same goal compare equal.
func (a *Activation) AppliedHead() string {
	if a == nil || a.Head == nil {
		return ""
	}
	return goal.Goal(literalAtoms(query.Apply(a.Head, a.Applied))).Key()
}

func literalAtoms(q query.Query) []term.Term {
	var atoms []term.Term
	for _, l := range query.Literals(q) {
		if l.Positive {
			atoms = append(atoms, l.Atom)
		} else {
			atoms = append(atoms, term.Fn("not", l.Atom))
		}
	}
	return atoms
}

// Seq is an executing plan.
type Seq struct {
	ID     string
	Origin *Activation
	nodes  []Node
}

// NewSeq creates a plan from nodes.
func NewSeq(nodes ...Node) *Seq {
	return &Seq{nodes: append([]Node(nil), nodes...)}
}

// Nodes returns a copy of the remaining nodes.
func (s *Seq) Nodes() []Node { return append([]Node(nil), s.nodes...) }

// Len returns the number of remaining top-level nodes.
func (s *Seq) Len() int { return len(s.nodes) }

// Empty reports whether the plan has finished.
func (s *Seq) Empty() bool { return len(s.nodes) == 0 }

// SetNodes replaces the remaining nodes; used by plan repair.
func (s *Seq) SetNodes(nodes []Node) { s.nodes = append([]Node(nil), nodes...) }

// Apply substitutes theta into every remaining node.
func (s *Seq) Apply(theta *term.Subst) { s.nodes = applyAll(s.nodes, theta) }

// Vars returns the variables of the remaining nodes.
func (s *Seq) Vars() []string { return varsOf(s.nodes) }

func (s *Seq) String() string { return joinNodes(s.nodes) }

// Execute runs the first node. Atomic nodes run to completion. The returned
// error wraps ErrActionFailed when the plan failed; any other error is the
// context's own.
func (s *Seq) Execute(ctx Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(s.nodes) == 0 {
		return nil
	}
	head := s.nodes[0]
	out := head.Execute(&scope{Context: ctx, vars: s.Vars()})
	switch out.Status {
	case Failed:
		logging.PlansDebug("plan %s failed at %s: %v", s.ID, head, out.Err)
		if out.Err == nil {
			return fmt.Errorf("%w: %s", ErrActionFailed, head)
		}
		return out.Err
	case Pending:
		logging.PlansDebug("plan %s waiting on %s: %v", s.ID, head, out.Err)
		return nil
	case Expand:
		s.nodes = append(append([]Node(nil), out.Replace...), s.nodes[1:]...)
	case Done:
		s.nodes = s.nodes[1:]
	}
	if out.Bind.Len() > 0 {
		s.nodes = applyAll(s.nodes, out.Bind)
	}
	return nil
}

// scope passes the variables of the executing plan down to its nodes.
type scope struct {
	Context
	vars []string
}

func planVars(ctx Context) []string {
	if s, ok := ctx.(*scope); ok {
		return s.vars
	}
	return nil
}

// Unchunk flattens atomic nodes into the surrounding sequence.
func Unchunk(nodes []Node) []Node {
	var out []Node
	for _, n := range nodes {
		if a, ok := n.(*Atomic); ok {
			out = append(out, Unchunk(a.Body)...)
			continue
		}
		out = append(out, n)
	}
	return out
}
