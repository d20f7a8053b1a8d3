package plan

import (
	"fmt"
	"strings"
	"time"

	"bdicore/internal/goal"
	"bdicore/internal/query"
	"bdicore/internal/term"
)

// Status says what happened to the node that was executed.
type Status int

const (
	// Done consumes the node.
	Done Status = iota
	// Pending keeps the node at the head of the plan for the next tick.
	Pending
	// Expand replaces the node with Outcome.Replace.
	Expand
	// Failed fails the plan.
	Failed
)

// Outcome is the result of executing one node. The owning Seq applies it.
type Outcome struct {
	Status  Status
	Bind    *term.Subst
	Replace []Node
	Err     error
}

func done(bind *term.Subst) Outcome { return Outcome{Status: Done, Bind: bind} }

func failed(n Node, err error) Outcome {
	if err == nil {
		return Outcome{Status: Failed, Err: fmt.Errorf("%w: %s", ErrActionFailed, n)}
	}
	return Outcome{Status: Failed, Err: fmt.Errorf("%w: %s: %w", ErrActionFailed, n, err)}
}

// Node is one step of a plan.
type Node interface {
	Execute(ctx Context) Outcome
	Apply(theta *term.Subst) Node
	Vars() []string
	String() string
}

// =============================================================================
// SIMPLE NODES
// =============================================================================

// Skip does nothing.
type Skip struct{}

func (*Skip) Execute(Context) Outcome  { return done(nil) }
func (s *Skip) Apply(*term.Subst) Node { return s }
func (*Skip) Vars() []string           { return nil }
func (*Skip) String() string           { return "skip" }

// External performs Action in environment Env and binds the returned term
// to Result. A failure is retried on later ticks until Timeout seconds have
// passed since the first failure; 0 fails at once and a negative timeout
// retries forever.
type External struct {
	Env     string
	Action  term.Term
	Result  *term.Var
	Timeout float64

	firstFail time.Time
}

func (e *External) Execute(ctx Context) Outcome {
	if err := term.RequireGround(e.Action); err != nil {
		return failed(e, err)
	}
	res, err := ctx.Perform(e.Env, e.Action)
	if err == nil {
		e.firstFail = time.Time{}
		if e.Result == nil {
			return done(nil)
		}
		if res == nil {
			res = term.List{}
		}
		bind := term.NewSubst()
		bind.Bind(e.Result.Name, res)
		return done(bind)
	}

	if e.Timeout == 0 {
		return failed(e, err)
	}
	now := ctx.Now()
	if e.firstFail.IsZero() {
		e.firstFail = now
	}
	if e.Timeout < 0 || now.Sub(e.firstFail).Seconds() < e.Timeout {
		return Outcome{Status: Pending, Err: err}
	}
	// A retried plan gets a fresh timeout window.
	e.firstFail = time.Time{}
	return failed(e, err)
}

func (e *External) Apply(theta *term.Subst) Node {
	c := *e
	c.Action = term.Apply(e.Action, theta)
	if e.Result != nil {
		if v, ok := term.Apply(*e.Result, theta).(term.Var); ok {
			c.Result = &v
		}
	}
	return &c
}

func (e *External) Vars() []string {
	if e.Result != nil {
		return term.Vars(e.Action, *e.Result)
	}
	return term.Vars(e.Action)
}

func (e *External) String() string {
	if e.Result != nil {
		return fmt.Sprintf("@%s(%s, %s)", e.Env, e.Action, e.Result.Name)
	}
	return fmt.Sprintf("@%s(%s)", e.Env, e.Action)
}

// Abstract calls a procedural rule; the node is replaced by the rule body.
type Abstract struct {
	Call term.Term
}

func (a *Abstract) Execute(ctx Context) Outcome {
	body, err := ctx.Call(a.Call, planVars(ctx))
	if err != nil {
		return failed(a, err)
	}
	return Outcome{Status: Expand, Replace: body}
}

func (a *Abstract) Apply(theta *term.Subst) Node {
	return &Abstract{Call: term.Apply(a.Call, theta)}
}

func (a *Abstract) Vars() []string { return term.Vars(a.Call) }
func (a *Abstract) String() string { return a.Call.String() }

// BeliefUpdate runs a declared belief update action.
type BeliefUpdate struct {
	Action term.Term
}

func (u *BeliefUpdate) Execute(ctx Context) Outcome {
	if err := term.RequireGround(u.Action); err != nil {
		return failed(u, err)
	}
	if err := ctx.BeliefUpdate(u.Action); err != nil {
		return failed(u, err)
	}
	return done(nil)
}

func (u *BeliefUpdate) Apply(theta *term.Subst) Node {
	return &BeliefUpdate{Action: term.Apply(u.Action, theta)}
}

func (u *BeliefUpdate) Vars() []string { return term.Vars(u.Action) }
func (u *BeliefUpdate) String() string { return u.Action.String() }

// AssertBelief adds (+) or removes (-) one belief directly.
type AssertBelief struct {
	Lit query.Literal
}

func (a *AssertBelief) Execute(ctx Context) Outcome {
	if err := term.RequireGround(a.Lit.Atom); err != nil {
		return failed(a, err)
	}
	if err := ctx.UpdateBeliefs(a.Lit); err != nil {
		return failed(a, err)
	}
	return done(nil)
}

func (a *AssertBelief) Apply(theta *term.Subst) Node {
	return &AssertBelief{Lit: query.Literal{Positive: a.Lit.Positive, Atom: term.Apply(a.Lit.Atom, theta)}}
}

func (a *AssertBelief) Vars() []string { return term.Vars(a.Lit.Atom) }

func (a *AssertBelief) String() string {
	if a.Lit.Positive {
		return "+" + a.Lit.Atom.String()
	}
	return "-" + a.Lit.Atom.String()
}

// GoalOp is a goal base operation.
type GoalOp string

const (
	AdoptA         GoalOp = "adopta"
	AdoptZ         GoalOp = "adoptz"
	DropGoal       GoalOp = "dropgoal"
	DropSubGoals   GoalOp = "dropsubgoals"
	DropSuperGoals GoalOp = "dropsupergoals"
)

// ValidGoalOp reports whether op names a goal operation.
func ValidGoalOp(op string) bool {
	switch GoalOp(op) {
	case AdoptA, AdoptZ, DropGoal, DropSubGoals, DropSuperGoals:
		return true
	}
	return false
}

// GoalAction changes the goal base of this module or, when Module is set,
// of another module.
type GoalAction struct {
	Module string
	Op     GoalOp
	Goal   goal.Goal
}

func (g *GoalAction) Execute(ctx Context) Outcome {
	if !g.Goal.Ground() {
		return failed(g, term.ErrUnboundVariable)
	}
	goals, beliefs, err := ctx.Goals(g.Module)
	if err != nil {
		return failed(g, err)
	}
	switch g.Op {
	case AdoptA, AdoptZ:
		// A module does not hand out goals it already believes achieved.
		if ctx.Beliefs().Query(g.Goal.Query(), term.NewSubst()) {
			return failed(g, fmt.Errorf("goal %s is already believed", g.Goal))
		}
		if g.Op == AdoptA {
			_, err = goals.AssertGoalHead(g.Goal, beliefs)
		} else {
			_, err = goals.AssertGoal(g.Goal, beliefs)
		}
		if err != nil {
			return failed(g, err)
		}
	case DropGoal:
		goals.DropGoal(g.Goal)
	case DropSubGoals:
		goals.DropSubGoals(g.Goal)
	case DropSuperGoals:
		goals.DropSuperGoals(g.Goal)
	default:
		return failed(g, fmt.Errorf("unknown goal operation %q", g.Op))
	}
	return done(nil)
}

func (g *GoalAction) Apply(theta *term.Subst) Node {
	return &GoalAction{Module: g.Module, Op: g.Op, Goal: g.Goal.Apply(theta)}
}

func (g *GoalAction) Vars() []string { return term.Vars(g.Goal...) }

func (g *GoalAction) String() string {
	s := fmt.Sprintf("%s(%s)", g.Op, g.Goal)
	if g.Module != "" {
		return g.Module + "." + s
	}
	return s
}

// Test checks beliefs and then goals under one substitution and binds the
// variables of the rest of the plan. Either query may be nil. With Module
// set both queries run against that module.
type Test struct {
	Module  string
	Beliefs query.Query
	Goals   query.Query
}

func (t *Test) Execute(ctx Context) Outcome {
	goals, beliefs, err := ctx.Goals(t.Module)
	if err != nil {
		return failed(t, err)
	}
	theta := term.NewSubst()
	if t.Beliefs != nil && !beliefs.Query(t.Beliefs, theta) {
		return failed(t, nil)
	}
	if t.Goals != nil {
		found, ok := goals.Query(query.Apply(t.Goals, theta))
		if !ok || !theta.Merge(found) {
			return failed(t, nil)
		}
	}
	return done(theta)
}

func (t *Test) Apply(theta *term.Subst) Node {
	c := &Test{Module: t.Module}
	if t.Beliefs != nil {
		c.Beliefs = query.Apply(t.Beliefs, theta)
	}
	if t.Goals != nil {
		c.Goals = query.Apply(t.Goals, theta)
	}
	return c
}

func (t *Test) Vars() []string {
	var vs []string
	if t.Beliefs != nil {
		vs = append(vs, query.Vars(t.Beliefs)...)
	}
	if t.Goals != nil {
		vs = append(vs, query.Vars(t.Goals)...)
	}
	return dedupe(vs)
}

func (t *Test) String() string {
	var parts []string
	if t.Beliefs != nil {
		parts = append(parts, "B("+t.Beliefs.String()+")")
	}
	if t.Goals != nil {
		parts = append(parts, "G("+t.Goals.String()+")")
	}
	s := "?" + strings.Join(parts, " & ")
	if t.Module != "" {
		return t.Module + "." + s
	}
	return s
}

// Send posts a message to another module's mailbox.
type Send struct {
	Receiver     term.Term
	Performative term.Term
	Content      term.Term
}

func (s *Send) Execute(ctx Context) Outcome {
	for _, t := range []term.Term{s.Receiver, s.Performative, s.Content} {
		if err := term.RequireGround(t); err != nil {
			return failed(s, err)
		}
	}
	if err := ctx.Send(identName(s.Receiver), identName(s.Performative), s.Content); err != nil {
		return failed(s, err)
	}
	return done(nil)
}

func identName(t term.Term) string {
	if id, ok := t.(term.Ident); ok {
		return id.Name
	}
	return t.String()
}

func (s *Send) Apply(theta *term.Subst) Node {
	return &Send{
		Receiver:     term.Apply(s.Receiver, theta),
		Performative: term.Apply(s.Performative, theta),
		Content:      term.Apply(s.Content, theta),
	}
}

func (s *Send) Vars() []string { return term.Vars(s.Receiver, s.Performative, s.Content) }

func (s *Send) String() string {
	return fmt.Sprintf("send(%s, %s, %s)", s.Receiver, s.Performative, s.Content)
}

// PlanVar stands for a run of nodes in repair rule heads and bodies. It is
// never executable.
type PlanVar struct {
	Name string
}

func (p *PlanVar) Execute(Context) Outcome {
	return failed(p, term.ErrUnboundVariable)
}

func (p *PlanVar) Apply(*term.Subst) Node { return p }
func (p *PlanVar) Vars() []string         { return nil }
func (p *PlanVar) String() string         { return p.Name }

// =============================================================================
// COMPOSITE NODES
// =============================================================================

// Atomic runs its whole body within one tick.
type Atomic struct {
	Body []Node
}

func (a *Atomic) Execute(ctx Context) Outcome {
	body := append([]Node(nil), a.Body...)
	acc := term.NewSubst()
	for len(body) > 0 {
		if err := ctx.Err(); err != nil {
			return Outcome{Status: Failed, Err: err}
		}
		out := body[0].Execute(ctx)
		switch out.Status {
		case Failed:
			return out
		case Pending:
			return Outcome{Status: Expand, Replace: []Node{&Atomic{Body: body}}, Bind: acc}
		case Expand:
			body = append(append([]Node(nil), out.Replace...), body[1:]...)
		case Done:
			body = body[1:]
		}
		if out.Bind.Len() > 0 {
			body = applyAll(body, out.Bind)
			if !acc.Merge(out.Bind) {
				return failed(a, fmt.Errorf("conflicting bindings %s", out.Bind))
			}
		}
	}
	return done(acc)
}

func (a *Atomic) Apply(theta *term.Subst) Node { return &Atomic{Body: applyAll(a.Body, theta)} }
func (a *Atomic) Vars() []string               { return varsOf(a.Body) }
func (a *Atomic) String() string               { return "[" + joinNodes(a.Body) + "]" }

// If runs Then when Cond holds in the beliefs, Else otherwise.
type If struct {
	Cond query.Query
	Then []Node
	Else []Node
}

func (i *If) Execute(ctx Context) Outcome {
	theta := term.NewSubst()
	if ctx.Beliefs().Query(i.Cond, theta) {
		return Outcome{Status: Expand, Replace: applyAll(i.Then, theta)}
	}
	return Outcome{Status: Expand, Replace: i.Else}
}

func (i *If) Apply(theta *term.Subst) Node {
	return &If{Cond: query.Apply(i.Cond, theta), Then: applyAll(i.Then, theta), Else: applyAll(i.Else, theta)}
}

func (i *If) Vars() []string {
	return dedupe(append(append(query.Vars(i.Cond), varsOf(i.Then)...), varsOf(i.Else)...))
}

func (i *If) String() string {
	s := fmt.Sprintf("if B(%s) then { %s }", i.Cond, joinNodes(i.Then))
	if len(i.Else) > 0 {
		s += fmt.Sprintf(" else { %s }", joinNodes(i.Else))
	}
	return s
}

// While repeats Body while Cond holds in the beliefs.
type While struct {
	Cond query.Query
	Body []Node
}

func (w *While) Execute(ctx Context) Outcome {
	theta := term.NewSubst()
	if !ctx.Beliefs().Query(w.Cond, theta) {
		return done(nil)
	}
	replace := append(append([]Node(nil), applyAll(w.Body, theta)...), w)
	return Outcome{Status: Expand, Replace: replace}
}

func (w *While) Apply(theta *term.Subst) Node {
	return &While{Cond: query.Apply(w.Cond, theta), Body: applyAll(w.Body, theta)}
}

func (w *While) Vars() []string { return dedupe(append(query.Vars(w.Cond), varsOf(w.Body)...)) }

func (w *While) String() string {
	return fmt.Sprintf("while B(%s) do { %s }", w.Cond, joinNodes(w.Body))
}

// =============================================================================
// HELPERS
// =============================================================================

func applyAll(nodes []Node, theta *term.Subst) []Node {
	if theta.Len() == 0 {
		return nodes
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Apply(theta)
	}
	return out
}

func varsOf(nodes []Node) []string {
	var vs []string
	for _, n := range nodes {
		vs = append(vs, n.Vars()...)
	}
	return dedupe(vs)
}

func dedupe(vs []string) []string {
	seen := make(map[string]struct{}, len(vs))
	out := vs[:0:0]
	for _, v := range vs {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, "; ")
}
