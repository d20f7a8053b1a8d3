package plan

import (
	"bdicore/internal/query"
	"bdicore/internal/term"
)

// PlanSubst binds plan variables to runs of nodes.
type PlanSubst map[string][]Node

func (p PlanSubst) clone() PlanSubst {
	c := make(PlanSubst, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Match is one way a repair head lines up with the front of a plan.
type Match struct {
	Theta *term.Subst
	Plan  PlanSubst
	// Rest is the part of the plan the head did not cover.
	Rest []Node
}

// MatchPrefix structurally matches head against the leading nodes of nodes.
// A plan variable matches any run of nodes; in last position it takes
// everything that is left. Each match is passed to k, which stops the search
// by returning true.
func MatchPrefix(head, nodes []Node, theta *term.Subst, k func(Match) bool) bool {
	return matchPrefix(head, nodes, theta, PlanSubst{}, k)
}

func matchPrefix(head, nodes []Node, theta *term.Subst, ps PlanSubst, k func(Match) bool) bool {
	if len(head) == 0 {
		return k(Match{Theta: theta, Plan: ps, Rest: nodes})
	}
	pv, isVar := head[0].(*PlanVar)
	if !isVar {
		if len(nodes) == 0 {
			return false
		}
		s := theta.Clone()
		if !unifyNodes(head[0], nodes[0], s) {
			return false
		}
		return matchPrefix(head[1:], nodes[1:], s, ps, k)
	}

	if bound, ok := ps[pv.Name]; ok {
		if len(nodes) < len(bound) {
			return false
		}
		s := theta.Clone()
		for i, n := range bound {
			if !unifyNodes(n, nodes[i], s) {
				return false
			}
		}
		return matchPrefix(head[1:], nodes[len(bound):], s, ps, k)
	}
	if len(head) == 1 {
		next := ps.clone()
		next[pv.Name] = nodes
		return k(Match{Theta: theta, Plan: next, Rest: nil})
	}
	for n := 0; n <= len(nodes); n++ {
		next := ps.clone()
		next[pv.Name] = nodes[:n]
		if matchPrefix(head[1:], nodes[n:], theta.Clone(), next, k) {
			return true
		}
	}
	return false
}

// Splice replaces plan variables in body with their bound runs, recursing
// into composite nodes, and then applies theta.
func Splice(body []Node, ps PlanSubst, theta *term.Subst) []Node {
	var out []Node
	for _, n := range body {
		switch x := n.(type) {
		case *PlanVar:
			if run, ok := ps[x.Name]; ok {
				out = append(out, run...)
				continue
			}
			out = append(out, x)
		case *Atomic:
			out = append(out, &Atomic{Body: Splice(x.Body, ps, nil)})
		case *If:
			out = append(out, &If{Cond: x.Cond, Then: Splice(x.Then, ps, nil), Else: Splice(x.Else, ps, nil)})
		case *While:
			out = append(out, &While{Cond: x.Cond, Body: Splice(x.Body, ps, nil)})
		default:
			out = append(out, n)
		}
	}
	return applyAll(out, theta)
}

// HasPlanVars reports whether any plan variable is left in nodes.
func HasPlanVars(nodes []Node) bool {
	for _, n := range nodes {
		switch x := n.(type) {
		case *PlanVar:
			return true
		case *Atomic:
			if HasPlanVars(x.Body) {
				return true
			}
		case *If:
			if HasPlanVars(x.Then) || HasPlanVars(x.Else) {
				return true
			}
		case *While:
			if HasPlanVars(x.Body) {
				return true
			}
		}
	}
	return false
}

func unifyNodes(a, b Node, theta *term.Subst) bool {
	switch x := a.(type) {
	case *Skip:
		_, ok := b.(*Skip)
		return ok
	case *External:
		y, ok := b.(*External)
		if !ok || x.Env != y.Env || !term.Unify(x.Action, y.Action, theta) {
			return false
		}
		if x.Result == nil || y.Result == nil {
			return x.Result == nil && y.Result == nil
		}
		return term.Unify(*x.Result, *y.Result, theta)
	case *Abstract:
		y, ok := b.(*Abstract)
		return ok && term.Unify(x.Call, y.Call, theta)
	case *BeliefUpdate:
		y, ok := b.(*BeliefUpdate)
		return ok && term.Unify(x.Action, y.Action, theta)
	case *AssertBelief:
		y, ok := b.(*AssertBelief)
		return ok && x.Lit.Positive == y.Lit.Positive && term.Unify(x.Lit.Atom, y.Lit.Atom, theta)
	case *GoalAction:
		y, ok := b.(*GoalAction)
		if !ok || x.Op != y.Op || x.Module != y.Module || len(x.Goal) != len(y.Goal) {
			return false
		}
		for i := range x.Goal {
			if !term.Unify(x.Goal[i], y.Goal[i], theta) {
				return false
			}
		}
		return true
	case *Test:
		y, ok := b.(*Test)
		return ok && x.Module == y.Module &&
			unifyQuery(x.Beliefs, y.Beliefs, theta) && unifyQuery(x.Goals, y.Goals, theta)
	case *Send:
		y, ok := b.(*Send)
		return ok &&
			term.Unify(x.Receiver, y.Receiver, theta) &&
			term.Unify(x.Performative, y.Performative, theta) &&
			term.Unify(x.Content, y.Content, theta)
	case *Atomic:
		y, ok := b.(*Atomic)
		return ok && unifySeqs(x.Body, y.Body, theta)
	case *If:
		y, ok := b.(*If)
		return ok && unifyQuery(x.Cond, y.Cond, theta) &&
			unifySeqs(x.Then, y.Then, theta) && unifySeqs(x.Else, y.Else, theta)
	case *While:
		y, ok := b.(*While)
		return ok && unifyQuery(x.Cond, y.Cond, theta) && unifySeqs(x.Body, y.Body, theta)
	case *PlanVar:
		y, ok := b.(*PlanVar)
		return ok && x.Name == y.Name
	}
	return false
}

func unifySeqs(a, b []Node, theta *term.Subst) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !unifyNodes(a[i], b[i], theta) {
			return false
		}
	}
	return true
}

func unifyQuery(a, b query.Query, theta *term.Subst) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case query.True:
		_, ok := b.(query.True)
		return ok
	case query.Literal:
		y, ok := b.(query.Literal)
		return ok && x.Positive == y.Positive && term.Unify(x.Atom, y.Atom, theta)
	case query.And:
		y, ok := b.(query.And)
		return ok && unifyParts(x.Parts, y.Parts, theta)
	case query.Or:
		y, ok := b.(query.Or)
		return ok && unifyParts(x.Parts, y.Parts, theta)
	case query.Not:
		y, ok := b.(query.Not)
		return ok && unifyQuery(x.Q, y.Q, theta)
	}
	return false
}

func unifyParts(a, b []query.Query, theta *term.Subst) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !unifyQuery(a[i], b[i], theta) {
			return false
		}
	}
	return true
}
