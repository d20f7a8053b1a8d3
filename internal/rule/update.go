package rule

import (
	"bdicore/internal/logging"
	"bdicore/internal/query"
	"bdicore/internal/term"
)

// UpdateBase holds the belief update specifications of a module.
type UpdateBase struct {
	updates []*BeliefUpdate
	eval    *Evaluator
}

// NewUpdateBase creates an update base. Updates without an ID get "bu<n>".
func NewUpdateBase(eval *Evaluator, updates ...*BeliefUpdate) *UpdateBase {
	all := make([]Rule, len(updates))
	for i, u := range updates {
		all[i] = u
	}
	fillIDs(all)
	return &UpdateBase{updates: updates, eval: eval}
}

// Updates returns the belief updates in declaration order.
func (b *UpdateBase) Updates() []*BeliefUpdate { return b.updates }

// Defines reports whether some specification declares an action with the
// name and arity of action.
func (b *UpdateBase) Defines(action term.Term) bool {
	name, arity, ok := term.Functor(action)
	if !ok {
		return false
	}
	for _, u := range b.updates {
		if n, a, _ := term.Functor(u.Action); n == name && a == arity {
			return true
		}
	}
	return false
}

// Select returns the first specification whose action unifies with action
// and whose precondition holds, with its postcondition instantiated.
func (b *UpdateBase) Select(action term.Term, theta *term.Subst) Selection {
	avoid := term.NewVarSet(term.Vars(action)...)
	avoid.Add(theta.Keys()...)

	sel := Selection{Status: NotDefined}
	for _, u := range b.updates {
		ren := term.Fresh(u.Vars(), avoid)
		s := theta.Clone()
		if !term.Unify(action, term.Rename(u.Action, ren), s) {
			continue
		}
		sel.Status = NoMatch
		if !b.eval.Guard(u, ren, s) {
			continue
		}
		post := make([]query.Literal, len(u.Post))
		for i, l := range u.Post {
			post[i] = query.Literal{Positive: l.Positive, Atom: term.Apply(term.Rename(l.Atom, ren), s)}
		}
		sel = Selection{Status: Selected, Rule: u, Subst: s, Renaming: ren, Post: post}
		break
	}
	b.eval.Metrics.Selected(string(KindUpdate), sel.Status.String())
	logging.RulesDebug("belief update selection for %s: %s", action, sel.Status)
	return sel
}
