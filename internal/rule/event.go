package rule

import (
	"bdicore/internal/logging"
	"bdicore/internal/term"
)

// EventBase holds the event rules of a module in declaration order.
type EventBase struct {
	rules []*EventRule
	eval  *Evaluator
}

// NewEventBase creates an event rule base. Rules without an ID get "pc<n>".
func NewEventBase(eval *Evaluator, rules ...*EventRule) *EventBase {
	all := make([]Rule, len(rules))
	for i, r := range rules {
		all[i] = r
	}
	fillIDs(all)
	return &EventBase{rules: rules, eval: eval}
}

// Rules returns the rules in declaration order.
func (b *EventBase) Rules() []*EventRule { return b.rules }

// Select returns the first rule whose head unifies with stimulus and whose
// guard holds. Rule variables are freshened against the variables of the
// stimulus, of theta, and taken.
func (b *EventBase) Select(stimulus term.Term, theta *term.Subst, taken ...string) Selection {
	avoid := term.NewVarSet(term.Vars(stimulus)...)
	avoid.Add(taken...)
	avoid.Add(theta.Keys()...)

	sel := Selection{Status: NotDefined}
	for _, r := range b.rules {
		ren := term.Fresh(r.Vars(), avoid)
		s := theta.Clone()
		if !term.Unify(stimulus, term.Rename(r.Head, ren), s) {
			continue
		}
		sel.Status = NoMatch
		if !b.eval.Guard(r, ren, s) {
			logging.RulesDebug("event rule %s: guard failed for %s", r.ID, stimulus)
			continue
		}
		sel = Selection{
			Status:   Selected,
			Rule:     r,
			Subst:    s,
			Renaming: ren,
			Body:     instantiate(renameNodes(r.Body, ren), s),
		}
		break
	}
	b.eval.Metrics.Selected(string(KindEvent), sel.Status.String())
	logging.RulesDebug("event selection for %s: %s", stimulus, sel.Status)
	return sel
}
