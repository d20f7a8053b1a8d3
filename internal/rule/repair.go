package rule

import (
	"bdicore/internal/logging"
	"bdicore/internal/plan"
	"bdicore/internal/term"
)

// Repair is the result of applying a repair rule to a failed plan.
type Repair struct {
	RuleID string
	// Replacement is the instantiated rule body that takes the place of the
	// matched prefix.
	Replacement []plan.Node
	// Remainder is the unmatched tail of the plan. Bindings the match made
	// for plan variables are not applied to it.
	Remainder   []plan.Node
	Theta       *term.Subst
	PlanSubst   plan.PlanSubst
}

// Nodes returns the repaired plan.
func (r Repair) Nodes() []plan.Node {
	return append(append([]plan.Node(nil), r.Replacement...), r.Remainder...)
}

// RepairBase holds the repair rules of a module in declaration order.
type RepairBase struct {
	rules []*RepairRule
	eval  *Evaluator
}

// NewRepairBase creates a repair rule base. Rules without an ID get "pr<n>".
func NewRepairBase(eval *Evaluator, rules ...*RepairRule) *RepairBase {
	all := make([]Rule, len(rules))
	for i, r := range rules {
		all[i] = r
	}
	fillIDs(all)
	return &RepairBase{rules: rules, eval: eval}
}

// Rules returns the rules in declaration order.
func (b *RepairBase) Rules() []*RepairRule { return b.rules }

// Repair tries one rule on p without changing it. The rule is freshened
// against the plan's variables, its head is matched against the leading
// nodes of the plan, with atomic blocks opaque unless ignoreChunks, and the
// guard is tested under the resulting substitution. matched reports whether
// the head matched at all.
func (b *RepairBase) Repair(p *plan.Seq, r *RepairRule, ignoreChunks bool) (res Repair, matched, ok bool) {
	ren := term.Fresh(r.Vars(), term.NewVarSet(p.Vars()...))
	head := renameNodes(r.Head, ren)
	nodes := p.Nodes()
	if ignoreChunks {
		head = plan.Unchunk(head)
		nodes = plan.Unchunk(nodes)
	}

	plan.MatchPrefix(head, nodes, term.NewSubst(), func(m plan.Match) bool {
		matched = true
		s := m.Theta.Clone()
		if !b.eval.Guard(r, ren, s) {
			return false
		}
		res = Repair{
			RuleID:      r.ID,
			Replacement: plan.Splice(renameNodes(r.Body, ren), m.Plan, s),
			Remainder:   m.Rest,
			Theta:       s,
			PlanSubst:   m.Plan,
		}
		ok = true
		return true
	})
	return res, matched, ok
}

// Revise repairs p in place with the first applicable rule. Each rule is
// tried first respecting atomic blocks and then ignoring them.
func (b *RepairBase) Revise(p *plan.Seq) (Repair, Status) {
	status := NotDefined
	for _, r := range b.rules {
		for _, ignoreChunks := range []bool{false, true} {
			res, matched, ok := b.Repair(p, r, ignoreChunks)
			if matched && status == NotDefined {
				status = NoMatch
			}
			if !ok {
				continue
			}
			logging.PlansDebug("plan %s repaired by %s (ignore chunks: %v)", p.ID, r.ID, ignoreChunks)
			p.SetNodes(res.Nodes())
			b.eval.Metrics.Selected(string(KindRepair), Selected.String())
			return res, Selected
		}
	}
	b.eval.Metrics.Selected(string(KindRepair), status.String())
	return Repair{}, status
}
