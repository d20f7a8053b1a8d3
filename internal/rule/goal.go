package rule

import (
	"bdicore/internal/goal"
	"bdicore/internal/logging"
	"bdicore/internal/plan"
	"bdicore/internal/query"
	"bdicore/internal/term"
)

// GoalBase holds the goal rules of a module in declaration order.
type GoalBase struct {
	rules []*GoalRule
	eval  *Evaluator
}

// NewGoalBase creates a goal rule base. Rules without an ID get "pg<n>".
func NewGoalBase(eval *Evaluator, rules ...*GoalRule) *GoalBase {
	all := make([]Rule, len(rules))
	for i, r := range rules {
		all[i] = r
	}
	fillIDs(all)
	return &GoalBase{rules: rules, eval: eval}
}

// Rules returns the rules in declaration order.
func (b *GoalBase) Rules() []*GoalRule { return b.rules }

// Generate applies every rule once, in declaration order, adding the new
// plans to plans and returning them. With onlyOne it stops after the first
// plan.
func (b *GoalBase) Generate(goals *goal.Base, plans *plan.Base, onlyOne bool) []*plan.Seq {
	var created []*plan.Seq
	for _, r := range b.rules {
		sel, g := b.Select(r, goals, plans)
		if sel.Status != Selected {
			continue
		}
		s := plan.NewSeq(sel.Body...)
		s.Origin = &plan.Activation{RuleID: r.ID, Goal: g, Applied: sel.Subst}
		if r.Head != nil {
			s.Origin.Head = query.Rename(r.Head, sel.Renaming)
		}
		plans.Add(s)
		created = append(created, s)
		logging.RulesDebug("goal rule %s created plan %s: %s", r.ID, s.ID, s)
		if onlyOne {
			break
		}
	}
	return created
}

// Select tries one rule against the goal base. A reactive rule is skipped
// while a plan it produced is still active. A goal rule takes the first goal
// match, in goal order, that is not yet believed, is not already pursued by
// a plan of the same rule, and whose guard holds.
func (b *GoalBase) Select(r *GoalRule, goals *goal.Base, plans *plan.Base) (Selection, goal.Goal) {
	kind := string(KindGoal)
	ren := term.Fresh(r.Vars(), nil)

	if r.Reactive() {
		if plans.RuleOccurs(r.ID) {
			b.eval.Metrics.Selected(kind, NoMatch.String())
			return Selection{Status: NoMatch}, nil
		}
		s := term.NewSubst()
		if !b.eval.Guard(r, ren, s) {
			b.eval.Metrics.Selected(kind, NoMatch.String())
			return Selection{Status: NoMatch}, nil
		}
		b.eval.Metrics.Selected(kind, Selected.String())
		return b.selected(r, ren, s), nil
	}

	head := query.Rename(r.Head, ren)
	matches := goals.PossibleSubstitutions(head)
	if len(matches) == 0 {
		b.eval.Metrics.Selected(kind, NotDefined.String())
		return Selection{Status: NotDefined}, nil
	}
	for _, m := range matches {
		s := m.Subst.Clone()
		if b.eval.Beliefs.Query(query.Apply(head, s), term.NewSubst()) {
			continue
		}
		if plans.SameRuleActiveForSameGoal(r.ID, head, s) {
			continue
		}
		if !b.eval.Guard(r, ren, s) {
			continue
		}
		b.eval.Metrics.Selected(kind, Selected.String())
		return b.selected(r, ren, s), m.Goal
	}
	b.eval.Metrics.Selected(kind, NoMatch.String())
	return Selection{Status: NoMatch}, nil
}

func (b *GoalBase) selected(r *GoalRule, ren term.Renaming, s *term.Subst) Selection {
	return Selection{
		Status:   Selected,
		Rule:     r,
		Subst:    s,
		Renaming: ren,
		Body:     instantiate(renameNodes(r.Body, ren), s),
	}
}
