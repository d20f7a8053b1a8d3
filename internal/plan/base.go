package plan

import (
	"fmt"

	"bdicore/internal/goal"
	"bdicore/internal/query"
	"bdicore/internal/term"
)

// Base is the plan base of one module. It is only touched by the module's
// own deliberation cycle.
type Base struct {
	plans  []*Seq
	nextID int
}

// NewBase creates an empty plan base.
func NewBase() *Base { return &Base{} }

// Add appends s, assigning an ID when it has none.
func (b *Base) Add(s *Seq) *Seq {
	if s.ID == "" {
		b.nextID++
		s.ID = fmt.Sprintf("p%d", b.nextID)
	}
	b.plans = append(b.plans, s)
	return s
}

// Plans returns the plans in insertion order.
func (b *Base) Plans() []*Seq { return append([]*Seq(nil), b.plans...) }

// Len returns the number of plans.
func (b *Base) Len() int { return len(b.plans) }

// Get returns the plan with the given ID.
func (b *Base) Get(id string) (*Seq, bool) {
	for _, s := range b.plans {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Remove drops the plan with the given ID.
func (b *Base) Remove(id string) bool {
	for i, s := range b.plans {
		if s.ID == id {
			b.plans = append(b.plans[:i:i], b.plans[i+1:]...)
			return true
		}
	}
	return false
}

// RuleOccurs reports whether some plan was produced by the rule.
func (b *Base) RuleOccurs(ruleID string) bool {
	for _, s := range b.plans {
		if s.Origin != nil && s.Origin.RuleID == ruleID {
			return true
		}
	}
	return false
}

// SameRuleActiveForSameGoal reports whether a plan produced by ruleID with
// the same instantiated head is already in the base.
func (b *Base) SameRuleActiveForSameGoal(ruleID string, head query.Query, applied *term.Subst) bool {
	want := (&Activation{Head: head, Applied: applied}).AppliedHead()
	for _, s := range b.plans {
		if s.Origin != nil && s.Origin.RuleID == ruleID && s.Origin.AppliedHead() == want {
			return true
		}
	}
	return false
}

// WorkingOnGoal reports whether some plan works on g.
func (b *Base) WorkingOnGoal(g goal.Goal) bool {
	for _, s := range b.plans {
		if s.Origin != nil && s.Origin.Goal != nil && s.Origin.Goal.Equal(g) {
			return true
		}
	}
	return false
}
