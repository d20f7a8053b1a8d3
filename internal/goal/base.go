package goal

import (
	"fmt"
	"sync"

	"bdicore/internal/belief"
	"bdicore/internal/logging"
	"bdicore/internal/query"
	"bdicore/internal/term"
)

// Match is one way a goal query holds: the goal it holds in and the
// substitution.
type Match struct {
	Goal  Goal
	Subst *term.Subst
}

// Base is the goal base. It is the one module resource other modules may
// read and change, so every method is synchronized.
type Base struct {
	mu    sync.RWMutex
	goals []Goal
}

// NewBase creates a goal base holding goals in order.
func NewBase(goals ...Goal) *Base {
	return &Base{goals: append([]Goal(nil), goals...)}
}

// Goals returns a snapshot of the goals in order.
func (b *Base) Goals() []Goal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Goal(nil), b.goals...)
}

// Len returns the number of goals.
func (b *Base) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.goals)
}

// Query proves q against the goals in order and returns the first solution.
// All positive literals of a conjunction must hold in the same goal.
func (b *Base) Query(q query.Query) (*term.Subst, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, g := range b.goals {
		var found *term.Subst
		g.Entails(q, term.NewSubst(), func(s *term.Subst) bool {
			found = s
			return true
		})
		if found != nil {
			return found, true
		}
	}
	return nil, false
}

// PossibleSubstitutions returns every solution of head across all goals,
// ordered by goal then by solution. Duplicate substitutions for one goal are
// dropped.
func (b *Base) PossibleSubstitutions(head query.Query) []Match {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Match
	for _, g := range b.goals {
		seen := make(map[string]bool)
		g.Entails(head, term.NewSubst(), func(s *term.Subst) bool {
			key := s.SortedString()
			if !seen[key] {
				seen[key] = true
				out = append(out, Match{Goal: g, Subst: s})
			}
			return false
		})
	}
	return out
}

// Contains reports whether an equal goal is present.
func (b *Base) Contains(g Goal) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.indexLocked(g) >= 0
}

func (b *Base) indexLocked(g Goal) int {
	for i, h := range b.goals {
		if h.Equal(g) {
			return i
		}
	}
	return -1
}

// AssertGoal appends g. It reports false, without change, when g is already
// a goal or already believed.
func (b *Base) AssertGoal(g Goal, beliefs belief.Store) (bool, error) {
	return b.adopt(g, beliefs, false)
}

// AssertGoalHead is AssertGoal but puts g first.
func (b *Base) AssertGoalHead(g Goal, beliefs belief.Store) (bool, error) {
	return b.adopt(g, beliefs, true)
}

func (b *Base) adopt(g Goal, beliefs belief.Store, head bool) (bool, error) {
	if !g.Ground() {
		return false, fmt.Errorf("adopt %s: %w", g, term.ErrUnboundVariable)
	}
	if beliefs != nil && beliefs.Query(g.Query(), term.NewSubst()) {
		logging.GoalsDebug("goal %s already believed, not adopted", g)
		return false, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.indexLocked(g) >= 0 {
		return false, nil
	}
	if head {
		b.goals = append([]Goal{g}, b.goals...)
	} else {
		b.goals = append(b.goals, g)
	}
	logging.GoalsDebug("adopted goal %s", g)
	return true, nil
}

// DropGoal removes goals equal to g.
func (b *Base) DropGoal(g Goal) int {
	return b.dropWhere(func(h Goal) bool { return h.Equal(g) })
}

// DropSubGoals removes goals whose atoms all occur in g.
func (b *Base) DropSubGoals(g Goal) int {
	return b.dropWhere(func(h Goal) bool { return g.Contains(h) })
}

// DropSuperGoals removes goals containing every atom of g.
func (b *Base) DropSuperGoals(g Goal) int {
	return b.dropWhere(func(h Goal) bool { return h.Contains(g) })
}

func (b *Base) dropWhere(match func(Goal) bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.goals[:0:0]
	dropped := 0
	for _, h := range b.goals {
		if match(h) {
			dropped++
			logging.GoalsDebug("dropped goal %s", h)
			continue
		}
		kept = append(kept, h)
	}
	b.goals = kept
	return dropped
}

// RemoveSatisfied removes every goal the beliefs now entail and returns them.
func (b *Base) RemoveSatisfied(beliefs belief.Store) []Goal {
	goals := b.Goals()
	var reached []Goal
	for _, g := range goals {
		if beliefs.Query(g.Query(), term.NewSubst()) {
			reached = append(reached, g)
		}
	}
	if len(reached) == 0 {
		return nil
	}
	b.dropWhere(func(h Goal) bool {
		for _, r := range reached {
			if h.Equal(r) {
				return true
			}
		}
		return false
	})
	return reached
}
