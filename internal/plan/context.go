// Package plan implements executable plans: ordered sequences of plan nodes,
// their one-step execution, and the structural matching used by plan repair.
package plan

import (
	"errors"
	"time"

	"bdicore/internal/belief"
	"bdicore/internal/goal"
	"bdicore/internal/query"
	"bdicore/internal/term"
)

// ErrActionFailed marks a plan failure. Failed plans become internal events.
var ErrActionFailed = errors.New("action failed")

// Context is what executing nodes need from the owning module.
type Context interface {
	// Err is non-nil once the module is being torn down.
	Err() error
	Now() time.Time

	Beliefs() belief.Store
	// UpdateBeliefs asserts positive and retracts negative literals.
	UpdateBeliefs(lits ...query.Literal) error
	// BeliefUpdate runs a declared belief update action.
	BeliefUpdate(action term.Term) error
	// Call expands an abstract action into the body of the selected event
	// rule, freshened against taken.
	Call(call term.Term, taken []string) ([]Node, error)
	// Goals resolves the goal base and beliefs of a module; "" is the
	// calling module.
	Goals(module string) (*goal.Base, belief.Store, error)

	Perform(env string, action term.Term) (term.Term, error)
	Send(receiver, performative string, content term.Term) error
}
