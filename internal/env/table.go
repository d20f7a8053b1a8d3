// Package env provides environments: explicit capability tables mapping
// external action names to handlers, validated when the handler is
// registered. Environments can also post events to the agents that
// subscribe to them.
//
// Architecture:
//
//	plan @env(action) → Registry.Get(env) → Table.Perform(agent, action) → Handler
package env

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bdicore/internal/logging"
	"bdicore/internal/plan"
	"bdicore/internal/term"
)

// Handler performs an action for agent. args are the ground arguments of
// the action term.
type Handler func(ctx context.Context, agent string, args []term.Term) (term.Term, error)

// Action is one registered capability.
type Action struct {
	// Name and Arity identify the action term.
	Name  string
	Arity int

	// Description explains what the action does.
	Description string

	Handler Handler
}

// Key returns name/arity.
func (a *Action) Key() string { return fmt.Sprintf("%s/%d", a.Name, a.Arity) }

// Validate checks that the action can be registered.
func (a *Action) Validate() error {
	if a.Name == "" {
		return ErrActionNameEmpty
	}
	if a.Arity < 0 {
		return fmt.Errorf("action %s: negative arity %d", a.Name, a.Arity)
	}
	if a.Handler == nil {
		return fmt.Errorf("%w: %s", ErrHandlerNil, a.Key())
	}
	return nil
}

// Table is an environment: the actions it supports and the agents listening
// to its events. It is safe for concurrent use; actions of one environment
// are performed one at a time.
type Table struct {
	name string

	mu      sync.RWMutex
	actions map[string]*Action

	perform sync.Mutex

	subMu       sync.RWMutex
	subscribers map[string]func(term.Term)
}

// NewTable creates an empty environment.
func NewTable(name string) *Table {
	return &Table{
		name:        name,
		actions:     make(map[string]*Action),
		subscribers: make(map[string]func(term.Term)),
	}
}

// Name returns the environment name.
func (t *Table) Name() string { return t.name }

// Register adds an action.
// Returns an error if the action is invalid or already registered.
func (t *Table) Register(a *Action) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid action: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.actions[a.Key()]; exists {
		return fmt.Errorf("%w: %s", ErrActionAlreadyRegistered, a.Key())
	}
	t.actions[a.Key()] = a

	logging.EnvDebug("env %s: registered action %s", t.name, a.Key())
	return nil
}

// MustRegister registers an action and panics on error.
// Use this for static registration at setup time.
func (t *Table) MustRegister(a *Action) {
	if err := t.Register(a); err != nil {
		panic(fmt.Sprintf("failed to register action %s: %v", a.Key(), err))
	}
}

// Get returns the action registered for name/arity, or nil.
func (t *Table) Get(name string, arity int) *Action {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.actions[fmt.Sprintf("%s/%d", name, arity)]
}

// Names returns the registered name/arity keys, sorted.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.actions))
	for k := range t.actions {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered actions.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.actions)
}

// Perform runs action for agent. Every failure wraps plan.ErrActionFailed.
func (t *Table) Perform(ctx context.Context, agent string, action term.Term) (term.Term, error) {
	if err := term.RequireGround(action); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", plan.ErrActionFailed, action, err)
	}
	name, arity, ok := term.Functor(action)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an action", plan.ErrActionFailed, action)
	}
	a := t.Get(name, arity)
	if a == nil {
		return nil, fmt.Errorf("%w: %w: %s/%d in %s", plan.ErrActionFailed, ErrActionNotFound, name, arity, t.name)
	}

	t.perform.Lock()
	defer t.perform.Unlock()

	start := time.Now()
	logging.EnvDebug("env %s: %s performs %s", t.name, agent, action)
	res, err := a.Handler(ctx, agent, term.Args(action))
	logging.EnvDebug("env %s: %s completed in %v (success=%v)", t.name, a.Key(), time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", plan.ErrActionFailed, action, err)
	}
	return res, nil
}

// Subscribe registers fn to receive the events posted to agent. A second
// subscription for the same agent replaces the first.
func (t *Table) Subscribe(agent string, fn func(term.Term)) {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	t.subscribers[agent] = fn
}

// Unsubscribe removes agent's subscription.
func (t *Table) Unsubscribe(agent string) {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	delete(t.subscribers, agent)
}

// Emit posts event to the listed agents, or to every subscriber when none
// are listed. It returns the number of deliveries.
func (t *Table) Emit(event term.Term, agents ...string) int {
	t.subMu.RLock()
	var targets []func(term.Term)
	if len(agents) == 0 {
		names := make([]string, 0, len(t.subscribers))
		for n := range t.subscribers {
			names = append(names, n)
		}
		sort.Strings(names)
		agents = names
	}
	for _, a := range agents {
		if fn, ok := t.subscribers[a]; ok {
			targets = append(targets, fn)
		}
	}
	t.subMu.RUnlock()

	for _, fn := range targets {
		fn(event)
	}
	return len(targets)
}
