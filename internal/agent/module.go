// Package agent holds the state of one agent module: its beliefs, goals and
// plans, its four rule bases, and the queues the deliberation cycle drains.
//
// A module is driven by a single goroutine. Only the goal base, the external
// event queue and the deactivation flag are touched from other goroutines.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"bdicore/internal/belief"
	"bdicore/internal/config"
	"bdicore/internal/env"
	"bdicore/internal/goal"
	"bdicore/internal/inertia"
	"bdicore/internal/logging"
	"bdicore/internal/messaging"
	"bdicore/internal/metrics"
	"bdicore/internal/plan"
	"bdicore/internal/query"
	"bdicore/internal/rule"
	"bdicore/internal/term"
)

var (
	// ErrModuleDeactivated aborts the execution of a module being torn down.
	ErrModuleDeactivated = errors.New("module deactivated")
	// ErrPrecondition is returned when no belief update precondition holds.
	ErrPrecondition = errors.New("precondition does not hold")
	// ErrNoMailbox is returned by Send on a module without a mailbox.
	ErrNoMailbox = errors.New("module has no mailbox")
)

// Resolver gives a module access to another module's goal base.
type Resolver interface {
	Resolve(caller, target string) (*Module, error)
}

// Options tune the deliberation of one module.
type Options struct {
	SingleStep     bool
	OnePlanPerTick bool
	BeliefInertia  bool
	Impure         []string
}

// OptionsFromConfig maps the engine configuration to module options.
func OptionsFromConfig(cfg config.EngineConfig) Options {
	return Options{
		SingleStep:     cfg.SingleStep,
		OnePlanPerTick: cfg.OnePlanPerTick,
		BeliefInertia:  cfg.BeliefInertia,
		Impure:         append([]string(nil), cfg.ImpurePredicates...),
	}
}

// DefaultOptions enables belief inertia with the default impure builtins.
func DefaultOptions() Options {
	return Options{BeliefInertia: true, Impure: inertia.DefaultImpure}
}

// Definition is the static content of a module.
type Definition struct {
	Name      string
	Beliefs   belief.Store
	Goals     []goal.Goal
	Plans     [][]plan.Node
	Events    []*rule.EventRule
	GoalRules []*rule.GoalRule
	Repairs   []*rule.RepairRule
	Updates   []*rule.BeliefUpdate
}

// Deps are the shared resources a module talks to. All are optional.
type Deps struct {
	Mailbox  *messaging.Mailbox
	Envs     *env.Registry
	Modules  Resolver
	Metrics  *metrics.Collector
	Clock    func() time.Time
	Environs []string // environments whose events the module receives
}

// Module is one running agent module.
type Module struct {
	name string
	opts Options

	beliefs belief.Store
	goals   *goal.Base
	plans   *plan.Base

	events    *rule.EventBase
	goalRules *rule.GoalBase
	repairs   *rule.RepairBase
	updates   *rule.UpdateBase
	all       []rule.Rule

	caches  *rule.Caches
	tracker *inertia.Tracker

	mailbox *messaging.Mailbox
	envs    *env.Registry
	modules Resolver
	metrics *metrics.Collector
	clock   func() time.Time
	environ []string

	eventsMu sync.Mutex
	external []term.Term

	failed      []string
	deactivated atomic.Bool
}

// New builds a module and runs the static inertia phase over its rules.
func New(def Definition, opts Options, deps Deps) (*Module, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("module name is empty")
	}
	beliefs := def.Beliefs
	if beliefs == nil {
		beliefs = belief.NewBase(belief.DefaultConfig())
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	m := &Module{
		name:    def.Name,
		opts:    opts,
		beliefs: beliefs,
		goals:   goal.NewBase(),
		plans:   plan.NewBase(),
		mailbox: deps.Mailbox,
		envs:    deps.Envs,
		modules: deps.Modules,
		metrics: deps.Metrics,
		clock:   clock,
		environ: append([]string(nil), deps.Environs...),
	}
	if opts.BeliefInertia {
		m.caches = rule.NewCaches()
	}
	for _, r := range def.Events {
		m.all = append(m.all, r)
	}
	for _, r := range def.GoalRules {
		m.all = append(m.all, r)
	}
	for _, r := range def.Repairs {
		m.all = append(m.all, r)
	}
	for _, u := range def.Updates {
		m.all = append(m.all, u)
	}
	if err := rule.AssignIDs(m.all); err != nil {
		return nil, fmt.Errorf("module %s: %w", def.Name, err)
	}
	eval := rule.NewEvaluator(beliefs, m.caches, deps.Metrics)
	m.events = rule.NewEventBase(eval, def.Events...)
	m.goalRules = rule.NewGoalBase(eval, def.GoalRules...)
	m.repairs = rule.NewRepairBase(eval, def.Repairs...)
	m.updates = rule.NewUpdateBase(eval, def.Updates...)
	m.Rebuild()

	for _, g := range def.Goals {
		if _, err := m.goals.AssertGoal(g, beliefs); err != nil {
			return nil, fmt.Errorf("module %s: goal %s: %w", def.Name, g, err)
		}
	}
	for _, nodes := range def.Plans {
		m.plans.Add(plan.NewSeq(nodes...))
	}
	if m.mailbox != nil {
		m.mailbox.Register(m.name)
	}
	for _, name := range m.environ {
		if err := m.subscribe(name); err != nil {
			return nil, err
		}
	}

	logging.Deliberation("module %s: %d rules, %d goals, %d plans",
		m.name, len(m.all), m.goals.Len(), m.plans.Len())
	return m, nil
}

// Rebuild reruns the static inertia phase and drops every cached verdict.
// Call it after the inference rules of the belief store change.
func (m *Module) Rebuild() {
	impure := m.opts.Impure
	if impure == nil {
		impure = inertia.DefaultImpure
	}
	inertia.Build(m.all, m.beliefs.InferenceRules(), impure)
	m.tracker = inertia.NewTracker(m.all, m.caches, m.metrics)
	if m.caches != nil {
		m.caches.Clear()
	}
}

func (m *Module) subscribe(name string) error {
	if m.envs == nil {
		return fmt.Errorf("module %s: %w: %s", m.name, env.ErrEnvironmentNotFound, name)
	}
	t, err := m.envs.Get(name)
	if err != nil {
		return fmt.Errorf("module %s: %w", m.name, err)
	}
	t.Subscribe(m.name, func(e term.Term) { m.PostEvent(name, e) })
	return nil
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Options returns the deliberation options.
func (m *Module) Options() Options { return m.opts }

// Beliefs returns the belief store.
func (m *Module) Beliefs() belief.Store { return m.beliefs }

// GoalBase returns the goal base.
func (m *Module) GoalBase() *goal.Base { return m.goals }

// Plans returns the plan base.
func (m *Module) Plans() *plan.Base { return m.plans }

// EventRules returns the event rule base.
func (m *Module) EventRules() *rule.EventBase { return m.events }

// GoalRules returns the goal rule base.
func (m *Module) GoalRules() *rule.GoalBase { return m.goalRules }

// RepairRules returns the repair rule base.
func (m *Module) RepairRules() *rule.RepairBase { return m.repairs }

// Rules returns every rule of the module: event, goal and repair rules and
// belief updates, in that order.
func (m *Module) Rules() []rule.Rule { return append([]rule.Rule(nil), m.all...) }

// Caches returns the guard caches, nil when belief inertia is off.
func (m *Module) Caches() *rule.Caches { return m.caches }

// Metrics returns the collector, possibly nil.
func (m *Module) Metrics() *metrics.Collector { return m.metrics }

// Mailbox returns the shared mailbox, possibly nil.
func (m *Module) Mailbox() *messaging.Mailbox { return m.mailbox }

// PostEvent queues an event from environment envName. It may be called from
// any goroutine.
func (m *Module) PostEvent(envName string, event term.Term) {
	m.eventsMu.Lock()
	m.external = append(m.external, term.Fn("event", event, term.Ident{Name: envName}))
	m.eventsMu.Unlock()
}

// TakeEvents returns and clears the queued external events.
func (m *Module) TakeEvents() []term.Term {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	out := m.external
	m.external = nil
	return out
}

// Fail records the failure of a plan; the next tick tries to repair it.
func (m *Module) Fail(planID string) {
	for _, id := range m.failed {
		if id == planID {
			return
		}
	}
	m.failed = append(m.failed, planID)
}

// TakeFailed returns and clears the failed plan IDs.
func (m *Module) TakeFailed() []string {
	out := m.failed
	m.failed = nil
	return out
}

// Deactivate marks the module as torn down. Plans in flight abort with
// ErrModuleDeactivated.
func (m *Module) Deactivate() {
	if m.deactivated.Swap(true) {
		return
	}
	for _, name := range m.environ {
		if t, err := m.envs.Get(name); err == nil {
			t.Unsubscribe(m.name)
		}
	}
	logging.Deliberation("module %s deactivated", m.name)
}

// Deactivated reports whether Deactivate was called.
func (m *Module) Deactivated() bool { return m.deactivated.Load() }

// Idle reports whether the module has nothing to do: no plans, no queued
// events, no failed plans and no messages.
func (m *Module) Idle() bool {
	if m.plans.Len() > 0 || len(m.failed) > 0 {
		return false
	}
	m.eventsMu.Lock()
	queued := len(m.external)
	m.eventsMu.Unlock()
	if queued > 0 {
		return false
	}
	return m.mailbox == nil || m.mailbox.Pending(m.name) == 0
}

// UpdateBeliefs asserts and retracts lits, invalidates the guard caches
// that depend on them and drops the goals the beliefs now satisfy.
func (m *Module) UpdateBeliefs(lits ...query.Literal) error {
	for _, l := range lits {
		if err := m.beliefs.Assert(l); err != nil {
			return fmt.Errorf("update %s: %w", l, err)
		}
		m.tracker.Updated(l)
		logging.BeliefsDebug("module %s: %s", m.name, l)
	}
	if reached := m.goals.RemoveSatisfied(m.beliefs); len(reached) > 0 {
		logging.GoalsDebug("module %s: goals reached %v", m.name, reached)
	}
	return nil
}

// BeliefUpdate executes a belief update action.
func (m *Module) BeliefUpdate(action term.Term) error {
	sel := m.updates.Select(action, term.NewSubst())
	switch sel.Status {
	case rule.NotDefined:
		return fmt.Errorf("%w: belief update %s", rule.ErrNoRuleDefined, action)
	case rule.NoMatch:
		return fmt.Errorf("%w: %s", ErrPrecondition, action)
	}
	for _, l := range sel.Post {
		if err := term.RequireGround(l.Atom); err != nil {
			return fmt.Errorf("postcondition of %s: %w", action, err)
		}
	}
	return m.UpdateBeliefs(sel.Post...)
}

// Call selects the event rule for an abstract action and returns its body.
func (m *Module) Call(call term.Term, taken []string) ([]plan.Node, error) {
	sel := m.events.Select(call, term.NewSubst(), taken...)
	switch sel.Status {
	case rule.NotDefined:
		return nil, fmt.Errorf("%w: %s", rule.ErrNoRuleDefined, call)
	case rule.NoMatch:
		return nil, fmt.Errorf("no applicable rule for %s", call)
	}
	return sel.Body, nil
}

// Goals resolves the goal base and beliefs of a module; "" and the module's
// own name are the module itself.
func (m *Module) Goals(module string) (*goal.Base, belief.Store, error) {
	if module == "" || module == m.name {
		return m.goals, m.beliefs, nil
	}
	if m.modules == nil {
		return nil, nil, fmt.Errorf("module %s cannot reach %s", m.name, module)
	}
	target, err := m.modules.Resolve(m.name, module)
	if err != nil {
		return nil, nil, err
	}
	return target.goals, target.beliefs, nil
}

// Send posts a message from this module.
func (m *Module) Send(receiver, performative string, content term.Term) error {
	if m.mailbox == nil {
		return ErrNoMailbox
	}
	_, err := m.mailbox.Post(m.name, receiver, performative, content)
	return err
}

// Perform runs an external action in the named environment.
func (m *Module) Perform(ctx context.Context, envName string, action term.Term) (term.Term, error) {
	if m.envs == nil {
		return nil, fmt.Errorf("%w: %w: %s", plan.ErrActionFailed, env.ErrEnvironmentNotFound, envName)
	}
	t, err := m.envs.Get(envName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", plan.ErrActionFailed, err)
	}
	return t.Perform(ctx, m.name, action)
}

// Exec returns the plan.Context that executes this module's plans under ctx.
func (m *Module) Exec(ctx context.Context) plan.Context {
	return &execution{Module: m, ctx: ctx}
}

type execution struct {
	*Module
	ctx context.Context
}

func (e *execution) Err() error {
	if e.Deactivated() {
		return ErrModuleDeactivated
	}
	return e.ctx.Err()
}

func (e *execution) Now() time.Time { return e.clock() }

func (e *execution) Perform(envName string, action term.Term) (term.Term, error) {
	return e.Module.Perform(e.ctx, envName, action)
}
