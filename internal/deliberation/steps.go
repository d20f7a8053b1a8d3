// Package deliberation implements the reasoning cycle of one module. A tick
// runs, in order: process messages, process external events, process
// internal events (plan repair), apply goal rules, execute plans.
//
// Failures caused by one stimulus are recorded in the step's Result and do
// not stop the tick. Only cancellation and module deactivation do.
package deliberation

import (
	"context"
	"errors"
	"fmt"

	"bdicore/internal/agent"
	"bdicore/internal/logging"
	"bdicore/internal/metrics"
	"bdicore/internal/plan"
	"bdicore/internal/rule"
	"bdicore/internal/term"
)

// Step names.
const (
	StepMessages       = "process_messages"
	StepExternalEvents = "process_external_events"
	StepInternalEvents = "process_internal_events"
	StepGoalRules      = "apply_goal_rules"
	StepExecutePlans   = "execute_plans"
)

// Failure is one stimulus that could not be handled.
type Failure struct {
	Stimulus string
	Err      error
}

func (f Failure) String() string { return fmt.Sprintf("%s: %v", f.Stimulus, f.Err) }

// Result records what one step did.
type Result struct {
	Step string
	// Processed lists the stimuli that produced or repaired a plan.
	Processed []string
	// Unprocessed lists the stimuli no rule applied to.
	Unprocessed []string
	// Plans lists the IDs of plans created, repaired or executed.
	Plans    []string
	Failures []Failure
}

// Busy reports whether the step changed anything.
func (r Result) Busy() bool {
	return len(r.Processed) > 0 || len(r.Plans) > 0 || len(r.Failures) > 0
}

// Step is one phase of the cycle. The error is non-nil only when the tick
// must stop.
type Step interface {
	Name() string
	Execute(ctx context.Context, m *agent.Module) (Result, error)
}

// DefaultSteps returns the steps of a tick in order.
func DefaultSteps() []Step {
	return []Step{ProcessMessages{}, ProcessExternalEvents{}, ProcessInternalEvents{}, ApplyGoalRules{}, ExecutePlans{}}
}

func halted(ctx context.Context, m *agent.Module) error {
	if m.Deactivated() {
		return agent.ErrModuleDeactivated
	}
	return ctx.Err()
}

// react selects the event rule for stimulus and adds the resulting plan.
func react(m *agent.Module, stimulus term.Term, res *Result) {
	sel := m.EventRules().Select(stimulus, term.NewSubst())
	if sel.Status != rule.Selected {
		res.Unprocessed = append(res.Unprocessed, stimulus.String())
		logging.DeliberationDebug("module %s: no rule for %s (%s)", m.Name(), stimulus, sel.Status)
		return
	}
	p := plan.NewSeq(sel.Body...)
	p.Origin = sel.Activation()
	m.Plans().Add(p)
	m.Metrics().Plan(m.Name(), metrics.PlanCreated)
	res.Processed = append(res.Processed, stimulus.String())
	res.Plans = append(res.Plans, p.ID)
	logging.DeliberationDebug("module %s: %s -> plan %s: %s", m.Name(), stimulus, p.ID, p)
}

// ProcessMessages turns every received message into a plan.
type ProcessMessages struct{}

func (ProcessMessages) Name() string { return StepMessages }

func (s ProcessMessages) Execute(ctx context.Context, m *agent.Module) (Result, error) {
	res := Result{Step: s.Name()}
	mb := m.Mailbox()
	if mb == nil {
		return res, nil
	}
	for {
		if err := halted(ctx, m); err != nil {
			return res, err
		}
		msg, ok := mb.Receive(m.Name())
		if !ok {
			return res, nil
		}
		react(m, msg.Event(), &res)
	}
}

// ProcessExternalEvents turns every queued environment event into a plan.
type ProcessExternalEvents struct{}

func (ProcessExternalEvents) Name() string { return StepExternalEvents }

func (s ProcessExternalEvents) Execute(ctx context.Context, m *agent.Module) (Result, error) {
	res := Result{Step: s.Name()}
	for _, e := range m.TakeEvents() {
		if err := halted(ctx, m); err != nil {
			return res, err
		}
		react(m, e, &res)
	}
	return res, nil
}

// ProcessInternalEvents repairs the plans that failed during the previous
// tick. An unrepaired plan stays in the plan base and retries its failed
// node.
type ProcessInternalEvents struct{}

func (ProcessInternalEvents) Name() string { return StepInternalEvents }

func (s ProcessInternalEvents) Execute(ctx context.Context, m *agent.Module) (Result, error) {
	res := Result{Step: s.Name()}
	for _, id := range m.TakeFailed() {
		if err := halted(ctx, m); err != nil {
			return res, err
		}
		p, ok := m.Plans().Get(id)
		if !ok {
			continue
		}
		repair, status := m.RepairRules().Revise(p)
		if status != rule.Selected {
			res.Unprocessed = append(res.Unprocessed, id)
			continue
		}
		m.Metrics().Plan(m.Name(), metrics.PlanRepaired)
		res.Processed = append(res.Processed, id)
		res.Plans = append(res.Plans, id)
		logging.Deliberation("module %s: plan %s repaired by %s: %s", m.Name(), id, repair.RuleID, p)
	}
	return res, nil
}

// ApplyGoalRules creates plans for the goals the module pursues.
type ApplyGoalRules struct{}

func (ApplyGoalRules) Name() string { return StepGoalRules }

func (s ApplyGoalRules) Execute(ctx context.Context, m *agent.Module) (Result, error) {
	res := Result{Step: s.Name()}
	if err := halted(ctx, m); err != nil {
		return res, err
	}
	for _, p := range m.GoalRules().Generate(m.GoalBase(), m.Plans(), m.Options().OnePlanPerTick) {
		m.Metrics().Plan(m.Name(), metrics.PlanCreated)
		res.Plans = append(res.Plans, p.ID)
		if p.Origin != nil && p.Origin.Goal != nil {
			res.Processed = append(res.Processed, p.Origin.Goal.String())
		}
	}
	return res, nil
}

// ExecutePlans executes one node of every plan, or of the first plan only
// in single-step mode. Plans whose goal is no longer pursued are dropped
// unexecuted.
type ExecutePlans struct{}

func (ExecutePlans) Name() string { return StepExecutePlans }

func (s ExecutePlans) Execute(ctx context.Context, m *agent.Module) (Result, error) {
	res := Result{Step: s.Name()}
	plans := m.Plans().Plans()
	if m.Options().SingleStep && len(plans) > 1 {
		plans = plans[:1]
	}
	exec := m.Exec(ctx)
	for _, p := range plans {
		if err := halted(ctx, m); err != nil {
			return res, err
		}
		if p.Origin != nil && p.Origin.Goal != nil && !m.GoalBase().Contains(p.Origin.Goal) {
			m.Plans().Remove(p.ID)
			m.Metrics().Plan(m.Name(), metrics.PlanDropped)
			logging.DeliberationDebug("module %s: goal %s gone, plan %s dropped", m.Name(), p.Origin.Goal, p.ID)
			continue
		}

		err := p.Execute(exec)
		switch {
		case errors.Is(err, plan.ErrActionFailed):
			m.Fail(p.ID)
			m.Metrics().Plan(m.Name(), metrics.PlanFailed)
			res.Failures = append(res.Failures, Failure{Stimulus: p.ID, Err: err})
			logging.Get(logging.CategoryPlans).Warn("module %s: plan %s failed: %v", m.Name(), p.ID, err)
		case err != nil:
			return res, err
		}
		res.Plans = append(res.Plans, p.ID)
		if p.Empty() {
			m.Plans().Remove(p.ID)
			m.Metrics().Plan(m.Name(), metrics.PlanCompleted)
		}
	}
	return res, nil
}
