package deliberation

import (
	"context"
	"time"

	"bdicore/internal/agent"
	"bdicore/internal/logging"
)

// TickResult records one full tick.
type TickResult struct {
	Tick     int
	Steps    []Result
	Duration time.Duration
}

// Busy reports whether some step changed anything.
func (t TickResult) Busy() bool {
	for _, r := range t.Steps {
		if r.Busy() {
			return true
		}
	}
	return false
}

// Failures returns the failures of every step.
func (t TickResult) Failures() []Failure {
	var out []Failure
	for _, r := range t.Steps {
		out = append(out, r.Failures...)
	}
	return out
}

// Cycle drives one module. It must be used from a single goroutine.
type Cycle struct {
	module *agent.Module
	steps  []Step
	ticks  int
}

// New creates a cycle running steps over m, DefaultSteps when none are
// given.
func New(m *agent.Module, steps ...Step) *Cycle {
	if len(steps) == 0 {
		steps = DefaultSteps()
	}
	return &Cycle{module: m, steps: steps}
}

// Module returns the driven module.
func (c *Cycle) Module() *agent.Module { return c.module }

// Ticks returns the number of ticks run so far.
func (c *Cycle) Ticks() int { return c.ticks }

// Tick runs every step once. It stops early, returning the error, when ctx
// is cancelled or the module is deactivated.
func (c *Cycle) Tick(ctx context.Context) (out TickResult, err error) {
	c.ticks++
	start := time.Now()
	out.Tick = c.ticks
	defer func() {
		out.Duration = time.Since(start)
		c.module.Metrics().ObserveTick(c.module.Name(), out.Duration)
	}()

	for _, step := range c.steps {
		if err = halted(ctx, c.module); err != nil {
			logging.Deliberation("module %s: tick %d halted before %s: %v", c.module.Name(), c.ticks, step.Name(), err)
			return out, err
		}
		var res Result
		res, err = step.Execute(ctx, c.module)
		out.Steps = append(out.Steps, res)
		if err != nil {
			logging.Deliberation("module %s: tick %d stopped in %s: %v", c.module.Name(), c.ticks, step.Name(), err)
			return out, err
		}
	}
	logging.DeliberationDebug("module %s: tick %d done (busy=%v, plans=%d)",
		c.module.Name(), c.ticks, out.Busy(), c.module.Plans().Len())
	return out, nil
}
