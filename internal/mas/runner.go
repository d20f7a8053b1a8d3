package mas

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"bdicore/internal/agent"
	"bdicore/internal/config"
	"bdicore/internal/deliberation"
	"bdicore/internal/logging"
)

// RunnerOptions configure how often and how long modules tick.
type RunnerOptions struct {
	// TickInterval paces each module; 0 ticks as fast as possible.
	TickInterval time.Duration
	Burst        int
	// MaxTicks stops each module after that many ticks; 0 runs until the
	// context ends.
	MaxTicks int
	// StopWhenIdle stops a module once a tick changed nothing and it has no
	// pending work.
	StopWhenIdle bool
}

// RunnerOptionsFromConfig maps the runner configuration.
func RunnerOptionsFromConfig(cfg *config.Config) RunnerOptions {
	return RunnerOptions{
		TickInterval: cfg.GetTickInterval(),
		Burst:        cfg.Runner.Burst,
		MaxTicks:     cfg.Runner.MaxTicks,
	}
}

// Runner drives every module of a registry, one goroutine per module.
type Runner struct {
	registry *Registry
	opts     RunnerOptions

	mu    sync.Mutex
	ticks map[string]int
}

// NewRunner creates a runner over the modules in reg.
func NewRunner(reg *Registry, opts RunnerOptions) *Runner {
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	return &Runner{registry: reg, opts: opts, ticks: make(map[string]int)}
}

// Ticks returns how many ticks each module ran.
func (r *Runner) Ticks() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.ticks))
	for k, v := range r.ticks {
		out[k] = v
	}
	return out
}

// Run ticks the modules until each stops. A module stops when the context
// ends, it is deactivated, it reaches MaxTicks, or it goes idle with
// StopWhenIdle. Other errors stop the whole system and are returned.
func (r *Runner) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for _, m := range r.registry.Modules() {
		m := m
		eg.Go(func() error {
			return r.drive(egCtx, m)
		})
	}
	err := eg.Wait()
	logging.Runner("runner stopped: %v", r.Ticks())
	return err
}

func (r *Runner) drive(ctx context.Context, m *agent.Module) error {
	limit := rate.Inf
	if r.opts.TickInterval > 0 {
		limit = rate.Every(r.opts.TickInterval)
	}
	limiter := rate.NewLimiter(limit, r.opts.Burst)
	cycle := deliberation.New(m)

	for r.opts.MaxTicks == 0 || cycle.Ticks() < r.opts.MaxTicks {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		res, err := cycle.Tick(ctx)
		r.mu.Lock()
		r.ticks[m.Name()] = cycle.Ticks()
		r.mu.Unlock()

		switch {
		case errors.Is(err, agent.ErrModuleDeactivated):
			logging.Runner("module %s deactivated after %d ticks", m.Name(), cycle.Ticks())
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case err != nil:
			return err
		}
		for _, f := range res.Failures() {
			logging.RunnerDebug("module %s tick %d: %s", m.Name(), res.Tick, f)
		}
		if r.opts.StopWhenIdle && !res.Busy() && m.Idle() {
			logging.Runner("module %s idle after %d ticks", m.Name(), cycle.Ticks())
			return nil
		}
	}
	return nil
}
