// Package metrics exposes Prometheus instrumentation for the deliberation
// cycle: guard evaluations (queried or served from the inertia cache), rule
// selections, plan outcomes, inertia invalidations and tick latency.
//
// A Collector owns its registry so several modules or tests never collide on
// the global one. A nil *Collector is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "bdi"

// Guard evaluation sources.
const (
	SourceQueried = "queried"
	SourceCached  = "cached"
)

// Plan outcomes.
const (
	PlanCreated   = "created"
	PlanCompleted = "completed"
	PlanFailed    = "failed"
	PlanRepaired  = "repaired"
	PlanDropped   = "dropped"
)

// Collector holds the metrics of one process.
type Collector struct {
	registry *prometheus.Registry

	// GuardEvaluations counts guard checks.
	// Labels: kind (event, goal, repair, update), source (queried, cached)
	GuardEvaluations *prometheus.CounterVec

	// Selections counts rule selection results.
	// Labels: kind, outcome (selected, no_match, not_defined)
	Selections *prometheus.CounterVec

	// Plans counts plan lifecycle events.
	// Labels: module, outcome
	Plans *prometheus.CounterVec

	// Invalidations counts rules whose cached guard verdict was dropped.
	// Labels: predicate
	Invalidations *prometheus.CounterVec

	// TickDuration measures one full deliberation tick.
	// Labels: module
	TickDuration *prometheus.HistogramVec
}

// New creates a Collector registered on a fresh registry.
func New(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		GuardEvaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guard_evaluations_total",
				Help:      "Guard evaluations by rule kind and whether the belief store was queried",
			},
			[]string{"kind", "source"},
		),
		Selections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_selections_total",
				Help:      "Rule selection attempts by rule kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		Plans: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plans_total",
				Help:      "Plan lifecycle events by module and outcome",
			},
			[]string{"module", "outcome"},
		),
		Invalidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inertia_invalidations_total",
				Help:      "Rules whose cached guard verdict was invalidated, by updated predicate",
			},
			[]string{"predicate"},
		),
		TickDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tick_duration_seconds",
				Help:      "Duration of one deliberation tick",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"module"},
		),
	}
}

// Registry returns the registry the metrics are registered on.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// GuardEvaluated records one guard check.
func (c *Collector) GuardEvaluated(kind string, cached bool) {
	if c == nil {
		return
	}
	source := SourceQueried
	if cached {
		source = SourceCached
	}
	c.GuardEvaluations.WithLabelValues(kind, source).Inc()
}

// Selected records a selection outcome.
func (c *Collector) Selected(kind, outcome string) {
	if c == nil {
		return
	}
	c.Selections.WithLabelValues(kind, outcome).Inc()
}

// Plan records a plan lifecycle event.
func (c *Collector) Plan(module, outcome string) {
	if c == nil {
		return
	}
	c.Plans.WithLabelValues(module, outcome).Inc()
}

// Invalidated records n invalidated rules for predicate.
func (c *Collector) Invalidated(predicate string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.Invalidations.WithLabelValues(predicate).Add(float64(n))
}

// ObserveTick records the duration of one tick.
func (c *Collector) ObserveTick(module string, d time.Duration) {
	if c == nil {
		return
	}
	c.TickDuration.WithLabelValues(module).Observe(d.Seconds())
}
