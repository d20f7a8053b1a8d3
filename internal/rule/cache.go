package rule

import (
	"sort"
	"strings"

	"bdicore/internal/belief"
	"bdicore/internal/logging"
	"bdicore/internal/metrics"
	"bdicore/internal/query"
	"bdicore/internal/term"
)

type verdict struct {
	ok bool
	// bindings of guard variables, by the rule's own variable names.
	bindings map[string]term.Term
}

// Cache holds the guard verdicts of one rule for the current validity
// epoch. Verdicts are keyed by the head substitution projected on the
// variables the head shares with the guard.
type Cache struct {
	Valid    bool
	verdicts map[string]verdict
}

// Len returns the number of cached verdicts.
func (c *Cache) Len() int { return len(c.verdicts) }

func (c *Cache) renew() {
	c.Valid = true
	c.verdicts = make(map[string]verdict)
}

// Caches is the inertia cache table of one module, keyed by rule ID.
type Caches struct {
	m map[string]*Cache
}

// NewCaches creates an empty table.
func NewCaches() *Caches { return &Caches{m: make(map[string]*Cache)} }

// Get returns the cache of a rule, creating an invalid one on first use.
func (c *Caches) Get(id string) *Cache {
	if e, ok := c.m[id]; ok {
		return e
	}
	e := &Cache{}
	c.m[id] = e
	return e
}

// Valid reports whether the rule holds a valid cache.
func (c *Caches) Valid(id string) bool {
	e, ok := c.m[id]
	return ok && e.Valid
}

// Invalidate marks the caches of ids invalid and returns how many were
// valid before.
func (c *Caches) Invalidate(ids ...string) int {
	n := 0
	for _, id := range ids {
		if e, ok := c.m[id]; ok && e.Valid {
			e.Valid = false
			e.verdicts = nil
			n++
		}
	}
	return n
}

// Clear drops every cache.
func (c *Caches) Clear() {
	c.m = make(map[string]*Cache)
}

// Evaluator evaluates rule guards against a belief store, reusing cached
// verdicts when belief inertia allows it.
type Evaluator struct {
	Beliefs belief.Store
	// Caches is nil when belief inertia is disabled.
	Caches  *Caches
	Metrics *metrics.Collector
}

// NewEvaluator creates an evaluator; caches may be nil.
func NewEvaluator(beliefs belief.Store, caches *Caches, m *metrics.Collector) *Evaluator {
	return &Evaluator{Beliefs: beliefs, Caches: caches, Metrics: m}
}

// Guard evaluates the guard of r, renamed by ren, under theta and extends
// theta with the guard's bindings on success.
func (e *Evaluator) Guard(r Rule, ren term.Renaming, theta *term.Subst) bool {
	m := r.Info()
	guard := query.Rename(r.GuardQuery(), ren)
	if e.Caches == nil || m.Excluded {
		return e.query(r.Kind(), guard, theta)
	}

	key, keyed := projection(m.Shared, ren, theta)
	c := e.Caches.Get(m.ID)
	if !c.Valid {
		c.renew()
	} else if v, hit := c.verdicts[key]; keyed && hit {
		e.Metrics.GuardEvaluated(string(r.Kind()), true)
		logging.InertiaDebug("rule %s: cached guard verdict %v for %q", m.ID, v.ok, key)
		if v.ok {
			for name, t := range v.bindings {
				if _, bound := theta.Get(ren.Name(name)); !bound {
					theta.Bind(ren.Name(name), t)
				}
			}
		}
		return v.ok
	}

	before := theta.Clone()
	ok := e.query(r.Kind(), guard, theta)
	if !keyed {
		return ok
	}
	v := verdict{ok: ok}
	if ok {
		var cacheable bool
		v.bindings, cacheable = guardBindings(r, ren, before, theta)
		if !cacheable {
			return ok
		}
	}
	c.verdicts[key] = v
	return ok
}

func (e *Evaluator) query(kind Kind, guard query.Query, theta *term.Subst) bool {
	e.Metrics.GuardEvaluated(string(kind), false)
	return e.Beliefs.Query(guard, theta)
}

// projection renders the values of the shared variables under theta. It
// reports false when one of them is not ground.
func projection(shared []string, ren term.Renaming, theta *term.Subst) (string, bool) {
	if len(shared) == 0 {
		return "", true
	}
	parts := make([]string, len(shared))
	for i, v := range shared {
		t := term.Apply(term.Var{Name: ren.Name(v)}, theta)
		if !term.Ground(t) {
			return "", false
		}
		parts[i] = v + "=" + t.String()
	}
	return strings.Join(parts, ";"), true
}

// guardBindings collects what the guard bound, by the rule's own variable
// names. It reports false when a binding is not ground.
func guardBindings(r Rule, ren term.Renaming, before, after *term.Subst) (map[string]term.Term, bool) {
	vars := query.Vars(r.GuardQuery())
	sort.Strings(vars)
	out := make(map[string]term.Term)
	for _, v := range vars {
		name := ren.Name(v)
		if _, ok := before.Get(name); ok {
			continue
		}
		t, ok := after.Get(name)
		if !ok {
			continue
		}
		if !term.Ground(t) {
			return nil, false
		}
		out[v] = t
	}
	return out, true
}
