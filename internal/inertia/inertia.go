// Package inertia implements belief inertia: the static dependency analysis
// of rule guards and the runtime invalidation of cached guard verdicts.
//
// The static phase computes, for every rule, the set of predicate and
// function names its guard can depend on through the belief base's
// inference rules. The dynamic phase maps an updated predicate back to the
// rules whose verdicts may have changed.
package inertia

import (
	"sort"

	"bdicore/internal/logging"
	"bdicore/internal/metrics"
	"bdicore/internal/query"
	"bdicore/internal/rule"
)

// DefaultImpure lists the builtins whose result changes between calls.
var DefaultImpure = []string{"rand", "random"}

// DependencySet returns the closure of preds over the inference rules:
// starting from preds, the body names of every inference rule whose head is
// already in the set are added until nothing changes. The result is sorted.
func DependencySet(preds []string, inference map[string][]string) []string {
	set := make(map[string]struct{}, len(preds))
	var work []string
	for _, p := range preds {
		if _, ok := set[p]; !ok {
			set[p] = struct{}{}
			work = append(work, p)
		}
	}
	for len(work) > 0 {
		head := work[len(work)-1]
		work = work[:len(work)-1]
		for _, name := range inference[head] {
			if _, ok := set[name]; ok {
				continue
			}
			set[name] = struct{}{}
			work = append(work, name)
		}
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Build runs the static phase over rules: it sets each rule's dependency
// set and excludes rules that depend on an impure predicate.
func Build(rules []rule.Rule, inference map[string][]string, impure []string) {
	bad := make(map[string]struct{}, len(impure))
	for _, p := range impure {
		bad[p] = struct{}{}
	}
	for _, r := range rules {
		m := r.Info()
		guard := r.GuardQuery()
		direct := append(query.Predicates(guard), query.Functions(guard)...)
		m.DependencySet = DependencySet(direct, inference)
		m.Excluded = false
		for _, p := range m.DependencySet {
			if _, ok := bad[p]; ok {
				m.Excluded = true
				break
			}
		}
		logging.InertiaDebug("rule %s depends on %v (excluded: %v)", m.ID, m.DependencySet, m.Excluded)
	}
}

// Tracker invalidates cached guard verdicts when beliefs change.
type Tracker struct {
	index   map[string][]string
	caches  *rule.Caches
	metrics *metrics.Collector
}

// NewTracker indexes rules by the predicates in their dependency sets.
// Build must have run on rules.
func NewTracker(rules []rule.Rule, caches *rule.Caches, m *metrics.Collector) *Tracker {
	t := &Tracker{index: make(map[string][]string), caches: caches, metrics: m}
	for _, r := range rules {
		info := r.Info()
		for _, p := range info.DependencySet {
			t.index[p] = append(t.index[p], info.ID)
		}
	}
	return t
}

// Rules returns the IDs of the rules depending on pred.
func (t *Tracker) Rules(pred string) []string {
	return append([]string(nil), t.index[pred]...)
}

// Invalidate drops the cached verdicts of every rule depending on pred and
// returns how many were valid.
func (t *Tracker) Invalidate(pred string) int {
	if t == nil || t.caches == nil {
		return 0
	}
	n := t.caches.Invalidate(t.index[pred]...)
	t.metrics.Invalidated(pred, n)
	if n > 0 {
		logging.InertiaDebug("update of %s invalidated %d rules", pred, n)
	}
	return n
}

// Updated is Invalidate for the predicate of an asserted or retracted
// literal.
func (t *Tracker) Updated(lit query.Literal) int {
	return t.Invalidate(lit.Predicate())
}
