package rule

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bdicore/internal/belief"
	"bdicore/internal/goal"
	"bdicore/internal/metrics"
	"bdicore/internal/plan"
	"bdicore/internal/query"
	"bdicore/internal/term"
)

func newEvaluator(t *testing.T, beliefs string) (*Evaluator, *belief.Base) {
	t.Helper()
	b := belief.NewBase(belief.DefaultConfig())
	require.NoError(t, b.Load(beliefs))
	return NewEvaluator(b, NewCaches(), metrics.New("")), b
}

func call(src string) plan.Node { return &plan.Abstract{Call: term.MustParse(src)} }

func add(src string) plan.Node {
	return &plan.AssertBelief{Lit: query.Pos(term.MustParse(src))}
}

func nodesString(nodes []plan.Node) string { return plan.NewSeq(nodes...).String() }

func queried(e *Evaluator, kind Kind) float64 {
	return testutil.ToFloat64(e.Metrics.GuardEvaluations.WithLabelValues(string(kind), metrics.SourceQueried))
}

func cached(e *Evaluator, kind Kind) float64 {
	return testutil.ToFloat64(e.Metrics.GuardEvaluations.WithLabelValues(string(kind), metrics.SourceCached))
}

func TestEventSelectionSkipsFailingGuard(t *testing.T) {
	eval, _ := newEvaluator(t, "")
	base := NewEventBase(eval,
		NewEventRule("A", term.MustParse("msg(X)"), query.MustParse("ready(X)"), call("a(X)")),
		NewEventRule("B", term.MustParse("msg(Y)"), nil, call("b(Y)")),
	)

	sel := base.Select(term.MustParse("msg(foo)"), term.NewSubst())
	require.Equal(t, Selected, sel.Status)
	assert.Equal(t, "B", sel.Rule.Info().ID)
	assert.Equal(t, "b(foo)", nodesString(sel.Body))
	assert.NoError(t, sel.Err())
}

func TestEventSelectionNotDefinedVersusNoMatch(t *testing.T) {
	eval, _ := newEvaluator(t, "")
	base := NewEventBase(eval, NewEventRule("", term.MustParse("msg(X)"), query.MustParse("ready(X)")))
	assert.Equal(t, "pc1", base.Rules()[0].ID)

	sel := base.Select(term.MustParse("other(foo)"), term.NewSubst())
	assert.Equal(t, NotDefined, sel.Status)
	assert.ErrorIs(t, sel.Err(), ErrNoRuleDefined)

	sel = base.Select(term.MustParse("msg(foo)"), term.NewSubst())
	assert.Equal(t, NoMatch, sel.Status)
	assert.NoError(t, sel.Err())
}

func TestGeneratedIDsAvoidExplicitOnes(t *testing.T) {
	eval, _ := newEvaluator(t, "b(1).")
	base := NewEventBase(eval,
		NewEventRule("", term.MustParse("msg(X)"), query.MustParse("a(X)")),
		NewEventRule("pc1", term.MustParse("msg(X)"), query.MustParse("b(X)")),
	)
	assert.Equal(t, "pc2", base.Rules()[0].ID)
	assert.Equal(t, "pc1", base.Rules()[1].ID)

	// The failed verdict of the first rule must not be reused for the second.
	for i := 0; i < 2; i++ {
		sel := base.Select(term.MustParse("msg(1)"), term.NewSubst())
		require.Equal(t, Selected, sel.Status, "selection %d", i)
		assert.Equal(t, "pc1", sel.Rule.Info().ID)
	}
}

func TestAssignIDs(t *testing.T) {
	rules := []Rule{
		NewEventRule("", term.MustParse("msg(X)"), nil),
		NewGoalRule("pc1", query.MustParse("g"), nil),
		NewGoalRule("", query.MustParse("h"), nil),
		NewEventRule("", term.MustParse("tick"), nil),
	}
	require.NoError(t, AssignIDs(rules))
	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = r.Info().ID
	}
	assert.Equal(t, []string{"pc2", "pc1", "pg2", "pc3"}, ids)

	dup := []Rule{
		NewEventRule("r", term.MustParse("msg(X)"), query.MustParse("a(X)")),
		NewEventRule("r", term.MustParse("msg(X)"), query.MustParse("b(X)")),
	}
	err := AssignIDs(dup)
	assert.ErrorIs(t, err, ErrDuplicateRuleID)
	assert.ErrorContains(t, err, ": r")
}

func TestEventSelectionOrder(t *testing.T) {
	eval, _ := newEvaluator(t, "")
	pick := func(rules ...*EventRule) string {
		sel := NewEventBase(eval, rules...).Select(term.MustParse("go(home)"), term.NewSubst())
		require.Equal(t, Selected, sel.Status)
		return sel.Rule.Info().ID
	}
	unrelated := func() *EventRule { return NewEventRule("u", term.MustParse("stop(X)"), nil) }
	first := func() *EventRule { return NewEventRule("first", term.MustParse("go(X)"), nil) }
	second := func() *EventRule { return NewEventRule("second", term.MustParse("go(home)"), nil) }

	assert.Equal(t, "first", pick(unrelated(), first(), second()))
	assert.Equal(t, "first", pick(first(), unrelated(), second()))
	assert.Equal(t, "second", pick(second(), first(), unrelated()))
}

func TestEventSelectionFreshensAgainstPlan(t *testing.T) {
	eval, _ := newEvaluator(t, "")
	base := NewEventBase(eval, NewEventRule("", term.MustParse("step"), nil,
		&plan.Test{Beliefs: query.MustParse("pos(X)")}, add("seen(X)")))

	sel := base.Select(term.MustParse("step"), term.NewSubst(), "X")
	require.Equal(t, Selected, sel.Status)
	assert.Equal(t, "?B(pos(X_1)); +seen(X_1)", nodesString(sel.Body))
	assert.Equal(t, "X", sel.Renaming.Invert().Name("X_1"))
}

func TestGuardCacheReuse(t *testing.T) {
	eval, beliefs := newEvaluator(t, "val(a, 1). val(b, 2).")
	r := NewEventRule("pc", term.MustParse("msg(X)"), query.MustParse("val(X, V)"), add("got(V)"))
	base := NewEventBase(eval, r)
	require.True(t, r.Connected)
	assert.Equal(t, []string{"X"}, r.Shared)

	sel := base.Select(term.MustParse("msg(a)"), term.NewSubst())
	require.Equal(t, Selected, sel.Status)
	assert.Equal(t, 1.0, queried(eval, KindEvent))

	sel = base.Select(term.MustParse("msg(a)"), term.NewSubst())
	require.Equal(t, Selected, sel.Status)
	assert.Equal(t, "+got(1)", nodesString(sel.Body))
	assert.Equal(t, 1.0, cached(eval, KindEvent))

	// A different head substitution is evaluated on its own.
	sel = base.Select(term.MustParse("msg(b)"), term.NewSubst())
	assert.Equal(t, "+got(2)", nodesString(sel.Body))
	assert.Equal(t, 2.0, queried(eval, KindEvent))

	require.NoError(t, beliefs.Retract(query.Pos(term.MustParse("val(a, 1)"))))
	assert.Equal(t, 1, eval.Caches.Invalidate("pc"))
	sel = base.Select(term.MustParse("msg(a)"), term.NewSubst())
	assert.Equal(t, NoMatch, sel.Status)
	assert.Equal(t, 3.0, queried(eval, KindEvent))
	assert.True(t, eval.Caches.Valid("pc"))
}

func TestGuardCacheSeparatesNestedComparisons(t *testing.T) {
	eval, _ := newEvaluator(t, "")
	require.NoError(t, eval.Beliefs.Assert(query.Pos(term.MustParse("val(f((a < b) = c), 1)"))))
	base := NewEventBase(eval, NewEventRule("pc", term.MustParse("msg(X)"), query.MustParse("val(X, V)"), add("got(V)")))

	sel := base.Select(term.MustParse("msg(f((a < b) = c))"), term.NewSubst())
	require.Equal(t, Selected, sel.Status)

	sel = base.Select(term.MustParse("msg(f(a < (b = c)))"), term.NewSubst())
	assert.Equal(t, NoMatch, sel.Status)
	assert.Equal(t, 2.0, queried(eval, KindEvent))
}

func TestExcludedRuleAlwaysQueries(t *testing.T) {
	eval, _ := newEvaluator(t, "ready.")
	r := NewEventRule("pc", term.MustParse("tick"), query.MustParse("ready"))
	r.Excluded = true
	base := NewEventBase(eval, r)

	for i := 0; i < 3; i++ {
		require.Equal(t, Selected, base.Select(term.MustParse("tick"), term.NewSubst()).Status)
	}
	assert.Equal(t, 3.0, queried(eval, KindEvent))
	assert.Equal(t, 0.0, cached(eval, KindEvent))
}

func TestReactiveGoalRuleRunsOnce(t *testing.T) {
	eval, _ := newEvaluator(t, "alarm.")
	base := NewGoalBase(eval, NewGoalRule("", query.True{}, query.MustParse("alarm"), call("ring")))
	plans := plan.NewBase()
	goals := goal.NewBase()

	created := base.Generate(goals, plans, false)
	require.Len(t, created, 1)
	assert.Nil(t, created[0].Origin.Head)
	assert.Equal(t, "pg1", created[0].Origin.RuleID)

	assert.Empty(t, base.Generate(goals, plans, false))

	plans.Remove(created[0].ID)
	assert.Len(t, base.Generate(goals, plans, false), 1)
}

func TestGoalRulePursuesEachGoalOnce(t *testing.T) {
	eval, beliefs := newEvaluator(t, "clear(b).")
	r := NewGoalRule("stack", query.MustParse("on(X, Y)"), query.MustParse("clear(Y)"), call("put(X, Y)"))
	base := NewGoalBase(eval, r)
	plans := plan.NewBase()
	goals := goal.NewBase(goal.MustParse("on(a, b)"), goal.MustParse("on(b, c)"))

	created := base.Generate(goals, plans, false)
	require.Len(t, created, 1)
	assert.Equal(t, "put(a, b)", created[0].String())
	assert.True(t, created[0].Origin.Goal.Equal(goal.MustParse("on(a, b)")))

	// on(a, b) is already pursued and clear(c) does not hold.
	assert.Empty(t, base.Generate(goals, plans, false))

	require.NoError(t, beliefs.Assert(query.Pos(term.MustParse("clear(c)"))))
	eval.Caches.Invalidate("stack")
	created = base.Generate(goals, plans, false)
	require.Len(t, created, 1)
	assert.Equal(t, "put(b, c)", created[0].String())
	assert.True(t, plans.WorkingOnGoal(goal.MustParse("on(b, c)")))
}

func TestGoalRuleSkipsBelievedGoal(t *testing.T) {
	eval, _ := newEvaluator(t, "done(x).")
	base := NewGoalBase(eval, NewGoalRule("", query.MustParse("done(X)"), nil, call("work(X)")))
	goals := goal.NewBase(goal.MustParse("done(x)"), goal.MustParse("done(y)"))

	created := base.Generate(goals, plan.NewBase(), false)
	require.Len(t, created, 1)
	assert.Equal(t, "work(y)", created[0].String())
}

func TestGoalRuleOnlyOne(t *testing.T) {
	eval, _ := newEvaluator(t, "")
	base := NewGoalBase(eval,
		NewGoalRule("", nil, nil, call("a")),
		NewGoalRule("", nil, nil, call("b")),
	)
	plans := plan.NewBase()
	created := base.Generate(goal.NewBase(), plans, true)
	require.Len(t, created, 1)
	assert.Equal(t, "a", created[0].String())
	assert.Len(t, base.Generate(goal.NewBase(), plans, true), 1)
	assert.Equal(t, 2, plans.Len())
}

func TestRepairReplacesMatchedPrefix(t *testing.T) {
	eval, _ := newEvaluator(t, "")
	base := NewRepairBase(eval, NewRepairRule("", []plan.Node{call("a(N)")}, nil, call("log(N)"), call("retry")))
	p := plan.NewSeq(call("a(1)"), call("b(Y)"), call("c"))

	res, status := base.Revise(p)
	require.Equal(t, Selected, status)
	assert.Equal(t, "pr1", res.RuleID)
	assert.Equal(t, "log(1); retry; b(Y); c", p.String())
	assert.Equal(t, "b(Y); c", nodesString(res.Remainder))
}

func TestRepairLeavesRemainderUnbound(t *testing.T) {
	eval, _ := newEvaluator(t, "")
	base := NewRepairBase(eval, NewRepairRule("", []plan.Node{call("a(1)")}, nil, call("retry")))
	p := plan.NewSeq(call("a(N)"), call("b(N)"))

	res, status := base.Revise(p)
	require.Equal(t, Selected, status)
	assert.Equal(t, "retry; b(N)", p.String())
	assert.Equal(t, "b(N)", nodesString(res.Remainder))
	n, ok := res.Theta.Get("N")
	require.True(t, ok)
	assert.Equal(t, "1", n.String())
}

func TestRepairWithPlanVariable(t *testing.T) {
	eval, _ := newEvaluator(t, "")
	rest := &plan.PlanVar{Name: "REST"}
	base := NewRepairBase(eval, NewRepairRule("", []plan.Node{call("a"), rest}, nil, call("x"), rest))
	p := plan.NewSeq(call("a"), call("b"), call("c"))

	res, status := base.Revise(p)
	require.Equal(t, Selected, status)
	assert.Equal(t, "x; b; c", p.String())
	assert.Equal(t, "b; c", nodesString(res.PlanSubst["REST"]))
}

func TestRepairRetriesIgnoringChunks(t *testing.T) {
	eval, _ := newEvaluator(t, "")
	r := NewRepairRule("", []plan.Node{call("a")}, nil, call("fix"))
	base := NewRepairBase(eval, r)
	p := plan.NewSeq(&plan.Atomic{Body: []plan.Node{call("a"), call("b")}}, call("c"))

	_, matched, ok := base.Repair(p, r, false)
	assert.False(t, matched)
	assert.False(t, ok)

	_, status := base.Revise(p)
	require.Equal(t, Selected, status)
	assert.Equal(t, "fix; b; c", p.String())
}

func TestRepairFreshensAgainstPlan(t *testing.T) {
	eval, _ := newEvaluator(t, "")
	base := NewRepairBase(eval, NewRepairRule("", []plan.Node{call("a(N)")}, nil, call("c(X)")))
	p := plan.NewSeq(call("a(1)"), call("b(X)"))

	_, status := base.Revise(p)
	require.Equal(t, Selected, status)
	assert.Equal(t, "c(X_1); b(X)", p.String())
}

func TestRepairStatus(t *testing.T) {
	eval, _ := newEvaluator(t, "")
	p := plan.NewSeq(call("a"), call("b"))

	guarded := NewRepairBase(eval, NewRepairRule("", []plan.Node{call("a")}, query.MustParse("allowed"), call("fix")))
	_, status := guarded.Revise(p)
	assert.Equal(t, NoMatch, status)

	other := NewRepairBase(eval, NewRepairRule("", []plan.Node{call("z")}, nil, call("fix")))
	_, status = other.Revise(p)
	assert.Equal(t, NotDefined, status)
	assert.Equal(t, "a; b", p.String())
}

func TestBeliefUpdateSelect(t *testing.T) {
	eval, _ := newEvaluator(t, "at(a).")
	base := NewUpdateBase(eval, NewBeliefUpdate("",
		query.MustParse("at(X)"),
		term.MustParse("move(X, Y)"),
		query.Neg(term.MustParse("at(X)")), query.Pos(term.MustParse("at(Y)")),
	))

	sel := base.Select(term.MustParse("move(a, b)"), term.NewSubst())
	require.Equal(t, Selected, sel.Status)
	require.Len(t, sel.Post, 2)
	assert.Equal(t, "not at(a)", sel.Post[0].String())
	assert.Equal(t, "at(b)", sel.Post[1].String())

	assert.Equal(t, NoMatch, base.Select(term.MustParse("move(c, d)"), term.NewSubst()).Status)
	assert.Equal(t, NotDefined, base.Select(term.MustParse("fly(a)"), term.NewSubst()).Status)
	assert.True(t, base.Defines(term.MustParse("move(q, r)")))
	assert.False(t, base.Defines(term.MustParse("move(q)")))
}

func TestCachesInvalidate(t *testing.T) {
	c := NewCaches()
	c.Get("a").renew()
	c.Get("b")
	assert.Equal(t, 1, c.Invalidate("a", "b", "missing"))
	assert.False(t, c.Valid("a"))
	c.Get("a").renew()
	c.Clear()
	assert.False(t, c.Valid("a"))
}
