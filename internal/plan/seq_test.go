package plan

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bdicore/internal/belief"
	"bdicore/internal/goal"
	"bdicore/internal/query"
	"bdicore/internal/term"
)

var errEnv = errors.New("environment refused")

type fakeCtx struct {
	beliefs *belief.Base
	goals   *goal.Base
	now     time.Time
	err     error
	perform func(env string, action term.Term) (term.Term, error)
	calls   map[string][]Node
	sent    []string
	modules map[string]*fakeCtx
}

func newFakeCtx(t *testing.T, beliefs string) *fakeCtx {
	t.Helper()
	b := belief.NewBase(belief.DefaultConfig())
	require.NoError(t, b.Load(beliefs))
	return &fakeCtx{
		beliefs: b,
		goals:   goal.NewBase(),
		now:     time.Unix(1000, 0),
		perform: func(string, term.Term) (term.Term, error) { return nil, nil },
		calls:   map[string][]Node{},
	}
}

func (c *fakeCtx) Err() error { return c.err }

func (c *fakeCtx) Now() time.Time { return c.now }

func (c *fakeCtx) Beliefs() belief.Store { return c.beliefs }

func (c *fakeCtx) advance(d time.Duration) { c.now = c.now.Add(d) }

func (c *fakeCtx) UpdateBeliefs(lits ...query.Literal) error {
	for _, l := range lits {
		if err := c.beliefs.Assert(l); err != nil {
			return err
		}
	}
	return nil
}

func (c *fakeCtx) BeliefUpdate(action term.Term) error {
	return fmt.Errorf("no update for %s", action)
}

func (c *fakeCtx) Call(call term.Term, _ []string) ([]Node, error) {
	body, ok := c.calls[call.String()]
	if !ok {
		return nil, fmt.Errorf("no rule for %s", call)
	}
	return body, nil
}

// reach makes another module with the given beliefs accessible as name.
func (c *fakeCtx) reach(t *testing.T, name, beliefs string) *fakeCtx {
	t.Helper()
	other := newFakeCtx(t, beliefs)
	if c.modules == nil {
		c.modules = map[string]*fakeCtx{}
	}
	c.modules[name] = other
	return other
}

func (c *fakeCtx) Goals(module string) (*goal.Base, belief.Store, error) {
	if module == "" {
		return c.goals, c.beliefs, nil
	}
	other, ok := c.modules[module]
	if !ok {
		return nil, nil, fmt.Errorf("module %s not accessible", module)
	}
	return other.goals, other.beliefs, nil
}

func (c *fakeCtx) Perform(env string, action term.Term) (term.Term, error) {
	return c.perform(env, action)
}

func (c *fakeCtx) Send(receiver, performative string, content term.Term) error {
	c.sent = append(c.sent, fmt.Sprintf("%s %s %s", receiver, performative, content))
	return nil
}

func abstract(src string) Node { return &Abstract{Call: term.MustParse(src)} }

func TestExternalTimeoutRetries(t *testing.T) {
	ctx := newFakeCtx(t, "")
	ctx.perform = func(string, term.Term) (term.Term, error) { return nil, errEnv }
	s := NewSeq(&External{Env: "blocks", Action: term.MustParse("move(a, b)"), Timeout: 2})

	// Failures within the timeout keep the plan alive.
	require.NoError(t, s.Execute(ctx))
	ctx.advance(time.Second)
	require.NoError(t, s.Execute(ctx))
	assert.Equal(t, 1, s.Len())

	ctx.advance(1500 * time.Millisecond)
	err := s.Execute(ctx)
	require.ErrorIs(t, err, ErrActionFailed)
	assert.ErrorIs(t, err, errEnv)
}

func TestExternalTimeoutRestartsAfterFailure(t *testing.T) {
	ctx := newFakeCtx(t, "")
	ctx.perform = func(string, term.Term) (term.Term, error) { return nil, errEnv }
	s := NewSeq(&External{Env: "blocks", Action: term.MustParse("move(a, b)"), Timeout: 2})

	require.NoError(t, s.Execute(ctx))
	ctx.advance(2500 * time.Millisecond)
	require.ErrorIs(t, s.Execute(ctx), ErrActionFailed)

	// The same plan run again waits out a new window.
	ctx.advance(100 * time.Millisecond)
	require.NoError(t, s.Execute(ctx))
	ctx.advance(time.Second)
	require.NoError(t, s.Execute(ctx))
	ctx.advance(1500 * time.Millisecond)
	assert.ErrorIs(t, s.Execute(ctx), ErrActionFailed)
}

func TestExternalTimeoutZeroFailsAtOnce(t *testing.T) {
	ctx := newFakeCtx(t, "")
	ctx.perform = func(string, term.Term) (term.Term, error) { return nil, errEnv }
	s := NewSeq(&External{Env: "blocks", Action: term.MustParse("move(a, b)")})
	assert.ErrorIs(t, s.Execute(ctx), ErrActionFailed)
}

func TestExternalNegativeTimeoutRetriesForever(t *testing.T) {
	ctx := newFakeCtx(t, "")
	ctx.perform = func(string, term.Term) (term.Term, error) { return nil, errEnv }
	s := NewSeq(&External{Env: "blocks", Action: term.MustParse("move(a, b)"), Timeout: -1})
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Execute(ctx))
		ctx.advance(time.Hour)
	}
	assert.Equal(t, 1, s.Len())
}

func TestExternalBindsResult(t *testing.T) {
	ctx := newFakeCtx(t, "")
	ctx.perform = func(string, term.Term) (term.Term, error) {
		return term.MustParse("[1, 2]"), nil
	}
	r := term.Var{Name: "R"}
	s := NewSeq(
		&External{Env: "io", Action: term.MustParse("read"), Result: &r},
		&AssertBelief{Lit: query.Pos(term.MustParse("got(R)"))},
	)
	require.NoError(t, s.Execute(ctx))
	assert.Equal(t, "+got([1, 2])", s.String())
	require.NoError(t, s.Execute(ctx))
	assert.True(t, s.Empty())
	assert.True(t, ctx.beliefs.Query(query.MustParse("got([1, 2])"), term.NewSubst()))
}

func TestExternalUnboundActionFails(t *testing.T) {
	ctx := newFakeCtx(t, "")
	s := NewSeq(&External{Env: "blocks", Action: term.MustParse("move(X, b)")})
	err := s.Execute(ctx)
	assert.ErrorIs(t, err, ErrActionFailed)
	assert.ErrorIs(t, err, term.ErrUnboundVariable)
}

func TestTestActionBindsRestOfPlan(t *testing.T) {
	ctx := newFakeCtx(t, "on(a, table). clear(a).")
	s := NewSeq(
		&Test{Beliefs: query.MustParse("on(X, table), clear(X)")},
		&AssertBelief{Lit: query.Neg(term.MustParse("clear(X)"))},
	)
	require.NoError(t, s.Execute(ctx))
	assert.Equal(t, "-clear(a)", s.String())
	require.NoError(t, s.Execute(ctx))
	assert.False(t, ctx.beliefs.Query(query.MustParse("clear(a)"), term.NewSubst()))

	fail := NewSeq(&Test{Beliefs: query.MustParse("on(b, table)")})
	assert.ErrorIs(t, fail.Execute(ctx), ErrActionFailed)
}

func TestGoalTest(t *testing.T) {
	ctx := newFakeCtx(t, "")
	_, err := ctx.goals.AssertGoal(goal.MustParse("on(a, b)"), ctx.beliefs)
	require.NoError(t, err)

	s := NewSeq(&Test{Goals: query.MustParse("on(X, b)")}, abstract("stack(X)"))
	require.NoError(t, s.Execute(ctx))
	assert.Equal(t, "stack(a)", s.String())
}

func TestTestAgainstOtherModule(t *testing.T) {
	ctx := newFakeCtx(t, "on(c, d).")
	bob := ctx.reach(t, "bob", "on(a, table).")
	_, err := bob.goals.AssertGoal(goal.MustParse("on(a, b)"), bob.beliefs)
	require.NoError(t, err)

	s := NewSeq(&Test{Module: "bob", Goals: query.MustParse("on(X, Y)")}, abstract("stack(X, Y)"))
	require.NoError(t, s.Execute(ctx))
	assert.Equal(t, "stack(a, b)", s.String())

	beliefs := NewSeq(&Test{Module: "bob", Beliefs: query.MustParse("on(X, table)")}, abstract("lift(X)"))
	require.NoError(t, beliefs.Execute(ctx))
	assert.Equal(t, "lift(a)", beliefs.String())

	// The caller's own beliefs are not consulted.
	own := NewSeq(&Test{Module: "bob", Beliefs: query.MustParse("on(c, d)")})
	assert.ErrorIs(t, own.Execute(ctx), ErrActionFailed)

	unknown := NewSeq(&Test{Module: "carol", Goals: query.MustParse("on(X, Y)")})
	assert.ErrorIs(t, unknown.Execute(ctx), ErrActionFailed)
}

func TestTestBeliefsThenGoalsShareBindings(t *testing.T) {
	ctx := newFakeCtx(t, "block(c). on(a, b).")
	_, err := ctx.goals.AssertGoal(goal.MustParse("on(c, d)"), ctx.beliefs)
	require.NoError(t, err)

	s := NewSeq(&Test{Beliefs: query.MustParse("block(X)"), Goals: query.MustParse("on(X, Y)")}, abstract("move(X, Y)"))
	require.NoError(t, s.Execute(ctx))
	assert.Equal(t, "move(c, d)", s.String())
}

func TestAbstractExpands(t *testing.T) {
	ctx := newFakeCtx(t, "")
	ctx.calls["build"] = []Node{&Skip{}, abstract("done")}
	s := NewSeq(abstract("build"), abstract("finish"))
	require.NoError(t, s.Execute(ctx))
	assert.Equal(t, "skip; done; finish", s.String())

	undefined := NewSeq(abstract("nothing"))
	assert.ErrorIs(t, undefined.Execute(ctx), ErrActionFailed)
}

func TestAtomicRunsInOneStep(t *testing.T) {
	ctx := newFakeCtx(t, "")
	s := NewSeq(
		&Atomic{Body: []Node{
			&AssertBelief{Lit: query.Pos(term.MustParse("a"))},
			&Test{Beliefs: query.MustParse("a, X = 3")},
			&AssertBelief{Lit: query.Pos(term.MustParse("b(X)"))},
		}},
		&AssertBelief{Lit: query.Pos(term.MustParse("c(X)"))},
	)
	require.NoError(t, s.Execute(ctx))
	assert.Equal(t, "+c(3)", s.String())
	assert.True(t, ctx.beliefs.Query(query.MustParse("a, b(3)"), term.NewSubst()))
}

func TestAtomicKeepsPendingRemainder(t *testing.T) {
	ctx := newFakeCtx(t, "")
	ctx.perform = func(string, term.Term) (term.Term, error) { return nil, errEnv }
	s := NewSeq(&Atomic{Body: []Node{
		&AssertBelief{Lit: query.Pos(term.MustParse("a"))},
		&External{Env: "e", Action: term.MustParse("x"), Timeout: -1},
		&Skip{},
	}})
	require.NoError(t, s.Execute(ctx))
	assert.Equal(t, "[@e(x); skip]", s.String())
}

func TestIfAndWhile(t *testing.T) {
	ctx := newFakeCtx(t, "n(2). n(1).")
	s := NewSeq(&If{
		Cond: query.MustParse("n(X), X > 1"),
		Then: []Node{abstract("big(X)")},
		Else: []Node{abstract("small")},
	})
	require.NoError(t, s.Execute(ctx))
	assert.Equal(t, "big(2)", s.String())

	loop := NewSeq(&While{
		Cond: query.MustParse("n(X), X > 0"),
		Body: []Node{
			&AssertBelief{Lit: query.Neg(term.MustParse("n(X)"))},
			&AssertBelief{Lit: query.Pos(term.MustParse("seen(X)"))},
		},
	})
	for i := 0; i < 20 && !loop.Empty(); i++ {
		require.NoError(t, loop.Execute(ctx))
	}
	assert.True(t, loop.Empty())
	assert.True(t, ctx.beliefs.Query(query.MustParse("seen(1), seen(2)"), term.NewSubst()))
	assert.False(t, ctx.beliefs.Query(query.MustParse("n(_)"), term.NewSubst()))
}

func TestGoalActions(t *testing.T) {
	ctx := newFakeCtx(t, "have(x).")
	s := NewSeq(
		&GoalAction{Op: AdoptZ, Goal: goal.MustParse("have(y)")},
		&GoalAction{Op: AdoptA, Goal: goal.MustParse("have(z)")},
		&GoalAction{Op: DropGoal, Goal: goal.MustParse("have(y)")},
	)
	for !s.Empty() {
		require.NoError(t, s.Execute(ctx))
	}
	require.Equal(t, 1, ctx.goals.Len())
	assert.Equal(t, "have(z)", ctx.goals.Goals()[0].String())

	believed := NewSeq(&GoalAction{Op: AdoptZ, Goal: goal.MustParse("have(x)")})
	assert.ErrorIs(t, believed.Execute(ctx), ErrActionFailed)

	remote := NewSeq(&GoalAction{Module: "other", Op: AdoptZ, Goal: goal.MustParse("q")})
	assert.ErrorIs(t, remote.Execute(ctx), ErrActionFailed)
}

func TestRemoteAdoptChecksCallerBeliefs(t *testing.T) {
	ctx := newFakeCtx(t, "have(x).")
	bob := ctx.reach(t, "bob", "have(y).")

	// The caller already has x, so it does not ask bob for it.
	believed := NewSeq(&GoalAction{Module: "bob", Op: AdoptZ, Goal: goal.MustParse("have(x)")})
	assert.ErrorIs(t, believed.Execute(ctx), ErrActionFailed)
	assert.Zero(t, bob.goals.Len())

	ok := NewSeq(&GoalAction{Module: "bob", Op: AdoptZ, Goal: goal.MustParse("have(z)")})
	require.NoError(t, ok.Execute(ctx))
	assert.Equal(t, []goal.Goal{goal.MustParse("have(z)")}, bob.goals.Goals())

	// A goal only bob believes succeeds here but is not added to bob's goals.
	theirs := NewSeq(&GoalAction{Module: "bob", Op: AdoptA, Goal: goal.MustParse("have(y)")})
	require.NoError(t, theirs.Execute(ctx))
	assert.Equal(t, 1, bob.goals.Len())
	assert.Zero(t, ctx.goals.Len())
}

func TestSendRequiresGroundContent(t *testing.T) {
	ctx := newFakeCtx(t, "")
	ok := NewSeq(&Send{
		Receiver:     term.MustParse("bob"),
		Performative: term.MustParse("inform"),
		Content:      term.MustParse("on(a, b)"),
	})
	require.NoError(t, ok.Execute(ctx))
	assert.Equal(t, []string{"bob inform on(a, b)"}, ctx.sent)

	bad := NewSeq(&Send{
		Receiver:     term.MustParse("bob"),
		Performative: term.MustParse("inform"),
		Content:      term.MustParse("on(X, b)"),
	})
	assert.ErrorIs(t, bad.Execute(ctx), term.ErrUnboundVariable)
}

func TestExecuteStopsWhenContextIsDone(t *testing.T) {
	ctx := newFakeCtx(t, "")
	stop := errors.New("stopped")
	ctx.err = stop
	s := NewSeq(&Skip{})
	assert.ErrorIs(t, s.Execute(ctx), stop)
	assert.Equal(t, 1, s.Len())
}
