package env

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bdicore/internal/plan"
	"bdicore/internal/term"
)

func echo(_ context.Context, agent string, args []term.Term) (term.Term, error) {
	return term.Fn("done", append([]term.Term{term.Ident{Name: agent}}, args...)...), nil
}

func TestRegisterValidates(t *testing.T) {
	tbl := NewTable("blocks")

	assert.ErrorIs(t, tbl.Register(&Action{Arity: 1, Handler: echo}), ErrActionNameEmpty)
	assert.ErrorIs(t, tbl.Register(&Action{Name: "move", Arity: 2}), ErrHandlerNil)
	assert.Error(t, tbl.Register(&Action{Name: "move", Arity: -1, Handler: echo}))

	require.NoError(t, tbl.Register(&Action{Name: "move", Arity: 2, Handler: echo}))
	assert.ErrorIs(t, tbl.Register(&Action{Name: "move", Arity: 2, Handler: echo}), ErrActionAlreadyRegistered)
	require.NoError(t, tbl.Register(&Action{Name: "move", Arity: 1, Handler: echo}))

	assert.Equal(t, []string{"move/1", "move/2"}, tbl.Names())
	assert.Equal(t, 2, tbl.Count())
	assert.Panics(t, func() { tbl.MustRegister(&Action{Name: "move", Arity: 1, Handler: echo}) })
}

func TestPerform(t *testing.T) {
	tbl := NewTable("blocks")
	tbl.MustRegister(&Action{Name: "move", Arity: 2, Handler: echo})
	tbl.MustRegister(&Action{Name: "jam", Arity: 0, Handler: func(context.Context, string, []term.Term) (term.Term, error) {
		return nil, errors.New("gripper jammed")
	}})
	ctx := context.Background()

	res, err := tbl.Perform(ctx, "alice", term.MustParse("move(a, b)"))
	require.NoError(t, err)
	assert.Equal(t, "done(alice, a, b)", res.String())

	_, err = tbl.Perform(ctx, "alice", term.MustParse("move(a)"))
	assert.ErrorIs(t, err, ErrActionNotFound)
	assert.ErrorIs(t, err, plan.ErrActionFailed)

	_, err = tbl.Perform(ctx, "alice", term.MustParse("move(X, b)"))
	assert.ErrorIs(t, err, term.ErrUnboundVariable)

	_, err = tbl.Perform(ctx, "alice", term.MustParse("jam"))
	assert.ErrorIs(t, err, plan.ErrActionFailed)
	assert.Contains(t, err.Error(), "gripper jammed")
}

func TestPerformIsSerialized(t *testing.T) {
	tbl := NewTable("counter")
	n, active, maxActive := 0, 0, 0
	var mu sync.Mutex
	tbl.MustRegister(&Action{Name: "inc", Handler: func(context.Context, string, []term.Term) (term.Term, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		n++
		mu.Lock()
		active--
		mu.Unlock()
		return nil, nil
	}})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tbl.Perform(context.Background(), "a", term.MustParse("inc"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 16, n)
	assert.Equal(t, 1, maxActive)
}

func TestEmit(t *testing.T) {
	tbl := NewTable("world")
	var got []string
	tbl.Subscribe("alice", func(e term.Term) { got = append(got, "alice:"+e.String()) })
	tbl.Subscribe("bob", func(e term.Term) { got = append(got, "bob:"+e.String()) })

	assert.Equal(t, 2, tbl.Emit(term.MustParse("tick(1)")))
	assert.Equal(t, 1, tbl.Emit(term.MustParse("tick(2)"), "bob", "carol"))
	tbl.Unsubscribe("alice")
	assert.Equal(t, 1, tbl.Emit(term.MustParse("tick(3)")))

	assert.Equal(t, []string{"alice:tick(1)", "bob:tick(1)", "bob:tick(2)", "bob:tick(3)"}, got)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(NewTable("b")))
	require.NoError(t, r.Add(NewTable("a")))
	assert.Error(t, r.Add(NewTable("a")))
	assert.Equal(t, []string{"a", "b"}, r.Names())

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrEnvironmentNotFound)
	tbl, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", tbl.Name())
}
