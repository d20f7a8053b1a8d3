package goal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bdicore/internal/belief"
	"bdicore/internal/query"
	"bdicore/internal/term"
)

func TestGoalParse(t *testing.T) {
	g, err := Parse("on(a, b), on(b, c)")
	require.NoError(t, err)
	assert.Len(t, g, 2)
	assert.Equal(t, "on(a, b), on(b, c)", g.String())

	_, err = Parse("on(a, b), not on(b, c)")
	assert.Error(t, err)
	_, err = Parse("p ; q")
	assert.Error(t, err)
}

func TestGoalEqualIgnoresOrder(t *testing.T) {
	assert.True(t, MustParse("a, b").Equal(MustParse("b, a")))
	assert.False(t, MustParse("a, b").Equal(MustParse("a")))
	assert.True(t, MustParse("a, b, c").Contains(MustParse("c, a")))
}

func TestGoalsWithNestedComparisonsStayDistinct(t *testing.T) {
	a, b, c := term.Ident{Name: "a"}, term.Ident{Name: "b"}, term.Ident{Name: "c"}
	left := Goal{term.Fn("f", term.Fn("=", term.Fn("<", a, b), c))}
	right := Goal{term.Fn("f", term.Fn("<", a, term.Fn("=", b, c)))}
	assert.False(t, left.Equal(right))

	base := NewBase()
	added, err := base.AssertGoal(left, nil)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = base.AssertGoal(right, nil)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 2, base.Len())
}

func TestBaseQuery(t *testing.T) {
	b := NewBase(MustParse("on(a, b)"), MustParse("on(b, c), clean(b)"))

	theta, ok := b.Query(query.MustParse("on(X, c), clean(X)"))
	require.True(t, ok)
	x, _ := theta.Get("X")
	assert.Equal(t, "b", x.String())

	_, ok = b.Query(query.MustParse("on(a, b), clean(b)"))
	assert.False(t, ok, "conjunction must hold within one goal")

	_, ok = b.Query(query.MustParse("on(b, c), not clean(c)"))
	assert.True(t, ok)
}

func TestPossibleSubstitutions(t *testing.T) {
	b := NewBase(MustParse("at(1), at(2)"), MustParse("at(3)"))
	matches := b.PossibleSubstitutions(query.MustParse("at(X)"))
	require.Len(t, matches, 3)

	var got []string
	for _, m := range matches {
		x, _ := m.Subst.Get("X")
		got = append(got, x.String())
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
	assert.True(t, matches[2].Goal.Equal(MustParse("at(3)")))
}

func TestAssertGoal(t *testing.T) {
	beliefs := belief.NewBase(belief.DefaultConfig())
	require.NoError(t, beliefs.Load("done(x)."))
	b := NewBase()

	ok, err := b.AssertGoal(MustParse("done(y)"), beliefs)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.AssertGoal(MustParse("done(y)"), beliefs)
	require.NoError(t, err)
	assert.False(t, ok, "duplicate goal")

	ok, err = b.AssertGoal(MustParse("done(x)"), beliefs)
	require.NoError(t, err)
	assert.False(t, ok, "believed goal")

	ok, err = b.AssertGoalHead(MustParse("first"), beliefs)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "first", b.Goals()[0].String())

	_, err = b.AssertGoal(Goal{term.Var{Name: "X"}}, beliefs)
	assert.ErrorIs(t, err, term.ErrUnboundVariable)
}

func TestDropGoals(t *testing.T) {
	newBase := func() *Base {
		return NewBase(MustParse("a"), MustParse("a, b"), MustParse("a, b, c"), MustParse("d"))
	}

	b := newBase()
	assert.Equal(t, 1, b.DropGoal(MustParse("b, a")))
	assert.Equal(t, 3, b.Len())

	b = newBase()
	assert.Equal(t, 2, b.DropSubGoals(MustParse("a, b")))
	assert.Equal(t, []string{"a, b, c", "d"}, goalStrings(b))

	b = newBase()
	assert.Equal(t, 3, b.DropSuperGoals(MustParse("a")))
	assert.Equal(t, []string{"d"}, goalStrings(b))
}

func TestRemoveSatisfied(t *testing.T) {
	beliefs := belief.NewBase(belief.DefaultConfig())
	b := NewBase(MustParse("p(1)"), MustParse("p(1), p(2)"))

	assert.Empty(t, b.RemoveSatisfied(beliefs))
	require.NoError(t, beliefs.Assert(query.Pos(term.MustParse("p(1)"))))

	reached := b.RemoveSatisfied(beliefs)
	require.Len(t, reached, 1)
	assert.Equal(t, []string{"p(1), p(2)"}, goalStrings(b))
}

func TestBaseConcurrentAccess(t *testing.T) {
	b := NewBase()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = b.AssertGoal(Goal{term.Fn("g", term.Int(i))}, nil)
			_, _ = b.Query(query.MustParse("g(X)"))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, b.Len())
}

func goalStrings(b *Base) []string {
	var out []string
	for _, g := range b.Goals() {
		out = append(out, g.String())
	}
	return out
}
