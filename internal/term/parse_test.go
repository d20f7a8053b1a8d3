package term

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	inputs := []string{
		"foo",
		"'hello world'",
		"42",
		"-3.5",
		"X",
		"on(a, b)",
		"[a, b | T]",
		"[]",
		"X < 3",
		"Y is (X + 1)",
		"f(g(h(X)), [1, 2])",
		"f((a < b) = c)",
		"f(a < (b = c))",
		"[(X < 3), Y]",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got, err := Parse(in)
			require.NoError(t, err)
			assert.Equal(t, in, got.String())
		})
	}
}

func TestParsePrecedence(t *testing.T) {
	got := MustParse("X is 1 + 2 * Y")
	assert.Equal(t, "X is (1 + (2 * Y))", got.String())
}

func TestNestedComparisonsPrintDistinctly(t *testing.T) {
	left := Fn("f", Fn("=", Fn("<", Ident{Name: "a"}, Ident{Name: "b"}), Ident{Name: "c"}))
	right := Fn("f", Fn("<", Ident{Name: "a"}, Fn("=", Ident{Name: "b"}, Ident{Name: "c"})))
	assert.NotEqual(t, left.String(), right.String())

	for _, want := range []Term{left, right} {
		got, err := Parse(want.String())
		require.NoError(t, err)
		assert.True(t, Equal(want, got), "%s reparsed as %s", want, got)
	}
}

func TestParseAnonymousVarsAreDistinct(t *testing.T) {
	got := MustParse("p(_, _)")
	vars := Vars(got)
	require.Len(t, vars, 2)
	assert.NotEqual(t, vars[0], vars[1])
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"p(a", "[a | b]", "'open", "p(a) q", "#"} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
}

func TestParseTrailingStop(t *testing.T) {
	got, err := Parse("p(1).")
	require.NoError(t, err)
	assert.Equal(t, "p(1)", got.String())
}
