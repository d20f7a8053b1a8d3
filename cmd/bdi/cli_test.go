package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bdicore/internal/config"
	"bdicore/internal/program"
)

const blocksProgram = "../../examples/blocks.yaml"

func setup(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	logger = zap.NewNop()
	cfg = config.DefaultConfig()

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	return cmd, &out
}

func TestRunCmd(t *testing.T) {
	cmd, out := setup(t)
	maxTicks = 30
	defer func() { maxTicks = -1 }()

	require.NoError(t, runProgram(cmd, []string{blocksProgram}))

	got := out.String()
	assert.Contains(t, got, "module builder: 30 ticks, 0 goals, 0 plans")
	assert.Contains(t, got, "  belief on(a, b)\n")
	assert.Contains(t, got, "  belief seen(a, b)\n")
	assert.NotContains(t, got, "  belief on(a, table)\n")
	assert.Contains(t, got, "module painter: 30 ticks, 0 goals, 0 plans")
	assert.Contains(t, got, "  belief painted(a)\n")
}

func TestRunCmdMissingProgram(t *testing.T) {
	cmd, _ := setup(t)
	assert.Error(t, runProgram(cmd, []string{"does-not-exist.yaml"}))
}

func TestDepsCmd(t *testing.T) {
	cmd, out := setup(t)
	watchDeps = false

	require.NoError(t, runDeps(cmd, []string{blocksProgram}))

	got := out.String()
	assert.Contains(t, got, "module builder\n")
	assert.Contains(t, got, "stack: {block, clear, on}")
	assert.Contains(t, got, "seen: {}")
	assert.Contains(t, got, "move: {on}")
	assert.Contains(t, got, "module painter\n")
	assert.Contains(t, got, "skip-paint: {}")
	assert.NotContains(t, got, "never cached")
}

func TestDepsMarksImpureRules(t *testing.T) {
	_, out := setup(t)
	p, err := program.Parse([]byte(`
modules:
  - name: dice
    goal_rules:
      - id: roll
        head: "rolled(X)"
        guard: "lucky(X)"
        body: [skip]
    beliefs: |
      lucky(X) :- random(R), X is R * 6.
`))
	require.NoError(t, err)
	require.NoError(t, printDeps(out, p))
	assert.Regexp(t, `roll: \{[^}]*random[^}]*\} \(never cached\)`, out.String())
}
