package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	SetCategories(nil)
	t.Cleanup(func() {
		SetLogger(nil)
		SetCategories(nil)
	})
	return logs
}

func TestCategoryLoggersShareCore(t *testing.T) {
	logs := observe(t)

	Deliberation("tick %d", 3)
	PlansDebug("plan %s failed", "p1")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "tick 3", entries[0].Message)
	assert.Equal(t, "deliberation", entries[0].LoggerName)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "plan p1 failed", entries[1].Message)
	assert.Equal(t, "plans", entries[1].LoggerName)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	logs := observe(t)
	SetCategories(map[string]bool{"inertia": false})

	assert.False(t, IsCategoryEnabled(CategoryInertia))
	assert.True(t, IsCategoryEnabled(CategoryRules))

	Inertia("invalidated %d rules", 4)
	Rules("selected r1")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "selected r1", entries[0].Message)
}

func TestWithAddsFields(t *testing.T) {
	logs := observe(t)

	Get(CategoryRunner).With("module", "alice").Info("started")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].ContextMap()["module"])
}

func TestInitializeRejectsBadLevel(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })
	assert.Error(t, Initialize(Settings{Level: "loud"}))
	assert.NoError(t, Initialize(Settings{Level: "warn", Format: "json"}))
}
