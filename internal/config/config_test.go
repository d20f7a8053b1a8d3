package config

import (
	"path/filepath"
	"testing"
	"time"
)

// =============================================================================
// UNIFIED CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "bdicore" {
		t.Errorf("expected Name=bdicore, got %s", cfg.Name)
	}
	if cfg.Beliefs.Backend != BackendProlog {
		t.Errorf("expected Backend=prolog, got %s", cfg.Beliefs.Backend)
	}
	if !cfg.Engine.BeliefInertia {
		t.Error("expected belief inertia enabled by default")
	}
	if impure := cfg.Engine.ImpureSet(); !impure["rand"] || !impure["random"] {
		t.Errorf("expected rand and random to be impure, got %v", impure)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	// Ensure no env vars interfere
	t.Setenv("BDI_BELIEF_BACKEND", "")
	t.Setenv("BDI_MAX_TICKS", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Beliefs.Backend = BackendDatalog
	cfg.Runner.MaxTicks = 42
	cfg.Engine.SingleStep = true

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Beliefs.Backend != BackendDatalog {
		t.Errorf("expected Backend=datalog, got %s", loaded.Beliefs.Backend)
	}
	if loaded.Runner.MaxTicks != 42 {
		t.Errorf("expected MaxTicks=42, got %d", loaded.Runner.MaxTicks)
	}
	if !loaded.Engine.SingleStep {
		t.Error("expected SingleStep=true")
	}
}

func TestConfig_LoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("BDI_LOG_LEVEL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default level info, got %s", cfg.Logging.Level)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Beliefs.Backend = "sqlite"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown backend")
	}

	cfg = DefaultConfig()
	cfg.Engine.MaxProofDepth = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero proof depth")
	}

	cfg = DefaultConfig()
	cfg.Runner.TickInterval = "soon"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for bad tick interval")
	}

	cfg = DefaultConfig()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for bad log format")
	}
}

func TestConfig_Helpers(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.GetTickInterval(); got != 10*time.Millisecond {
		t.Errorf("GetTickInterval = %v", got)
	}
	cfg.Runner.TickInterval = "garbage"
	if got := cfg.GetTickInterval(); got != 10*time.Millisecond {
		t.Errorf("GetTickInterval should fall back, got %v", got)
	}
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	lc := LoggingConfig{Categories: map[string]bool{"inertia": false}}
	if lc.IsCategoryEnabled("inertia") {
		t.Error("inertia should be disabled")
	}
	if !lc.IsCategoryEnabled("plans") {
		t.Error("unlisted categories should be enabled")
	}
}
