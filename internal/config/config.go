package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all bdicore configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Deliberation engine
	Engine EngineConfig `yaml:"engine"`

	// Belief store backend
	Beliefs BeliefsConfig `yaml:"beliefs"`

	// Multi-module runner
	Runner RunnerConfig `yaml:"runner"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Prometheus metrics
	Metrics MetricsConfig `yaml:"metrics"`
}

// EngineConfig configures the deliberation cycle and rule selection.
type EngineConfig struct {
	SingleStep       bool     `yaml:"single_step"`       // execute only the first plan per tick
	BeliefInertia    bool     `yaml:"belief_inertia"`    // reuse cached guard verdicts
	ImpurePredicates []string `yaml:"impure_predicates"` // predicates that disable caching
	OnePlanPerTick   bool     `yaml:"one_plan_per_tick"` // stop goal-rule application after the first new plan
	MaxProofDepth    int      `yaml:"max_proof_depth"`
}

// RunnerConfig configures the multi-module runner.
type RunnerConfig struct {
	TickInterval string `yaml:"tick_interval"`
	MaxTicks     int    `yaml:"max_ticks"` // 0 = run until stopped
	Burst        int    `yaml:"burst"`
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "bdicore",
		Version: "0.3.0",

		Engine: EngineConfig{
			BeliefInertia:    true,
			ImpurePredicates: []string{"rand", "random"},
			MaxProofDepth:    256,
		},

		Beliefs: BeliefsConfig{
			Backend:   BackendProlog,
			FactLimit: 100000,
		},

		Runner: RunnerConfig{
			TickInterval: "10ms",
			Burst:        1,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},

		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "bdi",
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides. Unparseable
// values are ignored.
func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("BDI_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if v := os.Getenv("BDI_BELIEF_INERTIA"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Engine.BeliefInertia = b
		}
	}
	if backend := os.Getenv("BDI_BELIEF_BACKEND"); backend != "" {
		c.Beliefs.Backend = backend
	}
	if v := os.Getenv("BDI_MAX_TICKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Runner.MaxTicks = n
		}
	}
}

// GetTickInterval returns the runner tick interval.
func (c *Config) GetTickInterval() time.Duration {
	d, err := time.ParseDuration(c.Runner.TickInterval)
	if err != nil {
		return 10 * time.Millisecond
	}
	return d
}

// ImpureSet returns the configured impure predicates as a set.
func (c *EngineConfig) ImpureSet() map[string]bool {
	out := make(map[string]bool, len(c.ImpurePredicates))
	for _, p := range c.ImpurePredicates {
		out[p] = true
	}
	return out
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validBackend := false
	for _, b := range ValidBackends {
		if c.Beliefs.Backend == b {
			validBackend = true
			break
		}
	}
	if !validBackend {
		return fmt.Errorf("invalid belief backend: %s (valid: %v)", c.Beliefs.Backend, ValidBackends)
	}

	if c.Engine.MaxProofDepth < 1 {
		return fmt.Errorf("max_proof_depth must be >= 1")
	}
	if c.Beliefs.FactLimit < 0 {
		return fmt.Errorf("fact_limit must be >= 0")
	}
	if c.Runner.MaxTicks < 0 {
		return fmt.Errorf("max_ticks must be >= 0")
	}
	if c.Runner.Burst < 1 {
		return fmt.Errorf("burst must be >= 1")
	}
	if c.Runner.TickInterval != "" {
		if _, err := time.ParseDuration(c.Runner.TickInterval); err != nil {
			return fmt.Errorf("invalid tick_interval %q: %w", c.Runner.TickInterval, err)
		}
	}

	return c.Logging.Validate()
}
