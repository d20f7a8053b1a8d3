// Package logging provides config-driven categorized logging for bdicore.
// Every category shares one zap logger; a category can be switched off in
// the logging config, in which case its logger is a no-op.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot         Category = "boot"         // Startup, config
	CategoryDeliberation Category = "deliberation" // Cycle steps
	CategoryRules        Category = "rules"        // Rule selection
	CategoryPlans        Category = "plans"        // Plan execution and repair
	CategoryBeliefs      Category = "beliefs"      // Belief store, Datalog backend
	CategoryGoals        Category = "goals"        // Goal base
	CategoryInertia      Category = "inertia"      // Dependency sets, cache invalidation
	CategoryEnv          Category = "env"          // Environments, external actions
	CategoryMessaging    Category = "messaging"    // Mailbox
	CategoryRunner       Category = "runner"       // Multi-module runner
	CategoryProgram      Category = "program"      // Program loading, file watching
)

// Settings mirrors config.LoggingConfig to avoid circular imports.
type Settings struct {
	Level      string
	Format     string
	DebugMode  bool
	Categories map[string]bool
}

// Logger is a category logger with printf-style methods.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu       sync.RWMutex
	base     = zap.NewNop()
	settings Settings
	loggers  = make(map[Category]*Logger)
)

// Initialize builds the shared zap logger from settings.
func Initialize(s Settings) error {
	var zcfg zap.Config
	if s.DebugMode {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	switch s.Format {
	case "json":
		zcfg.Encoding = "json"
	case "console":
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	level := s.Level
	if s.DebugMode {
		level = "debug"
	}
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		zcfg.Level = lvl
	}

	l, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	settings = s
	mu.Unlock()
	SetLogger(l)

	Get(CategoryBoot).Debug("logging initialized: level=%s format=%s debug=%v", level, s.Format, s.DebugMode)
	return nil
}

// SetLogger installs l as the shared logger. Tests use it to install a
// no-op or observed logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	base = l
	loggers = make(map[Category]*Logger)
}

// SetCategories replaces the per-category toggles.
func SetCategories(categories map[string]bool) {
	mu.Lock()
	defer mu.Unlock()
	settings.Categories = categories
	loggers = make(map[Category]*Logger)
}

// L returns the shared zap logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered entries.
func Sync() error {
	return L().Sync()
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if settings.Categories == nil {
		return true
	}
	enabled, exists := settings.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	l := &Logger{category: category}
	if categoryEnabledLocked(category) {
		l.sugar = base.Named(string(category)).Sugar()
	}
	loggers[category] = l
	return l
}

// With returns a logger carrying extra key-value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l.sugar == nil {
		return l
	}
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// Deliberation logs to the deliberation category
func Deliberation(format string, args ...interface{}) {
	Get(CategoryDeliberation).Info(format, args...)
}

// DeliberationDebug logs debug to the deliberation category
func DeliberationDebug(format string, args ...interface{}) {
	Get(CategoryDeliberation).Debug(format, args...)
}

// Rules logs to the rules category
func Rules(format string, args ...interface{}) {
	Get(CategoryRules).Info(format, args...)
}

// RulesDebug logs debug to the rules category
func RulesDebug(format string, args ...interface{}) {
	Get(CategoryRules).Debug(format, args...)
}

// Plans logs to the plans category
func Plans(format string, args ...interface{}) {
	Get(CategoryPlans).Info(format, args...)
}

// PlansDebug logs debug to the plans category
func PlansDebug(format string, args ...interface{}) {
	Get(CategoryPlans).Debug(format, args...)
}

// Beliefs logs to the beliefs category
func Beliefs(format string, args ...interface{}) {
	Get(CategoryBeliefs).Info(format, args...)
}

// BeliefsDebug logs debug to the beliefs category
func BeliefsDebug(format string, args ...interface{}) {
	Get(CategoryBeliefs).Debug(format, args...)
}

// GoalsDebug logs debug to the goals category
func GoalsDebug(format string, args ...interface{}) {
	Get(CategoryGoals).Debug(format, args...)
}

// Inertia logs to the inertia category
func Inertia(format string, args ...interface{}) {
	Get(CategoryInertia).Info(format, args...)
}

// InertiaDebug logs debug to the inertia category
func InertiaDebug(format string, args ...interface{}) {
	Get(CategoryInertia).Debug(format, args...)
}

// Env logs to the env category
func Env(format string, args ...interface{}) {
	Get(CategoryEnv).Info(format, args...)
}

// EnvDebug logs debug to the env category
func EnvDebug(format string, args ...interface{}) {
	Get(CategoryEnv).Debug(format, args...)
}

// MessagingDebug logs debug to the messaging category
func MessagingDebug(format string, args ...interface{}) {
	Get(CategoryMessaging).Debug(format, args...)
}

// Runner logs to the runner category
func Runner(format string, args ...interface{}) {
	Get(CategoryRunner).Info(format, args...)
}

// RunnerDebug logs debug to the runner category
func RunnerDebug(format string, args ...interface{}) {
	Get(CategoryRunner).Debug(format, args...)
}

// Program logs to the program category
func Program(format string, args ...interface{}) {
	Get(CategoryProgram).Info(format, args...)
}

// ProgramDebug logs debug to the program category
func ProgramDebug(format string, args ...interface{}) {
	Get(CategoryProgram).Debug(format, args...)
}
