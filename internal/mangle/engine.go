// Package mangle wraps the Google Mangle Datalog engine as a belief store
// backend: an extensional fact set plus inference rules evaluated bottom-up.
package mangle

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"bdicore/internal/logging"
)

// Config holds Mangle engine configuration.
type Config struct {
	FactLimit int  `yaml:"fact_limit"`
	AutoEval  bool `yaml:"auto_eval"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FactLimit: 100000,
		AutoEval:  true,
	}
}

// Stats contains engine statistics.
type Stats struct {
	BaseFacts       int            `json:"base_facts"`
	TotalFacts      int            `json:"total_facts"`
	PredicateCounts map[string]int `json:"predicate_counts"`
}

// Engine keeps the base (extensional) facts apart from the evaluated store so
// a removal can be answered by rebuilding the store and re-deriving.
type Engine struct {
	config Config

	mu          sync.RWMutex
	store       factstore.ConcurrentFactStore
	baseStore   factstore.FactStoreWithRemove
	programInfo *analysis.ProgramInfo
	fragments   []parse.SourceUnit
	edb         []ast.Atom
	edbIndex    map[string]int
}

// NewEngine creates an engine with an empty program.
func NewEngine(cfg Config) *Engine {
	baseStore := factstore.NewSimpleInMemoryStore()
	return &Engine{
		config:    cfg,
		baseStore: baseStore,
		store:     factstore.NewConcurrentFactStore(baseStore),
		edbIndex:  make(map[string]int),
	}
}

// LoadProgram loads and compiles a Mangle source file (.mg).
func (e *Engine) LoadProgram(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read program file %s: %w", path, err)
	}
	return e.LoadProgramString(string(data))
}

// LoadProgramString parses declarations, facts and rules and adds them to the
// program. Facts in the source become part of every evaluation.
func (e *Engine) LoadProgramString(src string) error {
	unit, err := parse.Unit(bytes.NewReader([]byte(src)))
	if err != nil {
		return fmt.Errorf("failed to parse program: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.fragments = append(e.fragments, unit)
	if err := e.rebuildProgramLocked(); err != nil {
		e.fragments = e.fragments[:len(e.fragments)-1]
		return fmt.Errorf("failed to analyze program: %w", err)
	}
	return e.evalLocked()
}

func (e *Engine) rebuildProgramLocked() error {
	var clauses []ast.Clause
	var decls []ast.Decl
	for _, fragment := range e.fragments {
		clauses = append(clauses, fragment.Clauses...)
		decls = append(decls, fragment.Decls...)
	}

	programInfo, err := analysis.AnalyzeOneUnit(parse.SourceUnit{Clauses: clauses, Decls: decls}, nil)
	if err != nil {
		return err
	}
	e.programInfo = programInfo
	logging.BeliefsDebug("mangle program rebuilt: %d rules, %d decls", len(programInfo.Rules), len(programInfo.Decls))
	return nil
}

func (e *Engine) evalLocked() error {
	if e.programInfo == nil {
		return nil
	}
	stats, err := mengine.EvalProgramWithStats(e.programInfo, e.store)
	if err != nil {
		return fmt.Errorf("evaluate program: %w", err)
	}
	logging.BeliefsDebug("mangle evaluation: %+v", stats)
	return nil
}

// Add inserts a base fact. It reports false when the fact was already
// present.
func (e *Engine) Add(atom ast.Atom) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := atom.String()
	if _, ok := e.edbIndex[key]; ok {
		return false, nil
	}
	if e.config.FactLimit > 0 && len(e.edb) >= e.config.FactLimit {
		return false, fmt.Errorf("fact limit exceeded: %d", e.config.FactLimit)
	}
	e.edbIndex[key] = len(e.edb)
	e.edb = append(e.edb, atom)
	e.store.Add(atom)

	if e.config.AutoEval {
		return true, e.evalLocked()
	}
	return true, nil
}

// Remove deletes a base fact and re-derives everything that depended on it.
// Derived facts cannot be removed directly.
func (e *Engine) Remove(atom ast.Atom) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := atom.String()
	idx, ok := e.edbIndex[key]
	if !ok {
		return false, nil
	}
	e.edb = append(e.edb[:idx], e.edb[idx+1:]...)
	delete(e.edbIndex, key)
	for i := idx; i < len(e.edb); i++ {
		e.edbIndex[e.edb[i].String()] = i
	}

	if e.programInfo == nil || len(e.programInfo.Rules) == 0 {
		e.baseStore.Remove(atom)
		return true, nil
	}

	e.baseStore = factstore.NewSimpleInMemoryStore()
	e.store = factstore.NewConcurrentFactStore(e.baseStore)
	for _, a := range e.edb {
		e.store.Add(a)
	}
	return true, e.evalLocked()
}

// Recompute re-evaluates all rules against the current store.
func (e *Engine) Recompute() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evalLocked()
}

// Facts returns the base and derived facts of a predicate.
func (e *Engine) Facts(sym ast.PredicateSym) ([]ast.Atom, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []ast.Atom
	err := e.store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		out = append(out, atom)
		return nil
	})
	return out, err
}

// Rules returns the analyzed rules of the loaded program.
func (e *Engine) Rules() []ast.Clause {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.programInfo == nil {
		return nil
	}
	return append([]ast.Clause(nil), e.programInfo.Rules...)
}

// RuleDependencies maps each rule head predicate to the predicates its
// premises use, positive or negated.
func (e *Engine) RuleDependencies() map[string][]string {
	deps := make(map[string][]string)
	seen := make(map[string]map[string]bool)
	for _, clause := range e.Rules() {
		head := clause.Head.Predicate.Symbol
		if seen[head] == nil {
			seen[head] = make(map[string]bool)
			deps[head] = nil
		}
		for _, premise := range clause.Premises {
			var sym string
			switch p := premise.(type) {
			case ast.Atom:
				sym = p.Predicate.Symbol
			case ast.NegAtom:
				sym = p.Atom.Predicate.Symbol
			default:
				continue
			}
			if !seen[head][sym] {
				seen[head][sym] = true
				deps[head] = append(deps[head], sym)
			}
		}
	}
	return deps
}

// GetStats returns overall statistics for the fact store.
func (e *Engine) GetStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	counts := make(map[string]int)
	syms := e.store.ListPredicates()
	sort.Slice(syms, func(i, j int) bool { return syms[i].Symbol < syms[j].Symbol })
	for _, sym := range syms {
		n := 0
		_ = e.store.GetFacts(ast.NewQuery(sym), func(ast.Atom) error {
			n++
			return nil
		})
		counts[sym.Symbol] += n
	}

	return Stats{
		BaseFacts:       len(e.edb),
		TotalFacts:      e.store.EstimateFactCount(),
		PredicateCounts: counts,
	}
}

// Clear removes all facts but keeps the program.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.baseStore = factstore.NewSimpleInMemoryStore()
	e.store = factstore.NewConcurrentFactStore(e.baseStore)
	e.edb = nil
	e.edbIndex = make(map[string]int)
}
