// Package program reads multi-agent system definitions from YAML.
//
// A program lists environments and modules. Terms, queries and clauses
// inside it are written in the usual Prolog-like data syntax; plan bodies
// are YAML lists of single-key steps:
//
//	modules:
//	  - name: alice
//	    beliefs: |
//	      clear(b).
//	    goals: ["on(a, b)"]
//	    goal_rules:
//	      - head: "on(X, Y)"
//	        guard: "clear(Y)"
//	        body:
//	          - external: {env: blocks, action: "move(X, Y)"}
//	          - assert: "on(X, Y)"
package program

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"bdicore/internal/config"
)

// ErrInvalidProgram wraps every validation failure.
var ErrInvalidProgram = errors.New("invalid program")

// Program is a parsed system definition.
type Program struct {
	Environments []EnvSpec    `yaml:"environments"`
	Modules      []ModuleSpec `yaml:"modules"`
}

// EnvSpec declares a scripted environment.
type EnvSpec struct {
	Name    string       `yaml:"name"`
	Actions []ActionSpec `yaml:"actions"`
}

// ActionSpec declares one action of a scripted environment. Action is a
// pattern such as move(X, Y); Returns and Emits are instantiated with the
// bindings of the performed action. Agent is bound to the performing module.
type ActionSpec struct {
	Action      string   `yaml:"action"`
	Description string   `yaml:"description"`
	Returns     string   `yaml:"returns"`
	Emits       []string `yaml:"emits"`
	Fails       bool     `yaml:"fails"`
}

// ModuleSpec declares one module.
type ModuleSpec struct {
	Name string `yaml:"name"`
	// Backend overrides the configured belief backend.
	Backend      string   `yaml:"backend"`
	Beliefs      string   `yaml:"beliefs"`
	Goals        []string `yaml:"goals"`
	Environments []string `yaml:"environments"`
	// Access names the modules whose goals this module may change.
	Access []string `yaml:"access"`

	EventRules  []EventRuleSpec  `yaml:"event_rules"`
	GoalRules   []GoalRuleSpec   `yaml:"goal_rules"`
	RepairRules []RepairRuleSpec `yaml:"repair_rules"`
	Updates     []UpdateSpec     `yaml:"belief_updates"`
	Plans       []Steps          `yaml:"plans"`
}

// EventRuleSpec is Head <- Guard | Body.
type EventRuleSpec struct {
	ID    string `yaml:"id"`
	Head  string `yaml:"head"`
	Guard string `yaml:"guard"`
	Body  Steps  `yaml:"body"`
}

// GoalRuleSpec is a goal rule; an empty head makes it reactive.
type GoalRuleSpec struct {
	ID    string `yaml:"id"`
	Head  string `yaml:"head"`
	Guard string `yaml:"guard"`
	Body  Steps  `yaml:"body"`
}

// RepairRuleSpec matches a failed plan prefix.
type RepairRuleSpec struct {
	ID    string `yaml:"id"`
	Head  Steps  `yaml:"head"`
	Guard string `yaml:"guard"`
	Body  Steps  `yaml:"body"`
}

// UpdateSpec is {Pre} Action {Post}.
type UpdateSpec struct {
	ID     string `yaml:"id"`
	Pre    string `yaml:"pre"`
	Action string `yaml:"action"`
	Post   string `yaml:"post"`
}

// Load reads and validates a program file.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a program.
func Parse(data []byte) (*Program, error) {
	var p Program
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProgram, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks names and references.
func (p *Program) Validate() error {
	envs := make(map[string]bool)
	for _, e := range p.Environments {
		if e.Name == "" {
			return fmt.Errorf("%w: environment without name", ErrInvalidProgram)
		}
		if envs[e.Name] {
			return fmt.Errorf("%w: duplicate environment %s", ErrInvalidProgram, e.Name)
		}
		envs[e.Name] = true
	}

	modules := make(map[string]bool)
	for _, m := range p.Modules {
		if m.Name == "" {
			return fmt.Errorf("%w: module without name", ErrInvalidProgram)
		}
		if modules[m.Name] {
			return fmt.Errorf("%w: duplicate module %s", ErrInvalidProgram, m.Name)
		}
		modules[m.Name] = true
	}
	if len(modules) == 0 {
		return fmt.Errorf("%w: no modules", ErrInvalidProgram)
	}

	for _, m := range p.Modules {
		switch m.Backend {
		case "", config.BackendProlog, config.BackendDatalog:
		default:
			return fmt.Errorf("%w: module %s: unknown backend %q", ErrInvalidProgram, m.Name, m.Backend)
		}
		for _, e := range m.Environments {
			if !envs[e] {
				return fmt.Errorf("%w: module %s: unknown environment %s", ErrInvalidProgram, m.Name, e)
			}
		}
		for _, a := range m.Access {
			if !modules[a] {
				return fmt.Errorf("%w: module %s: unknown module %s in access", ErrInvalidProgram, m.Name, a)
			}
		}
		if id, ok := m.duplicateRuleID(); ok {
			return fmt.Errorf("%w: module %s: duplicate rule id %s", ErrInvalidProgram, m.Name, id)
		}
	}
	return nil
}

// duplicateRuleID reports the first explicit rule id used twice in the
// module. Ids are shared across all four rule kinds.
func (m ModuleSpec) duplicateRuleID() (string, bool) {
	var ids []string
	for _, r := range m.EventRules {
		ids = append(ids, r.ID)
	}
	for _, r := range m.GoalRules {
		ids = append(ids, r.ID)
	}
	for _, r := range m.RepairRules {
		ids = append(ids, r.ID)
	}
	for _, u := range m.Updates {
		ids = append(ids, u.ID)
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if seen[id] {
			return id, true
		}
		seen[id] = true
	}
	return "", false
}

// Module returns the spec of the module called name.
func (p *Program) Module(name string) (ModuleSpec, bool) {
	for _, m := range p.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return ModuleSpec{}, false
}
