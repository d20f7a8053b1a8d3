package program

import (
	"context"
	"fmt"

	"bdicore/internal/agent"
	"bdicore/internal/belief"
	"bdicore/internal/config"
	"bdicore/internal/env"
	"bdicore/internal/goal"
	"bdicore/internal/logging"
	"bdicore/internal/mas"
	"bdicore/internal/messaging"
	"bdicore/internal/metrics"
	"bdicore/internal/query"
	"bdicore/internal/rule"
	"bdicore/internal/term"
)

// System is a built program, ready to run.
type System struct {
	Registry *mas.Registry
	Mailbox  *messaging.Mailbox
	Envs     *env.Registry
}

// Build creates the environments and modules of p.
func Build(p *Program, cfg *config.Config, m *metrics.Collector) (*System, error) {
	sys := &System{
		Registry: mas.NewRegistry(),
		Mailbox:  messaging.NewMailbox(),
		Envs:     env.NewRegistry(),
	}
	for _, spec := range p.Environments {
		t, err := BuildEnvironment(spec)
		if err != nil {
			return nil, err
		}
		if err := sys.Envs.Add(t); err != nil {
			return nil, err
		}
	}

	opts := agent.OptionsFromConfig(cfg.Engine)
	for _, spec := range p.Modules {
		def, err := Definition(spec, cfg)
		if err != nil {
			return nil, err
		}
		mod, err := agent.New(def, opts, agent.Deps{
			Mailbox:  sys.Mailbox,
			Envs:     sys.Envs,
			Modules:  sys.Registry,
			Metrics:  m,
			Environs: spec.Environments,
		})
		if err != nil {
			return nil, err
		}
		if err := sys.Registry.Add(mod); err != nil {
			return nil, err
		}
		for _, target := range spec.Access {
			sys.Registry.Grant(spec.Name, target)
		}
	}
	logging.Program("built %d modules, %d environments", len(p.Modules), len(p.Environments))
	return sys, nil
}

// BuildEnvironment creates a scripted environment. Each action unifies the
// performed action with its pattern, emits its events to every subscriber
// and returns its instantiated result.
func BuildEnvironment(spec EnvSpec) (*env.Table, error) {
	t := env.NewTable(spec.Name)
	for _, a := range spec.Actions {
		pattern, err := term.Parse(a.Action)
		if err != nil {
			return nil, fmt.Errorf("environment %s: %w", spec.Name, err)
		}
		name, arity, ok := term.Functor(pattern)
		if !ok {
			return nil, fmt.Errorf("environment %s: %s is not an action", spec.Name, a.Action)
		}
		var returns term.Term
		if a.Returns != "" {
			if returns, err = term.Parse(a.Returns); err != nil {
				return nil, fmt.Errorf("environment %s: %w", spec.Name, err)
			}
		}
		emits := make([]term.Term, len(a.Emits))
		for i, e := range a.Emits {
			if emits[i], err = term.Parse(e); err != nil {
				return nil, fmt.Errorf("environment %s: %w", spec.Name, err)
			}
		}

		fails := a.Fails
		handler := func(_ context.Context, agentName string, args []term.Term) (term.Term, error) {
			theta := term.NewSubst()
			theta.Bind("Agent", term.Ident{Name: agentName})
			if !term.Unify(pattern, term.Fn(name, args...), theta) {
				return nil, fmt.Errorf("%s does not match %s", term.Fn(name, args...), pattern)
			}
			if fails {
				return nil, fmt.Errorf("%s refused", pattern)
			}
			for _, e := range emits {
				t.Emit(term.Apply(e, theta))
			}
			if returns == nil {
				return nil, nil
			}
			return term.Apply(returns, theta), nil
		}
		if err := t.Register(&env.Action{Name: name, Arity: arity, Description: a.Description, Handler: handler}); err != nil {
			return nil, fmt.Errorf("environment %s: %w", spec.Name, err)
		}
	}
	return t, nil
}

// BeliefConfig maps the configuration to belief store settings.
func BeliefConfig(cfg *config.Config) belief.Config {
	return belief.Config{
		MaxProofDepth: cfg.Engine.MaxProofDepth,
		FactLimit:     cfg.Beliefs.FactLimit,
		Seed:          cfg.Beliefs.Seed,
	}
}

// Beliefs creates the belief store of a module.
func Beliefs(spec ModuleSpec, cfg *config.Config) (belief.Store, error) {
	backend := spec.Backend
	if backend == "" {
		backend = cfg.Beliefs.Backend
	}
	bc := BeliefConfig(cfg)
	if backend == config.BackendDatalog {
		d, err := belief.NewDatalog(bc, spec.Beliefs)
		if err != nil {
			return nil, fmt.Errorf("module %s: beliefs: %w", spec.Name, err)
		}
		return d, nil
	}
	b := belief.NewBase(bc)
	if err := b.Load(spec.Beliefs); err != nil {
		return nil, fmt.Errorf("module %s: beliefs: %w", spec.Name, err)
	}
	return b, nil
}

// Definition converts a module spec.
func Definition(spec ModuleSpec, cfg *config.Config) (agent.Definition, error) {
	def := agent.Definition{Name: spec.Name}
	wrap := func(what string, err error) error {
		return fmt.Errorf("module %s: %s: %w", spec.Name, what, err)
	}

	beliefs, err := Beliefs(spec, cfg)
	if err != nil {
		return def, err
	}
	def.Beliefs = beliefs

	for _, src := range spec.Goals {
		g, err := goal.Parse(src)
		if err != nil {
			return def, wrap("goal", err)
		}
		def.Goals = append(def.Goals, g)
	}
	for _, steps := range spec.Plans {
		def.Plans = append(def.Plans, steps.Nodes())
	}

	for _, r := range spec.EventRules {
		head, err := term.Parse(r.Head)
		if err != nil {
			return def, wrap("event rule head", err)
		}
		guard, err := guardQuery(r.Guard)
		if err != nil {
			return def, wrap("event rule guard", err)
		}
		def.Events = append(def.Events, rule.NewEventRule(r.ID, head, guard, r.Body.Nodes()...))
	}

	for _, r := range spec.GoalRules {
		var head query.Query
		if r.Head != "" {
			if head, err = query.Parse(r.Head); err != nil {
				return def, wrap("goal rule head", err)
			}
		}
		guard, err := guardQuery(r.Guard)
		if err != nil {
			return def, wrap("goal rule guard", err)
		}
		def.GoalRules = append(def.GoalRules, rule.NewGoalRule(r.ID, head, guard, r.Body.Nodes()...))
	}

	for _, r := range spec.RepairRules {
		if len(r.Head) == 0 {
			return def, wrap("repair rule", fmt.Errorf("empty head"))
		}
		guard, err := guardQuery(r.Guard)
		if err != nil {
			return def, wrap("repair rule guard", err)
		}
		def.Repairs = append(def.Repairs, rule.NewRepairRule(r.ID, r.Head.Nodes(), guard, r.Body.Nodes()...))
	}

	for _, u := range spec.Updates {
		action, err := term.Parse(u.Action)
		if err != nil {
			return def, wrap("belief update action", err)
		}
		pre, err := guardQuery(u.Pre)
		if err != nil {
			return def, wrap("belief update precondition", err)
		}
		var post []query.Literal
		if u.Post != "" {
			q, err := query.Parse(u.Post)
			if err != nil {
				return def, wrap("belief update postcondition", err)
			}
			post = query.Literals(q)
		}
		def.Updates = append(def.Updates, rule.NewBeliefUpdate(u.ID, pre, action, post...))
	}
	return def, nil
}

func guardQuery(src string) (query.Query, error) {
	if src == "" {
		return query.True{}, nil
	}
	return query.Parse(src)
}
