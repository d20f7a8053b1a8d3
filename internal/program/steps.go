package program

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"bdicore/internal/goal"
	"bdicore/internal/plan"
	"bdicore/internal/query"
	"bdicore/internal/term"
)

// Steps is a plan written as a YAML list.
type Steps []Step

// Nodes returns the plan nodes.
func (s Steps) Nodes() []plan.Node {
	out := make([]plan.Node, len(s))
	for i, st := range s {
		out[i] = st.Node
	}
	return out
}

// Step is one plan node. It is written either as the scalar skip or as a
// mapping with a single key naming the node kind.
type Step struct {
	Node plan.Node
}

type externalStep struct {
	Env     string  `yaml:"env"`
	Action  string  `yaml:"action"`
	Result  string  `yaml:"result"`
	Timeout float64 `yaml:"timeout"`
}

type testStep struct {
	Beliefs string `yaml:"beliefs"`
	Goals   string `yaml:"goals"`
	Module  string `yaml:"module"`
}

type goalStep struct {
	Goal   string `yaml:"goal"`
	Module string `yaml:"module"`
}

type sendStep struct {
	To           string `yaml:"to"`
	Performative string `yaml:"performative"`
	Content      string `yaml:"content"`
}

type ifStep struct {
	Cond string `yaml:"cond"`
	Then Steps  `yaml:"then"`
	Else Steps  `yaml:"else"`
}

type whileStep struct {
	Cond string `yaml:"cond"`
	Do   Steps  `yaml:"do"`
}

// UnmarshalYAML decodes a step.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	n, err := decodeStep(value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	s.Node = n
	return nil
}

func decodeStep(value *yaml.Node) (plan.Node, error) {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value == "skip" {
			return &plan.Skip{}, nil
		}
		return nil, fmt.Errorf("unknown step %q", value.Value)
	case yaml.MappingNode:
		if len(value.Content) != 2 {
			return nil, fmt.Errorf("a step has exactly one key, got %d", len(value.Content)/2)
		}
	default:
		return nil, fmt.Errorf("a step is a scalar or a mapping")
	}

	kind, arg := value.Content[0].Value, value.Content[1]
	switch kind {
	case "assert":
		l, err := literal(arg.Value)
		if err != nil {
			return nil, err
		}
		return &plan.AssertBelief{Lit: l}, nil

	case "update":
		t, err := term.Parse(arg.Value)
		if err != nil {
			return nil, err
		}
		return &plan.BeliefUpdate{Action: t}, nil

	case "call":
		t, err := term.Parse(arg.Value)
		if err != nil {
			return nil, err
		}
		return &plan.Abstract{Call: t}, nil

	case "plan":
		v, err := variable(arg.Value)
		if err != nil {
			return nil, err
		}
		return &plan.PlanVar{Name: v.Name}, nil

	case "external":
		var e externalStep
		if err := arg.Decode(&e); err != nil {
			return nil, err
		}
		if e.Env == "" {
			return nil, fmt.Errorf("external action without env")
		}
		action, err := term.Parse(e.Action)
		if err != nil {
			return nil, err
		}
		n := &plan.External{Env: e.Env, Action: action, Timeout: e.Timeout}
		if e.Result != "" {
			v, err := variable(e.Result)
			if err != nil {
				return nil, err
			}
			n.Result = &v
		}
		return n, nil

	case "test":
		var t testStep
		if arg.Kind == yaml.ScalarNode {
			t.Beliefs = arg.Value
		} else if err := arg.Decode(&t); err != nil {
			return nil, err
		}
		n := &plan.Test{Module: t.Module}
		var err error
		if t.Beliefs != "" {
			if n.Beliefs, err = query.Parse(t.Beliefs); err != nil {
				return nil, err
			}
		}
		if t.Goals != "" {
			if n.Goals, err = query.Parse(t.Goals); err != nil {
				return nil, err
			}
		}
		if n.Beliefs == nil && n.Goals == nil {
			return nil, fmt.Errorf("empty test")
		}
		return n, nil

	case "send":
		var s sendStep
		if err := arg.Decode(&s); err != nil {
			return nil, err
		}
		to, err := term.Parse(s.To)
		if err != nil {
			return nil, err
		}
		perf, err := term.Parse(s.Performative)
		if err != nil {
			return nil, err
		}
		content, err := term.Parse(s.Content)
		if err != nil {
			return nil, err
		}
		return &plan.Send{Receiver: to, Performative: perf, Content: content}, nil

	case "atomic":
		var body Steps
		if err := arg.Decode(&body); err != nil {
			return nil, err
		}
		return &plan.Atomic{Body: body.Nodes()}, nil

	case "if":
		var s ifStep
		if err := arg.Decode(&s); err != nil {
			return nil, err
		}
		cond, err := query.Parse(s.Cond)
		if err != nil {
			return nil, err
		}
		return &plan.If{Cond: cond, Then: s.Then.Nodes(), Else: s.Else.Nodes()}, nil

	case "while":
		var s whileStep
		if err := arg.Decode(&s); err != nil {
			return nil, err
		}
		cond, err := query.Parse(s.Cond)
		if err != nil {
			return nil, err
		}
		return &plan.While{Cond: cond, Body: s.Do.Nodes()}, nil
	}

	if plan.ValidGoalOp(kind) {
		var s goalStep
		if arg.Kind == yaml.ScalarNode {
			s.Goal = arg.Value
		} else if err := arg.Decode(&s); err != nil {
			return nil, err
		}
		g, err := goal.Parse(s.Goal)
		if err != nil {
			return nil, err
		}
		return &plan.GoalAction{Module: s.Module, Op: plan.GoalOp(kind), Goal: g}, nil
	}
	return nil, fmt.Errorf("unknown step kind %q", kind)
}

func literal(src string) (query.Literal, error) {
	q, err := query.Parse(src)
	if err != nil {
		return query.Literal{}, err
	}
	l, ok := q.(query.Literal)
	if !ok {
		return query.Literal{}, fmt.Errorf("%q is not a literal", src)
	}
	return l, nil
}

func variable(src string) (term.Var, error) {
	t, err := term.Parse(src)
	if err != nil {
		return term.Var{}, err
	}
	v, ok := t.(term.Var)
	if !ok {
		return term.Var{}, fmt.Errorf("%q is not a variable", src)
	}
	return v, nil
}
