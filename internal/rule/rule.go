// Package rule implements the four practical reasoning rule kinds and their
// selection algorithms: event rules (messages, external events and abstract
// action calls), goal rules, plan repair rules and belief update actions.
//
// Guard evaluation goes through an Evaluator, which consults the belief
// inertia cache table before querying the belief store.
package rule

import (
	"errors"
	"fmt"
	"sort"

	"bdicore/internal/plan"
	"bdicore/internal/query"
	"bdicore/internal/term"
)

// ErrNoRuleDefined is returned when no rule head matches a stimulus at all.
var ErrNoRuleDefined = errors.New("no rule defined")

// Kind names a rule base.
type Kind string

const (
	KindEvent  Kind = "event"
	KindGoal   Kind = "goal"
	KindRepair Kind = "repair"
	KindUpdate Kind = "update"
)

// Meta is the part of a rule the inertia subsystem reads and sets.
type Meta struct {
	ID string
	// DependencySet holds every predicate and function name the guard can
	// depend on, sorted.
	DependencySet []string
	// Excluded rules never reuse a cached guard verdict.
	Excluded bool
	// Connected is set when head and guard share variables.
	Connected bool
	// Shared lists the shared variables in first-occurrence order.
	Shared []string
}

// DependsOn reports whether pred is in the dependency set.
func (m *Meta) DependsOn(pred string) bool {
	i := sort.SearchStrings(m.DependencySet, pred)
	return i < len(m.DependencySet) && m.DependencySet[i] == pred
}

func (m *Meta) connect(head, guard []string) {
	g := term.NewVarSet(guard...)
	m.Shared = nil
	for _, v := range head {
		if g.Has(v) {
			m.Shared = append(m.Shared, v)
		}
	}
	m.Connected = len(m.Shared) > 0
}

// Rule is what all rule kinds have in common.
type Rule interface {
	Info() *Meta
	Kind() Kind
	// GuardQuery returns the belief condition; never nil.
	GuardQuery() query.Query
	// Vars returns every variable of the rule.
	Vars() []string
	String() string
}

func guardOrTrue(q query.Query) query.Query {
	if q == nil {
		return query.True{}
	}
	return q
}

func nodeVars(nodes []plan.Node) []string {
	var vs []string
	for _, n := range nodes {
		vs = append(vs, n.Vars()...)
	}
	return vs
}

func uniq(vs []string) []string {
	seen := term.NewVarSet()
	var out []string
	for _, v := range vs {
		if !seen.Has(v) {
			seen.Add(v)
			out = append(out, v)
		}
	}
	return out
}

func renameNodes(nodes []plan.Node, r term.Renaming) []plan.Node {
	if len(r) == 0 {
		return append([]plan.Node(nil), nodes...)
	}
	s := r.Subst()
	out := make([]plan.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Apply(s)
	}
	return out
}

func bodyString(nodes []plan.Node) string {
	return plan.NewSeq(nodes...).String()
}

// =============================================================================
// EVENT RULES
// =============================================================================

// EventRule reacts to a message, an external event or an abstract action:
// Head <- Guard | Body.
type EventRule struct {
	Meta
	Head  term.Term
	Guard query.Query
	Body  []plan.Node
}

// NewEventRule creates an event rule.
func NewEventRule(id string, head term.Term, guard query.Query, body ...plan.Node) *EventRule {
	r := &EventRule{Meta: Meta{ID: id}, Head: head, Guard: guardOrTrue(guard), Body: body}
	r.connect(term.Vars(head), query.Vars(r.Guard))
	return r
}

func (r *EventRule) Info() *Meta { return &r.Meta }
func (r *EventRule) Kind() Kind { return KindEvent }
func (r *EventRule) GuardQuery() query.Query { return r.Guard }

func (r *EventRule) Vars() []string {
	return uniq(append(append(term.Vars(r.Head), query.Vars(r.Guard)...), nodeVars(r.Body)...))
}

func (r *EventRule) String() string {
	return fmt.Sprintf("%s <- %s | { %s }", r.Head, r.Guard, bodyString(r.Body))
}

// =============================================================================
// GOAL RULES
// =============================================================================

// GoalRule pursues a goal: Head <- Guard | Body. A nil Head makes the rule
// reactive: it fires on beliefs alone.
type GoalRule struct {
	Meta
	Head  query.Query
	Guard query.Query
	Body  []plan.Node
}

// NewGoalRule creates a goal rule. A nil or True head makes it reactive.
func NewGoalRule(id string, head, guard query.Query, body ...plan.Node) *GoalRule {
	if _, ok := head.(query.True); ok {
		head = nil
	}
	r := &GoalRule{Meta: Meta{ID: id}, Head: head, Guard: guardOrTrue(guard), Body: body}
	var hv []string
	if head != nil {
		hv = query.Vars(head)
	}
	r.connect(hv, query.Vars(r.Guard))
	return r
}

// Reactive reports whether the rule has no goal head.
func (r *GoalRule) Reactive() bool { return r.Head == nil }

func (r *GoalRule) Info() *Meta { return &r.Meta }
func (r *GoalRule) Kind() Kind { return KindGoal }
func (r *GoalRule) GuardQuery() query.Query { return r.Guard }

func (r *GoalRule) Vars() []string {
	var vs []string
	if r.Head != nil {
		vs = query.Vars(r.Head)
	}
	return uniq(append(append(vs, query.Vars(r.Guard)...), nodeVars(r.Body)...))
}

func (r *GoalRule) String() string {
	head := "true"
	if r.Head != nil {
		head = r.Head.String()
	}
	return fmt.Sprintf("%s <- %s | { %s }", head, r.Guard, bodyString(r.Body))
}

// =============================================================================
// REPAIR RULES
// =============================================================================

// RepairRule rewrites a failed plan whose leading nodes match Head:
// Head <- Guard | Body. Head and Body may contain plan variables.
type RepairRule struct {
	Meta
	Head  []plan.Node
	Guard query.Query
	Body  []plan.Node
}

// NewRepairRule creates a repair rule.
func NewRepairRule(id string, head []plan.Node, guard query.Query, body ...plan.Node) *RepairRule {
	r := &RepairRule{Meta: Meta{ID: id}, Head: head, Guard: guardOrTrue(guard), Body: body}
	r.connect(uniq(nodeVars(head)), query.Vars(r.Guard))
	return r
}

func (r *RepairRule) Info() *Meta { return &r.Meta }
func (r *RepairRule) Kind() Kind { return KindRepair }
func (r *RepairRule) GuardQuery() query.Query { return r.Guard }

func (r *RepairRule) Vars() []string {
	return uniq(append(append(nodeVars(r.Head), query.Vars(r.Guard)...), nodeVars(r.Body)...))
}

func (r *RepairRule) String() string {
	return fmt.Sprintf("%s <= %s | { %s }", bodyString(r.Head), r.Guard, bodyString(r.Body))
}

// =============================================================================
// BELIEF UPDATES
// =============================================================================

// BeliefUpdate declares an action that changes beliefs:
// { Pre } Action { Post }.
type BeliefUpdate struct {
	Meta
	Action term.Term
	Pre    query.Query
	Post   []query.Literal
}

// NewBeliefUpdate creates a belief update specification.
func NewBeliefUpdate(id string, pre query.Query, action term.Term, post ...query.Literal) *BeliefUpdate {
	u := &BeliefUpdate{Meta: Meta{ID: id}, Action: action, Pre: guardOrTrue(pre), Post: post}
	u.connect(term.Vars(action), query.Vars(u.Pre))
	return u
}

func (u *BeliefUpdate) Info() *Meta { return &u.Meta }
func (u *BeliefUpdate) Kind() Kind { return KindUpdate }
func (u *BeliefUpdate) GuardQuery() query.Query { return u.Pre }

func (u *BeliefUpdate) Vars() []string {
	vs := append(term.Vars(u.Action), query.Vars(u.Pre)...)
	for _, l := range u.Post {
		vs = append(vs, term.Vars(l.Atom)...)
	}
	return uniq(vs)
}

func (u *BeliefUpdate) String() string {
	return fmt.Sprintf("{ %s } %s { %s }", u.Pre, u.Action, query.FromLiterals(u.Post))
}

// =============================================================================
// SELECTION RESULT
// =============================================================================

// Status is the outcome of a selection.
type Status int

const (
	// NotDefined means no rule head matched the stimulus.
	NotDefined Status = iota
	// NoMatch means some head matched but no guard held.
	NoMatch
	// Selected means a rule applies.
	Selected
)

func (s Status) String() string {
	switch s {
	case NotDefined:
		return "not_defined"
	case NoMatch:
		return "no_match"
	case Selected:
		return "selected"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Selection is the result of selecting a rule for a stimulus.
type Selection struct {
	Status Status
	Rule   Rule
	// Subst covers the stimulus and the freshened rule variables.
	Subst    *term.Subst
	Renaming term.Renaming
	// Body is the instantiated plan of event, goal and repair rules.
	Body []plan.Node
	// Post is the instantiated effect of a belief update.
	Post []query.Literal
}

// Err returns ErrNoRuleDefined for NotDefined and nil otherwise.
func (s Selection) Err() error {
	if s.Status == NotDefined {
		return ErrNoRuleDefined
	}
	return nil
}

// Activation builds the activation record for a plan made from s.
func (s Selection) Activation() *plan.Activation {
	if s.Rule == nil {
		return nil
	}
	return &plan.Activation{RuleID: s.Rule.Info().ID, Applied: s.Subst}
}

func instantiate(nodes []plan.Node, theta *term.Subst) []plan.Node {
	out := make([]plan.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Apply(theta)
	}
	return out
}
