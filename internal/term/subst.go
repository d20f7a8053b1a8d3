package term

import (
	"sort"
	"strings"
)

// Subst is an insertion-ordered mapping from variable names to terms.
//
// Bindings are kept fully resolved: no bound value mentions a variable that is
// itself a key. Bind maintains this eagerly, which is what makes Apply a
// single-pass, idempotent operation. There is no occurs check.
//
// A nil *Subst behaves as the empty substitution for all read operations.
type Subst struct {
	keys []string
	m    map[string]Term
}

// NewSubst returns an empty substitution.
func NewSubst() *Subst {
	return &Subst{m: make(map[string]Term)}
}

// Len returns the number of bindings.
func (s *Subst) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Get returns the binding of a variable.
func (s *Subst) Get(name string) (Term, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.m[name]
	return t, ok
}

// Keys returns the bound variable names in insertion order.
func (s *Subst) Keys() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.keys...)
}

// Each calls fn for every binding in insertion order.
func (s *Subst) Each(fn func(name string, t Term)) {
	if s == nil {
		return
	}
	for _, k := range s.keys {
		fn(k, s.m[k])
	}
}

func (s *Subst) put(name string, t Term) {
	if s.m == nil {
		s.m = make(map[string]Term)
	}
	if _, ok := s.m[name]; !ok {
		s.keys = append(s.keys, name)
	}
	s.m[name] = t
}

// Bind binds name to t. The value is resolved against the existing bindings
// first, and every existing binding mentioning name is rewritten, so the
// substitution stays resolved.
func (s *Subst) Bind(name string, t Term) {
	t = Apply(t, s)
	if v, ok := t.(Var); ok && v.Name == name {
		return
	}
	single := &Subst{keys: []string{name}, m: map[string]Term{name: t}}
	for _, k := range s.keys {
		s.m[k] = Apply(s.m[k], single)
	}
	s.put(name, t)
}

// Merge composes other into s: every binding of other is resolved against s
// before being added. A variable bound in both must unify; Merge returns
// false when it does not, leaving s in an unspecified state.
func (s *Subst) Merge(other *Subst) bool {
	ok := true
	other.Each(func(name string, t Term) {
		if !ok {
			return
		}
		if cur, bound := s.Get(name); bound {
			ok = Unify(cur, t, s)
			return
		}
		s.Bind(name, t)
	})
	return ok
}

// Clone returns an independent copy.
func (s *Subst) Clone() *Subst {
	c := NewSubst()
	if s == nil {
		return c
	}
	c.keys = append(c.keys, s.keys...)
	for k, v := range s.m {
		c.m[k] = v
	}
	return c
}

// Restrict returns the bindings of the given variables only, in the order of
// vars.
func (s *Subst) Restrict(vars []string) *Subst {
	out := NewSubst()
	for _, v := range vars {
		if t, ok := s.Get(v); ok {
			out.put(v, t)
		}
	}
	return out
}

// Equal reports whether both substitutions bind the same variables to equal
// terms, ignoring order.
func (s *Subst) Equal(o *Subst) bool {
	if s.Len() != o.Len() {
		return false
	}
	eq := true
	s.Each(func(name string, t Term) {
		u, ok := o.Get(name)
		if !ok || !Equal(t, u) {
			eq = false
		}
	})
	return eq
}

// Map returns the bindings as a plain map.
func (s *Subst) Map() map[string]Term {
	out := make(map[string]Term, s.Len())
	s.Each(func(name string, t Term) { out[name] = t })
	return out
}

func (s *Subst) String() string {
	parts := make([]string, 0, s.Len())
	s.Each(func(name string, t Term) {
		parts = append(parts, name+"/"+t.String())
	})
	return "{" + strings.Join(parts, ", ") + "}"
}

// SortedString renders the substitution with keys in lexical order. Useful as
// a map key.
func (s *Subst) SortedString() string {
	keys := s.Keys()
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		t, _ := s.Get(k)
		parts[i] = k + "/" + t.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
