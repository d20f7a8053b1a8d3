package term

import "strconv"

// VarSet is a set of variable names.
type VarSet map[string]struct{}

// NewVarSet builds a set from names.
func NewVarSet(names ...string) VarSet {
	s := make(VarSet, len(names))
	s.Add(names...)
	return s
}

// Add inserts names into the set.
func (s VarSet) Add(names ...string) {
	for _, n := range names {
		s[n] = struct{}{}
	}
}

// Has reports membership.
func (s VarSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Renaming maps original variable names to fresh ones.
type Renaming map[string]string

// Fresh computes a renaming for own that avoids every name in taken. Only
// clashing variables are renamed; a clashing X becomes X_k for the smallest k
// that is free.
func Fresh(own []string, taken VarSet) Renaming {
	r := make(Renaming)
	used := make(VarSet, len(taken)+len(own))
	for n := range taken {
		used[n] = struct{}{}
	}
	used.Add(own...)
	for _, v := range own {
		if !taken.Has(v) {
			continue
		}
		for k := 1; ; k++ {
			cand := v + "_" + strconv.Itoa(k)
			if !used.Has(cand) {
				r[v] = cand
				used.Add(cand)
				break
			}
		}
	}
	return r
}

// Invert returns the reverse renaming.
func (r Renaming) Invert() Renaming {
	inv := make(Renaming, len(r))
	for k, v := range r {
		inv[v] = k
	}
	return inv
}

// Name maps a variable name through the renaming; unmapped names are
// returned unchanged.
func (r Renaming) Name(v string) string {
	if n, ok := r[v]; ok {
		return n
	}
	return v
}

// Subst returns the renaming as a variable-to-variable substitution.
func (r Renaming) Subst() *Subst {
	s := NewSubst()
	for k, v := range r {
		s.put(k, Var{Name: v})
	}
	return s
}

// Rename renames the variables of t. Unlike Apply with r.Subst() it never
// resolves chains, so swapping renamings are safe.
func Rename(t Term, r Renaming) Term {
	if len(r) == 0 {
		return t
	}
	switch x := t.(type) {
	case Var:
		return Var{Name: r.Name(x.Name)}
	case Compound:
		args := make([]Term, len(x.Args))
		for i, a := range x.Args {
			args[i] = Rename(a, r)
		}
		return Compound{Name: x.Name, Args: args}
	case List:
		elems := make([]Term, len(x.Elems))
		for i, e := range x.Elems {
			elems[i] = Rename(e, r)
		}
		var tail *Var
		if x.Tail != nil {
			tail = &Var{Name: r.Name(x.Tail.Name)}
		}
		return List{Elems: elems, Tail: tail}
	}
	return t
}

// RenameSubst renames both the keys and the values of a substitution.
func RenameSubst(s *Subst, r Renaming) *Subst {
	out := NewSubst()
	s.Each(func(name string, t Term) {
		out.put(r.Name(name), Rename(t, r))
	})
	return out
}
