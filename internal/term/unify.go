package term

// Unify extends theta so that a·theta and b·theta are equal. It returns false
// when no such extension exists; theta is then left in an unspecified state,
// so callers that need to retry clone it first.
func Unify(a, b Term, theta *Subst) bool {
	a = walk(a, theta)
	b = walk(b, theta)

	if x, ok := a.(Var); ok {
		if y, ok := b.(Var); ok && y.Name == x.Name {
			return true
		}
		theta.Bind(x.Name, b)
		return true
	}
	if y, ok := b.(Var); ok {
		theta.Bind(y.Name, a)
		return true
	}

	switch x := a.(type) {
	case Ident:
		y, ok := b.(Ident)
		return ok && x.Name == y.Name
	case Num:
		y, ok := b.(Num)
		return ok && x.Value == y.Value
	case Compound:
		y, ok := b.(Compound)
		if !ok || x.Name != y.Name || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !Unify(x.Args[i], y.Args[i], theta) {
				return false
			}
		}
		return true
	case List:
		y, ok := b.(List)
		if !ok {
			return false
		}
		return unifyLists(x, y, theta)
	}
	return false
}

// walk resolves a top-level variable through theta. Bindings are resolved, so
// one lookup suffices.
func walk(t Term, theta *Subst) Term {
	if v, ok := t.(Var); ok {
		if b, ok := theta.Get(v.Name); ok {
			return b
		}
	}
	return t
}

func unifyLists(x, y List, theta *Subst) bool {
	n := len(x.Elems)
	if len(y.Elems) < n {
		n = len(y.Elems)
	}
	for i := 0; i < n; i++ {
		if !Unify(x.Elems[i], y.Elems[i], theta) {
			return false
		}
	}
	restX, restY := x.Elems[n:], y.Elems[n:]
	switch {
	case len(restX) == 0 && len(restY) == 0:
		return unifyTails(x.Tail, y.Tail, theta)
	case len(restX) == 0:
		if x.Tail == nil {
			return false
		}
		return Unify(*x.Tail, List{Elems: restY, Tail: y.Tail}, theta)
	default:
		if y.Tail == nil {
			return false
		}
		return Unify(*y.Tail, List{Elems: restX, Tail: x.Tail}, theta)
	}
}

func unifyTails(a, b *Var, theta *Subst) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil:
		return Unify(*b, List{}, theta)
	case b == nil:
		return Unify(*a, List{}, theta)
	}
	return Unify(*a, *b, theta)
}

// Apply substitutes the bindings of theta into t. With a resolved
// substitution the result is final: applying theta again changes nothing.
func Apply(t Term, theta *Subst) Term {
	if theta.Len() == 0 {
		return t
	}
	switch x := t.(type) {
	case Var:
		if b, ok := theta.Get(x.Name); ok {
			return b
		}
		return x
	case Compound:
		args := make([]Term, len(x.Args))
		for i, a := range x.Args {
			args[i] = Apply(a, theta)
		}
		return Compound{Name: x.Name, Args: args}
	case List:
		elems := make([]Term, len(x.Elems), len(x.Elems)+1)
		for i, e := range x.Elems {
			elems[i] = Apply(e, theta)
		}
		tail := x.Tail
		if tail != nil {
			switch tv := Apply(*tail, theta).(type) {
			case List:
				elems = append(elems, tv.Elems...)
				tail = tv.Tail
			case Var:
				tail = &tv
			default:
				// An improper list has no List form; the tail
				// variable stays and still resolves through theta.
			}
		}
		return List{Elems: elems, Tail: tail}
	}
	return t
}

// ApplyAll applies theta to every term.
func ApplyAll(ts []Term, theta *Subst) []Term {
	out := make([]Term, len(ts))
	for i, t := range ts {
		out[i] = Apply(t, theta)
	}
	return out
}
