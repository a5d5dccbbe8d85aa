package spec

import "fmt"

// Conform checks v against s, resolving named references through r. It
// returns the conformed (canonical) value, or the Invalid sentinel when v
// does not match. The error channel carries only API misuse (unknown or
// cyclic names, missing dispatch specs); it never reports data mismatch.
func Conform(r Resolver, s Spec, v any) (any, error) {
	cs := &state{res: r}
	return conformSpec(cs, s, v)
}

// Valid reports whether v conforms to s.
func Valid(r Resolver, s Spec, v any) (bool, error) {
	cv, err := Conform(r, s, v)
	if err != nil {
		return false, err
	}
	return !IsInvalid(cv), nil
}

// Explain returns the ordered list of Problems describing why v does not
// conform to s. An empty list means v is valid. Whenever Valid reports
// false, Explain returns at least one Problem.
func Explain(r Resolver, s Spec, v any) ([]Problem, error) {
	cs := &state{res: r}
	return explainSpec(cs, s, nil, nil, v)
}

// Unform reverses a conforming transform: given the conformed output of s,
// it rebuilds the matching input value. Specs whose conforming transform
// discards information fail with ErrNotUnformable.
func Unform(r Resolver, s Spec, conformed any) (any, error) {
	cs := &state{res: r}
	return unformSpec(cs, s, conformed)
}

// conformSpec is the shared dispatch used everywhere a spec is applied to a
// whole value: the entry point, And/Or children, map values, collection
// elements. A regex op in such a position matches the entire sequential
// value and must consume it completely; leftover elements are rejected here,
// at the outermost application, never inside a nested cat.
func conformSpec(cs *state, s Spec, v any) (any, error) {
	rs, _, err := deref(cs, s, nil)
	if err != nil {
		return nil, err
	}
	if op, ok := rs.(regexOp); ok {
		seq, ok := asSeq(v)
		if !ok {
			return Invalid, nil
		}
		mr, err := op.match(cs, frame{}, seq)
		if err != nil {
			return nil, err
		}
		if !mr.ok || mr.consumed != len(seq) {
			return Invalid, nil
		}
		if !mr.present {
			return op.emptyConform(), nil
		}
		return mr.value, nil
	}
	return rs.conform(cs, v)
}

// explainSpec mirrors conformSpec on the diagnostic path.
func explainSpec(cs *state, s Spec, pth []any, via []string, v any) ([]Problem, error) {
	rs, via, err := deref(cs, s, via)
	if err != nil {
		return nil, err
	}
	if op, ok := rs.(regexOp); ok {
		seq, ok := asSeq(v)
		if !ok {
			return []Problem{newProblem(pth, via, v, "sequential?")}, nil
		}
		f := frame{pth: pth, via: via, explain: true}
		mr, err := op.match(cs, f, seq)
		if err != nil {
			return nil, err
		}
		switch {
		case !mr.ok:
			if len(mr.problems) == 0 {
				return []Problem{newProblem(pth, via, v, rs.describe())}, nil
			}
			return mr.problems, nil
		case mr.consumed != len(seq):
			p := newProblem(childPath(pth, mr.consumed), via, seq[mr.consumed], "extra input")
			return []Problem{p}, nil
		}
		return nil, nil
	}
	return rs.explain(cs, pth, via, v)
}

// unformSpec dispatches unform through named references.
func unformSpec(cs *state, s Spec, v any) (any, error) {
	rs, _, err := deref(cs, s, nil)
	if err != nil {
		return nil, err
	}
	return rs.unform(cs, v)
}

// deref follows Ref indirections until a concrete variant is reached,
// accumulating traversed names onto via. Reference cycles are detected per
// chain and surface as ErrCyclicSpec.
func deref(cs *state, s Spec, via []string) (Spec, []string, error) {
	ref, ok := s.(*refSpec)
	if !ok {
		return s, via, nil
	}

	seen := map[string]bool{}
	name := ref.name
	for {
		if seen[name] {
			return nil, nil, fmt.Errorf("%w: %s", ErrCyclicSpec, name)
		}
		seen[name] = true

		target, found := cs.lookup(name)
		if !found {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownSpec, name)
		}
		via = childVia(via, name)

		next, isRef := target.(*refSpec)
		if !isRef {
			return target, via, nil
		}
		name = next.name
	}
}
