package spec

import "fmt"

// DispatchFn computes the dispatch tag for a value. ok == false means no
// tag could be computed, which is a data mismatch, not an error.
type DispatchFn func(v any) (tag string, ok bool)

// LookupFn resolves a dispatch tag to the spec that handles it. Returning
// nil means no spec is registered for the tag; conforming such a value
// fails with ErrNoDispatchSpec. Extensibility comes from letting the
// lookup consult whatever registry the host application controls.
type LookupFn func(tag string) Spec

// RetagFn optionally rewrites the conformed value of the chosen spec, e.g.
// to reinstate the dispatch tag.
type RetagFn func(tag string, conformed any) any

type multiSpec struct {
	genHolder
	name     string
	dispatch DispatchFn
	lookup   LookupFn
	retag    RetagFn
}

// Multi builds the dynamically dispatched spec: dispatch computes a tag
// from the value, lookup resolves the tag to the spec that conformance is
// delegated to. name labels the spec in diagnostics.
func Multi(name string, dispatch DispatchFn, lookup LookupFn, retag RetagFn) Spec {
	return &multiSpec{name: name, dispatch: dispatch, lookup: lookup, retag: retag}
}

func (m *multiSpec) target(v any) (string, Spec, error) {
	tag, ok := m.dispatch(v)
	if !ok {
		return "", nil, nil
	}
	s := m.lookup(tag)
	if s == nil {
		return tag, nil, fmt.Errorf("%w: multi %s has no spec for tag %q", ErrNoDispatchSpec, m.name, tag)
	}
	return tag, s, nil
}

func (m *multiSpec) conform(cs *state, v any) (any, error) {
	tag, s, err := m.target(v)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return Invalid, nil
	}
	cv, err := conformSpec(cs, s, v)
	if err != nil {
		return nil, err
	}
	if IsInvalid(cv) {
		return Invalid, nil
	}
	if m.retag != nil {
		cv = m.retag(tag, cv)
	}
	return cv, nil
}

func (m *multiSpec) explain(cs *state, pth []any, via []string, v any) ([]Problem, error) {
	tag, s, err := m.target(v)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return []Problem{newProblem(pth, childVia(via, m.name), v, "dispatch tag")}, nil
	}
	// The tag annotates path and via even though it is not structurally
	// present in the spec definition.
	return explainSpec(cs, s, childPath(pth, tag), childVia(via, m.name), v)
}

func (m *multiSpec) unform(cs *state, v any) (any, error) {
	tag, s, err := m.target(v)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: multi %s cannot re-dispatch tag %q", ErrNotUnformable, m.name, tag)
	}
	return unformSpec(cs, s, v)
}

func (m *multiSpec) describe() string {
	return "multi(" + m.name + ")"
}
