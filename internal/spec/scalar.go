package spec

import (
	"fmt"
	"strings"
)

// --- Predicate ---

type predSpec struct {
	genHolder
	desc string
	fn   func(any) bool
}

// Pred builds the atomic spec: a value conforms to itself when fn accepts
// it. desc names the predicate in Problems, e.g. "int?".
func Pred(desc string, fn func(any) bool) Spec {
	return &predSpec{desc: desc, fn: fn}
}

func (p *predSpec) conform(cs *state, v any) (any, error) {
	if p.fn(v) {
		return v, nil
	}
	return Invalid, nil
}

func (p *predSpec) explain(cs *state, pth []any, via []string, v any) ([]Problem, error) {
	if p.fn(v) {
		return nil, nil
	}
	return []Problem{newProblem(pth, via, v, p.desc)}, nil
}

func (p *predSpec) unform(cs *state, v any) (any, error) { return v, nil }
func (p *predSpec) describe() string                     { return p.desc }

// --- Conformer ---

type conformerSpec struct {
	genHolder
	desc string
	fn   func(any) (any, bool)
	unf  func(any) any
}

// Conformer builds a spec from a user-supplied conform function standing in
// for predicate plus transform. fn returns the conformed value and whether
// the input matched. unf, when non-nil, reverses the transform; a nil unf
// makes the spec unformable only with ErrNotUnformable.
func Conformer(desc string, fn func(any) (any, bool), unf func(any) any) Spec {
	return &conformerSpec{desc: desc, fn: fn, unf: unf}
}

func (c *conformerSpec) conform(cs *state, v any) (any, error) {
	if cv, ok := c.fn(v); ok {
		return cv, nil
	}
	return Invalid, nil
}

func (c *conformerSpec) explain(cs *state, pth []any, via []string, v any) ([]Problem, error) {
	if _, ok := c.fn(v); ok {
		return nil, nil
	}
	return []Problem{newProblem(pth, via, v, c.desc)}, nil
}

func (c *conformerSpec) unform(cs *state, v any) (any, error) {
	if c.unf == nil {
		return nil, fmt.Errorf("%w: conformer %s", ErrNotUnformable, c.desc)
	}
	return c.unf(v), nil
}

func (c *conformerSpec) describe() string { return c.desc }

// --- Ref ---

type refSpec struct {
	genHolder
	name string
}

// Ref builds a by-name reference to a registered spec. Resolution happens
// lazily at conform time, so forward references are legal.
func Ref(name string) Spec {
	return &refSpec{name: name}
}

// RefName returns the qualified name s points at, when s is a Ref.
func RefName(s Spec) (string, bool) {
	if r, ok := s.(*refSpec); ok {
		return r.name, true
	}
	return "", false
}

func (r *refSpec) conform(cs *state, v any) (any, error) {
	return conformSpec(cs, r, v)
}

func (r *refSpec) explain(cs *state, pth []any, via []string, v any) ([]Problem, error) {
	return explainSpec(cs, r, pth, via, v)
}

func (r *refSpec) unform(cs *state, v any) (any, error) {
	return unformSpec(cs, r, v)
}

func (r *refSpec) describe() string { return r.name }

// --- And ---

type andSpec struct {
	genHolder
	children []Spec
}

// And builds the conjunction spec: the value is threaded through the
// children left to right, each child conforming the previous child's
// output. The first non-matching child makes the whole spec invalid.
func And(children ...Spec) Spec {
	return &andSpec{children: children}
}

func (a *andSpec) conform(cs *state, v any) (any, error) {
	cur := v
	for _, ch := range a.children {
		cv, err := conformSpec(cs, ch, cur)
		if err != nil {
			return nil, err
		}
		if IsInvalid(cv) {
			return Invalid, nil
		}
		cur = cv
	}
	return cur, nil
}

func (a *andSpec) explain(cs *state, pth []any, via []string, v any) ([]Problem, error) {
	cur := v
	for _, ch := range a.children {
		cv, err := conformSpec(cs, ch, cur)
		if err != nil {
			return nil, err
		}
		if IsInvalid(cv) {
			// Stop at the first failing child: its problems describe the
			// threaded value it actually saw.
			return explainSpec(cs, ch, pth, via, cur)
		}
		cur = cv
	}
	return nil, nil
}

func (a *andSpec) unform(cs *state, v any) (any, error) {
	cur := v
	for i := len(a.children) - 1; i >= 0; i-- {
		uv, err := unformSpec(cs, a.children[i], cur)
		if err != nil {
			return nil, err
		}
		cur = uv
	}
	return cur, nil
}

func (a *andSpec) describe() string {
	return "and(" + describeAll(a.children) + ")"
}

// --- Or ---

type orSpec struct {
	genHolder
	children []Choice
}

// Or builds the tagged disjunction spec: children are tried in order
// against the original value, and the first match wins, conforming to
// Tagged{tag, conformed}.
func Or(children ...Choice) Spec {
	return &orSpec{children: children}
}

func (o *orSpec) conform(cs *state, v any) (any, error) {
	for _, ch := range o.children {
		cv, err := conformSpec(cs, ch.Spec, v)
		if err != nil {
			return nil, err
		}
		if !IsInvalid(cv) {
			return Tagged{Tag: ch.Tag, Value: cv}, nil
		}
	}
	return Invalid, nil
}

func (o *orSpec) explain(cs *state, pth []any, via []string, v any) ([]Problem, error) {
	var problems []Problem
	for _, ch := range o.children {
		cv, err := conformSpec(cs, ch.Spec, v)
		if err != nil {
			return nil, err
		}
		if !IsInvalid(cv) {
			return nil, nil
		}
		ps, err := explainSpec(cs, ch.Spec, childPath(pth, ch.Tag), via, v)
		if err != nil {
			return nil, err
		}
		problems = append(problems, ps...)
	}
	return problems, nil
}

func (o *orSpec) unform(cs *state, v any) (any, error) {
	tv, ok := v.(Tagged)
	if !ok {
		return nil, fmt.Errorf("%w: or expects a tagged value, got %T", ErrNotUnformable, v)
	}
	for _, ch := range o.children {
		if ch.Tag == tv.Tag {
			return unformSpec(cs, ch.Spec, tv.Value)
		}
	}
	return nil, fmt.Errorf("%w: no or-branch %q", ErrNotUnformable, tv.Tag)
}

func (o *orSpec) describe() string {
	return "or(" + describeChoices(o.children) + ")"
}

// --- Tuple ---

type tupleSpec struct {
	genHolder
	children []Spec
}

// Tuple builds the positional fixed-arity spec: element i must conform to
// child i, and the sequence length must equal the child count.
func Tuple(children ...Spec) Spec {
	return &tupleSpec{children: children}
}

func (t *tupleSpec) conform(cs *state, v any) (any, error) {
	seq, ok := asSeq(v)
	if !ok || len(seq) != len(t.children) {
		return Invalid, nil
	}
	out := make([]any, len(seq))
	for i, ch := range t.children {
		cv, err := conformSpec(cs, ch, seq[i])
		if err != nil {
			return nil, err
		}
		if IsInvalid(cv) {
			return Invalid, nil
		}
		out[i] = cv
	}
	return out, nil
}

func (t *tupleSpec) explain(cs *state, pth []any, via []string, v any) ([]Problem, error) {
	seq, ok := asSeq(v)
	if !ok {
		return []Problem{newProblem(pth, via, v, "sequential?")}, nil
	}
	if len(seq) != len(t.children) {
		pred := fmt.Sprintf("tuple of %d elements", len(t.children))
		return []Problem{newProblem(pth, via, v, pred)}, nil
	}
	var problems []Problem
	for i, ch := range t.children {
		ps, err := explainSpec(cs, ch, childPath(pth, i), via, seq[i])
		if err != nil {
			return nil, err
		}
		problems = append(problems, ps...)
	}
	return problems, nil
}

func (t *tupleSpec) unform(cs *state, v any) (any, error) {
	seq, ok := asSeq(v)
	if !ok || len(seq) != len(t.children) {
		return nil, fmt.Errorf("%w: tuple expects %d conformed elements", ErrNotUnformable, len(t.children))
	}
	out := make([]any, len(seq))
	for i, ch := range t.children {
		uv, err := unformSpec(cs, ch, seq[i])
		if err != nil {
			return nil, err
		}
		out[i] = uv
	}
	return out, nil
}

func (t *tupleSpec) describe() string {
	return "tuple(" + describeAll(t.children) + ")"
}

// --- CollOf ---

type collOfSpec struct {
	genHolder
	elem Spec
}

// CollOf builds the unbounded homogeneous collection spec: every element
// must conform to elem.
func CollOf(elem Spec) Spec {
	return &collOfSpec{elem: elem}
}

func (c *collOfSpec) conform(cs *state, v any) (any, error) {
	seq, ok := asSeq(v)
	if !ok {
		return Invalid, nil
	}
	out := make([]any, len(seq))
	for i, el := range seq {
		cv, err := conformSpec(cs, c.elem, el)
		if err != nil {
			return nil, err
		}
		if IsInvalid(cv) {
			return Invalid, nil
		}
		out[i] = cv
	}
	return out, nil
}

func (c *collOfSpec) explain(cs *state, pth []any, via []string, v any) ([]Problem, error) {
	seq, ok := asSeq(v)
	if !ok {
		return []Problem{newProblem(pth, via, v, "sequential?")}, nil
	}
	var problems []Problem
	for i, el := range seq {
		ps, err := explainSpec(cs, c.elem, childPath(pth, i), via, el)
		if err != nil {
			return nil, err
		}
		problems = append(problems, ps...)
	}
	return problems, nil
}

func (c *collOfSpec) unform(cs *state, v any) (any, error) {
	seq, ok := asSeq(v)
	if !ok {
		return nil, fmt.Errorf("%w: coll-of expects a sequence", ErrNotUnformable)
	}
	out := make([]any, len(seq))
	for i, el := range seq {
		uv, err := unformSpec(cs, c.elem, el)
		if err != nil {
			return nil, err
		}
		out[i] = uv
	}
	return out, nil
}

func (c *collOfSpec) describe() string {
	return "coll-of(" + c.elem.describe() + ")"
}

// --- MapOf ---

type mapOfSpec struct {
	genHolder
	key Spec
	val Spec
}

// MapOf builds the unbounded homogeneous map spec: every key must conform
// to key and every value to val. Keys are validated but kept as-is; values
// are replaced by their conformed forms.
func MapOf(key, val Spec) Spec {
	return &mapOfSpec{key: key, val: val}
}

func (m *mapOfSpec) conform(cs *state, v any) (any, error) {
	in, ok := asMap(v)
	if !ok {
		return Invalid, nil
	}
	out := make(map[string]any, len(in))
	for k, el := range in {
		kv, err := conformSpec(cs, m.key, k)
		if err != nil {
			return nil, err
		}
		if IsInvalid(kv) {
			return Invalid, nil
		}
		cv, err := conformSpec(cs, m.val, el)
		if err != nil {
			return nil, err
		}
		if IsInvalid(cv) {
			return Invalid, nil
		}
		out[k] = cv
	}
	return out, nil
}

func (m *mapOfSpec) explain(cs *state, pth []any, via []string, v any) ([]Problem, error) {
	in, ok := asMap(v)
	if !ok {
		return []Problem{newProblem(pth, via, v, "map?")}, nil
	}
	var problems []Problem
	for _, k := range sortedKeys(in) {
		ps, err := explainSpec(cs, m.key, childPath(pth, k), via, k)
		if err != nil {
			return nil, err
		}
		problems = append(problems, ps...)
		ps, err = explainSpec(cs, m.val, childPath(pth, k), via, in[k])
		if err != nil {
			return nil, err
		}
		problems = append(problems, ps...)
	}
	return problems, nil
}

func (m *mapOfSpec) unform(cs *state, v any) (any, error) {
	in, ok := asMap(v)
	if !ok {
		return nil, fmt.Errorf("%w: map-of expects a map", ErrNotUnformable)
	}
	out := make(map[string]any, len(in))
	for k, el := range in {
		uv, err := unformSpec(cs, m.val, el)
		if err != nil {
			return nil, err
		}
		out[k] = uv
	}
	return out, nil
}

func (m *mapOfSpec) describe() string {
	return "map-of(" + m.key.describe() + ", " + m.val.describe() + ")"
}

// --- helpers ---

func describeAll(specs []Spec) string {
	parts := make([]string, len(specs))
	for i, s := range specs {
		parts[i] = s.describe()
	}
	return strings.Join(parts, ", ")
}

func describeChoices(choices []Choice) string {
	parts := make([]string, len(choices))
	for i, ch := range choices {
		parts[i] = ch.Tag + ": " + ch.Spec.describe()
	}
	return strings.Join(parts, ", ")
}
