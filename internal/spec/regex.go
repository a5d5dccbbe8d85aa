package spec

import "fmt"

// regexOp is the extra contract of spec variants that consume a variable
// number of elements from a sequence. Matching is single-pass, left to
// right and greedy: once a sub-op returns a match its consumption is
// irrevocable, and no backtracking revisits earlier choices.
type regexOp interface {
	Spec

	// match runs the op against in, reporting how many leading elements it
	// consumed and what they conformed to. A zero-width match with
	// present == false conforms to absence: the enclosing cat emits no
	// entry for it. Problems are collected only when f.explain is set.
	match(cs *state, f frame, in []any) (matchResult, error)

	// emptyConform is the whole-value conformed form of a zero-width match
	// at the outermost application, where there is no enclosing cat to
	// absorb the absence.
	emptyConform() any

	// unformSeq rebuilds the input elements this op consumed from its
	// conformed form.
	unformSeq(cs *state, v any) ([]any, error)
}

// frame carries the diagnostic context of one match: the value path and
// named-spec chain accumulated so far, and off, the absolute position
// within the sequence being matched. Nested regex ops are inlined into the
// parent's consumption accounting, so off is shared across the whole
// top-level sequence.
type frame struct {
	pth     []any
	via     []string
	off     int
	explain bool
}

func (f frame) advance(n int) frame {
	f.off += n
	return f
}

type matchResult struct {
	ok       bool
	consumed int
	present  bool
	value    any
	problems []Problem
}

func matched(consumed int, v any) matchResult {
	return matchResult{ok: true, consumed: consumed, present: true, value: v}
}

func matchedAbsent() matchResult {
	return matchResult{ok: true}
}

func unmatched(problems []Problem) matchResult {
	return matchResult{problems: problems}
}

// matchChild applies one child of a regex op to the remaining input. A
// child that is itself a regex op is inlined: it consumes as many elements
// as its own grammar allows. A plain spec always consumes exactly one.
func matchChild(cs *state, f frame, s Spec, in []any) (matchResult, error) {
	rs, via, err := deref(cs, s, f.via)
	if err != nil {
		return matchResult{}, err
	}
	f.via = via

	if op, ok := rs.(regexOp); ok {
		return op.match(cs, f, in)
	}

	if len(in) == 0 {
		var problems []Problem
		if f.explain {
			pred := "insufficient input: expected " + rs.describe()
			problems = []Problem{newProblem(f.pth, f.via, nil, pred)}
		}
		return unmatched(problems), nil
	}

	cv, err := rs.conform(cs, in[0])
	if err != nil {
		return matchResult{}, err
	}
	if IsInvalid(cv) {
		var problems []Problem
		if f.explain {
			problems, err = rs.explain(cs, childPath(f.pth, f.off), f.via, in[0])
			if err != nil {
				return matchResult{}, err
			}
		}
		return unmatched(problems), nil
	}
	return matched(1, cv), nil
}

// --- Cat ---

type catSpec struct {
	genHolder
	children []Choice
}

// Cat builds the concatenation op: children consume the input in
// declaration order, each regex-op child taking a variable number of
// elements (possibly zero) and each plain spec exactly one. It conforms to
// an OrderedMap of tag -> conformed value; zero-width child matches
// contribute no entry. Whether the whole sequence was consumed is the
// outermost caller's concern, not cat's: a nested cat never rejects input
// that belongs to its siblings.
func Cat(children ...Choice) Spec {
	return &catSpec{children: children}
}

func (c *catSpec) match(cs *state, f frame, in []any) (matchResult, error) {
	pos := 0
	out := NewOrderedMap()
	for _, ch := range c.children {
		mr, err := matchChild(cs, f.advance(pos), ch.Spec, in[pos:])
		if err != nil {
			return matchResult{}, err
		}
		if !mr.ok {
			return unmatched(mr.problems), nil
		}
		if mr.present {
			out.Set(ch.Tag, mr.value)
		}
		pos += mr.consumed
	}
	return matched(pos, out), nil
}

func (c *catSpec) emptyConform() any { return NewOrderedMap() }

func (c *catSpec) conform(cs *state, v any) (any, error) {
	return conformSpec(cs, c, v)
}

func (c *catSpec) explain(cs *state, pth []any, via []string, v any) ([]Problem, error) {
	return explainSpec(cs, c, pth, via, v)
}

func (c *catSpec) unform(cs *state, v any) (any, error) {
	return c.unformSeq(cs, v)
}

func (c *catSpec) unformSeq(cs *state, v any) ([]any, error) {
	entries, ok := catEntries(v)
	if !ok {
		return nil, fmt.Errorf("%w: cat expects a tag map, got %T", ErrNotUnformable, v)
	}
	var out []any
	for _, ch := range c.children {
		cv, present := entries(ch.Tag)
		if !present {
			continue
		}
		elems, err := unformChild(cs, ch.Spec, cv)
		if err != nil {
			return nil, err
		}
		out = append(out, elems...)
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

func (c *catSpec) describe() string {
	return "cat(" + describeChoices(c.children) + ")"
}

// catEntries accepts both the OrderedMap conform produces and a plain map,
// so hand-built conformed values unform too.
func catEntries(v any) (func(string) (any, bool), bool) {
	switch m := v.(type) {
	case *OrderedMap:
		return m.Get, true
	case map[string]any:
		return func(k string) (any, bool) {
			val, ok := m[k]
			return val, ok
		}, true
	}
	return nil, false
}

// --- Alt ---

type altSpec struct {
	genHolder
	children []Choice
}

// Alt builds the alternation op: at the current position each child is
// tried in order as a regex op of unknown width, and the first child that
// matches some prefix wins, conforming to Tagged{tag, conformed}.
func Alt(children ...Choice) Spec {
	return &altSpec{children: children}
}

func (a *altSpec) match(cs *state, f frame, in []any) (matchResult, error) {
	var problems []Problem
	for _, ch := range a.children {
		cf := f
		cf.pth = childPath(f.pth, ch.Tag)
		mr, err := matchChild(cs, cf, ch.Spec, in)
		if err != nil {
			return matchResult{}, err
		}
		if mr.ok {
			value := mr.value
			if !mr.present {
				value = emptyConformOf(cs, ch.Spec)
			}
			res := matched(mr.consumed, Tagged{Tag: ch.Tag, Value: value})
			return res, nil
		}
		problems = append(problems, mr.problems...)
	}
	return unmatched(problems), nil
}

func (a *altSpec) emptyConform() any { return nil }

func (a *altSpec) conform(cs *state, v any) (any, error) {
	return conformSpec(cs, a, v)
}

func (a *altSpec) explain(cs *state, pth []any, via []string, v any) ([]Problem, error) {
	return explainSpec(cs, a, pth, via, v)
}

func (a *altSpec) unform(cs *state, v any) (any, error) {
	return a.unformSeq(cs, v)
}

func (a *altSpec) unformSeq(cs *state, v any) ([]any, error) {
	tv, ok := v.(Tagged)
	if !ok {
		return nil, fmt.Errorf("%w: alt expects a tagged value, got %T", ErrNotUnformable, v)
	}
	for _, ch := range a.children {
		if ch.Tag == tv.Tag {
			return unformChild(cs, ch.Spec, tv.Value)
		}
	}
	return nil, fmt.Errorf("%w: no alt-branch %q", ErrNotUnformable, tv.Tag)
}

func (a *altSpec) describe() string {
	return "alt(" + describeChoices(a.children) + ")"
}

// --- Rep (Star / Plus) ---

type repSpec struct {
	genHolder
	child Spec
	min   int
}

// Star builds the zero-or-more repetition op. Zero repetitions is a legal
// match that conforms to absence inside an enclosing cat.
func Star(child Spec) Spec {
	return &repSpec{child: child}
}

// Plus builds the one-or-more repetition op.
func Plus(child Spec) Spec {
	return &repSpec{child: child, min: 1}
}

func (r *repSpec) match(cs *state, f frame, in []any) (matchResult, error) {
	pos := 0
	var vals []any
	for pos < len(in) {
		mr, err := matchChild(cs, f.advance(pos), r.child, in[pos:])
		if err != nil {
			return matchResult{}, err
		}
		// Each iteration must consume input; a zero-width match would
		// repeat forever, so it ends the repetition instead.
		if !mr.ok || mr.consumed == 0 {
			break
		}
		if mr.present {
			vals = append(vals, mr.value)
		}
		pos += mr.consumed
	}

	if len(vals) < r.min {
		var problems []Problem
		if f.explain {
			if pos >= len(in) {
				pred := "insufficient input: expected " + r.child.describe()
				problems = []Problem{newProblem(f.pth, f.via, nil, pred)}
			} else {
				mr, err := matchChild(cs, f.advance(pos), r.child, in[pos:])
				if err != nil {
					return matchResult{}, err
				}
				problems = mr.problems
			}
		}
		return unmatched(problems), nil
	}
	if len(vals) == 0 {
		return matchedAbsent(), nil
	}
	return matched(pos, vals), nil
}

func (r *repSpec) emptyConform() any { return []any{} }

func (r *repSpec) conform(cs *state, v any) (any, error) {
	return conformSpec(cs, r, v)
}

func (r *repSpec) explain(cs *state, pth []any, via []string, v any) ([]Problem, error) {
	return explainSpec(cs, r, pth, via, v)
}

func (r *repSpec) unform(cs *state, v any) (any, error) {
	return r.unformSeq(cs, v)
}

func (r *repSpec) unformSeq(cs *state, v any) ([]any, error) {
	seq, ok := asSeq(v)
	if !ok {
		return nil, fmt.Errorf("%w: rep expects a sequence, got %T", ErrNotUnformable, v)
	}
	var out []any
	for _, el := range seq {
		elems, err := unformChild(cs, r.child, el)
		if err != nil {
			return nil, err
		}
		out = append(out, elems...)
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

func (r *repSpec) describe() string {
	if r.min > 0 {
		return "+(" + r.child.describe() + ")"
	}
	return "*(" + r.child.describe() + ")"
}

// --- Maybe ---

type maybeSpec struct {
	genHolder
	child Spec
}

// Maybe builds the zero-or-one op. A single occurrence conforms to the
// child's conformed value directly, not wrapped in a sequence; zero
// occurrences conform to absence.
func Maybe(child Spec) Spec {
	return &maybeSpec{child: child}
}

func (m *maybeSpec) match(cs *state, f frame, in []any) (matchResult, error) {
	mr, err := matchChild(cs, f, m.child, in)
	if err != nil {
		return matchResult{}, err
	}
	if !mr.ok || !mr.present {
		return matchedAbsent(), nil
	}
	return mr, nil
}

func (m *maybeSpec) emptyConform() any { return nil }

func (m *maybeSpec) conform(cs *state, v any) (any, error) {
	return conformSpec(cs, m, v)
}

func (m *maybeSpec) explain(cs *state, pth []any, via []string, v any) ([]Problem, error) {
	return explainSpec(cs, m, pth, via, v)
}

func (m *maybeSpec) unform(cs *state, v any) (any, error) {
	return m.unformSeq(cs, v)
}

func (m *maybeSpec) unformSeq(cs *state, v any) ([]any, error) {
	if v == nil {
		return []any{}, nil
	}
	return unformChild(cs, m.child, v)
}

func (m *maybeSpec) describe() string {
	return "?(" + m.child.describe() + ")"
}

// --- Amp ---

type ampSpec struct {
	genHolder
	re    Spec
	preds []Spec
}

// Amp builds the post-filter op: re matches the input as a regex op, then
// every pred is applied to the conformed result as an ordinary And. The
// op's consumed width is re's.
func Amp(re Spec, preds ...Spec) Spec {
	return &ampSpec{re: re, preds: preds}
}

func (a *ampSpec) match(cs *state, f frame, in []any) (matchResult, error) {
	mr, err := matchChild(cs, f, a.re, in)
	if err != nil {
		return matchResult{}, err
	}
	if !mr.ok {
		return mr, nil
	}

	cur := mr.value
	if !mr.present {
		cur = emptyConformOf(cs, a.re)
	}
	for _, pred := range a.preds {
		cv, err := conformSpec(cs, pred, cur)
		if err != nil {
			return matchResult{}, err
		}
		if IsInvalid(cv) {
			var problems []Problem
			if f.explain {
				problems, err = explainSpec(cs, pred, f.pth, f.via, cur)
				if err != nil {
					return matchResult{}, err
				}
			}
			return unmatched(problems), nil
		}
		cur = cv
	}

	mr.value = cur
	mr.present = true
	return mr, nil
}

func (a *ampSpec) emptyConform() any {
	cs := &state{}
	return emptyConformOf(cs, a.re)
}

func (a *ampSpec) conform(cs *state, v any) (any, error) {
	return conformSpec(cs, a, v)
}

func (a *ampSpec) explain(cs *state, pth []any, via []string, v any) ([]Problem, error) {
	return explainSpec(cs, a, pth, via, v)
}

func (a *ampSpec) unform(cs *state, v any) (any, error) {
	return a.unformSeq(cs, v)
}

func (a *ampSpec) unformSeq(cs *state, v any) ([]any, error) {
	return unformChild(cs, a.re, v)
}

func (a *ampSpec) describe() string {
	return "&(" + a.re.describe() + ", " + describeAll(a.preds) + ")"
}

// --- shared helpers ---

// unformChild rebuilds the consumed elements of one regex child from its
// conformed value: a regex-op child splices several elements back, a plain
// spec exactly one.
func unformChild(cs *state, s Spec, v any) ([]any, error) {
	rs, _, err := deref(cs, s, nil)
	if err != nil {
		return nil, err
	}
	if op, ok := rs.(regexOp); ok {
		return op.unformSeq(cs, v)
	}
	uv, err := rs.unform(cs, v)
	if err != nil {
		return nil, err
	}
	return []any{uv}, nil
}

// emptyConformOf resolves s far enough to ask for its zero-width conformed
// form; plain specs cannot match zero-width, so nil is fine for them.
func emptyConformOf(cs *state, s Spec) any {
	rs, _, err := deref(cs, s, nil)
	if err != nil {
		return nil
	}
	if op, ok := rs.(regexOp); ok {
		return op.emptyConform()
	}
	return nil
}
