package spec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/conformgo/internal/qname"
)

// KeyNode is one node of the boolean requirement tree over key presence: a
// bare key name, an all-of group or an any-of group. The root of a Keys
// spec's requirement list is an implicit all-of.
type KeyNode interface {
	eval(present func(string) bool) bool
	names() []string
	render() string
}

type keyLeaf struct{ name string }

func (k keyLeaf) eval(present func(string) bool) bool { return present(k.name) }
func (k keyLeaf) names() []string                     { return []string{k.name} }
func (k keyLeaf) render() string                      { return k.name }

type keyAll struct{ children []KeyNode }

func (a keyAll) eval(present func(string) bool) bool {
	for _, ch := range a.children {
		if !ch.eval(present) {
			return false
		}
	}
	return true
}

func (a keyAll) names() []string { return childNames(a.children) }
func (a keyAll) render() string  { return "(and " + renderNodes(a.children) + ")" }

type keyAny struct{ children []KeyNode }

func (o keyAny) eval(present func(string) bool) bool {
	for _, ch := range o.children {
		if ch.eval(present) {
			return true
		}
	}
	return false
}

func (o keyAny) names() []string { return childNames(o.children) }
func (o keyAny) render() string  { return "(or " + renderNodes(o.children) + ")" }

// Key builds a leaf requirement: the map must contain this key.
func Key(name string) KeyNode { return keyLeaf{name: name} }

// AllKeys builds an and-group: every child requirement must hold.
func AllKeys(children ...KeyNode) KeyNode { return keyAll{children: children} }

// AnyKey builds an or-group: at least one child requirement must hold.
func AnyKey(children ...KeyNode) KeyNode { return keyAny{children: children} }

func childNames(children []KeyNode) []string {
	var out []string
	for _, ch := range children {
		out = append(out, ch.names()...)
	}
	return out
}

func renderNodes(children []KeyNode) string {
	parts := make([]string, len(children))
	for i, ch := range children {
		parts[i] = ch.render()
	}
	return strings.Join(parts, " ")
}

// KeysOpts declares the key-set of a map spec. All names must be
// namespace-qualified, including the ReqUn/OptUn entries: those are checked
// for presence under their short (unqualified) name but route value
// validation to the spec registered under the qualified name.
type KeysOpts struct {
	Req   []KeyNode
	Opt   []string
	ReqUn []KeyNode
	OptUn []string
}

type keysSpec struct {
	genHolder
	opts KeysOpts
	// unqualified key name -> qualified spec name, from ReqUn and OptUn.
	unqualified map[string]string
}

// Keys builds the map validator. Construction fails with
// ErrMalformedKeySpec when any declared key is not namespace-qualified.
func Keys(opts KeysOpts) (Spec, error) {
	all := append([]string{}, opts.Opt...)
	all = append(all, opts.OptUn...)
	for _, n := range opts.Req {
		all = append(all, n.names()...)
	}
	for _, n := range opts.ReqUn {
		all = append(all, n.names()...)
	}
	unq := make(map[string]string)
	for _, name := range all {
		if !qname.IsQualified(name) {
			return nil, fmt.Errorf("%w: key %q is not namespace-qualified", ErrMalformedKeySpec, name)
		}
	}
	for _, n := range opts.ReqUn {
		for _, name := range n.names() {
			unq[qname.ShortName(name)] = name
		}
	}
	for _, name := range opts.OptUn {
		unq[qname.ShortName(name)] = name
	}
	return &keysSpec{opts: opts, unqualified: unq}, nil
}

// MustKeys is Keys that panics on a malformed key set, for statically
// written key specs.
func MustKeys(opts KeysOpts) Spec {
	s, err := Keys(opts)
	if err != nil {
		panic(err)
	}
	return s
}

func (k *keysSpec) reqHolds(m map[string]any) (KeyNode, bool) {
	has := func(name string) bool {
		_, ok := m[name]
		return ok
	}
	hasShort := func(name string) bool {
		_, ok := m[qname.ShortName(name)]
		return ok
	}
	for _, n := range k.opts.Req {
		if !n.eval(has) {
			return n, false
		}
	}
	for _, n := range k.opts.ReqUn {
		if !n.eval(hasShort) {
			return n, false
		}
	}
	return nil, true
}

// specNameFor maps a key present in the data to the qualified name its
// value is validated under: a qualified key routes to itself (open world:
// every registered qualified key is always checked), an unqualified key
// routes through the declared ReqUn/OptUn pairing.
func (k *keysSpec) specNameFor(key string) (string, bool) {
	if qname.IsQualified(key) {
		return key, true
	}
	name, ok := k.unqualified[key]
	return name, ok
}

func (k *keysSpec) conform(cs *state, v any) (any, error) {
	m, ok := asMap(v)
	if !ok {
		return Invalid, nil
	}
	if _, ok := k.reqHolds(m); !ok {
		return Invalid, nil
	}

	out := make(map[string]any, len(m))
	for key, val := range m {
		out[key] = val
	}
	for _, key := range sortedKeys(m) {
		name, routed := k.specNameFor(key)
		if !routed {
			continue
		}
		s, registered := cs.lookup(name)
		if !registered {
			// Unknown qualified keys are ignored; only registered specs
			// are enforced.
			continue
		}
		cv, err := conformSpec(cs, s, m[key])
		if err != nil {
			return nil, err
		}
		if IsInvalid(cv) {
			return Invalid, nil
		}
		out[key] = cv
	}
	return out, nil
}

func (k *keysSpec) explain(cs *state, pth []any, via []string, v any) ([]Problem, error) {
	m, ok := asMap(v)
	if !ok {
		return []Problem{newProblem(pth, via, v, "map?")}, nil
	}

	var problems []Problem
	if failed, ok := k.reqHolds(m); !ok {
		pred := "contains key " + failed.render()
		problems = append(problems, newProblem(pth, via, v, pred))
	}
	for _, key := range sortedKeys(m) {
		name, routed := k.specNameFor(key)
		if !routed {
			continue
		}
		s, registered := cs.lookup(name)
		if !registered {
			continue
		}
		ps, err := explainSpec(cs, s, childPath(pth, key), childVia(via, name), m[key])
		if err != nil {
			return nil, err
		}
		problems = append(problems, ps...)
	}
	return problems, nil
}

func (k *keysSpec) unform(cs *state, v any) (any, error) {
	m, ok := asMap(v)
	if !ok {
		return nil, fmt.Errorf("%w: keys expects a map", ErrNotUnformable)
	}
	out := make(map[string]any, len(m))
	for key, val := range m {
		out[key] = val
	}
	for _, key := range sortedKeys(m) {
		name, routed := k.specNameFor(key)
		if !routed {
			continue
		}
		s, registered := cs.lookup(name)
		if !registered {
			continue
		}
		uv, err := unformSpec(cs, s, m[key])
		if err != nil {
			return nil, err
		}
		out[key] = uv
	}
	return out, nil
}

func (k *keysSpec) describe() string {
	var parts []string
	if len(k.opts.Req) > 0 {
		parts = append(parts, "req: "+renderNodes(k.opts.Req))
	}
	if len(k.opts.ReqUn) > 0 {
		parts = append(parts, "req-un: "+renderNodes(k.opts.ReqUn))
	}
	if len(k.opts.Opt) > 0 {
		parts = append(parts, "opt: "+strings.Join(k.opts.Opt, " "))
	}
	if len(k.opts.OptUn) > 0 {
		parts = append(parts, "opt-un: "+strings.Join(k.opts.OptUn, " "))
	}
	return "keys(" + strings.Join(parts, ", ") + ")"
}

// --- KVSeq (flattened key-value sequence) ---

type kvSeqSpec struct {
	genHolder
	keys Spec
}

// KVSeq builds the regex op over a flat ordered sequence alternating key
// and value elements: the pairs are gathered into a map which is then
// validated by keys, an ordinary Keys spec. An odd-length input or a
// non-name in key position does not match.
func KVSeq(keys Spec) Spec {
	return &kvSeqSpec{keys: keys}
}

func (k *kvSeqSpec) match(cs *state, f frame, in []any) (matchResult, error) {
	if len(in)%2 != 0 {
		var problems []Problem
		if f.explain {
			problems = []Problem{newProblem(f.pth, f.via, in, "even number of forms")}
		}
		return unmatched(problems), nil
	}

	m := make(map[string]any, len(in)/2)
	for i := 0; i < len(in); i += 2 {
		key, ok := in[i].(string)
		if ok {
			_, err := qname.Parse(key)
			ok = err == nil
		}
		if !ok {
			var problems []Problem
			if f.explain {
				problems = []Problem{newProblem(childPath(f.pth, f.off+i), f.via, in[i], "name in key position")}
			}
			return unmatched(problems), nil
		}
		m[key] = in[i+1]
	}

	cv, err := conformSpec(cs, k.keys, m)
	if err != nil {
		return matchResult{}, err
	}
	if IsInvalid(cv) {
		var problems []Problem
		if f.explain {
			problems, err = explainSpec(cs, k.keys, f.pth, f.via, m)
			if err != nil {
				return matchResult{}, err
			}
		}
		return unmatched(problems), nil
	}
	return matched(len(in), cv), nil
}

func (k *kvSeqSpec) emptyConform() any { return map[string]any{} }

func (k *kvSeqSpec) conform(cs *state, v any) (any, error) {
	return conformSpec(cs, k, v)
}

func (k *kvSeqSpec) explain(cs *state, pth []any, via []string, v any) ([]Problem, error) {
	return explainSpec(cs, k, pth, via, v)
}

func (k *kvSeqSpec) unform(cs *state, v any) (any, error) {
	return k.unformSeq(cs, v)
}

func (k *kvSeqSpec) unformSeq(cs *state, v any) ([]any, error) {
	uv, err := unformSpec(cs, k.keys, v)
	if err != nil {
		return nil, err
	}
	m, ok := asMap(uv)
	if !ok {
		return nil, fmt.Errorf("%w: kv-seq expects a map", ErrNotUnformable)
	}
	out := make([]any, 0, len(m)*2)
	for _, key := range sortedKeys(m) {
		out = append(out, key, m[key])
	}
	return out, nil
}

func (k *kvSeqSpec) describe() string {
	return "kv-seq(" + k.keys.describe() + ")"
}

// sortedKeys keeps map iteration deterministic for explain output.
func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
