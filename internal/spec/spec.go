package spec

import (
	"context"
	"reflect"
)

// Invalid is the distinguished result of conforming a value that does not
// match its spec. It is a sentinel value, not an error: data-shape mismatch
// is a normal outcome of Conform.
var Invalid any = invalidValue{}

type invalidValue struct{}

func (invalidValue) String() string { return "<invalid>" }

// IsInvalid reports whether v is the Invalid sentinel.
func IsInvalid(v any) bool {
	_, ok := v.(invalidValue)
	return ok
}

// Resolver looks up the spec currently registered under a qualified name.
// The registry package provides the canonical implementation.
type Resolver interface {
	LookupSpec(name string) (Spec, bool)
}

// Generator produces an example value for a spec. Generation is an external
// collaborator's concern: this package only stores and forwards the
// capability, attached with WithGen and retrieved with GeneratorOf.
type Generator func() any

// Callable is the function shape checked by Fn specs and wrapped by the
// registry's instrumentation layer.
type Callable = func(ctx context.Context, args ...any) (any, error)

// Tagged is the conformed form of Or and Alt: the tag of the first matching
// branch paired with that branch's conformed value.
type Tagged struct {
	Tag   string `json:"tag"`
	Value any    `json:"value"`
}

// Choice pairs a tag with a child spec for Or, Cat and Alt.
type Choice struct {
	Tag  string
	Spec Spec
}

// C is shorthand for constructing a Choice.
func C(tag string, s Spec) Choice {
	return Choice{Tag: tag, Spec: s}
}

// Spec is a description of the legal shape of values. Implementations live
// in this package; callers compose them through the exported constructors.
type Spec interface {
	conform(cs *state, v any) (any, error)
	explain(cs *state, pth []any, via []string, v any) ([]Problem, error)
	unform(cs *state, v any) (any, error)
	describe() string
	generator() Generator
}

// genHolder carries the optional externally supplied Generator. Every
// variant embeds it.
type genHolder struct {
	g Generator
}

func (h *genHolder) generator() Generator { return h.g }
func (h *genHolder) setGenerator(g Generator) { h.g = g }

type genSettable interface {
	setGenerator(Generator)
}

// WithGen attaches an external example-value generator to s and returns s.
// Attach generators at construction time, before the spec is shared.
func WithGen(s Spec, g Generator) Spec {
	s.(genSettable).setGenerator(g)
	return s
}

// GeneratorOf returns the generator attached to s, if any.
func GeneratorOf(s Spec) (Generator, bool) {
	g := s.generator()
	return g, g != nil
}

// state threads the resolver through a single conform/explain/unform call.
type state struct {
	res Resolver
}

func (cs *state) lookup(name string) (Spec, bool) {
	if cs.res == nil {
		return nil, false
	}
	return cs.res.LookupSpec(name)
}

// asSeq coerces v into the element slice regex ops and collection specs
// consume. nil is the empty sequence. Typed slices are widened via
// reflection so callers are not forced to pre-convert to []any.
func asSeq(v any) ([]any, bool) {
	switch s := v.(type) {
	case nil:
		return nil, true
	case []any:
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
	return nil, false
}

// asMap coerces v into the string-keyed map shape the key-set validator
// operates on.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, true
	}
	return nil, false
}
