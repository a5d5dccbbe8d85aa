package spec

import (
	"reflect"
	"strings"
)

type fnSpec struct {
	genHolder
	args Spec
	ret  Spec
	rel  Spec
}

// Fn builds the function-signature spec. Any of args (a regex op over the
// argument list), ret and rel (the relational spec over {args, ret}) may be
// nil. Conforming a callable against an Fn spec yields the callable itself:
// the spec validates behavior, not structure, and exists to drive the
// registry's instrumentation layer and external generative checking.
func Fn(args, ret, rel Spec) Spec {
	return &fnSpec{args: args, ret: ret, rel: rel}
}

// FnParts exposes the sub-specs of an Fn spec to the instrumentation
// layer.
func FnParts(s Spec) (args, ret, rel Spec, ok bool) {
	f, ok := s.(*fnSpec)
	if !ok {
		return nil, nil, nil, false
	}
	return f.args, f.ret, f.rel, true
}

func isCallable(v any) bool {
	if _, ok := v.(Callable); ok {
		return true
	}
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}

func (f *fnSpec) conform(cs *state, v any) (any, error) {
	if isCallable(v) {
		return v, nil
	}
	return Invalid, nil
}

func (f *fnSpec) explain(cs *state, pth []any, via []string, v any) ([]Problem, error) {
	if isCallable(v) {
		return nil, nil
	}
	return []Problem{newProblem(pth, via, v, "fn?")}, nil
}

func (f *fnSpec) unform(cs *state, v any) (any, error) { return v, nil }

func (f *fnSpec) describe() string {
	var parts []string
	if f.args != nil {
		parts = append(parts, "args: "+f.args.describe())
	}
	if f.ret != nil {
		parts = append(parts, "ret: "+f.ret.describe())
	}
	if f.rel != nil {
		parts = append(parts, "fn: "+f.rel.describe())
	}
	return "fspec(" + strings.Join(parts, ", ") + ")"
}
