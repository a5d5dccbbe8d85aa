package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/vk/conformgo/internal/qname"
	"github.com/vk/conformgo/internal/spec"
)

// ErrUnknownFn is returned when a named function has no registered
// callable.
var ErrUnknownFn = fmt.Errorf("unknown function")

// fnSlot is the callable indirection every named call dereferences.
// Instrument swaps current for a checking wrapper; original is kept so
// Unstrument can restore it.
type fnSlot struct {
	original     spec.Callable
	current      spec.Callable
	instrumented bool
}

// InstrumentationError is raised by an instrumented call whose arguments
// fail the function's args spec, before the underlying callable runs.
type InstrumentationError struct {
	Name     string
	Problems []spec.Problem
}

func (e *InstrumentationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "call to %s did not conform", e.Name)
	for _, p := range e.Problems {
		b.WriteString("\n  ")
		b.WriteString(p.String())
	}
	return b.String()
}

// DefineFn binds a callable to the qualified name and returns the name.
// Rebinding replaces the underlying callable; an instrumented name stays
// instrumented, with the wrapper now delegating to the new callable.
func (r *Registry) DefineFn(name string, fn spec.Callable) string {
	if !qname.IsQualified(name) {
		panic(fmt.Sprintf("function name %q is not namespace-qualified", name))
	}
	if fn == nil {
		panic(fmt.Sprintf("function %q is nil", name))
	}
	slog.Debug("Registering function.", "name", name)
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.fns[name]
	if !ok {
		r.fns[name] = &fnSlot{original: fn, current: fn}
		return name
	}
	slot.original = fn
	if !slot.instrumented {
		slot.current = fn
	}
	return name
}

// DefineFnSpec registers the signature spec for a named function and
// returns the name. fspec must have been built with spec.Fn.
func (r *Registry) DefineFnSpec(name string, fspec spec.Spec) string {
	if !qname.IsQualified(name) {
		panic(fmt.Sprintf("function name %q is not namespace-qualified", name))
	}
	if _, _, _, ok := spec.FnParts(fspec); !ok {
		panic(fmt.Sprintf("spec for function %q is not a function spec", name))
	}
	slog.Debug("Registering function spec.", "name", name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fnSpecs[name] = fspec
	return name
}

// FnSpec returns the signature spec registered for name.
func (r *Registry) FnSpec(name string) (spec.Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.fnSpecs[name]
	return s, ok
}

// Fn returns a callable bound to name by reference: each invocation
// dereferences the slot, so instrumenting or rebinding the name takes
// effect on the next call even for callers that captured the callable
// earlier.
func (r *Registry) Fn(name string) spec.Callable {
	return func(ctx context.Context, args ...any) (any, error) {
		r.mu.RLock()
		slot, ok := r.fns[name]
		var fn spec.Callable
		if ok {
			fn = slot.current
		}
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFn, name)
		}
		return fn(ctx, args...)
	}
}

func (r *Registry) hasFn(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.fns[name]
	return ok
}

// Call invokes the function bound to name.
func (r *Registry) Call(ctx context.Context, name string, args ...any) (any, error) {
	return r.Fn(name)(ctx, args...)
}

// FnNames returns every function name with a bound callable, sorted.
func (r *Registry) FnNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SpecedFnNames returns every function name with a registered signature
// spec, sorted.
func (r *Registry) SpecedFnNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fnSpecs))
	for name := range r.fnSpecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InstrumentedNames returns every currently instrumented function name,
// sorted.
func (r *Registry) InstrumentedNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, slot := range r.fns {
		if slot.instrumented {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Instrument replaces the callable bound to name with a wrapper that
// conforms each call's arguments against the function's args spec and
// fails with *InstrumentationError before the original runs when they do
// not conform. The original is always invoked with the original,
// unconformed arguments. Reports whether the binding changed: a name
// already instrumented or lacking a signature spec is left alone. A name
// with no bound callable fails with ErrUnknownFn.
func (r *Registry) Instrument(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.fns[name]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownFn, name)
	}
	if slot.instrumented {
		return false, nil
	}
	fspec, ok := r.fnSpecs[name]
	if !ok {
		return false, nil
	}
	args, _, _, ok := spec.FnParts(fspec)
	if !ok || args == nil {
		return false, nil
	}

	slog.Debug("Instrumenting function.", "name", name)
	slot.current = r.checkingWrapper(name, slot, args)
	slot.instrumented = true
	return true, nil
}

// checkingWrapper builds the instrumented callable for one slot. It reads
// slot.original on every call, so a later DefineFn rebinding flows
// through.
func (r *Registry) checkingWrapper(name string, slot *fnSlot, args spec.Spec) spec.Callable {
	return func(ctx context.Context, callArgs ...any) (any, error) {
		if instrumentationEnabled(ctx) {
			in := make([]any, len(callArgs))
			copy(in, callArgs)
			cv, err := spec.Conform(r, args, in)
			if err != nil {
				return nil, err
			}
			if spec.IsInvalid(cv) {
				problems, err := spec.Explain(r, args, in)
				if err != nil {
					return nil, err
				}
				return nil, &InstrumentationError{Name: name, Problems: problems}
			}
		}

		r.mu.RLock()
		fn := slot.original
		r.mu.RUnlock()
		return fn(ctx, callArgs...)
	}
}

// Unstrument restores the original callable bound to name. Reports whether
// the binding changed; an uninstrumented or unknown name is a no-op.
func (r *Registry) Unstrument(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.fns[name]
	if !ok || !slot.instrumented {
		return false
	}
	slog.Debug("Unstrumenting function.", "name", name)
	slot.current = slot.original
	slot.instrumented = false
	return true
}

// InstrumentAll instruments every speced function, optionally restricted
// to one namespace, and returns the names actually changed.
func (r *Registry) InstrumentAll(namespace string) ([]string, error) {
	var changed []string
	for _, name := range r.SpecedFnNames() {
		if namespace != "" && qname.Namespace(name) != namespace {
			continue
		}
		if !r.hasFn(name) {
			continue
		}
		did, err := r.Instrument(name)
		if err != nil {
			return changed, err
		}
		if did {
			changed = append(changed, name)
		}
	}
	return changed, nil
}

// UnstrumentAll restores every instrumented function, optionally
// restricted to one namespace, and returns the names actually changed.
func (r *Registry) UnstrumentAll(namespace string) []string {
	var changed []string
	for _, name := range r.InstrumentedNames() {
		if namespace != "" && qname.Namespace(name) != namespace {
			continue
		}
		if r.Unstrument(name) {
			changed = append(changed, name)
		}
	}
	return changed
}
