package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/vk/conformgo/internal/qname"
	"github.com/vk/conformgo/internal/spec"
)

// Registry holds the named specs and speced functions of a single
// application instance. It implements spec.Resolver, so conforming against
// a spec that references names resolves through it.
type Registry struct {
	mu      sync.RWMutex
	specs   map[string]spec.Spec
	fns     map[string]*fnSlot
	fnSpecs map[string]spec.Spec
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		specs:   make(map[string]spec.Spec),
		fns:     make(map[string]*fnSlot),
		fnSpecs: make(map[string]spec.Spec),
	}
}

// Define stores s under the qualified name and returns the name.
// Redefinition replaces the previous spec; every reader observes the new
// one on its next lookup. An unqualified name is programmer misuse and
// panics.
func (r *Registry) Define(name string, s spec.Spec) string {
	if !qname.IsQualified(name) {
		panic(fmt.Sprintf("spec name %q is not namespace-qualified", name))
	}
	if s == nil {
		panic(fmt.Sprintf("spec %q is nil", name))
	}
	slog.Debug("Registering spec.", "name", name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[name] = s
	return name
}

// LookupSpec implements spec.Resolver.
func (r *Registry) LookupSpec(name string) (spec.Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// Resolve looks up name and follows bare name references transitively
// until a concrete spec is reached. It fails with ErrUnknownSpec when a
// name is absent and ErrCyclicSpec when the reference chain loops.
func (r *Registry) Resolve(name string) (spec.Spec, error) {
	seen := map[string]bool{}
	for {
		if seen[name] {
			return nil, fmt.Errorf("%w: reference chain loops through %q", spec.ErrCyclicSpec, name)
		}
		seen[name] = true

		s, ok := r.LookupSpec(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", spec.ErrUnknownSpec, name)
		}
		next, isRef := spec.RefName(s)
		if !isRef {
			return s, nil
		}
		name = next
	}
}

// SpecNames returns every defined spec name, sorted.
func (r *Registry) SpecNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// toSpec accepts either a spec value or a registered name.
func toSpec(target any) (spec.Spec, error) {
	switch t := target.(type) {
	case spec.Spec:
		return t, nil
	case string:
		return spec.Ref(t), nil
	}
	return nil, fmt.Errorf("spec target must be a spec or a name, got %T", target)
}

// Conform conforms v against target, which is either a spec value or a
// registered name.
func (r *Registry) Conform(target any, v any) (any, error) {
	s, err := toSpec(target)
	if err != nil {
		return nil, err
	}
	return spec.Conform(r, s, v)
}

// Explain reports why v does not conform to target; an empty list means it
// does.
func (r *Registry) Explain(target any, v any) ([]spec.Problem, error) {
	s, err := toSpec(target)
	if err != nil {
		return nil, err
	}
	return spec.Explain(r, s, v)
}

// Valid reports whether v conforms to target.
func (r *Registry) Valid(target any, v any) (bool, error) {
	s, err := toSpec(target)
	if err != nil {
		return false, err
	}
	return spec.Valid(r, s, v)
}

// Unform inverts Conform for target on an already-conformed value.
func (r *Registry) Unform(target any, conformed any) (any, error) {
	s, err := toSpec(target)
	if err != nil {
		return nil, err
	}
	return spec.Unform(r, s, conformed)
}
