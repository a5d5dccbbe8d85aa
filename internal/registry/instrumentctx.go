package registry

import "context"

// key is an unexported type to prevent collisions with context keys from
// other packages.
type key struct{}

// disabledKey marks a context subtree in which instrumented wrappers call
// straight through without checking arguments.
var disabledKey = key{}

// WithoutInstrumentation returns a context under which instrumented
// wrappers skip the argument check. The disable is scoped to the derived
// context: work running under the parent context is unaffected, and the
// check re-applies as soon as callers go back to the parent, however the
// scoped call exits.
func WithoutInstrumentation(ctx context.Context) context.Context {
	return context.WithValue(ctx, disabledKey, true)
}

func instrumentationEnabled(ctx context.Context) bool {
	disabled, ok := ctx.Value(disabledKey).(bool)
	return !ok || !disabled
}
