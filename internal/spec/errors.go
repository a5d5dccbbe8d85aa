package spec

import "errors"

// API-misuse failures. These surface on the error channel of the engine
// entry points and are matched with errors.Is; they are distinct from the
// Invalid sentinel, which reports data that merely does not match.
var (
	// ErrUnknownSpec is returned when a name resolves to nothing.
	ErrUnknownSpec = errors.New("unknown spec")

	// ErrCyclicSpec is returned when following name references loops back
	// on itself before reaching a concrete spec.
	ErrCyclicSpec = errors.New("cyclic spec reference")

	// ErrMalformedKeySpec is returned by Keys when a required or optional
	// key is not namespace-qualified.
	ErrMalformedKeySpec = errors.New("malformed key spec")

	// ErrNoDispatchSpec is returned by a Multi spec whose lookup function
	// yields no spec for the computed dispatch tag.
	ErrNoDispatchSpec = errors.New("no dispatch spec")

	// ErrNotUnformable is returned when unforming a spec whose conforming
	// transform discards information, such as a Conformer without an
	// unform function.
	ErrNotUnformable = errors.New("not unformable")
)
