// Package spec implements a runtime data-specification and conformance
// engine: composable descriptions of the legal shape of values, plus the
// algorithms to check a value against a description (conform), to explain
// why a value failed, and to reverse a conforming transform (unform).
//
// A Spec is built from composition primitives: predicates, conjunction
// (And), tagged disjunction (Or), grammar-style regex ops over sequences
// (Cat, Alt, Star, Plus, Maybe, Amp), a key-set validator for maps (Keys),
// tag-dispatched specs (Multi), fixed-arity tuples, homogeneous collection
// and map wrappers, and function signatures (Fn).
//
// Specs reference each other only by qualified name, through a Resolver.
// Resolution happens lazily at conform time, so forward references and
// redefinition-after-use are legal. The sibling registry package provides
// the process-wide Resolver implementation.
//
// Conform never fails with an error for data that merely does not match:
// mismatching data conforms to the distinguished Invalid value, and Explain
// produces at least one Problem for it. The error channel of the engine
// entry points carries only API misuse: unknown or cyclic spec names,
// malformed key specs, missing dispatch targets, and unformable conformers.
package spec
