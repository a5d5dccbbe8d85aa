// Package registry provides the central store for named specs and speced
// functions.
//
// The Registry maps qualified names (e.g. "acct/email") to spec values and
// to callable slots. Specs refer to each other by name, so the registry is
// also the Resolver the conformance engine dereferences through. Function
// slots add one level of indirection to every call, which is what lets
// Instrument and Unstrument swap a checking wrapper in and out without
// callers noticing.
//
// Reads vastly outnumber writes in steady state, so the registry is a
// read-mostly map guarded by a reader-writer lock.
package registry
