// Package manifest loads spec definitions from HCL files into a registry.
//
// A manifest file holds `spec "ns/name" { ... }` blocks describing spec
// compositions declaratively and `fn "ns/name" { ... }` blocks declaring
// function signatures. Loading decodes every block, checks that every
// referenced name exists and that the reference graph is acyclic, and only
// then defines the specs, so a broken manifest set fails as a whole at
// startup instead of at first use.
package manifest
