// Package dag models the reference graph between named specs. Manifest
// loading builds a graph of which spec names reference which and checks it
// for cycles before any definition reaches the registry, so a cyclic
// manifest fails at load time instead of at first conform.
package dag
