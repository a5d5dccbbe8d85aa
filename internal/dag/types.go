package dag

import "sync"

// Graph is the directed reference graph over named specs. All operations
// on the graph are concurrency-safe.
type Graph struct {
	// mutex protects the nodes map during concurrent access.
	mutex sync.RWMutex
	// nodes stores all vertices in the graph, keyed by spec name.
	nodes map[string]*node
}

// node represents one named spec in the graph. It is un-exported to
// enforce interaction with the graph via the public API (using spec
// names), not by direct struct manipulation.
type node struct {
	// name is the qualified spec name.
	name string
	// refs holds the set of specs this spec references.
	refs map[string]*node
	// referrers holds the set of specs that reference this spec.
	referrers map[string]*node
}
