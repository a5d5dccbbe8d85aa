package dag

import (
	"fmt"
	"sort"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddSpec adds a vertex for the given spec name. If the name is already
// present, the function does nothing.
func (g *Graph) AddSpec(name string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[name]; ok {
		return
	}

	g.nodes[name] = &node{
		name:      name,
		refs:      make(map[string]*node),
		referrers: make(map[string]*node),
	}
}

// AddReference records that spec `from` references spec `to`. An error is
// returned if either name has not been added. A self-reference is recorded
// like any other edge; DetectCycles reports it.
func (g *Graph) AddReference(from, to string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[from]
	if !ok {
		return fmt.Errorf("referencing spec not found: %s", from)
	}

	toNode, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("referenced spec not found: %s", to)
	}

	fromNode.refs[to] = toNode
	toNode.referrers[from] = fromNode

	return nil
}

// References returns the sorted names of the specs that `name` directly
// references.
func (g *Graph) References(name string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[name]
	if !ok {
		return nil, fmt.Errorf("spec not found: %s", name)
	}

	refs := make([]string, 0, len(n.refs))
	for ref := range n.refs {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs, nil
}

// DetectCycles checks the graph for any reference cycles. It returns a
// non-nil error if a cycle is found, naming the first spec involved in the
// detected cycle.
func (g *Graph) DetectCycles() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	// Classic depth-first search with three sets of vertices:
	// permanent: fully visited, known not to be part of a cycle.
	// temporary: currently in the recursion stack of this traversal.
	// unvisited: everything else.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.name] {
			return nil
		}
		if temporary[n.name] {
			// A vertex already in the recursion stack means a cycle.
			return fmt.Errorf("cyclic spec reference involving '%s'", n.name)
		}

		temporary[n.name] = true

		for _, ref := range n.refs {
			if err := visit(ref); err != nil {
				return err
			}
		}

		delete(temporary, n.name)
		permanent[n.name] = true

		return nil
	}

	for _, n := range g.nodes {
		if !permanent[n.name] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}

	return nil
}
