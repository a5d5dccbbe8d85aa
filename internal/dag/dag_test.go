package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.NotNil(t, g.nodes)
	assert.Empty(t, g.nodes)
}

func TestAddSpec(t *testing.T) {
	g := New()

	g.AddSpec("demo/a")
	assert.Len(t, g.nodes, 1)
	nodeA, ok := g.nodes["demo/a"]
	require.True(t, ok)
	assert.Equal(t, "demo/a", nodeA.name)
	assert.NotNil(t, nodeA.refs)
	assert.NotNil(t, nodeA.referrers)

	g.AddSpec("demo/a") // Test idempotency
	assert.Len(t, g.nodes, 1)

	g.AddSpec("demo/b")
	assert.Len(t, g.nodes, 2)
	_, ok = g.nodes["demo/b"]
	assert.True(t, ok)
}

func TestAddReference(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := New()
		g.AddSpec("demo/a")
		g.AddSpec("demo/b")

		err := g.AddReference("demo/a", "demo/b")
		require.NoError(t, err)

		nodeA := g.nodes["demo/a"]
		nodeB := g.nodes["demo/b"]

		assert.Contains(t, nodeA.refs, "demo/b")
		assert.Equal(t, nodeB, nodeA.refs["demo/b"])
		assert.Contains(t, nodeB.referrers, "demo/a")
		assert.Equal(t, nodeA, nodeB.referrers["demo/a"])
	})

	t.Run("error cases", func(t *testing.T) {
		g := New()
		g.AddSpec("demo/a")

		err := g.AddReference("demo/dne", "demo/a")
		assert.ErrorContains(t, err, "referencing spec not found")

		err = g.AddReference("demo/a", "demo/dne")
		assert.ErrorContains(t, err, "referenced spec not found")
	})
}

func TestReferences(t *testing.T) {
	g := New()
	g.AddSpec("demo/a")
	g.AddSpec("demo/b")
	g.AddSpec("demo/c")
	require.NoError(t, g.AddReference("demo/a", "demo/c"))
	require.NoError(t, g.AddReference("demo/a", "demo/b"))

	refs, err := g.References("demo/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"demo/b", "demo/c"}, refs)

	_, err = g.References("demo/dne")
	assert.Error(t, err)
}

func TestDetectCycles(t *testing.T) {
	t.Run("empty graph has no cycles", func(t *testing.T) {
		g := New()
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("specs without references have no cycles", func(t *testing.T) {
		g := New()
		g.AddSpec("demo/a")
		g.AddSpec("demo/b")
		g.AddSpec("demo/c")
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("acyclic reference chain", func(t *testing.T) {
		g := New()
		g.AddSpec("demo/a")
		g.AddSpec("demo/b")
		g.AddSpec("demo/c")
		g.AddSpec("demo/d")
		require.NoError(t, g.AddReference("demo/a", "demo/b"))
		require.NoError(t, g.AddReference("demo/b", "demo/c"))
		require.NoError(t, g.AddReference("demo/a", "demo/c")) // Transitive edge
		require.NoError(t, g.AddReference("demo/c", "demo/d"))
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("self reference is a cycle", func(t *testing.T) {
		g := New()
		g.AddSpec("demo/a")
		require.NoError(t, g.AddReference("demo/a", "demo/a"))
		err := g.DetectCycles()
		assert.ErrorContains(t, err, "cyclic spec reference")
	})

	t.Run("direct two-spec cycle", func(t *testing.T) {
		g := New()
		g.AddSpec("demo/a")
		g.AddSpec("demo/b")
		require.NoError(t, g.AddReference("demo/a", "demo/b"))
		require.NoError(t, g.AddReference("demo/b", "demo/a"))
		err := g.DetectCycles()
		assert.ErrorContains(t, err, "cyclic spec reference")
	})

	t.Run("longer cycle is detected", func(t *testing.T) {
		g := New()
		g.AddSpec("demo/a")
		g.AddSpec("demo/b")
		g.AddSpec("demo/c")
		g.AddSpec("demo/d")
		require.NoError(t, g.AddReference("demo/a", "demo/b"))
		require.NoError(t, g.AddReference("demo/b", "demo/c"))
		require.NoError(t, g.AddReference("demo/c", "demo/d"))
		require.NoError(t, g.AddReference("demo/d", "demo/a"))
		err := g.DetectCycles()
		assert.ErrorContains(t, err, "cyclic spec reference")
	})

	t.Run("cycle in a disjoint component is detected", func(t *testing.T) {
		g := New()
		// Component 1 (valid)
		g.AddSpec("demo/a")
		g.AddSpec("demo/b")
		require.NoError(t, g.AddReference("demo/a", "demo/b"))

		// Component 2 (has a cycle)
		g.AddSpec("other/x")
		g.AddSpec("other/y")
		g.AddSpec("other/z")
		require.NoError(t, g.AddReference("other/x", "other/y"))
		require.NoError(t, g.AddReference("other/y", "other/z"))
		require.NoError(t, g.AddReference("other/z", "other/y"))

		err := g.DetectCycles()
		assert.ErrorContains(t, err, "cyclic spec reference")
	})
}
