package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSort_InsertionOrderForIndependentNodes(t *testing.T) {
	g := New()
	g.AddNode("c")
	g.AddNode("a")
	g.AddNode("b")

	sorted, err := g.Sort()
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, sorted)
}

func TestSort_DependenciesFirst(t *testing.T) {
	g := New()
	g.AddNode("app")
	g.AddNode("db")
	g.AddNode("cache")
	require.NoError(t, g.AddDependency("app", "db"))
	require.NoError(t, g.AddDependency("app", "cache"))

	sorted, err := g.Sort()
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "cache", "app"}, sorted)
}

func TestSort_Deterministic(t *testing.T) {
	build := func() *Graph {
		g := New()
		for _, n := range []string{"root", "x", "y", "z"} {
			g.AddNode(n)
		}
		require.NoError(t, g.AddDependency("z", "x"))
		require.NoError(t, g.AddDependency("z", "y"))
		return g
	}

	first, err := build().Sort()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := build().Sort()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCycleDetection(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("b")
	g.AddNode("c")
	require.NoError(t, g.AddDependency("a", "b"))
	require.NoError(t, g.AddDependency("b", "c"))
	require.NoError(t, g.AddDependency("c", "a"))

	cycle := g.Cycle()
	require.NotNil(t, cycle)
	assert.GreaterOrEqual(t, len(cycle), 3)

	_, err := g.Sort()
	assert.ErrorContains(t, err, "cycle")
}

func TestAddDependency_Errors(t *testing.T) {
	g := New()
	g.AddNode("a")

	assert.Error(t, g.AddDependency("a", "missing"))
	assert.Error(t, g.AddDependency("missing", "a"))
	assert.Error(t, g.AddDependency("a", "a"))
}

func TestAddNode_ReAddKeepsPosition(t *testing.T) {
	g := New()
	g.AddNode("first")
	g.AddNode("second")
	g.AddNode("first")

	sorted, err := g.Sort()
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, sorted)
}
