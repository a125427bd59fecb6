package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyoa-editor/story"
)

func TestBuildEdges(t *testing.T) {
	pages := []story.Page{
		story.NewPage("Start", "[[Forest]] [[Forest]] [[Start]] [[Nowhere]]", ""),
		story.NewPage("Forest", "back to [[start]]", "#ff0000"),
	}
	g := Build(pages)

	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "#ff0000", g.Nodes[1].Color)

	require.Len(t, g.Edges, 3, "duplicates kept, self loop and unknown target dropped")
	ids := map[string]bool{}
	for _, e := range g.Edges {
		assert.False(t, ids[e.ID], "edge ids must be unique")
		ids[e.ID] = true
		assert.NotEqual(t, e.Source, e.Target)
	}
	assert.Equal(t, "forest", g.Edges[0].Target)
	assert.Equal(t, "start", g.Edges[2].Target)
}

func TestBuildDoesNotMutate(t *testing.T) {
	pages := []story.Page{story.NewPage("Only", "[[Only]]", "")}
	before := pages[0].Clone()
	g := Build(pages)
	assert.Equal(t, before, pages[0])
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, Position{}, g.Nodes[0].Position, "single node sits at the centre")
	assert.Empty(t, g.Edges)
}

func TestBuildSkipsDeletedMarkers(t *testing.T) {
	pages := []story.Page{
		story.NewPage("Start", "[[Castle (apagada)]] [[Castle Apagada]]", ""),
		story.NewPage("Castle Apagada", "", ""),
	}
	g := Build(pages)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "castle-apagada", g.Edges[0].Target)
}

func TestRadiusClamps(t *testing.T) {
	assert.Equal(t, 250.0, Radius(3))
	assert.Equal(t, 150.0+10*30.0, Radius(10))
	assert.Equal(t, 150.0+30*15.0, Radius(30))
	assert.GreaterOrEqual(t, Radius(21), 400.0)
}

func TestNodesOnCircle(t *testing.T) {
	var pages []story.Page
	for _, title := range []string{"A", "B", "C", "D", "E", "F"} {
		pages = append(pages, story.NewPage(title, "", ""))
	}
	g := Build(pages)
	r := Radius(len(pages))
	for _, n := range g.Nodes {
		assert.InDelta(t, r, math.Hypot(n.Position.X, n.Position.Y), 1e-6)
	}
}

func TestReachable(t *testing.T) {
	pages := []story.Page{
		story.NewPage("A", "[[B]]", ""),
		story.NewPage("B", "[[C]]", ""),
		story.NewPage("C", "", ""),
		story.NewPage("D", "[[A]]", ""),
	}
	seen := Build(pages).Reachable("a")
	assert.True(t, seen["c"])
	assert.False(t, seen["d"])
}
