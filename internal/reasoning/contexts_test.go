package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiverse-spatial/internal/scenegraph"
	"multiverse-spatial/internal/spatial"
)

func important(n *scenegraph.Node, importance float64) *scenegraph.Node {
	n.Importance = importance
	return n
}

func TestIdentifySpatialContexts(t *testing.T) {
	wolf := important(node("wolf", scenegraph.TypeNPC, spatial.V(10, 0, 0), cube(1)), 0.9)
	wolf.Traits.Hostile = true
	wolf.Traits.Cover = true
	crate := important(node("crate", scenegraph.TypeItem, spatial.V(12, 0, 0), cube(1)), 0.2)
	wall := important(node("wall", scenegraph.TypeStructure, spatial.V(-10, 0, 0), cube(2)), 0.5)
	wall.Traits.Cover = true
	flag := important(node("flag", scenegraph.TypeOther, spatial.V(0, 0, 20), cube(1)), 0.6)
	flag.Tags = scenegraph.Tags{"objective": true}
	ground := important(node("ground", scenegraph.TypeTerrain, spatial.V(0, -1, 0), spatial.Size{Width: 100, Height: 0.2, Depth: 100}), 0.3)

	e := newTestEngine(t, newTestGraph(t, wolf, crate, wall, flag, ground))
	ctxs := e.IdentifySpatialContexts()
	require.Len(t, ctxs, 3)

	assert.Equal(t, ContextDangerZone, ctxs[0].Type, "danger wins over cover")
	assert.Equal(t, "wolf", ctxs[0].PrimaryID)
	assert.Equal(t, []string{"crate"}, ctxs[0].ContainedIDs())
	assert.Equal(t, spatial.V(4.5, -5.5, -5.5), ctxs[0].Bounds.Min)

	assert.Equal(t, ContextObjectiveArea, ctxs[1].Type)
	assert.Equal(t, ContextCoverArea, ctxs[2].Type)
	assert.Equal(t, ctxs, e.Contexts())
}

func TestLineOfSightCorridorContext(t *testing.T) {
	vp := important(node("vp", scenegraph.TypePlayer, spatial.V(0, 0, 0), cube(1)), 0.5)
	target := important(node("target", scenegraph.TypeNPC, spatial.V(20, 0, 0), cube(1)), 0.7)
	bush := important(node("bush", scenegraph.TypeItem, spatial.V(10, 0, 1), spatial.Size{Width: 0.5, Height: 0.5, Depth: 0.5}), 0.1)
	e := newTestEngine(t, newTestGraph(t, vp, target, bush))

	require.Empty(t, e.AnalyzeOcclusion(vp, target))
	ctxs := e.IdentifySpatialContexts()
	require.Len(t, ctxs, 3)

	assert.Equal(t, "ctx|INTERACTION_ZONE|target", ctxs[0].ID)
	corridor := ctxs[1]
	assert.Equal(t, ContextLineOfSight, corridor.Type)
	assert.Equal(t, "vp", corridor.PrimaryID)
	assert.Equal(t, "target", corridor.Attributes["target"])
	assert.Equal(t, 0.7, corridor.Importance)
	assert.Equal(t, []string{"bush"}, corridor.ContainedIDs())
	assert.Equal(t, spatial.V(-2, -2, -2), corridor.Bounds.Min)
	assert.Equal(t, spatial.V(22, 2, 2), corridor.Bounds.Max)
	assert.Equal(t, "ctx|INTERACTION_ZONE|vp", ctxs[2].ID)
}

func TestContextsFollowTier(t *testing.T) {
	nodes := []*scenegraph.Node{}
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		nodes = append(nodes, important(node(id, scenegraph.TypeNPC, spatial.V(0, 0, 0), cube(1)), 0.5))
	}
	e := newTestEngine(t, newTestGraph(t, nodes...))
	assert.Len(t, e.IdentifySpatialContexts(), 10)

	require.NoError(t, e.SetResourceTier(1))
	assert.Len(t, e.IdentifySpatialContexts(), 8)

	require.NoError(t, e.SetResourceTier(0))
	assert.Empty(t, e.IdentifySpatialContexts())
	assert.Empty(t, e.Contexts())
}

func TestClassifyContextPrecedence(t *testing.T) {
	tests := []struct {
		name string
		node *scenegraph.Node
		want ContextType
	}{
		{"item", node("n", scenegraph.TypeItem, spatial.V(0, 0, 0), cube(1)), ContextResourceRegion},
		{"door", func() *scenegraph.Node {
			n := node("n", scenegraph.TypeStructure, spatial.V(0, 0, 0), cube(1))
			n.Traits.Door = true
			return n
		}(), ContextChokepoint},
		{"patrol", func() *scenegraph.Node {
			n := node("n", scenegraph.TypeNPC, spatial.V(0, 0, 0), cube(1))
			n.Tags = scenegraph.Tags{"patrol": true}
			return n
		}(), ContextPatrolRoute},
		{"hill", node("n", scenegraph.TypeTerrain, spatial.V(0, 0, 0), spatial.Size{Width: 10, Height: 3, Depth: 10}), ContextStrategicLocation},
		{"field", node("n", scenegraph.TypeTerrain, spatial.V(0, 0, 0), spatial.Size{Width: 10, Height: 0.1, Depth: 10}), ContextOpenArea},
		{"player", node("n", scenegraph.TypePlayer, spatial.V(0, 0, 0), cube(1)), ContextInteractionZone},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rule, ok := classifyContext(tc.node)
			require.True(t, ok)
			assert.Equal(t, tc.want, rule.typ)
		})
	}
	_, ok := classifyContext(node("n", scenegraph.TypeOther, spatial.V(0, 0, 0), cube(1)))
	assert.False(t, ok)
}
