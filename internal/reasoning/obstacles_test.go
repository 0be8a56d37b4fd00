package reasoning

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiverse-spatial/internal/scenegraph"
	"multiverse-spatial/internal/spatial"
)

func TestClassifyObstacle(t *testing.T) {
	tests := []struct {
		name  string
		node  *scenegraph.Node
		want  ObstacleType
		cross float64
	}{
		{"boundary", node("n", scenegraph.TypeBoundary, spatial.V(0, 0, 0), cube(3)), ObstaclePhysicalBarrier, 0},
		{"door", func() *scenegraph.Node {
			n := node("n", scenegraph.TypeStructure, spatial.V(0, 0, 0), cube(3))
			n.Traits.Door = true
			return n
		}(), ObstaclePhysicalBarrier, 0.8},
		{"low wall", node("n", scenegraph.TypeStructure, spatial.V(0, 0, 0), spatial.Size{Width: 4, Height: 1, Depth: 1}), ObstaclePhysicalBarrier, 0.5},
		{"slope", func() *scenegraph.Node {
			n := node("n", scenegraph.TypeTerrain, spatial.V(0, 0, 0), spatial.Size{Width: 10, Height: 0.5, Depth: 10})
			n.Traits.Slope = 30
			return n
		}(), ObstacleTerrainElevation, 1 - 30.0/45.0},
		{"ridge", node("n", scenegraph.TypeTerrain, spatial.V(0, 0, 0), spatial.Size{Width: 10, Height: 1.5, Depth: 10}), ObstacleTerrainElevation, 0.25},
		{"gap", func() *scenegraph.Node {
			n := node("n", scenegraph.TypeTerrain, spatial.V(0, 0, 0), spatial.Size{Width: 2.5, Height: 0.1, Depth: 1})
			n.Tags = scenegraph.Tags{"gap": true}
			return n
		}(), ObstacleGap, 0.5},
		{"camera", func() *scenegraph.Node {
			n := node("n", scenegraph.TypeTrigger, spatial.V(0, 0, 0), cube(3))
			n.Traits.Detection = true
			return n
		}(), ObstacleDetectionZone, 1},
		{"restricted", func() *scenegraph.Node {
			n := node("n", scenegraph.TypeTrigger, spatial.V(0, 0, 0), cube(3))
			n.Tags = scenegraph.Tags{"restricted": true}
			return n
		}(), ObstacleRestrictedZone, 0.2},
		{"fire", func() *scenegraph.Node {
			n := node("n", scenegraph.TypeItem, spatial.V(0, 0, 0), cube(1))
			n.Traits.Hazard = true
			return n
		}(), ObstacleHazard, 0.3},
		{"cart", func() *scenegraph.Node {
			n := node("n", scenegraph.TypeItem, spatial.V(0, 0, 0), cube(1))
			n.State.Velocity = spatial.V(1, 0, 0)
			return n
		}(), ObstacleMovingObstacle, 0.5},
		{"boulder", node("n", scenegraph.TypeItem, spatial.V(0, 0, 0), cube(3)), ObstaclePhysicalBarrier, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			typ, ok := classifyObstacle(tc.node)
			require.True(t, ok)
			assert.Equal(t, tc.want, typ)
			assert.InDelta(t, tc.cross, crossability(tc.node, typ), 1e-9)
		})
	}

	_, ok := classifyObstacle(node("crate", scenegraph.TypeItem, spatial.V(0, 0, 0), cube(1.5)))
	assert.False(t, ok)
	_, ok = classifyObstacle(node("flat", scenegraph.TypeTerrain, spatial.V(0, 0, 0), spatial.Size{Width: 10, Height: 0.2, Depth: 10}))
	assert.False(t, ok)
}

func TestObstacleSeverity(t *testing.T) {
	wall := node("wall", scenegraph.TypeStructure, spatial.V(0, 0, 0), cube(3))
	assert.InDelta(t, 0.8, obstacleSeverity(wall, 50), 1e-9)
	assert.InDelta(t, 0.9, obstacleSeverity(wall, 7), 1e-9)
	assert.Equal(t, 1.0, obstacleSeverity(wall, 2))

	fire := node("fire", scenegraph.TypeItem, spatial.V(0, 0, 0), cube(1))
	fire.Traits.Hazard = true
	assert.InDelta(t, 0.9, obstacleSeverity(fire, 50), 1e-9)
}

func TestIdentifyObstaclesOrderAndDeterminism(t *testing.T) {
	vp := node("vp", scenegraph.TypePlayer, spatial.V(0, 0, 0), cube(1))
	near := node("near", scenegraph.TypeStructure, spatial.V(3, 0, 0), cube(3))
	far := node("far", scenegraph.TypeStructure, spatial.V(50, 0, 0), cube(3))
	small := node("pebble", scenegraph.TypeStructure, spatial.V(1, 0, 0), cube(0.5))
	twin := node("alpha", scenegraph.TypeStructure, spatial.V(-50, 0, 0), cube(3))
	g := newTestGraph(t, vp, near, far, small, twin)

	e := newTestEngine(t, g)
	first := e.IdentifyObstacles(vp)
	require.Len(t, first, 3)
	assert.Equal(t, "near", first[0].NodeID)
	assert.Equal(t, "alpha", first[1].NodeID, "equal severity falls back to id order")
	assert.Equal(t, "far", first[2].NodeID)

	second := e.IdentifyObstacles(vp)
	assert.Equal(t, first, second)

	other := newTestEngine(t, g).IdentifyObstacles(vp)
	require.Len(t, other, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, other[i].ID)
		assert.Equal(t, first[i].Type, other[i].Type)
		assert.Equal(t, first[i].Severity, other[i].Severity)
		assert.Equal(t, first[i].Crossability, other[i].Crossability)
	}
	assert.Nil(t, e.IdentifyObstacles(nil))
}

func TestIdentifyObstaclesCappedByTier(t *testing.T) {
	vp := node("vp", scenegraph.TypePlayer, spatial.V(0, 0, 0), cube(1))
	nodes := []*scenegraph.Node{vp}
	for i := 0; i < 12; i++ {
		nodes = append(nodes, node(fmt.Sprintf("wall-%02d", i), scenegraph.TypeStructure, spatial.V(float64(i*3+3), 0, 0), cube(2)))
	}
	e := newTestEngine(t, newTestGraph(t, nodes...))
	assert.Len(t, e.IdentifyObstacles(vp), 12)

	require.NoError(t, e.SetResourceTier(0))
	assert.Len(t, e.IdentifyObstacles(vp), 8)
}
