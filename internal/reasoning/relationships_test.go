package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiverse-spatial/internal/scenegraph"
	"multiverse-spatial/internal/spatial"
)

func findRel(rels []SpatialRelationship, typ RelationType) (SpatialRelationship, bool) {
	for _, r := range rels {
		if r.Type == typ {
			return r, true
		}
	}
	return SpatialRelationship{}, false
}

func TestAnalyzeRelationshipsAboveBelow(t *testing.T) {
	a := node("a", scenegraph.TypeItem, spatial.V(0, 5, 0), cube(1))
	b := node("b", scenegraph.TypeItem, spatial.V(0, 0, 0), cube(1))
	e := newTestEngine(t, newTestGraph(t, a, b))

	ab := e.AnalyzeRelationships(a, b)
	above, ok := findRel(ab, RelationAbove)
	require.True(t, ok)
	assert.Equal(t, "a", above.ObjectA.ID)
	assert.Equal(t, "b", above.ObjectB.ID)
	assert.InDelta(t, 4.0, above.Metrics["vertical_distance"], 1e-9)

	aligned, ok := findRel(ab, RelationAlignedWith)
	require.True(t, ok)
	assert.Equal(t, "y", aligned.Attributes["axis"])

	_, ok = findRel(ab, RelationTouching)
	assert.False(t, ok)
}

func TestRelationshipsMirrorSymmetry(t *testing.T) {
	pairs := []struct {
		name string
		a, b *scenegraph.Node
	}{
		{"vertical", node("a", scenegraph.TypeItem, spatial.V(0, 5, 0), cube(1)),
			node("b", scenegraph.TypeItem, spatial.V(0, 0, 0), cube(1))},
		{"diagonal", node("m", scenegraph.TypeItem, spatial.V(-4, 2, 7), cube(1)),
			node("k", scenegraph.TypeItem, spatial.V(3, -1, -2), cube(2))},
		{"overlapping", node("p", scenegraph.TypeItem, spatial.V(0, 0, 0), cube(2)),
			node("q", scenegraph.TypeItem, spatial.V(1, 0, 0), cube(2))},
	}
	for _, tc := range pairs {
		t.Run(tc.name, func(t *testing.T) {
			// separate engines so neither order is served from the other's cache
			forward := newTestEngine(t, newTestGraph(t)).AnalyzeRelationships(tc.a, tc.b)
			backward := newTestEngine(t, newTestGraph(t)).AnalyzeRelationships(tc.b, tc.a)
			cached := newTestEngine(t, newTestGraph(t))
			cached.AnalyzeRelationships(tc.a, tc.b)
			mirrored := cached.AnalyzeRelationships(tc.b, tc.a)

			require.NotEmpty(t, forward)
			require.Len(t, backward, len(forward))
			assert.ElementsMatch(t, backward, mirrored)

			for _, r := range forward {
				want := r.mirrored()
				got, ok := findRel(backward, want.Type)
				require.True(t, ok, "missing %s in reversed result", want.Type)
				assert.Equal(t, want.ObjectA.ID, got.ObjectA.ID)
				assert.Equal(t, want.ObjectB.ID, got.ObjectB.ID)
				assert.Equal(t, r.Metrics, got.Metrics)
			}

			_, above := findRel(forward, RelationAbove)
			_, below := findRel(backward, RelationBelow)
			assert.Equal(t, above, below)
		})
	}
}

func TestRelationshipsIdempotentUntilReset(t *testing.T) {
	a := node("a", scenegraph.TypeItem, spatial.V(0, 5, 0), cube(1))
	b := node("b", scenegraph.TypeItem, spatial.V(0, 0, 0), cube(1))
	e := newTestEngine(t, newTestGraph(t, a, b))

	first := e.AnalyzeRelationships(a, b)
	second := e.AnalyzeRelationships(a, b)
	assert.Equal(t, first, second)

	moved := b.Clone()
	moved.Coordinates = spatial.V(0, 10, 0)
	stale := e.AnalyzeRelationships(a, moved)
	_, ok := findRel(stale, RelationAbove)
	assert.True(t, ok, "cached pair is reused")

	e.Reset()
	fresh := e.AnalyzeRelationships(a, moved)
	below, ok := findRel(fresh, RelationBelow)
	require.True(t, ok)
	assert.InDelta(t, 4.0, below.Metrics["vertical_distance"], 1e-9)
	assert.Equal(t, "a", below.ObjectA.ID)
}

func TestRelationshipsContainment(t *testing.T) {
	outer := node("outer", scenegraph.TypeStructure, spatial.V(0, 0, 0), cube(10))
	inner := node("inner", scenegraph.TypeItem, spatial.V(1, 1, 1), cube(2))
	e := newTestEngine(t, newTestGraph(t, outer, inner))

	for _, rels := range [][]SpatialRelationship{
		e.AnalyzeRelationships(outer, inner),
		e.AnalyzeRelationships(inner, outer),
	} {
		inside, ok := findRel(rels, RelationInside)
		require.True(t, ok)
		assert.Equal(t, "inner", inside.ObjectA.ID)
		assert.Equal(t, "outer", inside.ObjectB.ID)
		assert.InDelta(t, 8.0/1000.0, inside.Metrics["volume_ratio"], 1e-9)

		touching, ok := findRel(rels, RelationTouching)
		require.True(t, ok)
		assert.InDelta(t, 8.0, touching.Metrics["overlap_volume"], 1e-9)
	}
}

func TestRelationshipsDegenerateInput(t *testing.T) {
	a := node("a", scenegraph.TypeItem, spatial.V(0, 0, 0), cube(1))
	e := newTestEngine(t, newTestGraph(t, a))

	assert.Empty(t, e.AnalyzeRelationships(a, a))
	assert.Nil(t, e.AnalyzeRelationships(a, nil))
	assert.Nil(t, e.AnalyzeRelationships(nil, a))
}

func TestRelationshipsTouchingFaces(t *testing.T) {
	a := node("a", scenegraph.TypeItem, spatial.V(0, 0, 0), cube(2))
	b := node("b", scenegraph.TypeItem, spatial.V(2, 0, 0), cube(2))
	e := newTestEngine(t, newTestGraph(t, a, b))

	rels := e.AnalyzeRelationships(a, b)
	touching, ok := findRel(rels, RelationTouching)
	require.True(t, ok)
	assert.Zero(t, touching.Metrics["overlap_volume"])
	_, ok = findRel(rels, RelationLeftOf)
	assert.False(t, ok)
}

func TestRelationshipsPrecisionFollowsTier(t *testing.T) {
	a := node("a", scenegraph.TypeItem, spatial.V(0, 5.3, 0), cube(1))
	b := node("b", scenegraph.TypeItem, spatial.V(0, 0, 0), cube(1))
	e := newTestEngine(t, newTestGraph(t, a, b))
	require.NoError(t, e.SetResourceTier(0))

	above, ok := findRel(e.AnalyzeRelationships(a, b), RelationAbove)
	require.True(t, ok)
	assert.Equal(t, 4.0, above.Metrics["vertical_distance"])
}

func TestFindBetween(t *testing.T) {
	a := node("A", scenegraph.TypePlayer, spatial.V(0, 0, 0), cube(1))
	b := node("B", scenegraph.TypeNPC, spatial.V(10, 0, 0), cube(1))
	near := node("near", scenegraph.TypeItem, spatial.V(5, 0, 0.5), cube(1))
	far := node("far", scenegraph.TypeItem, spatial.V(5, 0, 5), cube(1))
	behind := node("behind", scenegraph.TypeItem, spatial.V(-3, 0, 0), cube(1))
	g := newTestGraph(t, a, b, near, far, behind)
	e := newTestEngine(t, g)

	got := e.FindBetween(a, b)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].ID)
	assert.Equal(t, 1, e.CacheStats().Facts)

	// second call does not duplicate the BETWEEN fact
	e.FindBetween(a, b)
	assert.Equal(t, 1, e.CacheStats().Facts)

	assert.Empty(t, e.FindBetween(a, a))
}

func TestFindBetweenRecordsPathMetrics(t *testing.T) {
	a := node("A", scenegraph.TypePlayer, spatial.V(0, 0, 0), cube(1))
	b := node("B", scenegraph.TypeNPC, spatial.V(10, 0, 0), cube(1))
	near := node("near", scenegraph.TypeItem, spatial.V(5, 0, 0.5), cube(2))
	far := node("far", scenegraph.TypeItem, spatial.V(5, 0, 5), cube(2))
	e := newTestEngine(t, newTestGraph(t, a, b, near, far))

	got := e.FindBetween(a, b)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].ID)

	facts := e.Facts(RelationBetween)
	require.Len(t, facts, 1)
	f := facts[0]
	assert.Equal(t, "near", f.ObjectA.ID)
	assert.Equal(t, "A", f.ObjectB.ID)
	assert.Equal(t, "B", f.Attributes["end"])
	assert.InDelta(t, 5.0, f.Metrics["distance_along_path"], 1e-9)
	assert.InDelta(t, 0.5, f.Metrics["lateral_distance"], 1e-9)

	// copies: callers cannot mutate the cache
	f.Metrics["lateral_distance"] = 42
	assert.InDelta(t, 0.5, e.Facts(RelationBetween)[0].Metrics["lateral_distance"], 1e-9)
	assert.Empty(t, e.Facts(RelationLineOfSight))
}

func TestFindBetweenWithoutRegionIndex(t *testing.T) {
	a := node("A", scenegraph.TypePlayer, spatial.V(0, 0, 0), cube(1))
	b := node("B", scenegraph.TypeNPC, spatial.V(10, 0, 0), cube(1))
	wide := node("wide", scenegraph.TypeStructure, spatial.V(5, 0, 4), spatial.Size{Width: 1, Height: 1, Depth: 8})
	thin := node("thin", scenegraph.TypeItem, spatial.V(2, 0, 4), cube(1))
	g := newTestGraph(t, a, b, wide, thin)

	indexed := newTestEngine(t, g).FindBetween(a, b)
	scanned := newTestEngine(t, plainGraph{g}).FindBetween(a, b)

	require.Len(t, indexed, 1)
	assert.Equal(t, "wide", indexed[0].ID)
	assert.Equal(t, nodeIDs(indexed), nodeIDs(scanned))
}

// plainGraph hides the optional index and version methods.
type plainGraph struct{ g *scenegraph.Graph }

func (p plainGraph) Node(id string) (*scenegraph.Node, bool) {
	return p.g.Node(id)
}

func (p plainGraph) Nodes() []*scenegraph.Node {
	return p.g.Nodes()
}

func (p plainGraph) VisibleNodes(vp *scenegraph.Node) []*scenegraph.Node {
	return p.g.VisibleNodes(vp)
}

func (p plainGraph) PotentialBlockers(vp, t *scenegraph.Node) []*scenegraph.Node {
	return p.g.PotentialBlockers(vp, t)
}

func TestRelationshipJSONUsesIDs(t *testing.T) {
	a := node("a", scenegraph.TypeItem, spatial.V(0, 5, 0), cube(1))
	b := node("b", scenegraph.TypeItem, spatial.V(0, 0, 0), cube(1))
	r := newRelationship(RelationAbove, a, b)
	r.Metrics["vertical_distance"] = 4

	data, err := r.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"ABOVE|a|b","type":"ABOVE","object_a":"a","object_b":"b","metrics":{"vertical_distance":4}}`, string(data))
}
