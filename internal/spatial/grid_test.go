package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGridQuery(t *testing.T) {
	g := NewGrid(5)
	g.Insert("a", BoxAt(V(0, 0, 0), Size{1, 1, 1}))
	g.Insert("b", BoxAt(V(12, 0, 0), Size{1, 1, 1}))
	g.Insert("wall", BoxAt(V(6, 0, 0), Size{1, 4, 30}))

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []string{"a"}, g.Query(BoxAt(V(0, 0, 0), Size{2, 2, 2})))
	assert.Equal(t, []string{"a", "b", "wall"}, g.Query(AABB{Min: V(-1, -1, -1), Max: V(13, 1, 1)}))
	assert.Equal(t, []string{"wall"}, g.Query(BoxAt(V(6, 0, 12), Size{1, 1, 1})))
}

func TestGridMoveAndRemove(t *testing.T) {
	g := NewGrid(5)
	g.Insert("a", BoxAt(V(0, 0, 0), Size{1, 1, 1}))
	g.Insert("a", BoxAt(V(50, 0, 0), Size{1, 1, 1}))

	assert.Empty(t, g.Query(BoxAt(V(0, 0, 0), Size{2, 2, 2})))
	assert.Equal(t, []string{"a"}, g.Query(BoxAt(V(50, 0, 0), Size{2, 2, 2})))

	g.Remove("a")
	g.Remove("missing")
	assert.Zero(t, g.Len())
	assert.Empty(t, g.Query(BoxAt(V(50, 0, 0), Size{2, 2, 2})))
}

func TestGridOversized(t *testing.T) {
	g := NewGrid(1)
	g.Insert("terrain", BoxAt(V(0, 0, 0), Size{1000, 1, 1000}))
	g.Insert("rock", BoxAt(V(3, 0, 3), Size{1, 1, 1}))

	assert.Equal(t, []string{"rock", "terrain"}, g.Query(BoxAt(V(3, 0, 3), Size{1, 1, 1})))
	assert.Equal(t, []string{"terrain"}, g.Query(BoxAt(V(400, 0, 400), Size{1, 1, 1})))
}

func TestGridFarCoordinates(t *testing.T) {
	g := NewGrid(5)
	g.Insert("far", BoxAt(V(1e20, 0, -1e20), Size{1, 1, 1}))
	g.Insert("near", BoxAt(V(0, 0, 0), Size{1, 1, 1}))
	g.Insert("huge", BoxAt(V(0, 0, 0), Size{1e19, 1, 1}))

	assert.Equal(t, []string{"far"}, g.Query(BoxAt(V(1e20, 0, -1e20), Size{2, 2, 2})))
	assert.Equal(t, []string{"huge", "near"}, g.Query(BoxAt(V(0, 0, 0), Size{2, 2, 2})))
	assert.Equal(t, []string{"huge"}, g.Query(BoxAt(V(1e18, 0, 0), Size{2, 2, 2})))

	g.Remove("far")
	assert.Empty(t, g.Query(BoxAt(V(1e20, 0, -1e20), Size{2, 2, 2})))
	assert.Equal(t, 2, g.Len())
}
