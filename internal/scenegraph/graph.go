package scenegraph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"multiverse-spatial/internal/spatial"
)

// ErrNodeNotFound is returned when an id is not registered.
var ErrNodeNotFound = errors.New("scene node not found")

// Graph is an in-memory scene registry with a uniform-grid spatial index.
// It is safe for concurrent use.
type Graph struct {
	mu         sync.RWMutex
	nodes      map[string]*Node
	index      *spatial.Grid
	viewRadius float64
	maxExtent  float64
	version    uint64
}

// Options configures a Graph.
type Options struct {
	CellSize   float64 // grid cell size, spatial.DefaultCellSize when zero
	ViewRadius float64 // visibility radius, spatial.DefaultViewRadius when zero
}

// NewGraph creates an empty graph.
func NewGraph(opts Options) *Graph {
	if opts.ViewRadius <= 0 {
		opts.ViewRadius = spatial.DefaultViewRadius
	}
	return &Graph{
		nodes:      make(map[string]*Node),
		index:      spatial.NewGrid(opts.CellSize),
		viewRadius: opts.ViewRadius,
	}
}

// Upsert validates and stores a copy of the node, replacing any node with the same id.
func (g *Graph) Upsert(n *Node) error {
	if err := n.Validate(); err != nil {
		return err
	}
	stored := n.Clone()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[stored.ID] = stored
	g.index.Insert(stored.ID, stored.Box())
	if r := stored.Radius(); r > g.maxExtent {
		g.maxExtent = r
	}
	g.version++
	return nil
}

// Remove deletes a node.
func (g *Graph) Remove(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	delete(g.nodes, id)
	g.index.Remove(id)
	g.recomputeExtent()
	g.version++
	return nil
}

// Replace swaps the whole node set atomically. Nothing changes if any node is invalid.
func (g *Graph) Replace(nodes []*Node) error {
	fresh := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		if err := n.Validate(); err != nil {
			return err
		}
		if _, dup := fresh[n.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidNode, n.ID)
		}
		fresh[n.ID] = n.Clone()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = fresh
	g.index = spatial.NewGrid(g.cellSize())
	for id, n := range fresh {
		g.index.Insert(id, n.Box())
	}
	g.recomputeExtent()
	g.version++
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns a snapshot of all nodes ordered by id.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sortByID(out)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Version increases on every mutation.
func (g *Graph) Version() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.version
}

// MaxExtent returns the largest node radius currently stored.
func (g *Graph) MaxExtent() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.maxExtent
}

// VisibleNodes returns the nodes whose centres lie within the view radius of
// the viewpoint, excluding the viewpoint itself.
func (g *Graph) VisibleNodes(viewpoint *Node) []*Node {
	if viewpoint == nil {
		return nil
	}
	scope := spatial.NewScope(viewpoint.Coordinates, g.viewRadius)

	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*Node
	for _, id := range g.index.Query(scope.Bounds()) {
		n := g.nodes[id]
		if id == viewpoint.ID || !scope.IsInScope(n.Coordinates) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// PotentialBlockers returns the nodes whose boxes intersect the segment between
// the viewpoint and target centres.
func (g *Graph) PotentialBlockers(viewpoint, target *Node) []*Node {
	if viewpoint == nil || target == nil {
		return nil
	}
	from, to := viewpoint.Coordinates, target.Coordinates

	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*Node
	for _, id := range g.index.Query(spatial.BoxAround(from, to)) {
		if id == viewpoint.ID || id == target.ID {
			continue
		}
		n := g.nodes[id]
		if n.Box().SegmentIntersects(from, to) {
			out = append(out, n)
		}
	}
	return out
}

// NodesInRegion returns the nodes whose boxes intersect the region.
func (g *Graph) NodesInRegion(region spatial.AABB) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.index.Query(region)
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.nodes[id])
	}
	return out
}

func (g *Graph) cellSize() float64 {
	if g.index != nil {
		return g.index.CellSize()
	}
	return spatial.DefaultCellSize
}

func (g *Graph) recomputeExtent() {
	g.maxExtent = 0
	for _, n := range g.nodes {
		if r := n.Radius(); r > g.maxExtent {
			g.maxExtent = r
		}
	}
}

func sortByID(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}
