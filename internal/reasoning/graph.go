package reasoning

import (
	"multiverse-spatial/internal/scenegraph"
	"multiverse-spatial/internal/spatial"
)

// SceneGraph is the read side of the scene the engine reasons about.
type SceneGraph interface {
	Node(id string) (*scenegraph.Node, bool)
	Nodes() []*scenegraph.Node
	VisibleNodes(viewpoint *scenegraph.Node) []*scenegraph.Node
	PotentialBlockers(viewpoint, target *scenegraph.Node) []*scenegraph.Node
}

// versioned graphs let the engine drop cached facts after the scene changes.
type versioned interface {
	Version() uint64
}

// regionIndexed graphs can narrow candidate sets by bounding box.
type regionIndexed interface {
	NodesInRegion(region spatial.AABB) []*scenegraph.Node
	MaxExtent() float64
}

var _ SceneGraph = (*scenegraph.Graph)(nil)
var _ versioned = (*scenegraph.Graph)(nil)
var _ regionIndexed = (*scenegraph.Graph)(nil)
