// Package scenegraph holds the spatial scene: typed nodes, their registry and the
// documents and world events they are loaded from.
package scenegraph

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"multiverse-spatial/internal/spatial"
)

// ErrInvalidNode is returned for nodes that violate geometry invariants.
var ErrInvalidNode = errors.New("invalid scene node")

// NodeType is the closed set of node kinds.
type NodeType string

const (
	TypeRoot      NodeType = "ROOT"
	TypePlayer    NodeType = "PLAYER"
	TypeNPC       NodeType = "NPC"
	TypeStructure NodeType = "STRUCTURE"
	TypeItem      NodeType = "ITEM"
	TypeTerrain   NodeType = "TERRAIN"
	TypeTrigger   NodeType = "TRIGGER"
	TypeBoundary  NodeType = "BOUNDARY"
	TypeOther     NodeType = "OTHER"
)

// ParseNodeType maps a case-insensitive name to a NodeType; unknown names become OTHER.
func ParseNodeType(s string) NodeType {
	switch t := NodeType(strings.ToUpper(strings.TrimSpace(s))); t {
	case TypeRoot, TypePlayer, TypeNPC, TypeStructure, TypeItem,
		TypeTerrain, TypeTrigger, TypeBoundary:
		return t
	default:
		return TypeOther
	}
}

// Traits are the node attributes the analyzers branch on.
type Traits struct {
	Hazard    bool    `json:"hazard,omitempty"`
	Cover     bool    `json:"cover,omitempty"`
	Door      bool    `json:"door,omitempty"` // door or entrance
	Detection bool    `json:"detection,omitempty"`
	Hostile   bool    `json:"hostile,omitempty"` // hostile or enemy
	Danger    bool    `json:"danger,omitempty"`  // threat or danger
	Moving    bool    `json:"moving,omitempty"`
	Slope     float64 `json:"slope,omitempty"` // degrees
}

// State is the transient part of a node.
type State struct {
	Velocity spatial.Vec3   `json:"velocity"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Node is one entry of the scene graph. Nodes are treated as immutable once
// stored in a Graph: updates replace the node instead of mutating it.
type Node struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        NodeType     `json:"type"`
	Coordinates spatial.Vec3 `json:"coordinates"`
	Dimensions  spatial.Size `json:"dimensions"`
	Traits      Traits       `json:"traits"`
	Tags        Tags         `json:"tags,omitempty"`
	State       State        `json:"dynamic_state"`
	Importance  float64      `json:"importance"`
}

// Box returns the node's axis-aligned bounding box.
func (n *Node) Box() spatial.AABB {
	return spatial.BoxAt(n.Coordinates, n.Dimensions)
}

// Radius returns the largest half-dimension.
func (n *Node) Radius() float64 {
	return n.Dimensions.Radius()
}

// DistanceTo returns the centre-to-centre distance.
func (n *Node) DistanceTo(o *Node) float64 {
	return spatial.DistanceBetween(n.Coordinates, o.Coordinates)
}

// IsMoving reports a moving trait or a non-trivial velocity.
func (n *Node) IsMoving() bool {
	return n.Traits.Moving || n.State.Velocity.Length() > 0.1
}

// IsThreat reports whether the node is a threat to an observer: a hostile NPC,
// or any node flagged as dangerous or hazardous.
func (n *Node) IsThreat() bool {
	return (n.Type == TypeNPC && n.Traits.Hostile) || n.Traits.Danger || n.Traits.Hazard
}

// CanProvideCover reports whether the node can shield an observer.
func (n *Node) CanProvideCover() bool {
	return n.Type == TypeStructure || n.Traits.Cover || n.Dimensions.Height >= 1.0
}

// Validate checks the geometry invariants.
func (n *Node) Validate() error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidNode)
	}
	if n.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidNode)
	}
	if !n.Coordinates.IsFinite() {
		return fmt.Errorf("%w: %s has non-finite coordinates", ErrInvalidNode, n.ID)
	}
	if !n.Dimensions.Valid() {
		return fmt.Errorf("%w: %s has negative or non-finite dimensions", ErrInvalidNode, n.ID)
	}
	if math.IsNaN(n.Importance) || n.Importance < 0 || n.Importance > 1 {
		return fmt.Errorf("%w: %s importance %v outside [0,1]", ErrInvalidNode, n.ID, n.Importance)
	}
	return nil
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.Tags = n.Tags.Clone()
	if n.State.Extra != nil {
		c.State.Extra = make(map[string]any, len(n.State.Extra))
		for k, v := range n.State.Extra {
			c.State.Extra[k] = v
		}
	}
	return &c
}
