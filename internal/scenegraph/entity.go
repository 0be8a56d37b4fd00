package scenegraph

import (
	"encoding/json"
	"fmt"
	"strings"

	"multiverse-spatial/internal/spatial"
)

// entityKinds maps world entity types onto node types.
var entityKinds = map[string]NodeType{
	"player":    TypePlayer,
	"npc":       TypeNPC,
	"creature":  TypeNPC,
	"structure": TypeStructure,
	"building":  TypeStructure,
	"item":      TypeItem,
	"terrain":   TypeTerrain,
	"region":    TypeTerrain,
	"trigger":   TypeTrigger,
	"boundary":  TypeBoundary,
	"world":     TypeRoot,
}

// NodeTypeForEntity maps a world entity type ("npc", "building") to a node type.
func NodeTypeForEntity(entityType string) NodeType {
	if t, ok := entityKinds[strings.ToLower(entityType)]; ok {
		return t
	}
	return ParseNodeType(entityType)
}

var positionKeys = []string{"coordinates", "position", "location"}

// EntityPosition reads a position from an entity payload.
func EntityPosition(payload map[string]any) (spatial.Vec3, bool) {
	for _, key := range positionKeys {
		if v, ok := payload[key]; ok {
			return toVec3(v)
		}
	}
	return spatial.Vec3{}, false
}

// EntityVelocity reads an optional velocity from an entity payload.
func EntityVelocity(payload map[string]any) (spatial.Vec3, bool) {
	if v, ok := payload["velocity"]; ok {
		return toVec3(v)
	}
	if st, ok := payload["dynamic_state"].(map[string]any); ok {
		return toVec3(st["velocity"])
	}
	return spatial.Vec3{}, false
}

// FromEntityPayload builds a node from a world entity payload. Position is read
// from "coordinates", "position" or "location"; the remaining keys follow the
// scene document node layout.
func FromEntityPayload(entityID, entityType string, payload map[string]any) (*Node, error) {
	if entityID == "" {
		return nil, fmt.Errorf("%w: entity without id", ErrInvalidNode)
	}
	var coords any
	for _, key := range positionKeys {
		if v, ok := payload[key]; ok {
			coords = v
			break
		}
	}
	if coords == nil {
		return nil, fmt.Errorf("%w: entity %s has no position", ErrInvalidNode, entityID)
	}

	raw := map[string]any{
		"id":          entityID,
		"type":        string(NodeTypeForEntity(entityType)),
		"coordinates": coords,
	}
	for _, key := range []string{"name", "dimensions", "properties", "dynamic_state", "importance"} {
		if v, ok := payload[key]; ok {
			raw[key] = v
		}
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode entity %s: %w", entityID, err)
	}
	var spec NodeSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: entity %s: %v", ErrInvalidNode, entityID, err)
	}
	n := spec.ToNode()
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}
