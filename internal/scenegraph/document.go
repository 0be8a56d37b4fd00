package scenegraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"multiverse-spatial/internal/schema"
	"multiverse-spatial/internal/spatial"
)

// Format of a serialized scene document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat guesses the format from a content type or file name.
func DetectFormat(hint string) Format {
	h := strings.ToLower(hint)
	if strings.Contains(h, "yaml") || strings.HasSuffix(h, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}

// Document is the serialized form of a scene.
type Document struct {
	SceneID string     `json:"scene_id,omitempty" yaml:"scene_id,omitempty"`
	Nodes   []NodeSpec `json:"nodes" yaml:"nodes"`
}

// NodeSpec is the serialized form of a node. Properties is the free-form map
// that is split into typed Traits and open Tags.
type NodeSpec struct {
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name,omitempty" yaml:"name,omitempty"`
	Type         string         `json:"type" yaml:"type"`
	Coordinates  spatial.Vec3   `json:"coordinates" yaml:"coordinates"`
	Dimensions   spatial.Size   `json:"dimensions" yaml:"dimensions"`
	Properties   map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
	DynamicState map[string]any `json:"dynamic_state,omitempty" yaml:"dynamic_state,omitempty"`
	Importance   *float64       `json:"importance,omitempty" yaml:"importance,omitempty"`
}

// DefaultImportance applies when a spec omits importance.
const DefaultImportance = 0.5

// DecodeDocument parses, schema-validates and converts a scene document.
func DecodeDocument(data []byte, format Format, v *schema.Validator) (*Document, []*Node, error) {
	var raw interface{}
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, nil, fmt.Errorf("parse yaml scene: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("parse json scene: %w", err)
		}
	}
	if v != nil {
		if err := v.Validate(raw); err != nil {
			return nil, nil, err
		}
	}

	// Round-trip through JSON so YAML and JSON share one decoding path.
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("normalize scene: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode scene: %w", err)
	}

	nodes := make([]*Node, 0, len(doc.Nodes))
	for _, spec := range doc.Nodes {
		n := spec.ToNode()
		if err := n.Validate(); err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	return &doc, nodes, nil
}

// EncodeDocument serializes nodes as a scene document.
func EncodeDocument(sceneID string, nodes []*Node, format Format) ([]byte, error) {
	doc := Document{SceneID: sceneID, Nodes: make([]NodeSpec, 0, len(nodes))}
	for _, n := range nodes {
		doc.Nodes = append(doc.Nodes, SpecFromNode(n))
	}
	if format == FormatYAML {
		return yaml.Marshal(doc)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// ToNode converts the spec, splitting known properties into traits.
func (s NodeSpec) ToNode() *Node {
	n := &Node{
		ID:          s.ID,
		Name:        s.Name,
		Type:        ParseNodeType(s.Type),
		Coordinates: s.Coordinates,
		Dimensions:  s.Dimensions,
		Importance:  DefaultImportance,
	}
	if n.Name == "" {
		n.Name = s.ID
	}
	if s.Importance != nil {
		n.Importance = *s.Importance
	}

	tags := make(Tags)
	for key, value := range s.Properties {
		if !applyTrait(&n.Traits, key, value) {
			tags[key] = value
		}
	}
	if len(tags) > 0 {
		n.Tags = tags
	}

	for key, value := range s.DynamicState {
		if key == "velocity" {
			if vel, ok := toVec3(value); ok {
				n.State.Velocity = vel
				continue
			}
		}
		if n.State.Extra == nil {
			n.State.Extra = make(map[string]any)
		}
		n.State.Extra[key] = value
	}
	return n
}

// SpecFromNode is the inverse of ToNode.
func SpecFromNode(n *Node) NodeSpec {
	props := make(map[string]any, len(n.Tags)+8)
	for k, v := range n.Tags {
		props[k] = v
	}
	t := n.Traits
	for key, on := range map[string]bool{
		"hazard": t.Hazard, "cover": t.Cover, "door": t.Door, "detection": t.Detection,
		"hostile": t.Hostile, "danger": t.Danger, "moving": t.Moving,
	} {
		if on {
			props[key] = true
		}
	}
	if t.Slope != 0 {
		props["slope"] = t.Slope
	}

	state := make(map[string]any, len(n.State.Extra)+1)
	for k, v := range n.State.Extra {
		state[k] = v
	}
	if n.State.Velocity != (spatial.Vec3{}) {
		state["velocity"] = map[string]any{
			"x": n.State.Velocity.X, "y": n.State.Velocity.Y, "z": n.State.Velocity.Z,
		}
	}

	importance := n.Importance
	spec := NodeSpec{
		ID:          n.ID,
		Name:        n.Name,
		Type:        string(n.Type),
		Coordinates: n.Coordinates,
		Dimensions:  n.Dimensions,
		Importance:  &importance,
	}
	if len(props) > 0 {
		spec.Properties = props
	}
	if len(state) > 0 {
		spec.DynamicState = state
	}
	return spec
}

// applyTrait maps a well-known property onto Traits. Returns false for
// properties that belong in the open tag map.
func applyTrait(t *Traits, key string, value any) bool {
	on := truthy(value)
	switch strings.ToLower(key) {
	case "hazard":
		t.Hazard = on
	case "cover":
		t.Cover = on
	case "door", "entrance":
		t.Door = t.Door || on
	case "detection", "camera", "sensor":
		t.Detection = t.Detection || on
	case "hostile", "enemy":
		t.Hostile = t.Hostile || on
	case "threat", "danger":
		t.Danger = t.Danger || on
	case "moving":
		t.Moving = on
	case "slope":
		f, ok := toFloat(value)
		if !ok {
			return false
		}
		t.Slope = f
	default:
		return false
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toVec3(v any) (spatial.Vec3, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return spatial.Vec3{}, false
	}
	var out spatial.Vec3
	var found bool
	for key, dst := range map[string]*float64{"x": &out.X, "y": &out.Y, "z": &out.Z} {
		if f, ok := toFloat(m[key]); ok {
			*dst = f
			found = true
		}
	}
	return out, found
}
