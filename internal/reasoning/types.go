package reasoning

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"multiverse-spatial/internal/scenegraph"
	"multiverse-spatial/internal/spatial"
)

var (
	ErrInvalidTier       = errors.New("invalid resource tier")
	ErrResourceExhausted = errors.New("resource budget exhausted")
)

// RelationType names a spatial relation between two nodes.
type RelationType string

const (
	RelationAbove                RelationType = "ABOVE"
	RelationBelow                RelationType = "BELOW"
	RelationLeftOf               RelationType = "LEFT_OF"
	RelationRightOf              RelationType = "RIGHT_OF"
	RelationInFrontOf            RelationType = "IN_FRONT_OF"
	RelationBehind               RelationType = "BEHIND"
	RelationInside               RelationType = "INSIDE"
	RelationOutside              RelationType = "OUTSIDE"
	RelationTouching             RelationType = "TOUCHING"
	RelationAlignedWith          RelationType = "ALIGNED_WITH"
	RelationBetween              RelationType = "BETWEEN"
	RelationSurroundedBy         RelationType = "SURROUNDED_BY"
	RelationPartiallyOccludedBy  RelationType = "PARTIALLY_OCCLUDED_BY"
	RelationCompletelyOccludedBy RelationType = "COMPLETELY_OCCLUDED_BY"
	RelationLineOfSight          RelationType = "LINE_OF_SIGHT"
)

// ParseRelationType accepts a relation name in any case.
func ParseRelationType(s string) (RelationType, bool) {
	typ := RelationType(strings.ToUpper(s))
	switch typ {
	case RelationAbove, RelationBelow, RelationLeftOf, RelationRightOf,
		RelationInFrontOf, RelationBehind, RelationInside, RelationOutside,
		RelationTouching, RelationAlignedWith, RelationBetween, RelationSurroundedBy,
		RelationPartiallyOccludedBy, RelationCompletelyOccludedBy, RelationLineOfSight:
		return typ, true
	}
	return "", false
}

var opposites = map[RelationType]RelationType{
	RelationAbove:     RelationBelow,
	RelationBelow:     RelationAbove,
	RelationLeftOf:    RelationRightOf,
	RelationRightOf:   RelationLeftOf,
	RelationInFrontOf: RelationBehind,
	RelationBehind:    RelationInFrontOf,
}

// SpatialRelationship is a derived fact about two nodes. ObjectA and ObjectB
// point into the scene graph and are not owned by the relationship.
type SpatialRelationship struct {
	ID         string
	Type       RelationType
	ObjectA    *scenegraph.Node
	ObjectB    *scenegraph.Node
	Metrics    map[string]float64
	Attributes map[string]string
}

type relationshipJSON struct {
	ID         string             `json:"id"`
	Type       RelationType       `json:"type"`
	ObjectA    string             `json:"object_a"`
	ObjectB    string             `json:"object_b"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Attributes map[string]string  `json:"attributes,omitempty"`
}

// MarshalJSON writes node references as ids.
func (r SpatialRelationship) MarshalJSON() ([]byte, error) {
	return json.Marshal(relationshipJSON{
		ID:         r.ID,
		Type:       r.Type,
		ObjectA:    nodeID(r.ObjectA),
		ObjectB:    nodeID(r.ObjectB),
		Metrics:    r.Metrics,
		Attributes: r.Attributes,
	})
}

func newRelationship(typ RelationType, a, b *scenegraph.Node) SpatialRelationship {
	return SpatialRelationship{
		ID:         relationshipID(typ, a, b),
		Type:       typ,
		ObjectA:    a,
		ObjectB:    b,
		Metrics:    make(map[string]float64),
		Attributes: make(map[string]string),
	}
}

func relationshipID(typ RelationType, a, b *scenegraph.Node) string {
	return string(typ) + "|" + nodeID(a) + "|" + nodeID(b)
}

// mirrored returns the same fact seen from ObjectB. INSIDE keeps its
// orientation because ObjectA is always the contained node.
func (r SpatialRelationship) mirrored() SpatialRelationship {
	out := r.clone()
	if r.Type == RelationInside {
		return out
	}
	if opp, ok := opposites[r.Type]; ok {
		out.Type = opp
	}
	out.ObjectA, out.ObjectB = r.ObjectB, r.ObjectA
	out.ID = relationshipID(out.Type, out.ObjectA, out.ObjectB)
	return out
}

func (r SpatialRelationship) clone() SpatialRelationship {
	out := r
	out.Metrics = make(map[string]float64, len(r.Metrics))
	for k, v := range r.Metrics {
		out.Metrics[k] = v
	}
	out.Attributes = make(map[string]string, len(r.Attributes))
	for k, v := range r.Attributes {
		out.Attributes[k] = v
	}
	return out
}

// ObstacleType classifies what kind of impediment a node is.
type ObstacleType string

const (
	ObstaclePhysicalBarrier  ObstacleType = "PHYSICAL_BARRIER"
	ObstacleTerrainElevation ObstacleType = "TERRAIN_ELEVATION"
	ObstacleGap              ObstacleType = "GAP"
	ObstacleHazard           ObstacleType = "HAZARD"
	ObstacleRestrictedZone   ObstacleType = "RESTRICTED_ZONE"
	ObstacleMovingObstacle   ObstacleType = "MOVING_OBSTACLE"
	ObstacleDetectionZone    ObstacleType = "DETECTION_ZONE"
)

// Obstacle is a node classified as an impediment relative to a viewpoint.
type Obstacle struct {
	ID           string           `json:"id"`
	Type         ObstacleType     `json:"type"`
	Node         *scenegraph.Node `json:"-"`
	NodeID       string           `json:"node_id"`
	Bounds       spatial.AABB     `json:"bounds"`
	Severity     float64          `json:"severity"`
	Crossability float64          `json:"crossability"`
}

// ContextType classifies a tactical region of the scene.
type ContextType string

const (
	ContextInteractionZone   ContextType = "INTERACTION_ZONE"
	ContextDangerZone        ContextType = "DANGER_ZONE"
	ContextObjectiveArea     ContextType = "OBJECTIVE_AREA"
	ContextResourceRegion    ContextType = "RESOURCE_REGION"
	ContextStrategicLocation ContextType = "STRATEGIC_LOCATION"
	ContextCoverArea         ContextType = "COVER_AREA"
	ContextLineOfSight       ContextType = "LINE_OF_SIGHT"
	ContextPatrolRoute       ContextType = "PATROL_ROUTE"
	ContextChokepoint        ContextType = "CHOKEPOINT"
	ContextOpenArea          ContextType = "OPEN_AREA"
)

// SpatialContext is a region derived from a primary node.
type SpatialContext struct {
	ID         string             `json:"id"`
	Type       ContextType        `json:"type"`
	Primary    *scenegraph.Node   `json:"-"`
	PrimaryID  string             `json:"primary"`
	Contained  []*scenegraph.Node `json:"-"`
	Bounds     spatial.AABB       `json:"bounds"`
	Importance float64            `json:"importance"`
	Attributes map[string]string  `json:"attributes,omitempty"`
}

// ContainedIDs returns the ids of the contained nodes in order.
func (c SpatialContext) ContainedIDs() []string {
	ids := make([]string, len(c.Contained))
	for i, n := range c.Contained {
		ids[i] = n.ID
	}
	return ids
}

// MarshalJSON adds the contained node ids.
func (c SpatialContext) MarshalJSON() ([]byte, error) {
	type plain SpatialContext
	return json.Marshal(struct {
		plain
		Contained []string `json:"contained"`
	}{plain: plain(c), Contained: c.ContainedIDs()})
}

// VulnerabilityType names a kind of exposure found by the threat assessor.
type VulnerabilityType string

const (
	VulnerabilityLineOfSight        VulnerabilityType = "line_of_sight"
	VulnerabilityExposedPosition    VulnerabilityType = "exposed_position"
	VulnerabilityHeightDisadvantage VulnerabilityType = "height_disadvantage"
)

// Vulnerability is one finding of a threat report.
type Vulnerability struct {
	Type                  VulnerabilityType `json:"type"`
	Severity              float64           `json:"severity"`
	SourceID              string            `json:"source_id,omitempty"`
	SourceName            string            `json:"source_name,omitempty"`
	Distance              float64           `json:"distance,omitempty"`
	PartialCoverAvailable bool              `json:"partial_cover_available"`
	CoverNodes            []string          `json:"cover_nodes,omitempty"`
	Occlusion             float64           `json:"occlusion,omitempty"`
	NearestCoverID        string            `json:"nearest_cover_id,omitempty"`
	NearestCoverName      string            `json:"nearest_cover_name,omitempty"`
	CoverDistance         float64           `json:"cover_distance,omitempty"`
	HeightDifference      float64           `json:"height_difference,omitempty"`
	ContextID             string            `json:"context_id,omitempty"`
}

type ReportStatus string

const (
	StatusOK    ReportStatus = "ok"
	StatusError ReportStatus = "error"
)

// ThreatReport is the result of AssessThreat.
type ThreatReport struct {
	ID                 string          `json:"id"`
	ViewpointID        string          `json:"viewpoint_id,omitempty"`
	Status             ReportStatus    `json:"status"`
	Error              string          `json:"error,omitempty"`
	Tier               int             `json:"tier"`
	Vulnerabilities    []Vulnerability `json:"vulnerabilities"`
	OverallThreatLevel float64         `json:"overall_threat_level"`
	Recommendations    []string        `json:"recommendations"`
	Timestamp          time.Time       `json:"timestamp"`
}

func nodeID(n *scenegraph.Node) string {
	if n == nil {
		return ""
	}
	return n.ID
}

func nodeIDs(nodes []*scenegraph.Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
