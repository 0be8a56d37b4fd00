package reasoning

import (
	"math"
	"sort"

	"multiverse-spatial/internal/scenegraph"
	"multiverse-spatial/internal/spatial"
)

const (
	// minObstacleSize is the smallest largest-dimension worth classifying.
	minObstacleSize = 1.0
	// barrierSize makes an otherwise unclassified node a barrier.
	barrierSize = 2.0
	// elevatedHeight is the terrain height that counts as elevation.
	elevatedHeight = 1.0
)

// IdentifyObstacles classifies every other node as seen from viewpoint,
// ordered by severity (highest first) and capped by the tier profile.
func (e *Engine) IdentifyObstacles(viewpoint *scenegraph.Node) (out []Obstacle) {
	defer e.recoverOp("identify_obstacles")
	defer e.begin()()
	return e.identifyObstacles(viewpoint)
}

func (e *Engine) identifyObstacles(viewpoint *scenegraph.Node) []Obstacle {
	if viewpoint == nil {
		e.logger.Warn("identify obstacles: missing viewpoint")
		return nil
	}

	var out []Obstacle
	for _, n := range e.graph.Nodes() {
		if n.ID == viewpoint.ID || n.Dimensions.Largest() < minObstacleSize {
			continue
		}
		key := obstacleKey{viewpoint: viewpoint.ID, node: n.ID}
		if ob, ok := e.cache.obstacles.Get(key); ok {
			out = append(out, ob)
			continue
		}
		typ, ok := classifyObstacle(n)
		if !ok {
			continue
		}
		ob := Obstacle{
			ID:           "obstacle|" + n.ID,
			Type:         typ,
			Node:         n,
			NodeID:       n.ID,
			Bounds:       n.Box(),
			Severity:     obstacleSeverity(n, viewpoint.DistanceTo(n)),
			Crossability: crossability(n, typ),
		}
		e.cache.obstacles.Add(key, ob)
		out = append(out, ob)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].ID < out[j].ID
	})
	if limit := e.profile.MaxObstacles; limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	e.record("identify_obstacles",
		map[string]any{"viewpoint": viewpoint.ID},
		map[string]any{"count": len(out)})
	return out
}

func classifyObstacle(n *scenegraph.Node) (ObstacleType, bool) {
	switch n.Type {
	case scenegraph.TypeBoundary, scenegraph.TypeStructure:
		return ObstaclePhysicalBarrier, true
	case scenegraph.TypeTerrain:
		if n.Tags.HasAny("gap", "chasm", "pit") {
			return ObstacleGap, true
		}
		if isElevated(n) {
			return ObstacleTerrainElevation, true
		}
	case scenegraph.TypeTrigger:
		if n.Traits.Detection {
			return ObstacleDetectionZone, true
		}
		if n.Tags.HasAny("restricted", "forbidden") {
			return ObstacleRestrictedZone, true
		}
	}
	switch {
	case n.Traits.Hazard:
		return ObstacleHazard, true
	case n.IsMoving():
		return ObstacleMovingObstacle, true
	case n.Type != scenegraph.TypeTerrain && n.Dimensions.Largest() > barrierSize:
		return ObstaclePhysicalBarrier, true
	}
	return "", false
}

func isElevated(n *scenegraph.Node) bool {
	return n.Dimensions.Height > elevatedHeight || n.Traits.Slope > 0
}

func obstacleSeverity(n *scenegraph.Node, dist float64) float64 {
	s := 0.5 + n.Dimensions.Largest()/10
	switch {
	case dist < 5:
		s += 0.3
	case dist < 10:
		s += 0.1
	}
	if n.Traits.Hazard {
		s += 0.3
	}
	if n.IsMoving() {
		s += 0.2
	}
	return spatial.Clamp01(s)
}

func crossability(n *scenegraph.Node, typ ObstacleType) float64 {
	d := n.Dimensions
	switch {
	case n.Type == scenegraph.TypeBoundary:
		return 0
	case n.Type == scenegraph.TypeStructure && n.Traits.Door:
		return 0.8
	}
	switch typ {
	case ObstacleTerrainElevation:
		if n.Traits.Slope > 0 {
			return spatial.Clamp01(1 - n.Traits.Slope/45)
		}
		return spatial.Clamp01(1 - d.Height/2)
	case ObstaclePhysicalBarrier:
		return spatial.Clamp01(1 - d.Height/2)
	case ObstacleGap:
		return spatial.Clamp01(1 - math.Max(d.Width, d.Depth)/5)
	case ObstacleHazard:
		return 0.3
	case ObstacleMovingObstacle:
		return 0.5
	case ObstacleDetectionZone:
		return 1.0
	case ObstacleRestrictedZone:
		return 0.2
	}
	return 0
}
