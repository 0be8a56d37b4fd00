package reasoning

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"multiverse-spatial/internal/scenegraph"
	"multiverse-spatial/internal/spatial"
)

const (
	completeOcclusion = 0.8
	partialOcclusion  = 0.1
)

// Occluder estimates how much of target a blocker hides from viewpoint,
// in [0, 1]. Zero means no occlusion.
type Occluder interface {
	Occlusion(viewpoint, blocker, target *scenegraph.Node) float64
}

// AngularOccluder compares the angular rectangles the blocker and the target
// subtend at the viewpoint. It is an estimate, not a ray cast.
type AngularOccluder struct{}

// Occlusion returns the covered share of the target's angular rectangle.
// A point target is either fully covered or not at all.
func (AngularOccluder) Occlusion(viewpoint, blocker, target *scenegraph.Node) float64 {
	origin := viewpoint.Coordinates
	toTarget := target.Coordinates.Sub(origin)
	toBlocker := blocker.Coordinates.Sub(origin)
	tDist, bDist := toTarget.Length(), toBlocker.Length()
	if tDist == 0 || bDist == 0 {
		return 0
	}

	tAz, tEl := direction(toTarget)
	bAz, bEl := direction(toBlocker)
	tW, tH := angularHalfExtents(target, tDist)
	bW, bH := angularHalfExtents(blocker, bDist)

	dAz := wrapAngle(bAz - tAz)
	dEl := bEl - tEl
	return spatial.Clamp01(coverage(tW, bW, dAz) * coverage(tH, bH, dEl))
}

// direction returns azimuth in the x/z plane and elevation above it.
func direction(v spatial.Vec3) (azimuth, elevation float64) {
	return math.Atan2(v.Z, v.X), math.Atan2(v.Y, math.Hypot(v.X, v.Z))
}

func angularHalfExtents(n *scenegraph.Node, dist float64) (horizontal, vertical float64) {
	d := n.Dimensions
	return math.Atan2(math.Max(d.Width, d.Depth)/2, dist), math.Atan2(d.Height/2, dist)
}

func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// coverage is the share of the interval [-t, t] covered by [off-b, off+b].
// A degenerate target interval counts as a point.
func coverage(t, b, off float64) float64 {
	if t <= 0 {
		if math.Abs(off) <= b {
			return 1
		}
		return 0
	}
	lo := math.Max(-t, off-b)
	hi := math.Min(t, off+b)
	if hi <= lo {
		return 0
	}
	return (hi - lo) / (2 * t)
}

// AnalyzeOcclusion lists the blockers that partially or completely hide
// target from viewpoint. When nothing does, a LINE_OF_SIGHT fact is cached.
func (e *Engine) AnalyzeOcclusion(viewpoint, target *scenegraph.Node) (out []SpatialRelationship) {
	defer e.recoverOp("analyze_occlusion")
	defer e.begin()()
	return e.analyzeOcclusion(viewpoint, target)
}

func (e *Engine) analyzeOcclusion(viewpoint, target *scenegraph.Node) []SpatialRelationship {
	if viewpoint == nil || target == nil {
		e.logger.Warn("analyze occlusion: missing node")
		return nil
	}
	if !e.profile.Occlusion {
		e.logger.Debug("occlusion disabled by tier", zap.Int("tier", e.tier))
		return nil
	}
	targetDist := viewpoint.DistanceTo(target)
	if targetDist == 0 {
		return nil
	}

	var out []SpatialRelationship
	for _, blocker := range e.graph.PotentialBlockers(viewpoint, target) {
		if blocker.ID == viewpoint.ID || blocker.ID == target.ID {
			continue
		}
		blockerDist := viewpoint.DistanceTo(blocker)
		if blockerDist == 0 || blockerDist > targetDist {
			continue
		}
		// A viewpoint inside the blocker sees nothing past it.
		strength := 1.0
		if !blocker.Box().Contains(viewpoint.Coordinates) {
			strength = e.occluder.Occlusion(viewpoint, blocker, target)
		}
		var typ RelationType
		switch {
		case strength > completeOcclusion:
			typ = RelationCompletelyOccludedBy
		case strength > partialOcclusion:
			typ = RelationPartiallyOccludedBy
		default:
			continue
		}
		r := newRelationship(typ, target, blocker)
		r.ID += "|" + viewpoint.ID
		r.Attributes["viewpoint"] = viewpoint.ID
		r.Metrics["occlusion_strength"] = e.quantize(strength)
		r.Metrics["blocker_distance"] = e.quantize(blockerDist)
		r.Metrics["target_distance"] = e.quantize(targetDist)
		e.cache.addFact(r)
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Metrics["blocker_distance"] < out[j].Metrics["blocker_distance"]
	})
	if len(out) == 0 {
		e.recordLineOfSight(viewpoint, target)
	}
	e.record("analyze_occlusion",
		map[string]any{"viewpoint": viewpoint.ID, "target": target.ID},
		map[string]any{"occluders": len(out)})
	return out
}

func (e *Engine) recordLineOfSight(viewpoint, target *scenegraph.Node) {
	r := newRelationship(RelationLineOfSight, viewpoint, target)
	r.Metrics["distance"] = e.quantize(viewpoint.DistanceTo(target))
	e.cache.addFact(r)
}

// LineOfSight returns the cached LINE_OF_SIGHT facts, oldest first.
func (e *Engine) LineOfSight() []SpatialRelationship {
	return e.Facts(RelationLineOfSight)
}
