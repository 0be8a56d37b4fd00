package reasoning

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"multiverse-spatial/internal/scenegraph"
	"multiverse-spatial/internal/spatial"
)

const (
	// alignTolerance is how close two centres must be on an axis to count as aligned.
	alignTolerance = 0.1
	// betweenSlack widens the lateral band of FindBetween beyond the node radius.
	betweenSlack = 1.0
)

// directional relation and metric name per axis, for the "a before b" case.
var axisRelations = [3]struct {
	before RelationType
	metric string
}{
	spatial.AxisX: {RelationLeftOf, "horizontal_distance"},
	spatial.AxisY: {RelationBelow, "vertical_distance"},
	spatial.AxisZ: {RelationInFrontOf, "depth_distance"},
}

// AnalyzeRelationships returns every relation that holds between a and b,
// phrased with a as the subject. Results are cached per unordered pair.
func (e *Engine) AnalyzeRelationships(a, b *scenegraph.Node) (out []SpatialRelationship) {
	defer e.recoverOp("analyze_relationships")
	defer e.begin()()
	return e.analyzeRelationships(a, b)
}

func (e *Engine) analyzeRelationships(a, b *scenegraph.Node) []SpatialRelationship {
	if a == nil || b == nil {
		e.logger.Warn("analyze relationships: missing node",
			zap.Bool("a_nil", a == nil), zap.Bool("b_nil", b == nil))
		return nil
	}
	if a.ID == b.ID {
		return nil
	}

	lo, hi, swapped := a, b, false
	if b.ID < a.ID {
		lo, hi, swapped = b, a, true
	}
	key := lo.ID + "|" + hi.ID

	canonical, ok := e.cache.pairs.Get(key)
	if !ok {
		canonical = e.computeRelationships(lo, hi)
		e.cache.pairs.Add(key, canonical)
	}
	e.record("analyze_relationships",
		map[string]any{"object_a": a.ID, "object_b": b.ID},
		map[string]any{"count": len(canonical), "cached": ok})

	out := make([]SpatialRelationship, len(canonical))
	for i, r := range canonical {
		if swapped {
			out[i] = r.mirrored()
		} else {
			out[i] = r.clone()
		}
	}
	return out
}

func (e *Engine) computeRelationships(a, b *scenegraph.Node) []SpatialRelationship {
	ba, bb := a.Box(), b.Box()
	var out []SpatialRelationship

	separated := 0
	var separatedAxis spatial.Axis
	for _, axis := range []spatial.Axis{spatial.AxisY, spatial.AxisX, spatial.AxisZ} {
		gap := spatial.Gap(ba, bb, axis)
		if gap == 0 {
			continue
		}
		separated++
		separatedAxis = axis
		rel := axisRelations[axis]
		typ := rel.before
		if gap < 0 {
			typ = opposites[typ]
		}
		r := newRelationship(typ, a, b)
		r.Metrics[rel.metric] = e.quantize(math.Abs(gap))
		out = append(out, r)
	}

	if separated == 0 {
		r := newRelationship(RelationTouching, a, b)
		if inter, ok := ba.Intersection(bb); ok {
			r.Metrics["overlap_volume"] = e.quantize(inter.Volume())
		}
		out = append(out, r)

		switch {
		case ba.ContainsBox(bb):
			out = append(out, insideRelationship(b, a))
		case bb.ContainsBox(ba):
			out = append(out, insideRelationship(a, b))
		}
	}

	if separated == 1 {
		aligned := 0
		for _, axis := range spatial.Axes {
			if axis == separatedAxis {
				continue
			}
			if math.Abs(a.Coordinates.Component(axis)-b.Coordinates.Component(axis)) <= alignTolerance {
				aligned++
			}
		}
		if aligned == 2 {
			r := newRelationship(RelationAlignedWith, a, b)
			r.Attributes["axis"] = separatedAxis.String()
			r.Metrics["distance"] = e.quantize(a.DistanceTo(b))
			out = append(out, r)
		}
	}
	return out
}

// insideRelationship states that inner lies within outer.
func insideRelationship(inner, outer *scenegraph.Node) SpatialRelationship {
	r := newRelationship(RelationInside, inner, outer)
	r.Metrics["volume_ratio"] = volumeRatio(inner, outer)
	return r
}

func volumeRatio(inner, outer *scenegraph.Node) float64 {
	v := outer.Box().Volume()
	if v <= 0 {
		return 1
	}
	return inner.Box().Volume() / v
}

// FindBetween returns the nodes lying roughly on the segment between the
// centres of a and b, ordered by distance from a.
func (e *Engine) FindBetween(a, b *scenegraph.Node) (out []*scenegraph.Node) {
	defer e.recoverOp("find_between")
	defer e.begin()()
	return e.findBetween(a, b)
}

func (e *Engine) findBetween(a, b *scenegraph.Node) []*scenegraph.Node {
	if a == nil || b == nil {
		e.logger.Warn("find between: missing node")
		return nil
	}
	from, to := a.Coordinates, b.Coordinates
	if spatial.DistanceBetween(from, to) == 0 {
		return nil
	}

	type hit struct {
		node *scenegraph.Node
		proj spatial.Projection
	}
	var hits []hit
	for _, n := range e.betweenCandidates(from, to) {
		if n.ID == a.ID || n.ID == b.ID {
			continue
		}
		p, ok := spatial.ProjectOntoSegment(n.Coordinates, from, to)
		if !ok || p.T <= 0 || p.T >= 1 {
			continue
		}
		if p.Lateral > n.Radius()+betweenSlack {
			continue
		}
		hits = append(hits, hit{node: n, proj: p})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].proj.T != hits[j].proj.T {
			return hits[i].proj.T < hits[j].proj.T
		}
		return hits[i].node.ID < hits[j].node.ID
	})

	out := make([]*scenegraph.Node, 0, len(hits))
	for _, h := range hits {
		r := newRelationship(RelationBetween, h.node, a)
		r.ID = "between|" + h.node.ID + "|" + a.ID + "|" + b.ID
		r.Attributes["end"] = b.ID
		r.Metrics["distance_along_path"] = e.quantize(h.proj.Along)
		r.Metrics["lateral_distance"] = e.quantize(h.proj.Lateral)
		e.cache.addFact(r)
		out = append(out, h.node)
	}
	e.record("find_between",
		map[string]any{"from": a.ID, "to": b.ID},
		map[string]any{"nodes": nodeIDs(out)})
	return out
}

// Facts returns copies of the cached derived facts of one type (BETWEEN,
// LINE_OF_SIGHT, occlusion), oldest first.
func (e *Engine) Facts(typ RelationType) []SpatialRelationship {
	e.mu.Lock()
	defer e.mu.Unlock()
	facts := e.cache.factsOfType(typ)
	for i := range facts {
		facts[i] = facts[i].clone()
	}
	return facts
}

// betweenCandidates narrows the scan with the graph's region index when it has one.
func (e *Engine) betweenCandidates(from, to spatial.Vec3) []*scenegraph.Node {
	if idx, ok := e.graph.(regionIndexed); ok {
		region := spatial.BoxAround(from, to).Buffer(idx.MaxExtent() + betweenSlack)
		return idx.NodesInRegion(region)
	}
	return e.graph.Nodes()
}
