package reasoning

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"multiverse-spatial/internal/scenegraph"
	"multiverse-spatial/internal/spatial"
)

const (
	// minContextImportance filters out nodes too minor to anchor a context.
	minContextImportance = 0.4
	corridorMargin       = 2.0
)

// contextRule maps a matching node to a context type and its bounds margin.
// Rules are tried in order and the first match wins.
type contextRule struct {
	typ    ContextType
	margin float64
	match  func(n *scenegraph.Node) bool
}

var contextRules = []contextRule{
	{ContextDangerZone, 5.0, func(n *scenegraph.Node) bool {
		return n.IsThreat()
	}},
	{ContextCoverArea, 1.5, func(n *scenegraph.Node) bool {
		return n.Traits.Cover
	}},
	{ContextObjectiveArea, 3.0, func(n *scenegraph.Node) bool {
		return n.Tags.HasAny("objective", "goal")
	}},
	{ContextResourceRegion, 2.0, func(n *scenegraph.Node) bool {
		return n.Type == scenegraph.TypeItem || n.Tags.Has("resource")
	}},
	{ContextChokepoint, 1.0, func(n *scenegraph.Node) bool {
		return n.Traits.Door || n.Tags.Has("chokepoint")
	}},
	{ContextPatrolRoute, 3.0, func(n *scenegraph.Node) bool {
		return n.Tags.Has("patrol")
	}},
	{ContextStrategicLocation, 4.0, func(n *scenegraph.Node) bool {
		return n.Tags.Has("strategic") || (n.Type == scenegraph.TypeTerrain && isElevated(n))
	}},
	{ContextInteractionZone, 2.0, func(n *scenegraph.Node) bool {
		return n.Type == scenegraph.TypePlayer || n.Type == scenegraph.TypeNPC || n.Tags.Has("interactive")
	}},
	{ContextOpenArea, 5.0, func(n *scenegraph.Node) bool {
		return n.Type == scenegraph.TypeTerrain || n.Tags.Has("open")
	}},
}

func classifyContext(n *scenegraph.Node) (contextRule, bool) {
	for _, rule := range contextRules {
		if rule.match(n) {
			return rule, true
		}
	}
	return contextRule{}, false
}

// IdentifySpatialContexts rebuilds the context set from the current scene and
// the cached line-of-sight facts.
func (e *Engine) IdentifySpatialContexts() (out []SpatialContext) {
	defer e.recoverOp("identify_contexts")
	defer e.begin()()
	return e.identifyContexts()
}

func (e *Engine) identifyContexts() []SpatialContext {
	e.cache.contexts = make(map[string]SpatialContext)
	if !e.profile.Contexts {
		e.logger.Debug("contexts disabled by tier", zap.Int("tier", e.tier))
		return nil
	}

	nodes := e.graph.Nodes()
	var out []SpatialContext
	for _, n := range nodes {
		if n.Importance < minContextImportance {
			continue
		}
		rule, ok := classifyContext(n)
		if !ok {
			continue
		}
		bounds := n.Box().Buffer(rule.margin)
		out = append(out, SpatialContext{
			ID:         "ctx|" + string(rule.typ) + "|" + n.ID,
			Type:       rule.typ,
			Primary:    n,
			PrimaryID:  n.ID,
			Contained:  containedIn(bounds, nodes, n.ID),
			Bounds:     bounds,
			Importance: n.Importance,
			Attributes: map[string]string{"source": "node"},
		})
	}

	for _, los := range e.cache.factsOfType(RelationLineOfSight) {
		from, to := los.ObjectA, los.ObjectB
		bounds := spatial.BoxAround(from.Coordinates, to.Coordinates).Buffer(corridorMargin)
		out = append(out, SpatialContext{
			ID:         "ctx|" + string(ContextLineOfSight) + "|" + from.ID + "|" + to.ID,
			Type:       ContextLineOfSight,
			Primary:    from,
			PrimaryID:  from.ID,
			Contained:  containedIn(bounds, nodes, from.ID, to.ID),
			Bounds:     bounds,
			Importance: math.Max(from.Importance, to.Importance),
			Attributes: map[string]string{"source": "line_of_sight", "target": to.ID},
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].ID < out[j].ID
	})
	if limit := e.profile.MaxContexts; limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for _, c := range out {
		e.cache.contexts[c.ID] = c
	}
	e.record("identify_contexts", nil, map[string]any{"count": len(out)})
	return out
}

// containedIn returns the nodes whose centres lie in bounds, skipping exclude.
func containedIn(bounds spatial.AABB, nodes []*scenegraph.Node, exclude ...string) []*scenegraph.Node {
	var out []*scenegraph.Node
outer:
	for _, n := range nodes {
		for _, id := range exclude {
			if n.ID == id {
				continue outer
			}
		}
		if bounds.Contains(n.Coordinates) {
			out = append(out, n)
		}
	}
	return out
}

// Contexts returns the contexts built by the last IdentifySpatialContexts call.
func (e *Engine) Contexts() []SpatialContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]SpatialContext, 0, len(e.cache.contexts))
	for _, c := range e.cache.contexts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].ID < out[j].ID
	})
	return out
}
