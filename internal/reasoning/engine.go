package reasoning

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"multiverse-spatial/internal/config"
	"multiverse-spatial/internal/scenegraph"
	"multiverse-spatial/internal/spatial"
)

// componentName is the default key the engine reserves memory under.
const componentName = "spatial_reasoning_engine"

// Config configures an Engine. Use DefaultConfig as the starting point since
// the zero Tier is the minimal profile.
type Config struct {
	Tier           int
	Profiles       *config.Profiles
	MemoryBudgetMB int
	Resources      *ResourceManager // shared manager; overrides MemoryBudgetMB
	Component      string           // reservation key, must be unique per shared manager
	Sink           RecordSink
	Occluder       Occluder
}

func DefaultConfig() Config {
	return Config{
		Tier:           config.DefaultTier,
		MemoryBudgetMB: DefaultMemoryBudgetMB,
	}
}

// Engine answers spatial questions about a scene graph. All caches and the
// history are guarded by one mutex held for the whole operation.
type Engine struct {
	graph     SceneGraph
	logger    *zap.Logger
	sink      RecordSink
	occluder  Occluder
	resources *ResourceManager
	component string

	mu           sync.Mutex
	profiles     config.Profiles
	tier         int
	profile      config.TierProfile
	cache        *caches
	history      *history
	graphVersion uint64
}

// NewEngine builds an engine over graph. If the requested tier does not fit in
// the memory budget the highest tier that fits is used instead.
func NewEngine(graph SceneGraph, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	profiles := config.DefaultProfiles()
	if cfg.Profiles != nil {
		profiles = *cfg.Profiles
	}
	resources := cfg.Resources
	if resources == nil {
		budget := cfg.MemoryBudgetMB
		if budget <= 0 {
			budget = DefaultMemoryBudgetMB
		}
		resources = NewResourceManager(budget)
	}
	component := cfg.Component
	if component == "" {
		component = componentName
	}
	occluder := cfg.Occluder
	if occluder == nil {
		occluder = AngularOccluder{}
	}

	tier := cfg.Tier
	if tier < config.MinTier || tier > config.MaxTier {
		logger.Warn("requested tier out of range, using default",
			zap.Int("tier", tier), zap.Int("default", config.DefaultTier))
		tier = config.DefaultTier
	}
	for tier > config.MinTier && !resources.Reallocate(component, profiles[tier].MemoryMB) {
		logger.Warn("tier does not fit memory budget, degrading",
			zap.Int("tier", tier), zap.Int("available_mb", resources.AvailableMemory()))
		tier--
	}
	if tier == config.MinTier && !resources.Reallocate(component, profiles[tier].MemoryMB) {
		logger.Warn("minimal tier does not fit memory budget, running unreserved",
			zap.Int("required_mb", profiles[tier].MemoryMB))
	}

	profile := profiles[tier]
	e := &Engine{
		graph:     graph,
		logger:    logger,
		sink:      cfg.Sink,
		occluder:  occluder,
		resources: resources,
		component: component,
		profiles:  profiles,
		tier:      tier,
		profile:   profile,
		cache:     newCaches(profile.CacheCapacity),
		history:   newHistory(profile.HistoryCapacity),
	}
	if v, ok := graph.(versioned); ok {
		e.graphVersion = v.Version()
	}
	logger.Info("spatial reasoning engine ready",
		zap.Int("tier", tier), zap.String("profile", profile.Name))
	return e
}

// Graph returns the scene graph the engine reads.
func (e *Engine) Graph() SceneGraph {
	return e.graph
}

func (e *Engine) Resources() *ResourceManager {
	return e.resources
}

// Reset drops every cached relationship, obstacle and context.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache.purge()
	e.record("reset", nil, nil)
}

// CacheStats reports the current cache sizes.
func (e *Engine) CacheStats() CacheStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.stats()
}

// History returns the retained reasoning records, oldest first.
func (e *Engine) History() []ReasoningRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.records()
}

// begin locks the engine and expires caches if the graph moved on.
// The returned func must be deferred.
func (e *Engine) begin() func() {
	e.mu.Lock()
	if v, ok := e.graph.(versioned); ok {
		if cur := v.Version(); cur != e.graphVersion {
			e.cache.purge()
			e.graphVersion = cur
		}
	}
	return e.mu.Unlock
}

// recoverOp logs a panic from an operation; the caller returns its zero value.
func (e *Engine) recoverOp(op string) {
	if r := recover(); r != nil {
		e.logger.Error("spatial operation failed",
			zap.String("operation", op), zap.Any("panic", r), zap.Stack("stack"))
	}
}

func (e *Engine) record(op string, params, results map[string]any) {
	rec := newRecord(op, params, results)
	e.history.add(rec)
	if e.sink != nil {
		e.sink.Record(rec)
	}
}

func (e *Engine) quantize(v float64) float64 {
	return spatial.Quantize(v, e.profile.Precision)
}

func (e *Engine) lookup(id string) (*scenegraph.Node, error) {
	n, ok := e.graph.Node(id)
	if !ok {
		return nil, fmt.Errorf("node %q: %w", id, scenegraph.ErrNodeNotFound)
	}
	return n, nil
}

// RelationshipsBetween is AnalyzeRelationships by node id.
func (e *Engine) RelationshipsBetween(aID, bID string) ([]SpatialRelationship, error) {
	a, err := e.lookup(aID)
	if err != nil {
		return nil, err
	}
	b, err := e.lookup(bID)
	if err != nil {
		return nil, err
	}
	return e.AnalyzeRelationships(a, b), nil
}

// NodesBetween is FindBetween by node id.
func (e *Engine) NodesBetween(aID, bID string) ([]*scenegraph.Node, error) {
	a, err := e.lookup(aID)
	if err != nil {
		return nil, err
	}
	b, err := e.lookup(bID)
	if err != nil {
		return nil, err
	}
	return e.FindBetween(a, b), nil
}

// OcclusionOf is AnalyzeOcclusion by node id.
func (e *Engine) OcclusionOf(viewpointID, targetID string) ([]SpatialRelationship, error) {
	vp, err := e.lookup(viewpointID)
	if err != nil {
		return nil, err
	}
	target, err := e.lookup(targetID)
	if err != nil {
		return nil, err
	}
	return e.AnalyzeOcclusion(vp, target), nil
}

// ObstaclesFrom is IdentifyObstacles by node id.
func (e *Engine) ObstaclesFrom(viewpointID string) ([]Obstacle, error) {
	vp, err := e.lookup(viewpointID)
	if err != nil {
		return nil, err
	}
	return e.IdentifyObstacles(vp), nil
}

// ThreatFrom is AssessThreat by node id.
func (e *Engine) ThreatFrom(viewpointID string) (ThreatReport, error) {
	vp, err := e.lookup(viewpointID)
	if err != nil {
		return ThreatReport{}, err
	}
	return e.AssessThreat(vp), nil
}
