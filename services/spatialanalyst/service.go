// Package spatialanalyst exposes the spatial reasoning engine over HTTP,
// WebSocket and Kafka and keeps its scene graph in sync with world events.
package spatialanalyst

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"multiverse-spatial/internal/config"
	"multiverse-spatial/internal/eventbus"
	"multiverse-spatial/internal/minio"
	"multiverse-spatial/internal/reasoning"
	"multiverse-spatial/internal/scenegraph"
	"multiverse-spatial/internal/schema"
)

const (
	serviceName   = "spatial-analyst"
	consumerGroup = "spatial-analyst-group"

	broadcastBuffer = 100
	opTimeout       = 5 * time.Second
)

type Config struct {
	WorldID        string   `validate:"required"`
	HTTPAddr       string   `validate:"required"`
	KafkaBrokers   []string `validate:"required_if=KafkaEnabled true"`
	KafkaEnabled   bool
	MinioBucket    string
	SceneObject    string
	Tier           int           `validate:"min=0,max=5"`
	MemoryBudgetMB int           `validate:"gt=0"`
	ViewRadius     float64       `validate:"gte=0"`
	CellSize       float64       `validate:"gte=0"`
	ProfileRefresh time.Duration `validate:"gte=0"`
	QueueSize      int           `validate:"gte=0"`
}

// Bus — шина событий, которую использует сервис.
type Bus interface {
	eventbus.Publisher
	Subscribe(ctx context.Context, topic, groupID string, handler func(eventbus.Event))
	Close() error
}

// GraphExporter зеркалирует узлы и отношения во внешний граф (Neo4j).
type GraphExporter interface {
	UpsertNode(ctx context.Context, n *scenegraph.Node) error
	RemoveNode(ctx context.Context, id string) error
	ExportRelationships(ctx context.Context, rels []reasoning.SpatialRelationship) error
	Close(ctx context.Context) error
}

// Deps — внешняя инфраструктура; любое поле может быть nil.
type Deps struct {
	Bus     Bus
	Objects minio.ClientInterface
	Graph   GraphExporter
}

var validate = validator.New()

type Service struct {
	cfg        Config
	logger     *zap.Logger
	graph      *scenegraph.Graph
	engine     *reasoning.Engine
	validator  *schema.Validator
	profiles   *config.Store
	bus        Bus
	publisher  *eventbus.AsyncPublisher
	archive    *Archive
	exporter   GraphExporter
	metrics    *Metrics
	ws         *WebSocketServer
	httpServer *HTTPServer

	broadcast chan []byte
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

func NewService(cfg Config, deps Deps, logger *zap.Logger) (*Service, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	v, err := schema.NewSceneValidator()
	if err != nil {
		return nil, fmt.Errorf("scene schema: %w", err)
	}

	s := &Service{
		cfg:       cfg,
		logger:    logger,
		graph:     scenegraph.NewGraph(scenegraph.Options{CellSize: cfg.CellSize, ViewRadius: cfg.ViewRadius}),
		validator: v,
		bus:       deps.Bus,
		exporter:  deps.Graph,
		metrics:   NewMetrics(),
		broadcast: make(chan []byte, broadcastBuffer),
	}

	if deps.Bus != nil {
		s.publisher = eventbus.NewAsyncPublisher(deps.Bus, cfg.QueueSize, logger.Named("publisher"))
		s.metrics.WatchPublisher(s.publisher)
	}
	if deps.Objects != nil && cfg.MinioBucket != "" {
		s.archive = NewArchive(deps.Objects, cfg.MinioBucket, logger.Named("archive"))
		s.profiles = config.NewStore(deps.Objects, cfg.MinioBucket, logger.Named("profiles"))
	} else {
		s.profiles = config.NewStore(nil, "", logger.Named("profiles"))
	}

	engineCfg := reasoning.DefaultConfig()
	engineCfg.Tier = cfg.Tier
	engineCfg.MemoryBudgetMB = cfg.MemoryBudgetMB
	engineCfg.Sink = &recordSink{publisher: s.publisher, worldID: cfg.WorldID, metrics: s.metrics}
	s.engine = reasoning.NewEngine(s.graph, engineCfg, logger.Named("engine"))
	s.metrics.Tier.Set(float64(s.engine.Tier()))

	s.ws = NewWebSocketServer(logger.Named("ws"), s.metrics)
	s.httpServer = NewHTTPServer(cfg.HTTPAddr, logger)
	s.httpServer.RegisterRoutes(s, s.ws)
	return s, nil
}

// Handler возвращает маршрутизатор HTTP API.
func (s *Service) Handler() http.Handler {
	return s.httpServer.router
}

func (s *Service) Engine() *reasoning.Engine {
	return s.engine
}

func (s *Service) Graph() *scenegraph.Graph {
	return s.graph
}

func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// Start загружает профили и начальную сцену, затем запускает HTTP, рассылку
// отчётов, публикацию и подписку на события мира.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info("spatial analyst starting", zap.String("world_id", s.cfg.WorldID))
	ctx, s.cancel = context.WithCancel(ctx)

	if profiles, err := s.profiles.Profiles(ctx); err != nil {
		s.logger.Warn("tier profile overrides rejected, using defaults", zap.Error(err))
	} else {
		s.applyProfiles(profiles)
	}
	s.loadInitialScene(ctx)

	s.httpServer.Start()
	s.goWorker(func() { s.ws.BroadcastLoop(ctx, s.broadcast) })

	if s.publisher != nil {
		s.goWorker(func() { s.publisher.Run(ctx) })
	}
	if s.bus != nil {
		s.goWorker(func() {
			s.bus.Subscribe(ctx, eventbus.TopicWorldEvents, consumerGroup, s.handleWorldEvent)
		})
	}
	if s.cfg.ProfileRefresh > 0 {
		s.goWorker(func() { s.profiles.Watch(ctx, s.cfg.ProfileRefresh, s.applyProfiles) })
	}
	s.logger.Info("spatial analyst running",
		zap.String("http_addr", s.cfg.HTTPAddr),
		zap.Int("tier", s.engine.Tier()),
		zap.Bool("kafka", s.bus != nil),
		zap.Bool("archive", s.archive != nil),
		zap.Bool("graph_export", s.exporter != nil))
}

func (s *Service) goWorker(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Stop останавливает HTTP, дожидается фоновых задач и закрывает
// внешние соединения.
func (s *Service) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		err = multierr.Append(err, s.httpServer.Stop(ctx))
		s.ws.CloseAll()
		if s.cancel != nil {
			s.cancel()
			s.wg.Wait()
		}
		if s.bus != nil {
			err = multierr.Append(err, s.bus.Close())
		}
		if s.exporter != nil {
			err = multierr.Append(err, s.exporter.Close(ctx))
		}
		s.logger.Info("spatial analyst stopped")
	})
	return err
}

func (s *Service) applyProfiles(p config.Profiles) {
	if err := s.engine.SetProfiles(p); err != nil {
		s.logger.Warn("tier profiles not applied", zap.Error(err))
		return
	}
	s.metrics.Tier.Set(float64(s.engine.Tier()))
}

func (s *Service) loadInitialScene(ctx context.Context) {
	if s.archive == nil || s.cfg.SceneObject == "" {
		s.logger.Info("no initial scene configured")
		return
	}
	nodes, err := s.archive.LoadScene(ctx, s.cfg.SceneObject, s.validator)
	if err != nil {
		if errors.Is(err, minio.ErrObjectNotFound) {
			s.logger.Warn("initial scene object missing", zap.String("object", s.cfg.SceneObject))
		} else {
			s.logger.Error("initial scene load failed", zap.String("object", s.cfg.SceneObject), zap.Error(err))
		}
		return
	}
	if err := s.replaceScene(ctx, nodes); err != nil {
		s.logger.Error("initial scene rejected", zap.Error(err))
		return
	}
	s.logger.Info("initial scene loaded", zap.String("object", s.cfg.SceneObject), zap.Int("nodes", len(nodes)))
}

// replaceScene подменяет граф целиком и переносит узлы во внешний граф.
func (s *Service) replaceScene(ctx context.Context, nodes []*scenegraph.Node) error {
	if err := s.graph.Replace(nodes); err != nil {
		return err
	}
	s.metrics.SceneNodes.Set(float64(s.graph.Len()))
	for _, n := range nodes {
		s.exportNode(ctx, n)
	}
	return nil
}

func (s *Service) upsertNode(ctx context.Context, n *scenegraph.Node) error {
	if err := s.graph.Upsert(n); err != nil {
		return err
	}
	s.metrics.SceneNodes.Set(float64(s.graph.Len()))
	s.exportNode(ctx, n)
	return nil
}

func (s *Service) removeNode(ctx context.Context, id string) error {
	if err := s.graph.Remove(id); err != nil {
		return err
	}
	s.metrics.SceneNodes.Set(float64(s.graph.Len()))
	if s.exporter != nil {
		if err := s.exporter.RemoveNode(ctx, id); err != nil {
			s.logger.Warn("graph export: node removal failed", zap.String("node_id", id), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) exportNode(ctx context.Context, n *scenegraph.Node) {
	if s.exporter == nil {
		return
	}
	if err := s.exporter.UpsertNode(ctx, n); err != nil {
		s.logger.Warn("graph export: node upsert failed", zap.String("node_id", n.ID), zap.Error(err))
	}
}

func (s *Service) exportRelationships(ctx context.Context, rels []reasoning.SpatialRelationship) {
	if s.exporter == nil || len(rels) == 0 {
		return
	}
	if err := s.exporter.ExportRelationships(ctx, rels); err != nil {
		s.logger.Warn("graph export: relationships failed", zap.Int("count", len(rels)), zap.Error(err))
	}
}

// assessThreat строит отчёт и рассылает его: WebSocket, Kafka, архив.
func (s *Service) assessThreat(ctx context.Context, viewpointID string) (reasoning.ThreatReport, error) {
	report, err := s.engine.ThreatFrom(viewpointID)
	if err != nil {
		return report, err
	}
	s.publishReport(ctx, report)
	return report, nil
}

func (s *Service) publishReport(ctx context.Context, report reasoning.ThreatReport) {
	if report.Status == reasoning.StatusOK {
		s.metrics.ThreatLevel.Observe(report.OverallThreatLevel)
	}
	if message, err := json.Marshal(report); err == nil {
		select {
		case s.broadcast <- message:
		default:
			s.logger.Warn("threat stream backlog full, report not broadcast", zap.String("report_id", report.ID))
		}
	}
	if s.publisher != nil {
		s.publisher.Enqueue(eventbus.TopicThreatReports,
			eventbus.NewEvent(eventbus.EventThreatReport, serviceName, s.cfg.WorldID, toPayload(report)))
	}
	if s.archive != nil {
		if err := s.archive.SaveReport(ctx, report); err != nil {
			s.logger.Warn("threat report archive failed", zap.String("report_id", report.ID), zap.Error(err))
		}
	}
}
