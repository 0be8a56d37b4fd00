package spatialanalyst

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"multiverse-spatial/internal/eventbus"
)

const metricsNamespace = "spatial_analyst"

// Metrics — метрики сервиса на собственном реестре.
type Metrics struct {
	registry *prometheus.Registry

	Operations     *prometheus.CounterVec
	WorldEvents    *prometheus.CounterVec
	ThreatLevel    prometheus.Histogram
	RequestSeconds *prometheus.HistogramVec
	Tier           prometheus.Gauge
	SceneNodes     prometheus.Gauge
	WSClients      prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reasoning_operations_total",
			Help:      "Reasoning operations recorded by the engine",
		}, []string{"operation"}),
		WorldEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "world_events_total",
			Help:      "World events consumed, by type and outcome",
		}, []string{"event_type", "result"}),
		ThreatLevel: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "threat_level",
			Help:      "Overall threat level of produced reports",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),
		RequestSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		Tier: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "resource_tier",
			Help:      "Current resource tier of the engine",
		}),
		SceneNodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "scene_nodes",
			Help:      "Nodes in the scene graph",
		}),
		WSClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "websocket_clients",
			Help:      "Connected threat stream clients",
		}),
	}
}

// WatchPublisher экспортирует счётчики асинхронной публикации.
func (m *Metrics) WatchPublisher(p *eventbus.AsyncPublisher) {
	f := promauto.With(m.registry)
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "events_published_total",
		Help:      "Events delivered to Kafka",
	}, func() float64 {
		published, _, _ := p.Stats()
		return float64(published)
	})
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "events_failed_total",
		Help:      "Events Kafka rejected",
	}, func() float64 {
		_, failed, _ := p.Stats()
		return float64(failed)
	})
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "events_dropped_total",
		Help:      "Events dropped because the publish queue was full",
	}, func() float64 {
		_, _, dropped := p.Stats()
		return float64(dropped)
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware замеряет длительность запросов по шаблону маршрута.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.RequestSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
