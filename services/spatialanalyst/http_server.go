package spatialanalyst

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type HTTPServer struct {
	server *http.Server
	router *mux.Router
	logger *zap.Logger
}

func NewHTTPServer(addr string, logger *zap.Logger) *HTTPServer {
	router := mux.NewRouter()

	srv := &http.Server{
		Addr:         addr,
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      router,
	}

	return &HTTPServer{
		server: srv,
		router: router,
		logger: logger,
	}
}

func (hs *HTTPServer) Start() {
	go func() {
		hs.logger.Info("HTTP server starting", zap.String("addr", hs.server.Addr))
		if err := hs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			hs.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

func (hs *HTTPServer) Stop(ctx context.Context) error {
	if err := hs.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	hs.logger.Info("HTTP server stopped")
	return nil
}

func (hs *HTTPServer) RegisterRoutes(service *Service, wsServer *WebSocketServer) {
	hs.router.Use(service.metrics.Middleware)

	hs.router.HandleFunc("/ws/threats", wsServer.HandleWebSocket)
	hs.router.Handle("/metrics", service.metrics.Handler()).Methods("GET")
	hs.router.HandleFunc("/health", service.HealthHandler).Methods("GET")

	// Граф сцены
	hs.router.HandleFunc("/nodes", service.ListNodesHandler).Methods("GET")
	hs.router.HandleFunc("/nodes/{id}", service.GetNodeHandler).Methods("GET")
	hs.router.HandleFunc("/nodes/{id}", service.PutNodeHandler).Methods("PUT")
	hs.router.HandleFunc("/nodes/{id}", service.DeleteNodeHandler).Methods("DELETE")
	hs.router.HandleFunc("/scene", service.GetSceneHandler).Methods("GET")
	hs.router.HandleFunc("/scene", service.PostSceneHandler).Methods("POST")
	hs.router.HandleFunc("/scene/snapshot", service.SnapshotHandler).Methods("POST")

	// Анализ
	hs.router.HandleFunc("/relationships/{a}/{b}", service.RelationshipsHandler).Methods("GET")
	hs.router.HandleFunc("/between/{a}/{b}", service.BetweenHandler).Methods("GET")
	hs.router.HandleFunc("/occlusion/{viewpoint}/{target}", service.OcclusionHandler).Methods("GET")
	hs.router.HandleFunc("/obstacles/{viewpoint}", service.ObstaclesHandler).Methods("GET")
	hs.router.HandleFunc("/contexts", service.ContextsHandler).Methods("GET")
	hs.router.HandleFunc("/line-of-sight", service.LineOfSightHandler).Methods("GET")
	hs.router.HandleFunc("/facts/{type}", service.FactsHandler).Methods("GET")
	hs.router.HandleFunc("/threat/{viewpoint}", service.ThreatHandler).Methods("GET")
	hs.router.HandleFunc("/reports/{viewpoint}", service.ReportsHandler).Methods("GET")
	hs.router.HandleFunc("/reports/{viewpoint}/{report}", service.ReportHandler).Methods("GET")

	// Ресурсы и состояние движка
	hs.router.HandleFunc("/tier", service.GetTierHandler).Methods("GET")
	hs.router.HandleFunc("/tier", service.SetTierHandler).Methods("PUT")
	hs.router.HandleFunc("/profiles", service.ProfilesHandler).Methods("GET")
	hs.router.HandleFunc("/resources", service.ResourcesHandler).Methods("GET")
	hs.router.HandleFunc("/history", service.HistoryHandler).Methods("GET")
	hs.router.HandleFunc("/reset", service.ResetHandler).Methods("POST")
}
