package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"multiverse-spatial/internal/config"
	"multiverse-spatial/internal/eventbus"
	"multiverse-spatial/internal/graphstore"
	"multiverse-spatial/internal/logging"
	"multiverse-spatial/internal/minio"
	"multiverse-spatial/internal/reasoning"
	"multiverse-spatial/services/spatialanalyst"
)

func main() {
	logger, err := logging.New("spatial-analyst", getEnv("LOG_LEVEL", "info"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Конфигурация из окружения
	cfg := spatialanalyst.Config{
		WorldID:        getEnv("WORLD_ID", "default"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		KafkaBrokers:   getEnvBrokers("KAFKA_BROKERS", []string{"redpanda:9092"}),
		KafkaEnabled:   getEnvBool("KAFKA_ENABLED", true),
		MinioBucket:    getEnv("MINIO_BUCKET", "spatial"),
		SceneObject:    getEnv("SCENE_OBJECT", ""),
		Tier:           getEnvInt("RESOURCE_TIER", config.DefaultTier),
		MemoryBudgetMB: getEnvInt("MEMORY_BUDGET_MB", reasoning.DefaultMemoryBudgetMB),
		ViewRadius:     getEnvFloat("VIEW_RADIUS", 0),
		ProfileRefresh: getEnvDuration("PROFILE_REFRESH", time.Minute),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := buildDeps(ctx, cfg, logger)
	service, err := spatialanalyst.NewService(cfg, deps, logger)
	if err != nil {
		logger.Fatal("service init failed", zap.Error(err))
	}

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down spatial analyst")
		cancel()
	}()

	service.Start(ctx)
	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := service.Stop(stopCtx); err != nil {
		logger.Error("shutdown finished with errors", zap.Error(err))
	}
}

// buildDeps подключает доступную инфраструктуру; недоступные части
// отключаются с предупреждением.
func buildDeps(ctx context.Context, cfg spatialanalyst.Config, logger *zap.Logger) spatialanalyst.Deps {
	var deps spatialanalyst.Deps

	if cfg.KafkaEnabled {
		deps.Bus = eventbus.NewEventBus(cfg.KafkaBrokers, logger.Named("eventbus"))
	}

	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		client, err := minio.NewClient(minio.Config{
			Endpoint:        endpoint,
			AccessKeyID:     getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:          getEnvBool("MINIO_USE_SSL", false),
		})
		if err != nil {
			logger.Warn("MinIO unavailable, archive disabled", zap.Error(err))
		} else {
			deps.Objects = client
		}
	}

	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		store, err := graphstore.New(connectCtx, graphstore.Config{
			URI:      uri,
			User:     getEnv("NEO4J_USER", "neo4j"),
			Password: getEnv("NEO4J_PASSWORD", "password"),
		}, logger.Named("graphstore"))
		if err != nil {
			logger.Warn("Neo4j unavailable, relationship export disabled", zap.Error(err))
		} else {
			deps.Graph = store
		}
	}
	return deps
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBrokers(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		brokers := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				brokers = append(brokers, trimmed)
			}
		}
		if len(brokers) > 0 {
			return brokers
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
