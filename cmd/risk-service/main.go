// Package main is the entry point for the Risk Service
// Risk Service fingerprints devices, records login attempts, detects
// anomalous authentication activity, and maintains per-user risk scores
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/riskwatch/riskwatch/internal/alert"
	"github.com/riskwatch/riskwatch/internal/anomaly"
	"github.com/riskwatch/riskwatch/internal/api"
	"github.com/riskwatch/riskwatch/internal/assessment"
	"github.com/riskwatch/riskwatch/internal/common/config"
	"github.com/riskwatch/riskwatch/internal/common/database"
	"github.com/riskwatch/riskwatch/internal/common/logger"
	"github.com/riskwatch/riskwatch/internal/common/tracing"
	"github.com/riskwatch/riskwatch/internal/device"
	"github.com/riskwatch/riskwatch/internal/engine"
	"github.com/riskwatch/riskwatch/internal/eventstore"
	"github.com/riskwatch/riskwatch/internal/geo"
	"github.com/riskwatch/riskwatch/internal/login"
	"github.com/riskwatch/riskwatch/internal/metrics"
)

var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
)

func main() {
	log := logger.New()
	defer log.Sync()

	log.Info("Starting Risk Service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit", CommitHash),
	)

	cfg, err := config.Load("risk-service")
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	shutdownTracing, err := tracing.Init(context.Background(),
		tracing.ConfigFromEnv("risk-service", cfg.Environment), log)
	if err != nil {
		log.Warn("Tracing initialization failed", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	ctx := context.Background()

	deviceStore := device.NewPostgresStore(db.Pool)
	attemptStore := login.NewPostgresStore(db.Pool)
	eventStore := eventstore.NewPostgresStore(db.Pool)
	for name, init := range map[string]func(context.Context) error{
		"devices":  deviceStore.InitializeSchema,
		"attempts": attemptStore.InitializeSchema,
		"events":   eventStore.InitializeSchema,
	} {
		if err := init(ctx); err != nil {
			log.Fatal("Failed to initialize schema", zap.String("table", name), zap.Error(err))
		}
	}

	var events eventstore.Store = eventstore.NewDurableStore(eventStore, log)
	if cfg.ElasticsearchURL != "" {
		es, err := database.NewElasticsearch(cfg.ElasticsearchURL)
		if err != nil {
			log.Warn("Elasticsearch unavailable, event indexing disabled", zap.Error(err))
		} else {
			indexing := eventstore.NewIndexingStore(events, es, log)
			if err := indexing.EnsureIndices(); err != nil {
				log.Warn("Failed to create search indices", zap.Error(err))
			}
			events = indexing
		}
	}

	var resolver geo.Resolver
	if cfg.GeoIPCityDB != "" {
		mmdb, err := geo.NewMaxMindResolver(cfg.GeoIPCityDB, log)
		if err != nil {
			log.Warn("GeoIP database unavailable, location enrichment disabled", zap.Error(err))
		} else {
			defer mmdb.Close()
			resolver = mmdb
		}
	}

	dispatcher := alert.NewDispatcher(alert.SinksFromConfig(cfg, log), log)
	registry := device.NewRegistry(deviceStore, redisClient.Client, nil, log)
	detector := anomaly.NewDetector(attemptStore, events, cfg.Risk, log)
	riskEngine := assessment.NewEngine(events, dispatcher, cfg.Risk, redisClient.Client, log)
	pipeline := engine.New(registry, detector, riskEngine, attemptStore, resolver, cfg.Risk, log)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware(log))
	router.Use(otelgin.Middleware("risk-service"))
	router.Use(metrics.GinMiddleware("risk-service"))
	router.GET("/metrics", metrics.Handler())

	server := api.NewServer(pipeline, registry, riskEngine, events, cfg, log)
	server.RegisterRoutes(router)

	router.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server listening", zap.Int("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	dispatcher.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Tracing shutdown failed", zap.Error(err))
	}

	log.Info("Server exited")
}
