package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/antifraude/url-sentinel/internal/arbiter"
	"github.com/antifraude/url-sentinel/internal/checker"
	"github.com/antifraude/url-sentinel/internal/config"
	"github.com/antifraude/url-sentinel/internal/database"
	"github.com/antifraude/url-sentinel/internal/handlers"
	"github.com/antifraude/url-sentinel/internal/intel"
	"github.com/antifraude/url-sentinel/internal/lists"
	"github.com/antifraude/url-sentinel/internal/metrics"
	"github.com/antifraude/url-sentinel/internal/probe"
	"github.com/antifraude/url-sentinel/internal/riskmodel"
	"github.com/antifraude/url-sentinel/internal/rules"
	"github.com/antifraude/url-sentinel/internal/scheduler"
)

const (
	serviceName = "url-sentinel"
	version     = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	logger := setupLogging(&cfg)
	logger.Info("Starting URL Sentinel Service",
		"service", serviceName,
		"version", version,
		"environment", cfg.Environment)

	// Setup database connection
	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", "error", err)
		}
	}()

	// Run database migrations
	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// Setup repositories
	historyRepo := database.NewHistoryRepository(db, logger)
	allowRepo := database.NewAllowlistRepository(db, logger)
	denyRepo := database.NewDenylistRepository(db, logger)

	// Setup optional Redis cache for reputation findings
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("Redis unavailable, reputation findings will not be cached", "error", err)
			redisClient = nil
		}
		defer func() {
			if redisClient != nil {
				redisClient.Close()
			}
		}()
	}

	// Setup metrics collector
	metricsCollector := metrics.NewCollector()

	// Setup pipeline stages
	listMatcher := lists.NewMatcher(allowRepo, denyRepo, cfg.Lists, logger)
	ruleEngine := rules.NewEngine(cfg.Rules, cfg.Heuristics, logger)

	var reputationProvider intel.Provider
	if cfg.Reputation.Enabled {
		reputationProvider = intel.NewVirusTotalClient(cfg.Reputation, logger)
	}
	intelService := intel.NewService(reputationProvider, redisClient, cfg.Redis, cfg.Heuristics, metricsCollector, logger)

	var riskClassifier arbiter.Classifier
	if cfg.RiskModel.Enabled {
		riskClassifier = riskmodel.NewClient(cfg.RiskModel, metricsCollector, logger)
	}
	decisionArbiter := arbiter.New(intelService, riskClassifier, cfg.Arbiter, logger)

	urlChecker := checker.New(
		historyRepo,
		allowRepo,
		denyRepo,
		listMatcher,
		ruleEngine,
		decisionArbiter,
		cfg.Lists,
		metricsCollector,
		logger,
	)

	// Setup page probe
	pageFetcher := probe.NewFetcher(cfg.Probe, logger)

	// Setup scheduler for periodic maintenance
	var maintenance *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		maintenance = scheduler.New(historyRepo, cfg.Scheduler, logger)
		if err := maintenance.Start(); err != nil {
			logger.Error("Failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	// Setup HTTP handlers
	httpHandlers := handlers.NewHTTPHandler(
		&cfg,
		logger,
		urlChecker,
		historyRepo,
		allowRepo,
		denyRepo,
		listMatcher,
		pageFetcher,
	)

	// Setup HTTP router
	httpRouter := mux.NewRouter()
	httpRouter.Use(handlers.MetricsMiddleware(metricsCollector))
	httpHandlers.RegisterRoutes(httpRouter)

	// Add Prometheus metrics endpoint
	httpRouter.Handle("/metrics", promhttp.Handler())

	// Setup HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      httpRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start HTTP server
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "port", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		logger.Error("HTTP server failed", "error", err)
	}

	// Graceful shutdown
	logger.Info("Shutting down services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown HTTP server gracefully", "error", err)
	}

	if maintenance != nil {
		maintenance.Stop()
	}

	logger.Info("Service shutdown complete")
}

// setupLogging configures structured logging
func setupLogging(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}

	handlerOptions := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: cfg.Debug,
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" || cfg.Environment == "production" {
		handler = slog.NewJSONHandler(os.Stdout, handlerOptions)
	} else {
		handler = slog.NewTextHandler(os.Stdout, handlerOptions)
	}

	logger := slog.New(handler)
	logger = logger.With(
		"service", serviceName,
		"version", version,
		"environment", cfg.Environment,
	)

	slog.SetDefault(logger)
	return logger
}
