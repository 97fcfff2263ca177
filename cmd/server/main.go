package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gamification-ledger/internal/achievement"
	"github.com/gamification-ledger/internal/challenge"
	"github.com/gamification-ledger/internal/config"
	"github.com/gamification-ledger/internal/domain"
	"github.com/gamification-ledger/internal/handler"
	"github.com/gamification-ledger/internal/ingest"
	"github.com/gamification-ledger/internal/kafka"
	"github.com/gamification-ledger/internal/ledger"
	"github.com/gamification-ledger/internal/postgres"
	"github.com/gamification-ledger/internal/progression"
	"github.com/gamification-ledger/internal/projector"
	"github.com/gamification-ledger/internal/redis"
	"github.com/gamification-ledger/internal/retry"
	"github.com/gamification-ledger/internal/verify"
	"github.com/gamification-ledger/internal/wallet"
	"github.com/gamification-ledger/internal/websocket"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize Redis rank cache
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	rankCache, err := redis.NewRankCache(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("failed to connect to Redis, serving rankings from PostgreSQL only", "error", err)
		rankCache = nil
	} else {
		defer rankCache.Close()
		logger.Info("connected to Redis")
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize services
	ledgerSvc := ledger.NewService(repo, logger)
	walletSvc := wallet.NewService(repo, logger)
	progressionSvc := progression.NewService(repo, cfg.Progression.BaseXPPerLevel, logger)
	achievementEngine := achievement.NewEngine(repo, progressionSvc, walletSvc, progressionSvc, wsHub, logger)
	challengeSvc := challenge.NewService(repo, walletSvc, progressionSvc, logger)

	verifier := verify.NewService(repo, verify.Config{
		ScanTimeout:            cfg.Verifier.ScanTimeout,
		StalenessThreshold:     cfg.Verifier.StalenessThreshold,
		StaleCriticalCount:     cfg.Verifier.StaleCriticalCount,
		CriticalPlayerFraction: cfg.Verifier.CriticalPlayerFraction,
	}, logger)

	policy := retry.Policy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
	}
	pipeline := ingest.NewPipeline(
		ledgerSvc,
		progressionSvc,
		walletSvc,
		achievementEngine,
		challengeSvc,
		repo,
		policy,
		logger,
	)

	// Initialize leaderboard projector
	scopes := make([]domain.LeaderboardScope, 0, len(cfg.Projector.Scopes))
	for _, key := range cfg.Projector.Scopes {
		scope, err := domain.ParseScope(key)
		if err != nil {
			logger.Warn("skipping malformed leaderboard scope", "scope", key, "error", err)
			continue
		}
		scopes = append(scopes, scope)
	}
	var cache projector.RankCache
	if rankCache != nil {
		cache = rankCache
	}
	proj := projector.New(repo, cache, scopes, cfg.Projector.TopN, logger)

	// Project once on startup so rankings are fresh after a restart
	proj.RunOnce(ctx)

	if cfg.Projector.Enabled {
		if err := proj.Start(ctx, cfg.Projector.Interval); err != nil {
			logger.Error("failed to start projector", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for event ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topics", []string{cfg.Kafka.SessionTopic, cfg.Kafka.PremiumTopic},
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, pipeline, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(
		pipeline,
		ledgerSvc,
		walletSvc,
		progressionSvc,
		achievementEngine,
		challengeSvc,
		verifier,
		repo,
		wsHub,
		cfg.Server.AdminToken,
		logger,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop projector
	if cfg.Projector.Enabled {
		if err := proj.Stop(); err != nil {
			logger.Error("failed to stop projector", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
