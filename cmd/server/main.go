package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/openprep/exam-gateway/internal/config"
	"github.com/openprep/exam-gateway/internal/database"
	"github.com/openprep/exam-gateway/internal/handler"
	"github.com/openprep/exam-gateway/internal/handoff"
	"github.com/openprep/exam-gateway/internal/logger"
	"github.com/openprep/exam-gateway/internal/router"
	"github.com/openprep/exam-gateway/internal/scale"
	"github.com/openprep/exam-gateway/internal/scoring"
	"github.com/openprep/exam-gateway/internal/session"
	"github.com/openprep/exam-gateway/internal/upstream"
	"github.com/openprep/exam-gateway/internal/validator"
	"github.com/openprep/exam-gateway/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("upstream", cfg.UpstreamBaseURL).
		Msg("Starting Exam Gateway")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Score Conversion Table ────────────────────────────────────────
	table := scale.Default()
	if cfg.ScaleTablePath != "" {
		loaded, err := scale.LoadFile(cfg.ScaleTablePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.ScaleTablePath).Msg("Failed to load scale table")
		}
		table = loaded
		log.Info().Str("path", cfg.ScaleTablePath).Msg("Scale table loaded")
	}

	// ─── Upstream Client ───────────────────────────────────────────────
	client := upstream.NewClient(cfg, log)

	// ─── Handoff Store + Retry Worker (Redis optional) ─────────────────
	var store handoff.Store
	var retryWorker *worker.SubmissionRetryWorker
	var queue scoring.RetryQueue

	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		store = handoff.NewRedisStore(rdb, cfg.HandoffTTL)
		retryWorker = worker.NewSubmissionRetryWorker(rdb, client, log)
		queue = retryWorker
	} else {
		log.Warn().Msg("No REDIS_URL configured, using in-memory handoff store")
		store = handoff.NewMemoryStore(cfg.HandoffTTL)
	}

	// ─── Core Services ─────────────────────────────────────────────────
	pipeline := scoring.NewPipeline(client, store, table, queue, cfg.HandoffNamespace, log)
	manager := session.NewManager(cfg, client, log)

	// ─── Handlers ──────────────────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(manager, pipeline, store, cfg.HandoffNamespace, log),
		WS:      handler.NewWSHandler(manager, log, cfg.AllowedOrigins),
	}

	// ─── Background Worker ─────────────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	if retryWorker != nil {
		go retryWorker.Start(workerCtx)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, manager, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Close live sessions, then stop the worker and let the queue drain.
	manager.Shutdown()
	workerCancel()
	time.Sleep(2 * time.Second) // Allow the worker to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
