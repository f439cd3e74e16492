// cmd/reconciler/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vocab-reconciler/internal/common/config"
	"vocab-reconciler/internal/common/database"
	"vocab-reconciler/internal/common/logger"
	"vocab-reconciler/internal/common/observability"
	"vocab-reconciler/internal/embedding"
	"vocab-reconciler/internal/genai"
	"vocab-reconciler/internal/recon/batch"
	"vocab-reconciler/internal/recon/cache"
	"vocab-reconciler/internal/recon/engine"
	"vocab-reconciler/internal/server"
	"vocab-reconciler/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting reconciler...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres, log)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry (optional cache backend) ---
	var redis *database.RedisClient
	if cfg.Cache.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		zapLog.Info("Redis connected successfully")
	}

	// --- Load strategy catalog (fail fast on a broken catalog) ---
	catalog, err := registry.LoadCatalog(cfg.Engine.StrategiesPath)
	if err != nil {
		zapLog.Fatal("strategy catalog load failed", zap.Error(err))
	}
	strategies, err := registry.Build(catalog, cfg.Engine)
	if err != nil {
		zapLog.Fatal("strategy registration failed", zap.Error(err))
	}
	zapLog.Info("Strategy catalog loaded",
		zap.String("version", catalog.Version),
		zap.Int("strategies", strategies.Len()),
	)

	// --- Collaborators ---
	var embedder embedding.Embedder
	if cfg.Embedding.Enabled {
		embedder = embedding.NewHTTPEmbedder(cfg.Embedding)
		zapLog.Info("Embedding provider configured", zap.String("model", cfg.Embedding.Model))
	}

	var summarizer genai.Summarizer
	if cfg.GenAI.Enabled {
		summarizer = genai.NewHTTPSummarizer(cfg.GenAI)
		zapLog.Info("Generative disambiguation configured")
	}

	candidateCache := cache.New(redis, time.Duration(cfg.Cache.TTL)*time.Second, log)

	// --- Core pipeline ---
	eng := engine.New(strategies, embedder, candidateCache, cfg.Engine, log)
	coordinator := batch.NewCoordinator(pg, eng, summarizer, obs, cfg.Engine.ParallelSubqueries, log)

	manifest := server.BuildManifest(cfg.App, strategies.TypeRefs())
	srv := server.New(coordinator, manifest, pg, redis, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Millisecond,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// pprof on a separate private port
	go func() {
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			zapLog.Error("pprof server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Reconciler stopped gracefully")
}
