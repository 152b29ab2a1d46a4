// Package main is the entry point for the routing and reliability core.
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

	"golang.org/x/sync/errgroup"

	"github.com/antigravity-proxy/core/internal/account"
	"github.com/antigravity-proxy/core/internal/config"
	"github.com/antigravity-proxy/core/internal/events"
	"github.com/antigravity-proxy/core/internal/health"
	"github.com/antigravity-proxy/core/internal/httpapi"
	"github.com/antigravity-proxy/core/internal/issues"
	"github.com/antigravity-proxy/core/internal/router"
	"github.com/antigravity-proxy/core/internal/store"
)

// defaultModelIDs seeds the health matrix/summary endpoints when a caller
// omits ?models=. Out-of-scope credential/model provisioning (spec §6)
// means this list is a starting point, not a registry.
var defaultModelIDs = []string{
	"claude-opus-4",
	"claude-sonnet-4",
	"claude-haiku-4",
}

func main() {
	cfg := config.Load()
	logger := setupLogger(cfg)
	logger.Info("starting routing core", "port", cfg.Port, "data_dir", cfg.DataDir)

	snap, redisSnap, err := setupSnapshotter(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize snapshot backend", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgStore := config.NewStore(ctx, cfg.Health, snap)

	broker := events.NewBroker()
	recorder := events.NewRecorder(ctx, events.RecorderOptions{
		Broker: broker,
		Logger: logger,
		Snap:   snap,
		Config: cfgStore,
	})

	source := account.NewFileSource(snap)
	registry := account.NewRegistry(recorder, source)
	if err := registry.Reload(); err != nil {
		logger.Warn("failed to load accounts from snapshot, starting empty", "error", err)
	}

	tracker := health.NewTracker(cfgStore, recorder)
	aggregator := issues.NewAggregator(cfgStore)
	broker.Subscribe(aggregator)

	rt := router.NewRouter(registry, tracker)

	validateAPIKey := func(key string) bool {
		if cfg.APIKey == "" {
			return true
		}
		return key == cfg.APIKey
	}

	_, httpHandler := httpapi.New(httpapi.Options{
		Registry:       registry,
		Tracker:        tracker,
		Recorder:       recorder,
		Broker:         broker,
		Aggregator:     aggregator,
		Router:         rt,
		Config:         cfgStore,
		Logger:         logger,
		ModelIDs:       defaultModelIDs,
		ValidateAPIKey: validateAPIKey,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // no timeout: SSE streams stay open
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return recorder.Run(gctx)
	})

	g.Go(func() error {
		runSweeps(gctx, registry, tracker, aggregator, snap, defaultModelIDs)
		return nil
	})

	g.Go(func() error {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	if err := account.Persist(shutdownCtx, snap, registry.List()); err != nil {
		logger.Error("failed to persist accounts on shutdown", "error", err)
	}

	cancel()
	if err := g.Wait(); err != nil {
		logger.Error("background task error", "error", err)
	}

	if redisSnap != nil {
		if err := redisSnap.Close(); err != nil {
			logger.Error("failed to close redis connection", "error", err)
		}
	}

	logger.Info("server stopped")
}

// runSweeps drives the periodic work that has no single triggering
// event: health auto-recovery (TickRecovery), the health_degraded
// sustained-condition rule (aggregator.Sweep), and account-state
// persistence so health records round-trip across restarts (spec §6).
func runSweeps(ctx context.Context, registry *account.Registry, tracker *health.Tracker, aggregator *issues.Aggregator, snap store.Snapshotter, modelIDs []string) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	persistTicker := time.NewTicker(60 * time.Second)
	defer persistTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			accounts := registry.List()
			tracker.TickRecovery(accounts)
			aggregator.Sweep(accounts, tracker, modelIDs)
		case <-persistTicker.C:
			_ = account.Persist(ctx, snap, registry.List())
		}
	}
}

// setupSnapshotter builds the default file-backed Snapshotter and, when
// ANTIGRAVITY_REDIS_URL is set and the server answers a ping, an optional
// Redis-backed one instead (a failed ping falls back to the file backend)
// (spec §9 REDESIGN: Redis is a relocation of the single writer's
// snapshot, never a path to horizontal scale-out). The second return
// value is non-nil only when Redis is in use, so main can close it on
// shutdown.
func setupSnapshotter(cfg *config.Config, logger *slog.Logger) (store.Snapshotter, *store.RedisSnapshotter, error) {
	if url := os.Getenv("ANTIGRAVITY_REDIS_URL"); url != "" {
		rs, err := store.NewRedisSnapshotter(store.RedisOptions{
			URL:       url,
			KeyPrefix: "antigravity:",
		})
		if err != nil {
			return nil, nil, err
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			logger.Warn("redis ping failed, falling back to file snapshotter", "error", err)
		} else {
			logger.Info("using redis snapshot backend")
			return rs, rs, nil
		}
	}

	fs, err := store.NewFileSnapshotter(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return fs, nil, nil
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
