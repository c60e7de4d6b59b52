package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/HyperCogAI/hypercognition-sub001/internal/api"
	rediscache "github.com/HyperCogAI/hypercognition-sub001/internal/cache/redis"
	"github.com/HyperCogAI/hypercognition-sub001/internal/config"
	"github.com/HyperCogAI/hypercognition-sub001/internal/manager"
	"github.com/HyperCogAI/hypercognition-sub001/internal/status"
	"github.com/HyperCogAI/hypercognition-sub001/internal/ui"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := []config.Option{config.WithLogger(cfg.Server.LogLvl)}
	if cfg.Redis.Enabled {
		opts = append(opts, config.WithRedis(cfg.Redis.Addr, cfg.Redis.DB))
	}
	deps, err := config.NewDependencies(ctx, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize dependencies: %v", err)
	}
	defer deps.Close()
	logger := deps.Logger

	mgrOpts := []manager.Option{
		manager.WithLogger(logger),
		manager.WithHealthInterval(cfg.Manager.HealthInterval),
	}
	for t, f := range manager.DefaultFactories(manager.SeededRand(cfg.Manager.SimSeed)) {
		mgrOpts = append(mgrOpts, manager.WithFactory(t, f))
	}

	var snapshots api.Snapshots
	if deps.Redis != nil {
		cache := rediscache.NewSnapshotCache(deps.Redis, cfg.Redis.SnapshotTTL, logger)
		logger.Info("snapshot cache enabled", slog.String("redis", cache.Ping(ctx)))
		mgrOpts = append(mgrOpts, manager.WithSnapshotStore(cache))
		snapshots = cache
	}

	mgr := manager.New(mgrOpts...)
	for _, t := range cfg.Exchanges {
		if err := mgr.AddExchange(ctx, t, cfg.Adapters[t]); err != nil {
			logger.Error("exchange not registered", slog.String("exchange", string(t)), slog.Any("error", err))
		}
	}
	mgr.Start(ctx)

	tracker := status.NewTracker(mgr,
		status.WithPollInterval(cfg.Manager.StatusPollInterval),
		status.WithLogger(logger))
	go tracker.Run(ctx)

	srv := api.NewServer(cfg.Addr(), api.NewHandler(mgr, snapshots, logger))
	go func() {
		logger.Info("REST API running", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API server failed", slog.Any("error", err))
			cancel()
		}
	}()

	if cfg.Dashboard.Enabled {
		runDashboard(ctx, cfg, mgr, tracker, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}
	mgr.Shutdown(shutdownCtx)

	logger.Info("gracefully shutdown")
}

// runDashboard blocks until ctx is done or the terminal fails.
func runDashboard(ctx context.Context, cfg *config.Config, mgr *manager.Manager, tracker *status.Tracker, logger *slog.Logger) {
	d := ui.NewDashboard(cfg.Exchanges, cfg.Dashboard.Symbols)
	if err := d.InitWidgets(); err != nil {
		logger.Error("failed to initialize widgets", slog.Any("error", err))
		return
	}
	d.StartUpdateListener(ctx)
	tracker.OnChange(d.SendStatus)
	d.SendStatus(tracker.Latest())

	go ui.Monitor(ctx, mgr, d, cfg.Dashboard.Symbols, time.Second, logger)

	if err := ui.RunDashboard(ctx, d); err != nil {
		logger.Error("failed to run dashboard", slog.Any("error", err))
	}
}
