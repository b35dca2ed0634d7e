package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-catalog/internal/app"
	"github.com/noah-isme/storefront-catalog/internal/config"
	"github.com/noah-isme/storefront-catalog/internal/events"
	"github.com/noah-isme/storefront-catalog/internal/lock"
	"github.com/noah-isme/storefront-catalog/internal/obs"
	"github.com/noah-isme/storefront-catalog/internal/queue"
	"github.com/noah-isme/storefront-catalog/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Ops.LogFormat, cfg.Ops.LogLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(cfg.Ops.MetricsNamespace, nil)
	resilience.MustRegisterMetrics(nil)
	queue.MustRegisterMetrics(nil)

	if !cfg.RedisEnabled() {
		logger.Fatal().Msg("worker requires REDIS_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := mustInitDependencies(ctx, cfg, logger)
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	connOpt, err := queue.RedisConnOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	refresh := &queue.RefreshHandler{
		Catalog: deps.Catalog,
		Locker:  lock.Locker{R: deps.Redis, RetryBackoff: cfg.LockRetryBackoff},
		LockTTL: cfg.LockTTL,
		Events: &events.Bus{
			Store:     &events.RedisStreamStore{Client: deps.Redis, Stream: events.DefaultStream},
			Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}},
		},
		Logger: logger,
	}

	server := queue.NewServer(connOpt, queue.ServerConfig{
		Concurrency:     cfg.WorkerConcurrency,
		ShutdownTimeout: cfg.Ops.WorkerShutdownTimeout,
		Logger:          logger,
	})
	if err := server.Start(queue.NewServeMux(refresh, logger)); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}

	var scheduler *asynq.Scheduler
	if cron := strings.TrimSpace(cfg.CatalogRefreshCron); cron != "" {
		scheduler, err = queue.NewScheduler(connOpt, cron, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("register catalog refresh schedule")
		}
		if err := scheduler.Start(); err != nil {
			logger.Fatal().Err(err).Msg("start scheduler")
		}
	}

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	<-ctx.Done()

	if scheduler != nil {
		scheduler.Shutdown()
	}
	server.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitDependencies(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *app.Dependencies {
	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	deps, err := app.Build(initCtx, cfg, logger, app.Options{Target: "store-api-worker"})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	return deps
}
