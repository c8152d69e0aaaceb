package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/salonware/booking-assistant/internal/app/bootstrap"
	appconfig "github.com/salonware/booking-assistant/internal/config"
	"github.com/salonware/booking-assistant/internal/observability/metrics"
	"github.com/salonware/booking-assistant/internal/worker/inbound"
	"github.com/salonware/booking-assistant/pkg/logging"
)

const drainTimeout = 30 * time.Second

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if err != nil {
		logger.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		logger.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	gateway, err := bootstrap.BuildChatwootClient(cfg, logger)
	if err != nil {
		logger.Error("chatwoot client not built", "error", err)
		os.Exit(1)
	}

	cal, err := bootstrap.BuildCalendarClient(ctx, cfg, cfg.Location(), logger)
	if err != nil {
		logger.Error("calendar client not built", "error", err)
		os.Exit(1)
	}

	convMetrics := metrics.NewConversationMetrics(nil)
	toolMetrics := metrics.NewToolMetrics(nil)
	breakerMetrics := metrics.NewBreakerMetrics(nil)

	engine, err := bootstrap.BuildEngine(ctx, cfg, pool, rdb, gateway, cal,
		bootstrap.BuildNotifier(pool, cfg, logger),
		bootstrap.Hooks{
			OnIntent:  convMetrics.ObserveIntent,
			OnTool:    toolMetrics.ObserveInvocation,
			OnBreaker: breakerMetrics.ObserveTransition,
		}, logger)
	if err != nil {
		logger.Error("conversation engine not built", "error", err)
		os.Exit(1)
	}

	worker := inboundworker.New(rdb, engine.Store, engine.Orchestrator, logger,
		inboundworker.WithWorkerCount(cfg.WorkerCount),
		inboundworker.WithObserver(convMetrics.ObserveTurn),
	)
	if err := worker.Start(ctx); err != nil {
		logger.Error("worker did not start", "error", err)
		os.Exit(1)
	}
	logger.Info("conversation worker started", "workers", cfg.WorkerCount)

	<-ctx.Done()
	logger.Info("conversation worker shutting down")

	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("conversation worker stopped")
	case <-time.After(drainTimeout):
		logger.Error("conversation worker shutdown timed out")
	}
}
