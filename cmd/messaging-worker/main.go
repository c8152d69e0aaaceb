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
	"github.com/salonware/booking-assistant/internal/resilience"
	"github.com/salonware/booking-assistant/internal/worker/outbound"
	"github.com/salonware/booking-assistant/pkg/logging"
)

const drainTimeout = 30 * time.Second

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if err != nil {
		logger.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	gateway, err := bootstrap.BuildChatwootClient(cfg, logger)
	if err != nil {
		logger.Error("chatwoot client not built", "error", err)
		os.Exit(1)
	}

	deliveryMetrics := metrics.NewDeliveryMetrics(nil)
	breakerMetrics := metrics.NewBreakerMetrics(nil)
	breaker := resilience.NewBreaker(resilience.BreakerChatwoot, logger, breakerMetrics.ObserveTransition)

	sender := outboundworker.New(rdb, gateway, logger,
		outboundworker.WithBreaker(breaker),
		outboundworker.WithObserver(deliveryMetrics.ObserveDelivery),
	)
	if err := sender.Start(ctx); err != nil {
		logger.Error("sender did not start", "error", err)
		os.Exit(1)
	}
	logger.Info("messaging worker started")

	<-ctx.Done()
	logger.Info("messaging worker shutting down")

	done := make(chan struct{})
	go func() {
		sender.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("messaging worker stopped")
	case <-time.After(drainTimeout):
		logger.Error("messaging worker shutdown timed out")
	}
}
