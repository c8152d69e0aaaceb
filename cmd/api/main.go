package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/salonware/booking-assistant/internal/api/router"
	"github.com/salonware/booking-assistant/internal/app/bootstrap"
	appconfig "github.com/salonware/booking-assistant/internal/config"
	"github.com/salonware/booking-assistant/internal/http/handlers"
	httpmiddleware "github.com/salonware/booking-assistant/internal/http/middleware"
	"github.com/salonware/booking-assistant/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking assistant api",
		"env", cfg.Env,
		"port", cfg.Port,
	)

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

	r := router.New(&router.Config{
		Logger:         logger,
		Health:         handlers.NewHealthHandler(rdb, pool, logger),
		MetricsHandler: promhttp.Handler(),
		RateLimit:      httpmiddleware.RateLimit(rdb, cfg.RateLimitPerMinute, logger, "/health", "/metrics"),
	})
	srv := newServer(cfg, r)

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// newServer applies the standard timeouts around the router.
func newServer(cfg *appconfig.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
