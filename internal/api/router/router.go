// Package router assembles the HTTP edge: the liveness probe, the
// Prometheus scrape endpoint and the shared middleware stack.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/salonware/booking-assistant/internal/http/handlers"
	httpmiddleware "github.com/salonware/booking-assistant/internal/http/middleware"
	"github.com/salonware/booking-assistant/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger
	Health *handlers.HealthHandler

	// MetricsHandler serves /metrics when set, typically
	// promhttp.Handler().
	MetricsHandler http.Handler

	// RateLimit guards every route except the exemptions baked into
	// the middleware itself. Optional.
	RateLimit func(http.Handler) http.Handler
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimit != nil {
		r.Use(cfg.RateLimit)
	}

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Check)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
