package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonware/booking-assistant/internal/http/handlers"
	httpmiddleware "github.com/salonware/booking-assistant/internal/http/middleware"
)

type okDB struct{}

func (okDB) Ping(context.Context) error { return nil }

func newTestRouter(t *testing.T, limit int) http.Handler {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	reg := prometheus.NewRegistry()
	turns := prometheus.NewCounter(prometheus.CounterOpts{Name: "salon_test_turns_total"})
	reg.MustRegister(turns)
	turns.Inc()

	cfg := &Config{
		Health:         handlers.NewHealthHandler(client, okDB{}, nil),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	if limit > 0 {
		cfg.RateLimit = httpmiddleware.RateLimit(client, limit, nil, "/health")
	}
	return New(cfg)
}

func TestRouterHealthEndpoint(t *testing.T) {
	r := newTestRouter(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterServesMetrics(t *testing.T) {
	r := newTestRouter(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "salon_test_turns_total")
}

func TestRouterRateLimitGuardsRoutesButNotHealth(t *testing.T) {
	r := newTestRouter(t, 2)

	hit := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Real-Ip", "10.9.9.9")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, hit("/metrics"))
	assert.Equal(t, http.StatusOK, hit("/metrics"))
	assert.Equal(t, http.StatusTooManyRequests, hit("/metrics"))

	// The probe path stays reachable regardless of budget.
	for i := 0; i < 4; i++ {
		assert.Equal(t, http.StatusOK, hit("/health"))
	}
}
