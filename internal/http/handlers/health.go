package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/salonware/booking-assistant/pkg/logging"
)

// Each dependency gets its own short deadline so a wedged dependency
// cannot stall the probe past the prober's own timeout.
const healthPingTimeout = 2 * time.Second

type redisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

type dbPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers the edge liveness probe with per-dependency
// status: 200 when Redis and Postgres both respond, 503 otherwise.
type HealthHandler struct {
	redis    redisPinger
	postgres dbPinger
	logger   *logging.Logger
}

func NewHealthHandler(redis redisPinger, postgres dbPinger, logger *logging.Logger) *HealthHandler {
	if redis == nil {
		panic("handlers: nil redis client")
	}
	if postgres == nil {
		panic("handlers: nil postgres pool")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HealthHandler{
		redis:    redis,
		postgres: postgres,
		logger:   logger.WithComponent("http.health"),
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Redis    string `json:"redis"`
	Postgres string `json:"postgres"`
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Redis: "ok", Postgres: "ok"}

	if err := h.pingRedis(r.Context()); err != nil {
		h.logger.Warn("redis unreachable", "error", err)
		resp.Redis = "unreachable"
	}
	if err := h.pingPostgres(r.Context()); err != nil {
		h.logger.Warn("postgres unreachable", "error", err)
		resp.Postgres = "unreachable"
	}

	code := http.StatusOK
	if resp.Redis != "ok" || resp.Postgres != "ok" {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *HealthHandler) pingRedis(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	return h.redis.Ping(ctx).Err()
}

func (h *HealthHandler) pingPostgres(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	return h.postgres.Ping(ctx)
}
