// Package bootstrap builds the runtime pieces the binaries share:
// stores, API clients and the assembled conversation engine. Builders
// for required dependencies return errors; optional integrations
// return nil and log what was skipped.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/salonware/booking-assistant/internal/config"
	"github.com/salonware/booking-assistant/pkg/logging"
)

// dependencyPingTimeout bounds the startup connectivity checks.
const dependencyPingTimeout = 5 * time.Second

// BuildRedisClient connects to REDIS_URL. When verify is true a ping
// is issued and an unreachable server fails the build.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) (*redis.Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, errors.New("bootstrap: REDIS_URL is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if !verify {
		return client, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, dependencyPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("bootstrap: redis not reachable: %w", err)
	}
	logger.Info("redis connected", "addr", opts.Addr)
	return client, nil
}

// BuildPostgresPool opens a pgx pool on DATABASE_URL and verifies
// connectivity before handing it out.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, errors.New("bootstrap: DATABASE_URL is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, dependencyPingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: postgres not reachable: %w", err)
	}
	logger.Info("postgres connected")
	return pool, nil
}
