package middleware

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/salonware/booking-assistant/pkg/logging"
)

// Counter keys live slightly longer than their window so clock skew
// between edge instances cannot expire a live bucket.
const rateLimitTTL = 2 * time.Minute

// RateLimit enforces a fixed-window per-IP limit with counters in
// Redis, so every edge instance shares one budget. The bucket key is
// the client IP plus the current minute. Exempt paths bypass the
// counter entirely. When Redis is unreachable the limiter fails open:
// the edge keeps serving and the failure is logged.
func RateLimit(client *redis.Client, perMinute int, logger *logging.Logger, exempt ...string) func(http.Handler) http.Handler {
	if client == nil {
		panic("middleware: nil redis client")
	}
	if logger == nil {
		logger = logging.Default()
	}
	log := logger.WithComponent("http.ratelimit")
	skip := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		skip[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			key := "ratelimit:" + clientIP(r) + ":" + time.Now().UTC().Format("200601021504")
			count, err := bump(r.Context(), client, key)
			if err != nil {
				log.Warn("rate limit check failed, allowing", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if count > int64(perMinute) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bump(ctx context.Context, client *redis.Client, key string) (int64, error) {
	pipe := client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rateLimitTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// clientIP prefers the address resolved by chi's RealIP middleware and
// strips the port when the raw RemoteAddr is all we have.
func clientIP(r *http.Request) string {
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
