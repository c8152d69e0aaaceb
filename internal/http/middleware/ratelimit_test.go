package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateLimitFixture(t *testing.T, perMinute int, exempt ...string) (http.Handler, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return RateLimit(client, perMinute, nil, exempt...)(next), mr
}

func hitPath(h http.Handler, path, ip string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Real-Ip", ip)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestRateLimitAllowsUnderTheCap(t *testing.T) {
	h, _ := rateLimitFixture(t, 3)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hitPath(h, "/anything", "10.0.0.1"))
	}
}

func TestRateLimitRejectsOverTheCap(t *testing.T) {
	h, _ := rateLimitFixture(t, 2)

	assert.Equal(t, http.StatusOK, hitPath(h, "/anything", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, hitPath(h, "/anything", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hitPath(h, "/anything", "10.0.0.1"))
}

func TestRateLimitBucketsPerIP(t *testing.T) {
	h, _ := rateLimitFixture(t, 1)

	assert.Equal(t, http.StatusOK, hitPath(h, "/anything", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hitPath(h, "/anything", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, hitPath(h, "/anything", "10.0.0.2"))
}

func TestRateLimitExemptPathBypassesCounter(t *testing.T) {
	h, _ := rateLimitFixture(t, 1, "/health")

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hitPath(h, "/health", "10.0.0.1"))
	}
	// The exempt traffic must not have consumed the budget.
	assert.Equal(t, http.StatusOK, hitPath(h, "/anything", "10.0.0.1"))
}

func TestRateLimitFailsOpenWithoutRedis(t *testing.T) {
	h, mr := rateLimitFixture(t, 1)
	mr.Close()

	assert.Equal(t, http.StatusOK, hitPath(h, "/anything", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, hitPath(h, "/anything", "10.0.0.1"))
}
