package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDistributedRateLimiterAllow(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 3,
		WindowDuration:    time.Minute,
	}, "test")

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, allowed, "fourth request should be blocked")

	// A different key has its own window
	allowed, err = limiter.Allow(ctx, "user:2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestDistributedRateLimiterRemaining(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
	}, "test")

	remaining, err := limiter.Remaining(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	_, err = limiter.Allow(ctx, "user:1")
	require.NoError(t, err)

	remaining, err = limiter.Remaining(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)
}

func TestDistributedRateLimiterReset(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
	}, "test")

	allowed, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "user:1"))

	allowed, err = limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimitMiddleware(t *testing.T) {
	client := setupRedis(t)

	m := &RateLimitMiddleware{
		userLimiter: NewDistributedRateLimiter(client, &RateLimitConfig{
			RequestsPerWindow: 2,
			WindowDuration:    time.Minute,
		}, "ratelimit:user"),
		anonymousLimiter: NewDistributedRateLimiter(client, &RateLimitConfig{
			RequestsPerWindow: 2,
			WindowDuration:    time.Minute,
		}, "ratelimit:anon"),
	}

	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := func() *http.Request {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		return r
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req())
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	m := NewRateLimitMiddleware(client)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Redis outage must not block requests
	mr.Close()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
