package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	t.Run("bypassed outside production", func(t *testing.T) {
		for _, env := range []string{"", "development", "test", "stress"} {
			ok, err := NewLimiter(nil, env).Allow(ctx, "reveal", "user:1", 1, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, env)
		}
	})

	t.Run("counts per window", func(t *testing.T) {
		l := NewLimiter(rdb, "production")
		for i := 0; i < 2; i++ {
			ok, err := l.Allow(ctx, "reveal", "user:1", 2, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)
		}
		ok, err := l.Allow(ctx, "reveal", "user:1", 2, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		assert.Equal(t, time.Minute, mr.TTL("lionboard:rl:reveal:user:1"))
		mr.FastForward(time.Minute)

		ok, err = l.Allow(ctx, "reveal", "user:1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("nil client errors", func(t *testing.T) {
		_, err := NewLimiter(nil, "production").Allow(ctx, "reveal", "user:1", 1, time.Minute)
		assert.Error(t, err)
	})
}

func TestLimiter_RateLimitPolicies(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) }

	app := fiber.New()
	app.Get("/limited", NewLimiter(rdb, "production").RateLimit("limited", 1, time.Minute, FailOpen), ok)
	app.Get("/open", NewLimiter(nil, "production").RateLimit("open", 1, time.Minute, FailOpen), ok)
	app.Get("/closed", NewLimiter(nil, "production").RateLimit("closed", 1, time.Minute, FailClosed), ok)

	status := func(path string) int {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusNoContent, status("/limited"))
	assert.Equal(t, http.StatusTooManyRequests, status("/limited"))
	assert.Equal(t, http.StatusNoContent, status("/open"))
	assert.Equal(t, http.StatusServiceUnavailable, status("/closed"))
}
