package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipIfNoRedis(t *testing.T) {
	if os.Getenv("REDIS_TEST_ADDR") == "" {
		t.Skip("REDIS_TEST_ADDR not set, skipping Redis tests")
	}
}

func TestRedisLimiter_Allow(t *testing.T) {
	skipIfNoRedis(t)
	fixed := time.Now().Truncate(time.Millisecond)

	limiter, err := NewRedisLimiter(&Config{
		Requests:      3,
		Window:        time.Minute,
		Backend:       "redis",
		Prefix:        "ratelimit-test",
		Now:           func() time.Time { return fixed },
		RedisAddr:     os.Getenv("REDIS_TEST_ADDR"),
		RedisPassword: os.Getenv("REDIS_TEST_PASSWORD"),
	})
	require.NoError(t, err)
	defer limiter.Close()

	ctx := context.Background()
	key := "export:127.0.0.1"
	require.NoError(t, limiter.Reset(ctx, key))
	defer limiter.Reset(ctx, key)

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i+1)
	}

	allowed, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, allowed)

	info, err := limiter.GetInfo(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, info.Remaining)
	assert.Equal(t, time.Minute, info.RetryAfter)
}

func TestRedisLimiter_SharedClientIsNotClosed(t *testing.T) {
	skipIfNoRedis(t)

	client := redis.NewClient(&redis.Options{Addr: os.Getenv("REDIS_TEST_ADDR"), Password: os.Getenv("REDIS_TEST_PASSWORD")})
	defer client.Close()

	limiter := NewRedisLimiterFromClient(client, &Config{Requests: 1, Window: time.Second})
	require.NoError(t, limiter.Close())
	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewRedisLimiter_Unreachable(t *testing.T) {
	_, err := NewRedisLimiter(&Config{RedisAddr: "127.0.0.1:1", Requests: 1, Window: time.Second})
	assert.Error(t, err)
}
