package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanCount is the COUNT hint for SCAN and the size of UNLINK batches.
const scanCount = 500

// RedisCache stores entries in Redis so that replicas share one cache.
type RedisCache struct {
	client     redis.UniversalClient
	defaultTTL time.Duration
}

// NewRedisCache dials opts.RedisAddr and fails if the server does not answer PING.
func NewRedisCache(opts *Options) (*RedisCache, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
		PoolSize: max(opts.RedisPoolSize, 1),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisCacheFromClient(client, opts.DefaultTTL), nil
}

// NewRedisCacheFromClient wraps an existing client. Close closes the client.
func NewRedisCacheFromClient(client redis.UniversalClient, defaultTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, defaultTTL: defaultTTL}
}

// Client exposes the connection so the rate limiter can share it.
func (c *RedisCache) Client() redis.UniversalClient {
	return c.client
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	return val, err
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Unlink(ctx, key).Err()
}

// Keys walks the keyspace with SCAN; KEYS would block the server.
func (c *RedisCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	err := c.scan(ctx, pattern, func(batch []string) error {
		keys = append(keys, batch...)
		return nil
	})
	return keys, err
}

// DeleteByPattern unlinks matching keys batch by batch while scanning.
func (c *RedisCache) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	var removed int64
	err := c.scan(ctx, pattern, func(batch []string) error {
		n, err := c.client.Unlink(ctx, batch...).Result()
		removed += n
		return err
	})
	return removed, err
}

// scan hands fn non-empty batches of at most scanCount keys.
func (c *RedisCache) scan(ctx context.Context, pattern string, fn func(batch []string) error) error {
	batch := make([]string, 0, scanCount)
	iter := c.client.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanCount {
			if err := fn(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	return fn(batch)
}

// Stats reads server wide counters from INFO, so hits and misses include
// traffic of other clients of the same Redis.
func (c *RedisCache) Stats(ctx context.Context) (*Stats, error) {
	var info *redis.StringCmd
	var size *redis.IntCmd
	if _, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		info = p.Info(ctx, "stats", "memory")
		size = p.DBSize(ctx)
		return nil
	}); err != nil {
		return nil, err
	}

	fields := parseInfo(info.Val())
	stats := &Stats{
		Backend:     BackendRedis,
		TotalKeys:   size.Val(),
		Hits:        fields["keyspace_hits"],
		Misses:      fields["keyspace_misses"],
		MemoryBytes: fields["used_memory"],
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats, nil
}

// parseInfo keeps the integer "name:value" lines of an INFO reply.
func parseInfo(info string) map[string]int64 {
	out := make(map[string]int64)
	for _, line := range strings.Split(info, "\n") {
		name, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok || strings.HasPrefix(name, "#") {
			continue
		}
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			out[name] = n
		}
	}
	return out
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
