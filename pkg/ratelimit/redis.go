package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript чистит окно и записывает n отметок, если лимит позволяет.
// Возвращает {allowed, remaining}.
var slidingWindowScript = redis.NewScript(`
local key    = KEYS[1]
local limit  = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now    = tonumber(ARGV[3])
local n      = tonumber(ARGV[4])
local nonce  = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local used = redis.call('ZCARD', key)
if used + n > limit then
	return {0, limit - used}
end

for i = 1, n do
	redis.call('ZADD', key, now, nonce .. ':' .. i)
end
redis.call('PEXPIRE', key, window + 1000)
return {1, limit - used - n}
`)

// RedisLimiter скользящее окно в sorted set; подходит для нескольких реплик
type RedisLimiter struct {
	client redis.UniversalClient
	cfg    *Config
	owned  bool
}

// NewRedisLimiter подключается к cfg.RedisAddr и проверяет соединение
func NewRedisLimiter(cfg *Config) (*RedisLimiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	l := NewRedisLimiterFromClient(client, cfg)
	l.owned = true
	return l, nil
}

// NewRedisLimiterFromClient работает поверх чужого клиента и не закрывает его
func NewRedisLimiterFromClient(client redis.UniversalClient, cfg *Config) *RedisLimiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &RedisLimiter{client: client, cfg: cfg}
}

func (l *RedisLimiter) key(key string) string {
	if l.cfg.Prefix == "" {
		return "ratelimit:" + key
	}
	return l.cfg.Prefix + ":" + key
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.AllowN(ctx, key, 1)
}

func (l *RedisLimiter) AllowN(ctx context.Context, key string, n int) (bool, error) {
	now := l.cfg.now()
	nonce := uuid.NewString()

	res, err := slidingWindowScript.Run(ctx, l.client, []string{l.key(key)},
		l.cfg.Requests, l.cfg.Window.Milliseconds(), now.UnixMilli(), n, nonce).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return false, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}
	return res[0] == 1, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}

// GetInfo читает число запросов в окне и самый старый из них одним pipeline
func (l *RedisLimiter) GetInfo(ctx context.Context, key string) (*LimitInfo, error) {
	now := l.cfg.now()
	k := l.key(key)
	since := strconv.FormatInt(now.Add(-l.cfg.Window).UnixMilli(), 10)

	var count *redis.IntCmd
	var oldest *redis.ZSliceCmd
	_, err := l.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		count = p.ZCount(ctx, k, "("+since, "+inf")
		oldest = p.ZRangeByScoreWithScores(ctx, k, &redis.ZRangeBy{Min: "(" + since, Max: "+inf", Count: 1})
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("rate limit info: %w", err)
	}

	info := &LimitInfo{
		Limit:     l.cfg.Requests,
		Remaining: l.cfg.Requests - int(count.Val()),
		ResetAt:   now.Add(l.cfg.Window),
	}
	if z := oldest.Val(); len(z) > 0 {
		info.ResetAt = time.UnixMilli(int64(z[0].Score)).Add(l.cfg.Window)
	}
	if info.Remaining <= 0 {
		info.Remaining = 0
		info.RetryAfter = info.ResetAt.Sub(now)
	}
	return info, nil
}

func (l *RedisLimiter) Close() error {
	if !l.owned {
		return nil
	}
	return l.client.Close()
}
