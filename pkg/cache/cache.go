// Package cache provides a key-value store interface with in-memory and
// Redis-backed implementations, and a Layer that memoizes expensive report
// queries on top of it using named TTL classes.
package cache

import (
	"context"
	"errors"
	"time"

	"farmreport/pkg/config"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

var (
	// ErrKeyNotFound means the key is absent or expired.
	ErrKeyNotFound = errors.New("key not found")
	ErrCacheClosed = errors.New("cache is closed")
)

// Cache is the byte store under Layer. Writes are upserts, the last writer wins.
// Patterns are globs where '*' matches any run of characters.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value for ttl; ttl <= 0 means the store default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete of a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
	Stats(ctx context.Context) (*Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

// Stats is a point-in-time view of a store.
type Stats struct {
	TotalKeys    int64            `json:"total_keys"`
	Hits         int64            `json:"hits"`
	Misses       int64            `json:"misses"`
	HitRate      float64          `json:"hit_rate"`
	MemoryBytes  int64            `json:"memory_bytes"`
	KeysByPrefix map[string]int64 `json:"keys_by_prefix,omitempty"`
	Backend      string           `json:"backend"`
}

// Options configures New.
type Options struct {
	Backend    string
	DefaultTTL time.Duration

	// memory
	MaxEntries      int
	CleanupInterval time.Duration
	Now             func() time.Time

	// redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
}

func DefaultOptions() *Options {
	return &Options{
		Backend:         BackendMemory,
		DefaultTTL:      5 * time.Minute,
		MaxEntries:      10000,
		CleanupInterval: time.Minute,
		RedisAddr:       "localhost:6379",
		RedisPoolSize:   10,
	}
}

// FromConfig maps the cache section; entries without an explicit TTL get the medium class.
func FromConfig(cfg *config.CacheConfig) *Options {
	opts := DefaultOptions()
	opts.Backend = cfg.Driver
	opts.DefaultTTL = cfg.TTL.Medium
	opts.MaxEntries = cfg.MaxEntries
	opts.RedisAddr = cfg.Address()
	opts.RedisPassword = cfg.Password
	opts.RedisDB = cfg.DB
	return opts
}

// New opens the store named by opts.Backend. Unknown backends fall back to memory.
func New(opts *Options) (Cache, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Backend == BackendRedis {
		c, err := NewRedisCache(opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return NewMemoryCache(opts), nil
}
