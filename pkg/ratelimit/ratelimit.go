package ratelimit

import (
	"context"
	"errors"
	"time"

	"farmreport/pkg/config"
)

// ErrLimiterClosed возвращается после Close
var ErrLimiterClosed = errors.New("limiter is closed")

// Limiter ограничивает частоту запросов по ключу клиента
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	AllowN(ctx context.Context, key string, n int) (bool, error)
	Reset(ctx context.Context, key string) error
	// GetInfo состояние лимита для заголовков X-RateLimit-*
	GetInfo(ctx context.Context, key string) (*LimitInfo, error)
	Close() error
}

// LimitInfo информация о состоянии лимита
type LimitInfo struct {
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Стратегии лимитера
const (
	StrategySlidingWindow = "sliding_window"
	StrategyTokenBucket   = "token_bucket"
)

// Config параметры лимитера выгрузок
type Config struct {
	Requests  int           // запросов в окне
	Window    time.Duration // длина окна
	Strategy  string        // StrategySlidingWindow или StrategyTokenBucket
	BurstSize int           // запас сверх Requests для token_bucket

	Backend         string // memory или redis
	CleanupInterval time.Duration
	Prefix          string // префикс ключей redis

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Now func() time.Time // источник времени, по умолчанию time.Now
}

// DefaultConfig: 30 выгрузок в минуту на клиента
func DefaultConfig() *Config {
	return &Config{
		Requests:        30,
		Window:          time.Minute,
		Strategy:        StrategySlidingWindow,
		Backend:         "memory",
		BurstSize:       5,
		CleanupInterval: 5 * time.Minute,
		Prefix:          "ratelimit",
	}
}

// FromConfig переносит секцию rate_limit поверх значений по умолчанию
func FromConfig(cfg config.RateLimitConfig) *Config {
	out := DefaultConfig()
	if cfg.Requests > 0 {
		out.Requests = cfg.Requests
	}
	if cfg.Window > 0 {
		out.Window = cfg.Window
	}
	if cfg.Strategy != "" {
		out.Strategy = cfg.Strategy
	}
	if cfg.Burst > 0 {
		out.BurstSize = cfg.Burst
	}
	if cfg.CleanupInterval > 0 {
		out.CleanupInterval = cfg.CleanupInterval
	}
	if cfg.Backend != "" {
		out.Backend = cfg.Backend
	}
	out.RedisAddr = cfg.RedisAddr
	return out
}

// New выбирает реализацию по Backend. Неизвестный backend означает memory.
func New(cfg *Config) (Limiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Backend == "redis" {
		l, err := NewRedisLimiter(cfg)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	return NewMemoryLimiter(cfg), nil
}

func (c *Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
