package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryLimiter лимитер в памяти процесса. Стратегия token_bucket
// построена на x/time/rate, sliding_window хранит отметки запросов.
type MemoryLimiter struct {
	mu     sync.Mutex
	keys   map[string]*keyState
	cfg    *Config
	stopCh chan struct{}
	closed bool
}

type keyState struct {
	bucket *rate.Limiter // token_bucket
	hits   []time.Time   // sliding_window, по возрастанию
	seen   time.Time
}

// NewMemoryLimiter создаёт лимитер и запускает очистку неактивных ключей
func NewMemoryLimiter(cfg *Config) *MemoryLimiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	l := &MemoryLimiter{
		keys:   make(map[string]*keyState),
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

func (l *MemoryLimiter) tokenBucket() bool { return l.cfg.Strategy == StrategyTokenBucket }

func (l *MemoryLimiter) state(key string) *keyState {
	s, ok := l.keys[key]
	if !ok {
		s = &keyState{}
		if l.tokenBucket() {
			every := l.cfg.Window / time.Duration(max(l.cfg.Requests, 1))
			s.bucket = rate.NewLimiter(rate.Every(every), l.cfg.Requests+l.cfg.BurstSize)
		}
		l.keys[key] = s
	}
	return s
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.AllowN(ctx, key, 1)
}

func (l *MemoryLimiter) AllowN(_ context.Context, key string, n int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false, ErrLimiterClosed
	}

	now := l.cfg.now()
	s := l.state(key)
	s.seen = now

	if s.bucket != nil {
		return s.bucket.AllowN(now, n), nil
	}

	s.hits = dropExpired(s.hits, now.Add(-l.cfg.Window))
	if len(s.hits)+n > l.cfg.Requests {
		return false, nil
	}
	for range n {
		s.hits = append(s.hits, now)
	}
	return true, nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.keys, key)
	l.mu.Unlock()
	return nil
}

func (l *MemoryLimiter) GetInfo(_ context.Context, key string) (*LimitInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.cfg.now()
	info := &LimitInfo{
		Limit:     l.cfg.Requests,
		Remaining: l.cfg.Requests,
		ResetAt:   now.Add(l.cfg.Window),
	}

	s, ok := l.keys[key]
	switch {
	case !ok:
		return info, nil
	case s.bucket != nil:
		info.Remaining = int(s.bucket.TokensAt(now))
		if info.Remaining <= 0 {
			info.ResetAt = now.Add(time.Duration(float64(time.Second) / float64(s.bucket.Limit())))
		}
	default:
		active := dropExpired(s.hits, now.Add(-l.cfg.Window))
		info.Remaining = l.cfg.Requests - len(active)
		if len(active) > 0 {
			// окно освобождается вместе с самым старым запросом
			info.ResetAt = active[0].Add(l.cfg.Window)
		}
	}

	if info.Remaining <= 0 {
		info.Remaining = 0
		info.RetryAfter = info.ResetAt.Sub(now)
	}
	return info, nil
}

func (l *MemoryLimiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	close(l.stopCh)
	l.keys = nil
	return nil
}

func (l *MemoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

// cleanup удаляет ключи, не встречавшиеся два окна подряд
func (l *MemoryLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	idle := l.cfg.now().Add(-2 * l.cfg.Window)
	for key, s := range l.keys {
		if s.seen.Before(idle) {
			delete(l.keys, key)
		}
	}
}

// dropExpired отбрасывает отметки не позже start
func dropExpired(hits []time.Time, start time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(start) {
		i++
	}
	return hits[i:]
}
