package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"farmreport/pkg/config"
	"farmreport/pkg/logger"
)

// TTLClass named expiration tier.
type TTLClass int

const (
	TTLShort TTLClass = iota
	TTLMedium
	TTLLong
)

// String returns the class name.
func (c TTLClass) String() string {
	switch c {
	case TTLShort:
		return "short"
	case TTLMedium:
		return "medium"
	case TTLLong:
		return "long"
	default:
		return "unknown"
	}
}

// Result labels passed to Recorder.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Recorder receives per-module cache outcomes (prometheus in production).
type Recorder interface {
	RecordCacheResult(module, result string)
}

// Layer memoizes computed values in a Cache. Any store failure is treated as
// a miss: the value is computed and returned, and the failure is logged once
// per failed store operation.
type Layer struct {
	store    Cache
	prefix   string
	ttls     map[TTLClass]time.Duration
	codec    Codec
	breaker  *gobreaker.CircuitBreaker
	group    singleflight.Group
	log      *slog.Logger
	recorder Recorder
}

// LayerOption configures a Layer.
type LayerOption func(*Layer)

// WithPrefix sets the key namespace, "reports" by default.
func WithPrefix(prefix string) LayerOption {
	return func(l *Layer) { l.prefix = prefix }
}

// WithTTL overrides the duration of one class.
func WithTTL(class TTLClass, ttl time.Duration) LayerOption {
	return func(l *Layer) { l.ttls[class] = ttl }
}

// WithCodec sets the value codec, msgpack by default.
func WithCodec(codec Codec) LayerOption {
	return func(l *Layer) { l.codec = codec }
}

// WithLogger sets the logger used for degradation warnings.
func WithLogger(log *slog.Logger) LayerOption {
	return func(l *Layer) { l.log = log }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) LayerOption {
	return func(l *Layer) { l.recorder = r }
}

// WithBreaker wraps store calls into a circuit breaker. After threshold
// consecutive failures the store is bypassed for openTimeout.
func WithBreaker(threshold uint32, openTimeout time.Duration, halfOpen uint32) LayerOption {
	return func(l *Layer) {
		if threshold == 0 {
			return
		}
		l.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "cache-store",
			MaxRequests: halfOpen,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				l.logger().Warn("cache circuit breaker state changed",
					"breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}
}

// NewLayer creates a Layer over store. A nil store disables caching:
// Remember always computes and eviction calls are no-ops.
func NewLayer(store Cache, opts ...LayerOption) *Layer {
	l := &Layer{
		store:  store,
		prefix: "reports",
		ttls: map[TTLClass]time.Duration{
			TTLShort:  60 * time.Second,
			TTLMedium: 300 * time.Second,
			TTLLong:   3600 * time.Second,
		},
		codec: MsgpackCodec{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewLayerFromConfig builds a Layer with TTLs, prefix, codec and breaker from config.
func NewLayerFromConfig(store Cache, cfg config.CacheConfig, opts ...LayerOption) (*Layer, error) {
	codec, err := CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	base := []LayerOption{
		WithCodec(codec),
		WithTTL(TTLShort, cfg.TTL.Short),
		WithTTL(TTLMedium, cfg.TTL.Medium),
		WithTTL(TTLLong, cfg.TTL.Long),
	}
	if cfg.Prefix != "" {
		base = append(base, WithPrefix(cfg.Prefix))
	}
	if cfg.Breaker.Enabled {
		base = append(base, WithBreaker(cfg.Breaker.FailureThreshold, cfg.Breaker.OpenTimeout, cfg.Breaker.HalfOpenRequests))
	}

	return NewLayer(store, append(base, opts...)...), nil
}

// Enabled reports whether a store is attached.
func (l *Layer) Enabled() bool {
	return l != nil && l.store != nil
}

// TTL returns the duration of a class.
func (l *Layer) TTL(class TTLClass) time.Duration {
	if ttl, ok := l.ttls[class]; ok {
		return ttl
	}
	return l.ttls[TTLMedium]
}

// GenerateKey builds a deterministic key for module/operation/params.
func (l *Layer) GenerateKey(module, operation string, params map[string]string) string {
	return GenerateKey(l.prefix, module, operation, params)
}

// Remember returns the cached value under key, or computes, stores and
// returns it. Store failures never reach the caller; compute errors do and
// are not cached.
func Remember[T any](ctx context.Context, l *Layer, key string, class TTLClass, compute func(ctx context.Context) (T, error)) (T, error) {
	if !l.Enabled() {
		return compute(ctx)
	}

	module := moduleOf(l.prefix, key)

	data, found, err := l.get(ctx, key)
	switch {
	case err != nil:
		l.warn("cache get failed, computing uncached", key, err)
		l.record(module, ResultError)
	case found:
		var cached T
		decodeErr := l.codec.Unmarshal(data, &cached)
		if decodeErr == nil {
			l.record(module, ResultHit)
			return cached, nil
		}
		l.warn("cache entry is corrupt, recomputing", key, decodeErr)
		if err := l.delete(ctx, key); err != nil {
			l.warn("cache delete failed", key, err)
		}
	default:
		l.record(module, ResultMiss)
	}

	// Concurrent misses on the same key share one computation, detached
	// from the leader's cancellation.
	v, err, _ := l.group.Do(key, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		encoded, err := l.codec.Marshal(value)
		if err != nil {
			l.warn("cache encode failed", key, err)
			return value, nil
		}
		if err := l.set(ctx, key, encoded, l.TTL(class)); err != nil {
			l.warn("cache set failed", key, err)
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	value, ok := v.(T)
	if !ok {
		return compute(ctx)
	}
	return value, nil
}

// Forget removes a single key.
func (l *Layer) Forget(ctx context.Context, key string) error {
	if !l.Enabled() {
		return nil
	}
	if err := l.delete(ctx, key); err != nil {
		l.warn("cache forget failed", key, err)
		return fmt.Errorf("forget %s: %w", key, err)
	}
	return nil
}

// ForgetModule removes every key generated for module and returns the count.
func (l *Layer) ForgetModule(ctx context.Context, module string) (int64, error) {
	if !l.Enabled() {
		return 0, nil
	}
	pattern := ModulePattern(l.prefix, module)
	n, err := l.deleteByPattern(ctx, pattern)
	if err != nil {
		l.warn("cache module eviction failed", pattern, err)
		return n, fmt.Errorf("forget module %s: %w", module, err)
	}
	l.logger().Info("cache module evicted", "module", module, "keys", n)
	return n, nil
}

// Flush removes every key of this layer's namespace. Other data in a
// shared store is left untouched.
func (l *Layer) Flush(ctx context.Context) (int64, error) {
	if !l.Enabled() {
		return 0, nil
	}
	pattern := l.prefix + ":*"
	n, err := l.deleteByPattern(ctx, pattern)
	if err != nil {
		l.warn("cache flush failed", pattern, err)
		return n, fmt.Errorf("flush: %w", err)
	}
	l.logger().Info("cache flushed", "keys", n)
	return n, nil
}

// Stats returns store statistics.
func (l *Layer) Stats(ctx context.Context) (*Stats, error) {
	if !l.Enabled() {
		return &Stats{Backend: "disabled"}, nil
	}
	return l.store.Stats(ctx)
}

// Ping checks the store.
func (l *Layer) Ping(ctx context.Context) error {
	if !l.Enabled() {
		return nil
	}
	return l.store.Ping(ctx)
}

// Close closes the underlying store.
func (l *Layer) Close() error {
	if !l.Enabled() {
		return nil
	}
	return l.store.Close()
}

func (l *Layer) get(ctx context.Context, key string) ([]byte, bool, error) {
	type hit struct {
		data  []byte
		found bool
	}
	res, err := l.execute(func() (any, error) {
		data, err := l.store.Get(ctx, key)
		if errors.Is(err, ErrKeyNotFound) {
			return hit{}, nil
		}
		if err != nil {
			return nil, err
		}
		return hit{data: data, found: true}, nil
	})
	if err != nil {
		return nil, false, err
	}
	h := res.(hit)
	return h.data, h.found, nil
}

func (l *Layer) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := l.execute(func() (any, error) {
		return nil, l.store.Set(ctx, key, value, ttl)
	})
	return err
}

func (l *Layer) delete(ctx context.Context, key string) error {
	_, err := l.execute(func() (any, error) {
		return nil, l.store.Delete(ctx, key)
	})
	return err
}

func (l *Layer) deleteByPattern(ctx context.Context, pattern string) (int64, error) {
	res, err := l.execute(func() (any, error) {
		return l.store.DeleteByPattern(ctx, pattern)
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

func (l *Layer) execute(fn func() (any, error)) (any, error) {
	if l.breaker == nil {
		return fn()
	}
	return l.breaker.Execute(fn)
}

func (l *Layer) warn(msg, key string, err error) {
	l.logger().Warn(msg, "key", key, "error", err)
}

func (l *Layer) record(module, result string) {
	if l.recorder != nil {
		l.recorder.RecordCacheResult(module, result)
	}
}

func (l *Layer) logger() *slog.Logger {
	if l.log != nil {
		return l.log
	}
	return logger.Log
}
