package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmreport/pkg/config"
)

// warnCounter считает записи уровня WARN
type warnCounter struct {
	mu    sync.Mutex
	warns []string
}

func (h *warnCounter) Enabled(context.Context, slog.Level) bool { return true }

func (h *warnCounter) Handle(_ context.Context, r slog.Record) error {
	if r.Level == slog.LevelWarn {
		h.mu.Lock()
		h.warns = append(h.warns, r.Message)
		h.mu.Unlock()
	}
	return nil
}

func (h *warnCounter) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *warnCounter) WithGroup(string) slog.Handler      { return h }

func (h *warnCounter) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.warns)
}

// brokenStore падает на каждом вызове и считает вызовы
type brokenStore struct {
	calls atomic.Int64
}

var errStoreDown = errors.New("connection refused")

func (s *brokenStore) Get(context.Context, string) ([]byte, error) {
	s.calls.Add(1)
	return nil, errStoreDown
}

func (s *brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	s.calls.Add(1)
	return errStoreDown
}

func (s *brokenStore) Delete(context.Context, string) error {
	s.calls.Add(1)
	return errStoreDown
}

func (s *brokenStore) Keys(context.Context, string) ([]string, error) {
	s.calls.Add(1)
	return nil, errStoreDown
}

func (s *brokenStore) DeleteByPattern(context.Context, string) (int64, error) {
	s.calls.Add(1)
	return 0, errStoreDown
}

func (s *brokenStore) Stats(context.Context) (*Stats, error) { return nil, errStoreDown }
func (s *brokenStore) Ping(context.Context) error            { return errStoreDown }
func (s *brokenStore) Close() error                          { return nil }

type recorderStub struct {
	mu      sync.Mutex
	results map[string]int
}

func (r *recorderStub) RecordCacheResult(module, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string]int{}
	}
	r.results[module+"/"+result]++
}

type herdRow struct {
	Species  string
	Quantity int64
}

func newMemoryLayer(t *testing.T, opts ...LayerOption) (*Layer, *MemoryCache) {
	store := NewMemoryCache(nil)
	t.Cleanup(func() { store.Close() })
	return NewLayer(store, opts...), store
}

func TestGenerateKey_OrderIndependent(t *testing.T) {
	a := map[string]string{}
	a["search"] = "sao"
	a["municipio"] = "Teresina"
	a["especie"] = "bovinos"

	b := map[string]string{}
	b["especie"] = "bovinos"
	b["search"] = "sao"
	b["municipio"] = "Teresina"

	for i := 0; i < 20; i++ {
		assert.Equal(t, GenerateKey("reports", "herd", "data", a), GenerateKey("reports", "herd", "data", b))
	}
}

func TestGenerateKey_Distinguishes(t *testing.T) {
	base := GenerateKey("reports", "herd", "data", map[string]string{"a": "b&c"})

	assert.NotEqual(t, base, GenerateKey("reports", "herd", "data", map[string]string{"a": "b", "c": ""}))
	assert.NotEqual(t, base, GenerateKey("reports", "herd", "data_by_especie", map[string]string{"a": "b&c"}))
	assert.NotEqual(t, base, GenerateKey("reports", "property", "data", map[string]string{"a": "b&c"}))
	assert.Equal(t,
		GenerateKey("reports", "herd", "data", nil),
		GenerateKey("reports", "herd", "data", map[string]string{}))
}

func TestGenerateKey_Format(t *testing.T) {
	key := GenerateKey("reports", "herd", "data", map[string]string{"search": "x"})
	assert.Regexp(t, `^reports:herd:data:[0-9a-f]{32}$`, key)

	escaped := GenerateKey("reports", "a:b*", "op", nil)
	assert.Regexp(t, `^reports:a%3Ab%2A:op:`, escaped)
	assert.Equal(t, "a:b*", moduleOf("reports", escaped))
	assert.Equal(t, "herd", moduleOf("reports", key))
}

func TestRemember_CachesValue(t *testing.T) {
	rec := &recorderStub{}
	layer, _ := newMemoryLayer(t, WithRecorder(rec))
	ctx := context.Background()
	key := layer.GenerateKey("herd", "data", map[string]string{"search": "boa"})

	calls := 0
	compute := func(context.Context) ([]herdRow, error) {
		calls++
		return []herdRow{{"bovinos", 150}, {"caprinos", 45}}, nil
	}

	first, err := Remember(ctx, layer, key, TTLMedium, compute)
	require.NoError(t, err)
	second, err := Remember(ctx, layer, key, TTLMedium, compute)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, rec.results["herd/miss"])
	assert.Equal(t, 1, rec.results["herd/hit"])
}

func TestRemember_ComputeErrorIsNotCached(t *testing.T) {
	layer, store := newMemoryLayer(t)
	ctx := context.Background()
	key := layer.GenerateKey("herd", "data", nil)

	_, err := Remember(ctx, layer, key, TTLShort, func(context.Context) (int, error) {
		return 0, errors.New("db down")
	})
	require.Error(t, err)

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	v, err := Remember(ctx, layer, key, TTLShort, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestRemember_UsesClassTTL(t *testing.T) {
	clock := &fakeNow{now: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryCache(&Options{Now: clock.Now})
	defer store.Close()

	layer := NewLayer(store, WithTTL(TTLShort, time.Minute))
	ctx := context.Background()
	key := layer.GenerateKey("dashboard", "totals", nil)

	calls := 0
	compute := func(context.Context) (int, error) { calls++; return calls, nil }

	Remember(ctx, layer, key, TTLShort, compute)
	clock.Advance(30 * time.Second)
	Remember(ctx, layer, key, TTLShort, compute)
	assert.Equal(t, 1, calls)

	clock.Advance(31 * time.Second)
	v, _ := Remember(ctx, layer, key, TTLShort, compute)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, v)

	assert.Equal(t, 5*time.Minute, layer.TTL(TTLMedium))
	assert.Equal(t, time.Hour, layer.TTL(TTLLong))
}

func TestRemember_FailOpen(t *testing.T) {
	warns := &warnCounter{}
	store := &brokenStore{}
	layer := NewLayer(store, WithLogger(slog.New(warns)))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := Remember(ctx, layer, layer.GenerateKey("herd", "data", nil), TTLMedium,
			func(context.Context) (string, error) { return "fresh", nil })
		require.NoError(t, err)
		assert.Equal(t, "fresh", v)
	}

	// одна попытка get и одна попытка set на каждый вызов
	assert.Equal(t, int64(6), store.calls.Load())
	assert.Equal(t, 6, warns.Count())
}

func TestRemember_FailOpenWithOpenBreaker(t *testing.T) {
	warns := &warnCounter{}
	store := &brokenStore{}
	layer := NewLayer(store, WithLogger(slog.New(warns)), WithBreaker(2, time.Hour, 1))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := Remember(ctx, layer, "reports:herd:data:x", TTLMedium,
			func(context.Context) (int, error) { return i, nil })
		require.NoError(t, err)
	}

	// после двух отказов breaker открыт и хранилище больше не вызывается
	assert.Equal(t, int64(2), store.calls.Load())
	// каждая попытка операции даёт одно предупреждение, плюс сообщение о смене состояния
	assert.Equal(t, 10+1, warns.Count())
}

func TestRemember_CorruptEntryIsReplaced(t *testing.T) {
	warns := &warnCounter{}
	layer, store := newMemoryLayer(t, WithLogger(slog.New(warns)))
	ctx := context.Background()
	key := layer.GenerateKey("producer", "data", nil)

	require.NoError(t, store.Set(ctx, key, []byte{0xc1, 0xff, 0x00}, time.Minute))

	v, err := Remember(ctx, layer, key, TTLMedium, func(context.Context) ([]herdRow, error) {
		return []herdRow{{"ovinos", 3}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []herdRow{{"ovinos", 3}}, v)
	assert.Equal(t, 1, warns.Count())

	again, err := Remember(ctx, layer, key, TTLMedium, func(context.Context) ([]herdRow, error) {
		t.Fatal("value should come from cache")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, v, again)
}

func TestRemember_Singleflight(t *testing.T) {
	layer, _ := newMemoryLayer(t)
	ctx := context.Background()
	key := layer.GenerateKey("property", "data", nil)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Remember(ctx, layer, key, TTLMedium, compute)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	for _, r := range results {
		assert.Equal(t, 42, r)
	}
}

func TestLayer_ForgetModule(t *testing.T) {
	layer, store := newMemoryLayer(t)
	ctx := context.Background()

	herdKey := layer.GenerateKey("herd", "data", nil)
	herdGrouped := layer.GenerateKey("herd", "data_by_especie", map[string]string{"search": "x"})
	herdsKey := layer.GenerateKey("herds", "data", nil)
	propertyKey := layer.GenerateKey("property", "data", nil)

	for _, k := range []string{herdKey, herdGrouped, herdsKey, propertyKey} {
		require.NoError(t, store.Set(ctx, k, []byte("x"), time.Minute))
	}
	require.NoError(t, store.Set(ctx, "unrelated:herd:data", []byte("x"), time.Minute))

	n, err := layer.ForgetModule(ctx, "herd")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, k := range []string{herdsKey, propertyKey, "unrelated:herd:data"} {
		_, err := store.Get(ctx, k)
		assert.NoError(t, err, k)
	}
	for _, k := range []string{herdKey, herdGrouped} {
		_, err := store.Get(ctx, k)
		assert.ErrorIs(t, err, ErrKeyNotFound, k)
	}
}

func TestLayer_ForgetAndFlush(t *testing.T) {
	layer, store := newMemoryLayer(t)
	ctx := context.Background()

	k1 := layer.GenerateKey("herd", "data", nil)
	k2 := layer.GenerateKey("dashboard", "totals", nil)
	store.Set(ctx, k1, []byte("1"), time.Minute)
	store.Set(ctx, k2, []byte("2"), time.Minute)
	store.Set(ctx, "sessions:abc", []byte("3"), time.Minute)

	require.NoError(t, layer.Forget(ctx, k1))
	_, err := store.Get(ctx, k1)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	n, err := layer.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Get(ctx, "sessions:abc")
	assert.NoError(t, err, "flush must not touch foreign keys")
}

func TestLayer_EvictionErrors(t *testing.T) {
	warns := &warnCounter{}
	layer := NewLayer(&brokenStore{}, WithLogger(slog.New(warns)))
	ctx := context.Background()

	assert.Error(t, layer.Forget(ctx, "reports:herd:data:x"))
	_, err := layer.ForgetModule(ctx, "herd")
	assert.Error(t, err)
	_, err = layer.Flush(ctx)
	assert.Error(t, err)
	assert.Equal(t, 3, warns.Count())
}

func TestLayer_Disabled(t *testing.T) {
	layer := NewLayer(nil)
	ctx := context.Background()

	calls := 0
	for i := 0; i < 2; i++ {
		Remember(ctx, layer, "k", TTLShort, func(context.Context) (int, error) { calls++; return 1, nil })
	}
	assert.Equal(t, 2, calls)
	assert.False(t, layer.Enabled())
	assert.NoError(t, layer.Forget(ctx, "k"))
	n, err := layer.Flush(ctx)
	assert.NoError(t, err)
	assert.Zero(t, n)
	stats, _ := layer.Stats(ctx)
	assert.Equal(t, "disabled", stats.Backend)
}

func TestNewLayerFromConfig(t *testing.T) {
	store := NewMemoryCache(nil)
	defer store.Close()

	layer, err := NewLayerFromConfig(store, config.CacheConfig{
		Prefix: "farm",
		Codec:  "json",
		TTL:    config.TTLConfig{Short: time.Second, Medium: 2 * time.Second, Long: 3 * time.Second},
		Breaker: config.BreakerConfig{
			Enabled: true, FailureThreshold: 3, OpenTimeout: time.Second, HalfOpenRequests: 1,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, time.Second, layer.TTL(TTLShort))
	assert.Equal(t, 3*time.Second, layer.TTL(TTLLong))
	assert.Regexp(t, `^farm:herd:data:`, layer.GenerateKey("herd", "data", nil))
	assert.NotNil(t, layer.breaker)

	_, err = NewLayerFromConfig(store, config.CacheConfig{Codec: "xml"})
	assert.Error(t, err)
}

func TestCodecs(t *testing.T) {
	for _, codec := range []Codec{MsgpackCodec{}, JSONCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			in := []herdRow{{"bovinos", 150}}
			data, err := codec.Marshal(in)
			require.NoError(t, err)

			var out []herdRow
			require.NoError(t, codec.Unmarshal(data, &out))
			assert.Equal(t, in, out)
		})
	}
}

type datedRow struct {
	Name      string
	UpdatedAt time.Time
	Ref       *datedRow
	ByKey     map[string]time.Time
}

// useLocal подменяет time.Local на зону с ненулевым смещением
func useLocal(t *testing.T) {
	t.Helper()
	prev := time.Local
	time.Local = time.FixedZone("BRT", -3*3600)
	t.Cleanup(func() { time.Local = prev })
}

func TestCodecs_TimesDecodeAsUTC(t *testing.T) {
	useLocal(t)
	at := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	for _, codec := range []Codec{MsgpackCodec{}, JSONCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			in := []datedRow{{
				Name:      "Fazenda Boa Vista",
				UpdatedAt: at,
				Ref:       &datedRow{Name: "ref", UpdatedAt: at},
				ByKey:     map[string]time.Time{"created": at},
			}}
			data, err := codec.Marshal(in)
			require.NoError(t, err)

			var out []datedRow
			require.NoError(t, codec.Unmarshal(data, &out))
			assert.Equal(t, in, out)
			assert.Equal(t, time.UTC, out[0].UpdatedAt.Location())
			assert.Equal(t, time.UTC, out[0].Ref.UpdatedAt.Location())
			assert.Equal(t, time.UTC, out[0].ByKey["created"].Location())
		})
	}
}

func TestRemember_HitEqualsMiss(t *testing.T) {
	useLocal(t)
	layer, _ := newMemoryLayer(t)
	ctx := context.Background()
	key := layer.GenerateKey("herd", "data", nil)
	rows := []datedRow{{Name: "bovinos", UpdatedAt: time.Date(2025, 8, 1, 10, 30, 0, 0, time.UTC)}}

	calls := 0
	compute := func(context.Context) ([]datedRow, error) {
		calls++
		return rows, nil
	}

	miss, err := Remember(ctx, layer, key, TTLMedium, compute)
	require.NoError(t, err)
	hit, err := Remember(ctx, layer, key, TTLMedium, compute)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, miss, hit)
}

func TestRemember_LeaderCancelDoesNotFailFollowers(t *testing.T) {
	layer, _ := newMemoryLayer(t)
	key := layer.GenerateKey("herd", "data", nil)

	leaderCtx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	compute := func(ctx context.Context) (int, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 7, nil
	}

	var wg sync.WaitGroup
	var leaderVal, followerVal int
	var leaderErr, followerErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		leaderVal, leaderErr = Remember(leaderCtx, layer, key, TTLShort, compute)
	}()
	<-started

	wg.Add(1)
	go func() {
		defer wg.Done()
		followerVal, followerErr = Remember(context.Background(), layer, key, TTLShort, compute)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	close(release)
	wg.Wait()

	require.NoError(t, leaderErr)
	require.NoError(t, followerErr)
	assert.Equal(t, 7, leaderVal)
	assert.Equal(t, 7, followerVal)

	// значение сохранено несмотря на отмену
	cached, err := Remember(context.Background(), layer, key, TTLShort, func(context.Context) (int, error) {
		return 0, errors.New("should be cached")
	})
	require.NoError(t, err)
	assert.Equal(t, 7, cached)
}
