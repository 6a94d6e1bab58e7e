package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// CacheSnapshot состояние хранилища кэша на момент сбора
type CacheSnapshot struct {
	Keys        int64
	Hits        int64
	Misses      int64
	MemoryBytes int64
	Backend     string
}

// CacheStatsFunc читает состояние кэша
type CacheStatsFunc func(ctx context.Context) (CacheSnapshot, error)

const cacheScrapeTimeout = 2 * time.Second

// CacheCollector отдаёт статистику хранилища кэша при каждом scrape
type CacheCollector struct {
	stats CacheStatsFunc

	keys   *prometheus.Desc
	hits   *prometheus.Desc
	misses *prometheus.Desc
	memory *prometheus.Desc
	up     *prometheus.Desc
}

// NewCacheCollector создаёт коллектор
func NewCacheCollector(namespace, subsystem string, stats CacheStatsFunc) *CacheCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, []string{"backend"}, nil)
	}
	return &CacheCollector{
		stats:  stats,
		keys:   desc("cache_keys", "Keys currently stored in the report cache"),
		hits:   desc("cache_store_hits_total", "Hits counted by the cache backend"),
		misses: desc("cache_store_misses_total", "Misses counted by the cache backend"),
		memory: desc("cache_memory_bytes", "Memory used by the cache backend"),
		up: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, "cache_up"),
			"Whether the last cache stats read succeeded", nil, nil),
	}
}

// Describe implements prometheus.Collector
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.hits
	ch <- c.misses
	ch <- c.memory
	ch <- c.up
}

// Collect implements prometheus.Collector
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheScrapeTimeout)
	defer cancel()

	s, err := c.stats(ctx)
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(s.Keys), s.Backend)
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), s.Backend)
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses), s.Backend)
	ch <- prometheus.MustNewConstMetric(c.memory, prometheus.GaugeValue, float64(s.MemoryBytes), s.Backend)
}

// WatchCache регистрирует коллектор кэша в registry метрик
func (m *Metrics) WatchCache(stats CacheStatsFunc) error {
	if m == nil || m.reg == nil || stats == nil {
		return nil
	}
	return m.reg.Register(NewCacheCollector(m.namespace, m.subsystem, stats))
}

// registerRuntime добавляет стандартные Go и process коллекторы.
// Повторная регистрация (DefaultRegisterer) не считается ошибкой.
func registerRuntime(reg prometheus.Registerer) {
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		var are prometheus.AlreadyRegisteredError
		if err := reg.Register(c); err != nil && !errors.As(err, &are) {
			panic(err)
		}
	}
}
