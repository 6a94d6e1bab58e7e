package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics контейнер метрик сервиса отчётов.
// Все методы Record* безопасны для nil получателя: без метрик сервис работает так же.
type Metrics struct {
	// HTTP метрики
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Бизнес-метрики
	ExportsTotal   *prometheus.CounterVec
	ExportDuration *prometheus.HistogramVec
	ExportRecords  *prometheus.HistogramVec
	ExportBytes    *prometheus.HistogramVec
	CacheResults   *prometheus.CounterVec

	// Информация о сервисе
	ServiceInfo *prometheus.GaugeVec

	reg       prometheus.Registerer
	gatherer  prometheus.Gatherer
	namespace string
	subsystem string
}

var defaultMetrics *Metrics

// InitMetrics регистрирует метрики в глобальном registry
func InitMetrics(namespace, subsystem string) *Metrics {
	m := New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer, namespace, subsystem)
	defaultMetrics = m
	return m
}

// New создаёт метрики в переданном registry (в тестах - prometheus.NewRegistry())
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer, namespace, subsystem string) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "route"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		ExportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "exports_total",
				Help:      "Total number of report exports",
			},
			[]string{"report_type", "format", "status"},
		),

		ExportDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "export_duration_seconds",
				Help:      "Duration of report exports",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"report_type", "format"},
		),

		ExportRecords: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "export_records",
				Help:      "Number of records in exported reports",
				Buckets:   []float64{0, 1, 10, 50, 100, 250, 500, 1000},
			},
			[]string{"report_type"},
		),

		ExportBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "export_bytes",
				Help:      "Size of exported artifacts",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
			},
			[]string{"format"},
		),

		CacheResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_results_total",
				Help:      "Cache lookups by module and result (hit, miss, error)",
			},
			[]string{"module", "result"},
		),

		ServiceInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),

		reg:       reg,
		gatherer:  gatherer,
		namespace: namespace,
		subsystem: subsystem,
	}

	registerRuntime(reg)

	return m
}

// Get возвращает глобальные метрики
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("farmreport", "")
	}
	return defaultMetrics
}

// RecordHTTPRequest записывает метрики HTTP запроса
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordExport записывает метрики экспорта
func (m *Metrics) RecordExport(reportType, format string, success bool, duration time.Duration, records int, size int64) {
	if m == nil {
		return
	}

	status := "success"
	if !success {
		status = "error"
	}

	m.ExportsTotal.WithLabelValues(reportType, format, status).Inc()
	m.ExportDuration.WithLabelValues(reportType, format).Observe(duration.Seconds())
	if success {
		m.ExportRecords.WithLabelValues(reportType).Observe(float64(records))
		m.ExportBytes.WithLabelValues(format).Observe(float64(size))
	}
}

// RecordCacheResult реализует cache.Recorder
func (m *Metrics) RecordCacheResult(module, result string) {
	if m == nil {
		return
	}
	m.CacheResults.WithLabelValues(module, result).Inc()
}

// SetServiceInfo устанавливает информацию о сервисе
func (m *Metrics) SetServiceInfo(version, environment string) {
	if m == nil {
		return
	}
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// InFlight увеличивает gauge активных запросов и возвращает функцию для уменьшения
func (m *Metrics) InFlight() func() {
	if m == nil {
		return func() {}
	}
	m.HTTPRequestsInFlight.Inc()
	return m.HTTPRequestsInFlight.Dec
}

// Handler возвращает HTTP handler для /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
