package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "FARMREPORT_"
	configEnvVar = "CONFIG_PATH"
)

// Loader собирает конфигурацию из слоёв по возрастанию приоритета:
// значения по умолчанию, yaml файл, переменные окружения, overrides.
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
	overrides   map[string]any
	configFile  string
}

type LoaderOption func(*Loader)

// WithConfigPaths заменяет список путей поиска yaml
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) { l.configPaths = paths }
}

func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithOverrides значения с наивысшим приоритетом, обычно флаги CLI
func WithOverrides(values map[string]any) LoaderOption {
	return func(l *Loader) { l.overrides = values }
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k:           koanf.New("."),
		configPaths: []string{"config.yaml", "config/config.yaml", "/etc/farmreport/config.yaml"},
		envPrefix:   envPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ConfigFile путь к прочитанному yaml; пусто, если файл не найден
func (l *Loader) ConfigFile() string {
	return l.configFile
}

func (l *Loader) Load() (*Config, error) {
	if err := l.k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// отсутствие файла допустимо, хватает defaults и окружения
	if path := l.findConfigFile(); path != "" {
		if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		l.configFile = path
	}

	if err := l.k.Load(env.ProviderWithValue(l.envPrefix, ".", l.envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	if len(l.overrides) > 0 {
		if err := l.k.Load(confmap.Provider(l.overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load overrides: %w", err)
		}
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load загрузка со стандартными путями и префиксом FARMREPORT_
func Load(opts ...LoaderOption) (*Config, error) {
	return NewLoader(opts...).Load()
}

// Defaults возвращает значения по умолчанию
func Defaults() map[string]any {
	return map[string]any{
		// App
		"app.name":        "report-svc",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.debug":       false,

		// HTTP
		"http.port":                 8080,
		"http.read_timeout":         30 * time.Second,
		"http.write_timeout":        120 * time.Second,
		"http.shutdown_timeout":     10 * time.Second,
		"http.cors.enabled":         true,
		"http.cors.allowed_origins": []string{"*"},
		"http.cors.allowed_methods": []string{"GET", "DELETE", "OPTIONS"},
		"http.cors.allowed_headers": []string{"Content-Type", "Authorization", "Accept", "Origin", "X-Request-ID"},
		"http.cors.exposed_headers": []string{"Content-Disposition", "X-Request-ID"},
		"http.cors.max_age":         86400,
		"http.swagger":              true,

		// Log
		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		// Metrics
		"metrics.enabled":   true,
		"metrics.path":      "/metrics",
		"metrics.namespace": "farmreport",
		"metrics.subsystem": "report",

		// Tracing
		"tracing.enabled":      false,
		"tracing.endpoint":     "localhost:4317",
		"tracing.service_name": "report-svc",
		"tracing.sample_rate":  0.1,

		// Database
		"database.driver":             "postgres",
		"database.host":               "localhost",
		"database.port":               5432,
		"database.database":           "farm",
		"database.username":           "postgres",
		"database.password":           "",
		"database.ssl_mode":           "disable",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  5 * time.Minute,
		"database.conn_max_idle_time": 5 * time.Minute,
		"database.query_timeout":      15 * time.Second,
		"database.auto_migrate":       true,

		// Cache
		"cache.enabled":                    true,
		"cache.driver":                     "memory",
		"cache.host":                       "localhost",
		"cache.port":                       6379,
		"cache.db":                         0,
		"cache.prefix":                     "reports",
		"cache.codec":                      "msgpack",
		"cache.max_entries":                10000,
		"cache.ttl.short":                  60 * time.Second,
		"cache.ttl.medium":                 300 * time.Second,
		"cache.ttl.long":                   3600 * time.Second,
		"cache.breaker.enabled":            true,
		"cache.breaker.failure_threshold":  5,
		"cache.breaker.open_timeout":       30 * time.Second,
		"cache.breaker.half_open_requests": 1,

		// Rate Limit
		"rate_limit.enabled":          true,
		"rate_limit.requests":         30,
		"rate_limit.window":           time.Minute,
		"rate_limit.strategy":         "sliding_window",
		"rate_limit.burst":            5,
		"rate_limit.backend":          "memory",
		"rate_limit.cleanup_interval": 5 * time.Minute,

		// Audit
		"audit.enabled":             true,
		"audit.backend":             "stdout",
		"audit.buffer_size":         100,
		"audit.flush_period":        5 * time.Second,
		"audit.kafka.topic":         "farm.activity",
		"audit.kafka.batch_timeout": 50 * time.Millisecond,
		"audit.kafka.write_timeout": 5 * time.Second,

		// Report
		"report.max_records":                1000,
		"report.temp_dir":                   "",
		"report.locale.language":            "pt-BR",
		"report.locale.decimal_separator":   ",",
		"report.locale.thousands_separator": ".",
		"report.locale.date_layout":         "02/01/2006",
		"report.locale.date_time_layout":    "02/01/2006 15:04",
		"report.locale.timezone":            "America/Sao_Paulo",

		// Report - PDF
		"report.pdf.margin_top":          10.0,
		"report.pdf.margin_left":         10.0,
		"report.pdf.margin_right":        10.0,
		"report.pdf.font_size":           8.0,
		"report.pdf.header_font_size":    14.0,
		"report.pdf.enable_page_numbers": true,
	}
}

func (l *Loader) findConfigFile() string {
	candidates := l.configPaths
	if p := os.Getenv(configEnvVar); p != "" {
		candidates = append([]string{p}, candidates...)
	}
	for _, p := range candidates {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

// envValue переводит FARMREPORT_CACHE_TTL_SHORT в cache.ttl.short.
// Неизвестные переменные отбрасываются.
func (l *Loader) envValue(name, value string) (string, any) {
	field, ok := envIndex()[strings.ToLower(strings.TrimPrefix(name, l.envPrefix))]
	if !ok {
		return "", nil
	}
	if field.slice {
		return field.key, splitAndTrim(value)
	}
	return field.key, value
}

type envField struct {
	key   string
	slice bool
}

var envIndex = sync.OnceValue(func() map[string]envField {
	idx := make(map[string]envField)
	indexFields(reflect.TypeFor[Config](), "", idx)
	return idx
})

// indexFields обходит koanf теги: ключ cache.ttl.short доступен как cache_ttl_short
func indexFields(t reflect.Type, prefix string, idx map[string]envField) {
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("koanf")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct {
			indexFields(f.Type, key, idx)
			continue
		}
		idx[strings.ReplaceAll(key, ".", "_")] = envField{key: key, slice: f.Type.Kind() == reflect.Slice}
	}
}

func splitAndTrim(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
