// pkg/config/config.go
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Config - главная структура конфигурации
type Config struct {
	App       AppConfig       `koanf:"app"`
	HTTP      HTTPConfig      `koanf:"http"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Tracing   TracingConfig   `koanf:"tracing"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Audit     AuditConfig     `koanf:"audit"`
	Report    ReportConfig    `koanf:"report"`
}

// AppConfig - общие настройки приложения
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// HTTPConfig - настройки HTTP сервера
type HTTPConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORS            CORSConfig    `koanf:"cors"`
	Swagger         bool          `koanf:"swagger"`
}

// Address возвращает адрес для net.Listen
func (h HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", h.Port)
}

// CORSConfig - настройки CORS
type CORSConfig struct {
	Enabled        bool     `koanf:"enabled"`
	AllowedOrigins []string `koanf:"allowed_origins"`
	AllowedMethods []string `koanf:"allowed_methods"`
	AllowedHeaders []string `koanf:"allowed_headers"`
	ExposedHeaders []string `koanf:"exposed_headers"`
	MaxAge         int      `koanf:"max_age"`
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`   // путь к файлу логов
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // количество бэкапов
	MaxAge     int    `koanf:"max_age"`     // дней
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig - настройки Prometheus метрик
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig - настройки OpenTelemetry
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// DatabaseConfig - настройки базы данных
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"` // postgres, memory
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Database        string        `koanf:"database"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	QueryTimeout    time.Duration `koanf:"query_timeout"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
	FixturePath     string        `koanf:"fixture_path"` // yaml с данными для driver=memory
}

// CacheConfig - настройки кэширования
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	Prefix     string        `koanf:"prefix"`
	Codec      string        `koanf:"codec"`       // msgpack, json
	MaxEntries int           `koanf:"max_entries"` // для in-memory
	TTL        TTLConfig     `koanf:"ttl"`
	Breaker    BreakerConfig `koanf:"breaker"`
}

// TTLConfig - длительность классов TTL
type TTLConfig struct {
	Short  time.Duration `koanf:"short"`
	Medium time.Duration `koanf:"medium"`
	Long   time.Duration `koanf:"long"`
}

// BreakerConfig - circuit breaker вокруг хранилища кэша
type BreakerConfig struct {
	Enabled          bool          `koanf:"enabled"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout"`
	HalfOpenRequests uint32        `koanf:"half_open_requests"`
}

// Address возвращает адрес кэша
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RateLimitConfig конфигурация rate limiting
type RateLimitConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Requests        int           `koanf:"requests"`
	Window          time.Duration `koanf:"window"`
	Strategy        string        `koanf:"strategy"` // sliding_window, token_bucket
	Burst           int           `koanf:"burst"`
	Backend         string        `koanf:"backend"` // memory, redis
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	RedisAddr       string        `koanf:"redis_addr"`
}

// AuditConfig конфигурация журнала активности
type AuditConfig struct {
	Enabled     bool          `koanf:"enabled"`
	Backend     string        `koanf:"backend"` // stdout, file, postgres, kafka, noop
	FilePath    string        `koanf:"file_path"`
	BufferSize  int           `koanf:"buffer_size"`
	FlushPeriod time.Duration `koanf:"flush_period"`
	Kafka       KafkaConfig   `koanf:"kafka"`
}

// KafkaConfig - параметры продюсера аудита
type KafkaConfig struct {
	Brokers      []string      `koanf:"brokers"`
	Topic        string        `koanf:"topic"`
	BatchTimeout time.Duration `koanf:"batch_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// ReportConfig конфигурация сервиса отчётов
type ReportConfig struct {
	MaxRecords int          `koanf:"max_records"` // верхняя граница выборки, не больше 1000
	TempDir    string       `koanf:"temp_dir"`    // каталог временных файлов экспорта
	Locale     LocaleConfig `koanf:"locale"`
	PDF        PDFConfig    `koanf:"pdf"`
}

// LocaleConfig - правила форматирования чисел и дат
type LocaleConfig struct {
	Language           string `koanf:"language"` // BCP 47, например pt-BR
	DecimalSeparator   string `koanf:"decimal_separator"`
	ThousandsSeparator string `koanf:"thousands_separator"`
	DateLayout         string `koanf:"date_layout"`
	DateTimeLayout     string `koanf:"date_time_layout"`
	Timezone           string `koanf:"timezone"`
}

// PDFConfig конфигурация PDF генератора
type PDFConfig struct {
	MarginTop         float64 `koanf:"margin_top"`   // mm
	MarginLeft        float64 `koanf:"margin_left"`  // mm
	MarginRight       float64 `koanf:"margin_right"` // mm
	FontSize          float64 `koanf:"font_size"`    // pt
	HeaderFontSize    float64 `koanf:"header_font_size"`
	EnablePageNumbers bool    `koanf:"enable_page_numbers"`
}

// Validate проверяет конфигурацию и подставляет уровень логов по умолчанию.
// Возвращает все найденные ошибки сразу.
func (c *Config) Validate() error {
	var v validator

	v.check(c.App.Name != "", "app.name is required")
	v.check(c.HTTP.Port > 0 && c.HTTP.Port <= 65535, "http.port must be between 1 and 65535, got %d", c.HTTP.Port)

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	v.oneOf("log.level", strings.ToLower(c.Log.Level), "debug", "info", "warn", "error")
	v.oneOf("database.driver", strings.ToLower(c.Database.Driver), "postgres", "postgresql", "memory")

	if c.Cache.Enabled {
		v.oneOf("cache.driver", c.Cache.Driver, "memory", "redis")
	}
	ttl := c.Cache.TTL
	v.check(ttl.Short > 0 && ttl.Medium > 0 && ttl.Long > 0, "cache.ttl.short, cache.ttl.medium and cache.ttl.long must be positive")

	if c.RateLimit.Enabled && c.RateLimit.Strategy != "" {
		v.oneOf("rate_limit.strategy", c.RateLimit.Strategy, "sliding_window", "token_bucket")
	}

	if c.Audit.Enabled {
		v.oneOf("audit.backend", c.Audit.Backend, "stdout", "file", "postgres", "kafka", "noop")
		if c.Audit.Backend == "kafka" {
			v.check(len(c.Audit.Kafka.Brokers) > 0 && c.Audit.Kafka.Topic != "",
				"audit.kafka.brokers and audit.kafka.topic are required for kafka backend")
		}
	}

	rc := c.Report
	v.check(rc.MaxRecords > 0 && rc.MaxRecords <= 1000, "report.max_records must be between 1 and 1000, got %d", rc.MaxRecords)
	v.check(rc.Locale.DecimalSeparator != "", "report.locale.decimal_separator is required")
	v.check(rc.Locale.DecimalSeparator != rc.Locale.ThousandsSeparator, "report.locale decimal and thousands separators must differ")
	if rc.Locale.Timezone != "" {
		_, err := time.LoadLocation(rc.Locale.Timezone)
		v.check(err == nil, "report.locale.timezone is invalid: %v", err)
	}

	if len(v.errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(v.errs, "; "))
	}
	return nil
}

type validator struct {
	errs []string
}

func (v *validator) check(ok bool, format string, args ...any) {
	if !ok {
		v.errs = append(v.errs, fmt.Sprintf(format, args...))
	}
}

func (v *validator) oneOf(key, value string, allowed ...string) {
	v.check(slices.Contains(allowed, value), "%s must be one of: %s, got %s", key, strings.Join(allowed, ", "), value)
}
