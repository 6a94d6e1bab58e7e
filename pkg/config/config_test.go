package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:      AppConfig{Name: "report-svc"},
		HTTP:     HTTPConfig{Port: 8080},
		Log:      LogConfig{Level: "info"},
		Database: DatabaseConfig{Driver: "postgres"},
		Cache: CacheConfig{
			Enabled: true,
			Driver:  "memory",
			TTL:     TTLConfig{Short: time.Minute, Medium: 5 * time.Minute, Long: time.Hour},
		},
		Audit: AuditConfig{Enabled: true, Backend: "stdout"},
		Report: ReportConfig{
			MaxRecords: 1000,
			Locale:     LocaleConfig{DecimalSeparator: ",", ThousandsSeparator: ".", Timezone: "UTC"},
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing app name", mutate: func(c *Config) { c.App.Name = "" }, wantErr: "app.name"},
		{name: "invalid port - zero", mutate: func(c *Config) { c.HTTP.Port = 0 }, wantErr: "http.port"},
		{name: "invalid port - too high", mutate: func(c *Config) { c.HTTP.Port = 70000 }, wantErr: "http.port"},
		{name: "invalid log level", mutate: func(c *Config) { c.Log.Level = "verbose" }, wantErr: "log.level"},
		{name: "empty log level defaults", mutate: func(c *Config) { c.Log.Level = "" }},
		{name: "memory database", mutate: func(c *Config) { c.Database.Driver = "memory" }},
		{name: "unknown database driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: "database.driver"},
		{name: "unknown cache driver", mutate: func(c *Config) { c.Cache.Driver = "memcached" }, wantErr: "cache.driver"},
		{name: "disabled cache ignores driver", mutate: func(c *Config) { c.Cache.Enabled = false; c.Cache.Driver = "" }},
		{name: "zero ttl", mutate: func(c *Config) { c.Cache.TTL.Medium = 0 }, wantErr: "cache.ttl"},
		{name: "unknown audit backend", mutate: func(c *Config) { c.Audit.Backend = "syslog" }, wantErr: "audit.backend"},
		{name: "kafka without brokers", mutate: func(c *Config) { c.Audit.Backend = "kafka" }, wantErr: "audit.kafka"},
		{
			name: "kafka with brokers",
			mutate: func(c *Config) {
				c.Audit.Backend = "kafka"
				c.Audit.Kafka = KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "farm.activity"}
			},
		},
		{name: "max records above cap", mutate: func(c *Config) { c.Report.MaxRecords = 5000 }, wantErr: "report.max_records"},
		{name: "max records zero", mutate: func(c *Config) { c.Report.MaxRecords = 0 }, wantErr: "report.max_records"},
		{name: "same separators", mutate: func(c *Config) { c.Report.Locale.ThousandsSeparator = "," }, wantErr: "separators"},
		{name: "invalid timezone", mutate: func(c *Config) { c.Report.Locale.Timezone = "Mars/Olympus" }, wantErr: "timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateSetsDefaultLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Level = ""
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default level info, got %s", cfg.Log.Level)
	}
}

func TestAddresses(t *testing.T) {
	if got := (CacheConfig{Host: "redis", Port: 6379}).Address(); got != "redis:6379" {
		t.Errorf("CacheConfig.Address() = %s", got)
	}
	if got := (HTTPConfig{Port: 8080}).Address(); got != ":8080" {
		t.Errorf("HTTPConfig.Address() = %s", got)
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.App.Name = ""
	cfg.HTTP.Port = 0
	cfg.Report.MaxRecords = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, key := range []string{"app.name", "http.port", "report.max_records"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}
