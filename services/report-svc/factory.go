// services/report-svc/factory.go
package reportsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"farmreport/gen/openapi"
	"farmreport/pkg/audit"
	"farmreport/pkg/cache"
	"farmreport/pkg/config"
	"farmreport/pkg/database"
	"farmreport/pkg/format"
	"farmreport/pkg/logger"
	"farmreport/pkg/metrics"
	"farmreport/pkg/ratelimit"
	"farmreport/pkg/swagger"
	"farmreport/services/report-svc/internal/export"
	"farmreport/services/report-svc/internal/generator"
	"farmreport/services/report-svc/internal/handler"
	"farmreport/services/report-svc/internal/provider"
	"farmreport/services/report-svc/internal/repository"
	"farmreport/services/report-svc/internal/service"
)

// App собранный сервис со всеми зависимостями
type App struct {
	Config  *config.Config
	DB      *database.PostgresDB // nil для driver=memory
	Store   repository.Store
	Cache   *cache.Layer
	Audit   audit.Logger
	Metrics *metrics.Metrics
	Service *service.ReportService
	Logger  *slog.Logger

	closers []func() error
}

// Option настройка сборки
type Option func(*options)

type options struct {
	registry prometheus.Registerer
	gatherer prometheus.Gatherer
	store    repository.Store
	clock    format.Clock
}

// WithRegistry регистрирует метрики в отдельном registry
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
		o.gatherer = reg
	}
}

// WithStore подменяет хранилище
func WithStore(store repository.Store) Option {
	return func(o *options) { o.store = store }
}

// WithClock подменяет часы генераторов и сервиса
func WithClock(clock format.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// Build собирает хранилище, кэш, журнал, генераторы и сервис.
// При ошибке уже открытые ресурсы закрываются.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	o := options{
		registry: prometheus.DefaultRegisterer,
		gatherer: prometheus.DefaultGatherer,
		clock:    format.SystemClock{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Config: cfg, Logger: logger.Log}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	locale, err := format.NewLocale(cfg.Report.Locale)
	if err != nil {
		return nil, fmt.Errorf("report locale: %w", err)
	}

	if cfg.Metrics.Enabled {
		app.Metrics = metrics.New(o.registry, o.gatherer, cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
		app.Metrics.SetServiceInfo(cfg.App.Version, cfg.App.Environment)
	}

	if err := app.openStore(ctx, o.store); err != nil {
		return nil, err
	}
	if err := app.openCache(); err != nil {
		return nil, err
	}
	if err := app.openAudit(); err != nil {
		return nil, err
	}

	gens := generator.NewDefaultRegistry(app.Store,
		provider.Config{
			Cache:      app.Cache,
			Locale:     locale,
			MaxRecords: cfg.Report.MaxRecords,
			Logger:     app.Logger,
		},
		generator.Config{
			Exporters: export.NewRegistry(exportOptions(cfg.Report), provider.Layouts()...),
			Clock:     o.clock,
			Locale:    locale,
			Logger:    app.Logger,
		})

	app.Service = service.NewReportService(
		service.ServiceConfig{Name: cfg.App.Name, Version: cfg.App.Version},
		service.Dependencies{
			Generators: gens,
			Store:      app.Store,
			Cache:      app.Cache,
			Audit:      app.Audit,
			Metrics:    app.Metrics,
			Clock:      o.clock,
			Locale:     locale,
			Logger:     app.Logger,
		})

	return app, nil
}

func (a *App) openStore(ctx context.Context, store repository.Store) error {
	cfg := a.Config.Database
	switch {
	case store != nil:
		a.Store = store
	case cfg.Driver == "postgres" || cfg.Driver == "postgresql":
		db, err := database.NewPostgresDB(ctx, &cfg, a.Config.App.Name)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		a.DB = db
		a.Store = repository.NewPostgresStore(db)
	default:
		fixtures := &repository.Fixtures{}
		if cfg.FixturePath != "" {
			f, err := repository.LoadFixtureFile(cfg.FixturePath)
			if err != nil {
				return fmt.Errorf("load fixtures: %w", err)
			}
			fixtures = f
		}
		a.Store = repository.NewMemoryStore(fixtures)
		a.Logger.Warn("running on in-memory store", "fixtures", cfg.FixturePath)
	}
	a.closers = append(a.closers, a.Store.Close)
	return nil
}

func (a *App) openCache() error {
	cfg := a.Config.Cache
	if !cfg.Enabled {
		a.Cache = cache.NewLayer(nil)
		return nil
	}

	store, err := cache.New(cache.FromConfig(&cfg))
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	layer, err := cache.NewLayerFromConfig(store, cfg,
		cache.WithLogger(a.Logger),
		cache.WithRecorder(a.Metrics),
	)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("cache layer: %w", err)
	}
	a.Cache = layer
	a.closers = append(a.closers, layer.Close)

	if err := a.Metrics.WatchCache(func(ctx context.Context) (metrics.CacheSnapshot, error) {
		st, err := store.Stats(ctx)
		if err != nil {
			return metrics.CacheSnapshot{}, err
		}
		return metrics.CacheSnapshot{
			Keys:        st.TotalKeys,
			Hits:        st.Hits,
			Misses:      st.Misses,
			MemoryBytes: st.MemoryBytes,
			Backend:     st.Backend,
		}, nil
	}); err != nil {
		return fmt.Errorf("cache metrics: %w", err)
	}
	return nil
}

func (a *App) openAudit() error {
	var opts []audit.Option
	if a.DB != nil {
		opts = append(opts, audit.WithDB(a.DB))
	}
	l, err := audit.New(audit.FromConfig(a.Config.Audit, a.Config.App.Name), opts...)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	a.Audit = l
	a.closers = append(a.closers, l.Close)
	return nil
}

// Limiter создаёт ограничитель для выгрузки; nil если выключен
func (a *App) Limiter() (ratelimit.Limiter, error) {
	if !a.Config.RateLimit.Enabled {
		return nil, nil
	}
	l, err := ratelimit.New(ratelimit.FromConfig(a.Config.RateLimit))
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	a.closers = append(a.closers, l.Close)
	return l, nil
}

// Handler создаёт HTTP слой поверх сервиса
func (a *App) Handler(limiter ratelimit.Limiter) (*handler.Handler, error) {
	var docs *swagger.Docs
	if a.Config.HTTP.Swagger {
		cfg := swagger.DefaultConfig()
		cfg.Version = a.Config.App.Version
		d, err := swagger.New(cfg, openapi.MustGetSpec())
		if err != nil {
			return nil, err
		}
		docs = d
	}

	return handler.New(a.Service, handler.Config{
		CORS:    a.Config.HTTP.CORS,
		Docs:    docs,
		Limiter: limiter,
		Metrics: a.Metrics,
		Logger:  a.Logger,
	}), nil
}

// Close освобождает ресурсы в обратном порядке
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func exportOptions(cfg config.ReportConfig) export.Options {
	pdf := export.DefaultPDFOptions()
	if cfg.PDF.MarginTop > 0 {
		pdf.MarginTop = cfg.PDF.MarginTop
	}
	if cfg.PDF.MarginLeft > 0 {
		pdf.MarginLeft = cfg.PDF.MarginLeft
	}
	if cfg.PDF.MarginRight > 0 {
		pdf.MarginRight = cfg.PDF.MarginRight
	}
	if cfg.PDF.FontSize > 0 {
		pdf.FontSize = cfg.PDF.FontSize
	}
	if cfg.PDF.HeaderFontSize > 0 {
		pdf.TitleFontSize = cfg.PDF.HeaderFontSize
	}
	pdf.PageNumbers = cfg.PDF.EnablePageNumbers

	return export.Options{TempDir: cfg.TempDir, PDF: pdf}
}
