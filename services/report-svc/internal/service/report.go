// services/report-svc/internal/service/report.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"farmreport/pkg/apperror"
	"farmreport/pkg/audit"
	"farmreport/pkg/cache"
	"farmreport/pkg/format"
	"farmreport/pkg/logger"
	"farmreport/pkg/metrics"
	"farmreport/pkg/telemetry"
	"farmreport/services/report-svc/internal/domain"
	"farmreport/services/report-svc/internal/export"
	"farmreport/services/report-svc/internal/generator"
	"farmreport/services/report-svc/internal/provider"
	"farmreport/services/report-svc/internal/repository"
)

// Модули кэша сервиса
const (
	ModuleFilters   = "filters"
	ModuleDashboard = "dashboard"
)

// Статусы здоровья
const (
	StatusServing  = "SERVING"
	StatusDegraded = "DEGRADED"
	StatusOK       = "OK"
	StatusError    = "ERROR"
	StatusDisabled = "DISABLED"
)

// ServiceConfig конфигурация сервиса
type ServiceConfig struct {
	Name    string
	Version string
}

// Dependencies зависимости сервиса. Generators и Store обязательны.
type Dependencies struct {
	Generators *generator.Registry
	Store      repository.Store
	Cache      *cache.Layer
	Audit      audit.Logger
	Metrics    *metrics.Metrics
	Clock      format.Clock
	Locale     format.Locale
	Logger     *slog.Logger
}

// Stats счётчики сервиса
type Stats struct {
	Version            string  `json:"version"`
	UptimeSeconds      int64   `json:"uptime_seconds"`
	ReportsExported    int64   `json:"reports_exported"`
	ExportFailures     int64   `json:"export_failures"`
	CacheInvalidations int64   `json:"cache_invalidations"`
	AuditFailures      int64   `json:"audit_failures"`
	ExportSuccessRate  float64 `json:"export_success_rate"`
}

// ComponentHealth состояние зависимости
type ComponentHealth struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error,omitempty"`
}

// Health состояние сервиса
type Health struct {
	Status        string          `json:"status"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Store         ComponentHealth `json:"store"`
	Cache         ComponentHealth `json:"cache"`
}

// ReportService оркестрирует генераторы, кэш сводок и журнал активности
type ReportService struct {
	cfg  ServiceConfig
	deps Dependencies

	startedAt time.Time

	exported      atomic.Int64
	failed        atomic.Int64
	invalidations atomic.Int64
	auditFailures atomic.Int64
}

// NewReportService создаёт сервис
func NewReportService(cfg ServiceConfig, deps Dependencies) *ReportService {
	if cfg.Name == "" {
		cfg.Name = "report-svc"
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewLayer(nil)
	}
	if deps.Audit == nil {
		deps.Audit = audit.NoopLogger{}
	}
	if deps.Clock == nil {
		deps.Clock = format.SystemClock{}
	}
	if deps.Locale.DecimalSep == "" {
		deps.Locale = format.DefaultLocale()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Log
	}
	return &ReportService{
		cfg:       cfg,
		deps:      deps,
		startedAt: deps.Clock.Now(),
	}
}

// GetReportData возвращает данные отчёта без выгрузки в файл
func (s *ReportService) GetReportData(ctx context.Context, reportType domain.ReportType, req domain.ReportRequest) (*provider.Dataset, error) {
	ctx, span := telemetry.StartSpan(ctx, "ReportService.GetReportData",
		telemetry.WithAttributes(telemetry.ReportAttributes(string(reportType), "")...))
	defer span.End()

	gen, err := s.deps.Generators.Get(reportType)
	if err != nil {
		return nil, err
	}

	req.Type = reportType
	data, err := gen.GenerateData(ctx, req)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, err
	}
	return data, nil
}

// ExportReport строит файл отчёта и пишет запись в журнал активности.
// Ошибка журнала логируется и не возвращается. Вызывающий закрывает артефакт.
func (s *ReportService) ExportReport(ctx context.Context, reportType domain.ReportType, req domain.ReportRequest) (*export.Artifact, error) {
	if req.Format == "" {
		req.Format = domain.DefaultFormat
	}
	req.Type = reportType

	ctx, span := telemetry.StartSpan(ctx, "ReportService.ExportReport",
		telemetry.WithAttributes(telemetry.ReportAttributes(string(reportType), string(req.Format))...))
	defer span.End()

	gen, err := s.deps.Generators.Get(reportType)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	artifact, err := gen.Export(ctx, req)
	duration := time.Since(start)
	if err != nil {
		s.failed.Add(1)
		s.deps.Metrics.RecordExport(string(reportType), string(req.Format), false, duration, 0, 0)
		telemetry.SetError(ctx, err)
		s.log(ctx).Warn("report export failed",
			"report_type", reportType,
			"format", req.Format,
			"error", err,
		)
		return nil, err
	}

	s.exported.Add(1)
	s.deps.Metrics.RecordExport(string(reportType), string(req.Format), true, duration, artifact.Records, artifact.Size)
	s.recordActivity(ctx, gen, req, artifact)

	s.log(ctx).Info("report exported",
		"report_type", reportType,
		"format", req.Format,
		"filename", artifact.Filename,
		"records", artifact.Records,
		"size", artifact.Size,
		"duration_ms", duration.Milliseconds(),
	)
	return artifact, nil
}

func (s *ReportService) recordActivity(ctx context.Context, gen *generator.Generator, req domain.ReportRequest, artifact *export.Artifact) {
	now := s.deps.Clock.Now()
	name := fmt.Sprintf("%s exportado em %s", gen.Name(), req.Format.Label())
	entry := audit.NewEntry(now, audit.CategoryReport, audit.ActionExport, name).
		From(s.cfg.Name, logger.RequestIDFromContext(ctx)).
		With("report_type", string(req.Type)).
		With("format", string(req.Format)).
		With("filename", artifact.Filename).
		With("timestamp", now.Format(time.RFC3339)).
		With("record_count", artifact.Records).
		With("group_by", req.GroupBy)

	if err := s.deps.Audit.Log(ctx, entry); err != nil {
		s.auditFailures.Add(1)
		s.log(ctx).Warn("failed to record report activity",
			"report_type", req.Type,
			"filename", artifact.Filename,
			"error", err,
		)
	}
}

// GetFilterOptions возвращает значения для фильтров интерфейса
func (s *ReportService) GetFilterOptions(ctx context.Context) (*domain.FilterOptions, error) {
	ctx, span := telemetry.StartSpan(ctx, "ReportService.GetFilterOptions")
	defer span.End()

	key := s.deps.Cache.GenerateKey(ModuleFilters, "options", nil)
	opts, err := cache.Remember(ctx, s.deps.Cache, key, cache.TTLLong, func(ctx context.Context) (*domain.FilterOptions, error) {
		municipalities, err := s.deps.Store.Municipalities(ctx)
		if err != nil {
			return nil, err
		}
		states, err := s.deps.Store.States(ctx)
		if err != nil {
			return nil, err
		}
		return &domain.FilterOptions{
			Species:        domain.SpeciesLabels.Options(),
			CropTypes:      domain.CropLabels.Options(),
			Municipalities: nonNil(municipalities),
			States:         nonNil(states),
		}, nil
	})
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, apperror.Wrap(err, apperror.CodeFetchFailed, "failed to load filter options")
	}
	return opts, nil
}

// GetDashboardData возвращает сводку по всем доменам. Пустое хранилище даёт нули.
func (s *ReportService) GetDashboardData(ctx context.Context) (*domain.Dashboard, error) {
	ctx, span := telemetry.StartSpan(ctx, "ReportService.GetDashboardData")
	defer span.End()

	key := s.deps.Cache.GenerateKey(ModuleDashboard, "summary", nil)
	d, err := cache.Remember(ctx, s.deps.Cache, key, cache.TTLShort, func(ctx context.Context) (*domain.Dashboard, error) {
		raw, err := s.deps.Store.Dashboard(ctx)
		if err != nil {
			return nil, err
		}
		return s.labelDashboard(raw), nil
	})
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, apperror.Wrap(err, apperror.CodeFetchFailed, "failed to load dashboard")
	}

	// значение общее для ожидающих singleflight, не мутировать
	if d.Species == nil {
		out := *d
		out.Species = []domain.SpeciesCount{}
		return &out, nil
	}
	return d, nil
}

// labelDashboard возвращает копию сводки с подписями видов
func (s *ReportService) labelDashboard(raw *domain.Dashboard) *domain.Dashboard {
	if raw == nil {
		return &domain.Dashboard{Species: []domain.SpeciesCount{}}
	}
	out := *raw
	out.Species = make([]domain.SpeciesCount, len(raw.Species))
	for i, sc := range raw.Species {
		sc.Label = domain.SpeciesLabels.Label(s.deps.Locale, sc.Species)
		out.Species[i] = sc
	}
	return &out
}

// ListReports описывает доступные отчёты
func (s *ReportService) ListReports() []domain.ReportInfo {
	gens := s.deps.Generators.All()
	out := make([]domain.ReportInfo, 0, len(gens))
	for _, g := range gens {
		out = append(out, domain.ReportInfo{
			Type:        g.Type(),
			Name:        g.Name(),
			Description: g.Description(),
			Options:     g.FilterOptions(),
		})
	}
	return out
}

// GetReportOptions возвращает возможности одного генератора
func (s *ReportService) GetReportOptions(reportType domain.ReportType) (*domain.GeneratorOptions, error) {
	gen, err := s.deps.Generators.Get(reportType)
	if err != nil {
		return nil, err
	}
	opts := gen.FilterOptions()
	return &opts, nil
}

// CacheModules модули, которые можно сбросить по отдельности
func CacheModules() []string {
	modules := []string{ModuleFilters, ModuleDashboard}
	for _, t := range domain.AllReportTypes() {
		modules = append(modules, string(t))
	}
	return modules
}

// InvalidateCache удаляет все ключи модуля; остальные модули не затрагиваются
func (s *ReportService) InvalidateCache(ctx context.Context, module string) (int64, error) {
	if !slices.Contains(CacheModules(), module) {
		return 0, apperror.Newf(apperror.CodeInvalidArgument, "unknown cache module: %s", module).
			WithField("module")
	}

	n, err := s.deps.Cache.ForgetModule(ctx, module)
	if err != nil {
		return n, apperror.Wrap(err, apperror.CodeCacheUnavailable, "failed to invalidate cache module "+module)
	}

	s.invalidations.Add(1)
	s.recordCacheActivity(ctx, audit.ActionInvalidate, module, n)
	return n, nil
}

// FlushCache удаляет все ключи сервиса
func (s *ReportService) FlushCache(ctx context.Context) (int64, error) {
	n, err := s.deps.Cache.Flush(ctx)
	if err != nil {
		return n, apperror.Wrap(err, apperror.CodeCacheUnavailable, "failed to flush cache")
	}

	s.invalidations.Add(1)
	s.recordCacheActivity(ctx, audit.ActionFlush, "", n)
	return n, nil
}

func (s *ReportService) recordCacheActivity(ctx context.Context, action audit.Action, module string, keys int64) {
	name := "Cache de relatórios limpo"
	if module != "" {
		name = fmt.Sprintf("Cache do módulo %s limpo", module)
	}
	entry := audit.NewEntry(s.deps.Clock.Now(), audit.CategoryCache, action, name).
		From(s.cfg.Name, logger.RequestIDFromContext(ctx)).
		With("module", module).
		With("keys", keys)

	if err := s.deps.Audit.Log(ctx, entry); err != nil {
		s.auditFailures.Add(1)
		s.log(ctx).Warn("failed to record cache activity", "module", module, "error", err)
	}
}

// Stats возвращает счётчики сервиса
func (s *ReportService) Stats() Stats {
	exported := s.exported.Load()
	failed := s.failed.Load()

	st := Stats{
		Version:            s.cfg.Version,
		UptimeSeconds:      int64(s.deps.Clock.Now().Sub(s.startedAt).Seconds()),
		ReportsExported:    exported,
		ExportFailures:     failed,
		CacheInvalidations: s.invalidations.Load(),
		AuditFailures:      s.auditFailures.Load(),
	}
	if total := exported + failed; total > 0 {
		st.ExportSuccessRate = float64(exported) / float64(total)
	}
	return st
}

// Health проверяет хранилище и кэш
func (s *ReportService) Health(ctx context.Context) Health {
	h := Health{
		Status:        StatusServing,
		Version:       s.cfg.Version,
		UptimeSeconds: int64(s.deps.Clock.Now().Sub(s.startedAt).Seconds()),
		Store:         ComponentHealth{Status: StatusOK},
		Cache:         ComponentHealth{Status: StatusOK},
	}

	if err := s.deps.Store.Ping(ctx); err != nil {
		h.Status = StatusDegraded
		h.Store = ComponentHealth{Status: StatusError, ErrorMessage: err.Error()}
	}

	// недоступный кэш не делает сервис деградированным
	switch {
	case !s.deps.Cache.Enabled():
		h.Cache.Status = StatusDisabled
	default:
		if err := s.deps.Cache.Ping(ctx); err != nil {
			h.Cache = ComponentHealth{Status: StatusError, ErrorMessage: err.Error()}
		}
	}

	return h
}

func (s *ReportService) log(ctx context.Context) *slog.Logger {
	if id := logger.RequestIDFromContext(ctx); id != "" {
		return s.deps.Logger.With("request_id", id)
	}
	return s.deps.Logger
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
