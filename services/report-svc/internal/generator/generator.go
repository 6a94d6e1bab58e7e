// services/report-svc/internal/generator/generator.go
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"farmreport/pkg/apperror"
	"farmreport/pkg/format"
	"farmreport/pkg/logger"
	"farmreport/pkg/telemetry"
	"farmreport/pkg/textnorm"
	"farmreport/services/report-svc/internal/domain"
	"farmreport/services/report-svc/internal/export"
	"farmreport/services/report-svc/internal/provider"
)

// filenameLayout суффикс имени файла: YYYY_MM_DD_HH_mm_ss
const filenameLayout = "2006_01_02_15_04_05"

// Config зависимости генераторов
type Config struct {
	Exporters *export.Registry
	Clock     format.Clock
	Locale    format.Locale
	Logger    *slog.Logger
}

// Generator связывает провайдер домена со стратегиями выгрузки
type Generator struct {
	source      provider.Source
	name        string
	description string
	cfg         Config
}

// New создаёт генератор
func New(source provider.Source, name, description string, cfg Config) *Generator {
	if cfg.Clock == nil {
		cfg.Clock = format.SystemClock{}
	}
	if cfg.Locale.DecimalSep == "" {
		cfg.Locale = format.DefaultLocale()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Log
	}
	if cfg.Exporters == nil {
		cfg.Exporters = export.NewRegistry(export.Options{}, layouts(source)...)
	}
	return &Generator{source: source, name: name, description: description, cfg: cfg}
}

// Type возвращает домен отчёта
func (g *Generator) Type() domain.ReportType { return g.source.Type() }

// Name отображаемое имя отчёта
func (g *Generator) Name() string { return g.name }

// Description описание отчёта
func (g *Generator) Description() string { return g.description }

// GenerateData возвращает записи, строки и метаданные
func (g *Generator) GenerateData(ctx context.Context, req domain.ReportRequest) (*provider.Dataset, error) {
	if req.GroupBy != "" {
		return g.source.CollectGrouped(ctx, req.GroupBy, req.Filters)
	}
	return g.source.Collect(ctx, req.Filters)
}

// Export строит файл отчёта. Стратегия ищется до загрузки данных,
// поэтому неподдерживаемый формат не обращается к хранилищу.
func (g *Generator) Export(ctx context.Context, req domain.ReportRequest) (*export.Artifact, error) {
	ctx, span := telemetry.StartSpan(ctx, "Generator.Export",
		telemetry.WithAttributes(telemetry.ReportAttributes(string(g.Type()), string(req.Format))...))
	defer span.End()

	layout, name, err := g.resolveLayout(req.GroupBy)
	if err != nil {
		return nil, err
	}

	if req.Format == "" {
		req.Format = domain.DefaultFormat
	}
	strategy, err := g.cfg.Exporters.Lookup(layout.ID, req.Format)
	if err != nil {
		return nil, err
	}

	data, err := g.GenerateData(ctx, req)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, err
	}

	now := g.cfg.Clock.Now()
	doc := export.TabularDocument{
		Title:    layout.Title,
		Subtitle: g.subtitle(now, data.Metadata.TotalRecords(), req.Filters.Search()),
		Layout:   layout,
		Rows:     data.Rows,
	}

	stamp := now
	if g.cfg.Locale.Location != nil {
		stamp = now.In(g.cfg.Locale.Location)
	}
	filename := Filename(name, stamp, strategy.Extension())
	artifact, err := strategy.Export(ctx, doc, filename)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, err
	}

	g.cfg.Logger.DebugContext(ctx, "report exported",
		"report_type", g.Type(),
		"format", req.Format,
		"filename", artifact.Filename,
		"records", artifact.Records,
		"size", artifact.Size,
	)
	return artifact, nil
}

// FilterOptions форматы, поддержка периода и измерения группировки
func (g *Generator) FilterOptions() domain.GeneratorOptions {
	opts := domain.GeneratorOptions{
		Formats:   make(map[domain.Format]string),
		DateRange: g.source.DateRange(),
		GroupBy:   make(map[string]string),
	}
	for _, f := range g.cfg.Exporters.Formats(g.source.Layout().ID) {
		opts.Formats[f] = f.Label()
	}
	for _, d := range g.source.Dimensions() {
		opts.GroupBy[d.Key] = d.Label
	}
	return opts
}

func (g *Generator) resolveLayout(groupBy string) (domain.Layout, string, error) {
	if groupBy == "" {
		return g.source.Layout(), g.name, nil
	}
	layout, ok := g.source.GroupLayout(groupBy)
	if !ok {
		return domain.Layout{}, "", apperror.Newf(apperror.CodeUnknownDimension,
			"report %s cannot be grouped by %q", g.Type(), groupBy).WithField("group_by")
	}
	return layout, layout.Title, nil
}

func (g *Generator) subtitle(now time.Time, total int, search string) string {
	s := fmt.Sprintf("Gerado em %s | Total de registros: %s",
		g.cfg.Locale.DateTime(now), g.cfg.Locale.Integer(int64(total)))
	if search != "" {
		s += fmt.Sprintf(" | Busca: %q", search)
	}
	return s
}

// Filename строит имя файла <snake_case_name>_<YYYY_MM_DD_HH_mm_ss>.<ext>
func Filename(name string, now time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", textnorm.SnakeCase(name), now.Format(filenameLayout), ext)
}

func layouts(source provider.Source) []domain.Layout {
	out := []domain.Layout{source.Layout()}
	for _, d := range source.Dimensions() {
		if l, ok := source.GroupLayout(d.Key); ok {
			out = append(out, l)
		}
	}
	return out
}
