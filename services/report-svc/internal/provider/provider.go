// services/report-svc/internal/provider/provider.go
package provider

import (
	"context"
	"log/slog"
	"sort"

	"farmreport/pkg/apperror"
	"farmreport/pkg/cache"
	"farmreport/pkg/format"
	"farmreport/pkg/logger"
	"farmreport/pkg/telemetry"
	"farmreport/pkg/textnorm"
	"farmreport/services/report-svc/internal/domain"
	"farmreport/services/report-svc/internal/repository"
)

// Операции кэша
const (
	opData   = "data"
	opDataBy = "data_by_"
)

// Config общие настройки провайдеров
type Config struct {
	Cache      *cache.Layer // nil отключает кэш
	Locale     format.Locale
	MaxRecords int // 0 или больше repository.MaxLimit даёт repository.MaxLimit
	Logger     *slog.Logger
}

// Dimension измерение группировки
type Dimension struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Dataset результат конвейера: записи, строки и метаданные
type Dataset struct {
	Layout   domain.Layout   `json:"-"`
	GroupBy  string          `json:"group_by,omitempty"`
	Records  any             `json:"records"`
	Rows     []domain.Row    `json:"-"`
	Metadata domain.Metadata `json:"metadata"`
}

// Source провайдер без параметра типа, как его видит генератор
type Source interface {
	Type() domain.ReportType
	Layout() domain.Layout
	DateRange() bool
	Dimensions() []Dimension
	GroupLayout(dimension string) (domain.Layout, bool)

	// Collect загружает, фильтрует и форматирует данные
	Collect(ctx context.Context, filters domain.Filters) (*Dataset, error)

	// CollectGrouped то же для сгруппированного варианта
	CollectGrouped(ctx context.Context, dimension string, filters domain.Filters) (*Dataset, error)
}

type fetchFunc[T any] func(repository.Store, context.Context, repository.Query) ([]T, error)

// grouping сгруппированный вариант домена
type grouping struct {
	dimension Dimension
	layout    domain.Layout
	fetch     fetchFunc[domain.Group]
	row       func(format.Locale, *domain.Group) domain.Row
}

// definition описание домена
type definition[T any] struct {
	kind      domain.ReportType
	layout    domain.Layout
	dateRange bool
	fetch     fetchFunc[T]
	field     func(*T, string) (string, bool)
	row       func(format.Locale, *T) domain.Row
	metadata  func([]T) domain.Metadata
	groupings []grouping
}

// Provider источник данных одного домена
type Provider[T any] struct {
	def   definition[T]
	store repository.Store
	cfg   Config
}

func newProvider[T any](def definition[T], store repository.Store, cfg Config) *Provider[T] {
	if cfg.Cache == nil {
		cfg.Cache = cache.NewLayer(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Log
	}
	if cfg.Locale.DecimalSep == "" {
		cfg.Locale = format.DefaultLocale()
	}
	return &Provider[T]{def: def, store: store, cfg: cfg}
}

// Type возвращает домен
func (p *Provider[T]) Type() domain.ReportType { return p.def.kind }

// Layout возвращает раскладку колонок
func (p *Provider[T]) Layout() domain.Layout { return p.def.layout }

// DateRange true, если домен принимает date_from/date_to
func (p *Provider[T]) DateRange() bool { return p.def.dateRange }

// Dimensions возвращает измерения группировки
func (p *Provider[T]) Dimensions() []Dimension {
	out := make([]Dimension, len(p.def.groupings))
	for i, g := range p.def.groupings {
		out[i] = g.dimension
	}
	return out
}

// GroupLayout возвращает раскладку сгруппированного варианта
func (p *Provider[T]) GroupLayout(dimension string) (domain.Layout, bool) {
	g, ok := p.grouping(dimension)
	if !ok {
		return domain.Layout{}, false
	}
	return g.layout, true
}

func (p *Provider[T]) limit() int {
	if p.cfg.MaxRecords <= 0 || p.cfg.MaxRecords > repository.MaxLimit {
		return repository.MaxLimit
	}
	return p.cfg.MaxRecords
}

func (p *Provider[T]) query(filters domain.Filters) (repository.Query, error) {
	q := repository.Query{
		Search: filters.Search(),
		Limit:  p.limit(),
	}
	if !p.def.dateRange {
		return q, nil
	}

	from, to, err := filters.DateRange()
	if err != nil {
		return q, apperror.Wrap(err, apperror.CodeInvalidArgument, err.Error())
	}
	q.DateFrom, q.DateTo = from, to
	return q, nil
}

// GetData возвращает записи домена: поиск, сортировка, не больше лимита.
// Результат кэшируется на средний срок.
func (p *Provider[T]) GetData(ctx context.Context, filters domain.Filters) ([]T, error) {
	ctx, span := telemetry.StartSpan(ctx, "Provider.GetData",
		telemetry.WithAttributes(telemetry.QueryAttributes(string(p.def.kind), filters.Search() != "", len(filters.Exact()))...))
	defer span.End()

	q, err := p.query(filters)
	if err != nil {
		return nil, err
	}

	key := p.cfg.Cache.GenerateKey(string(p.def.kind), opData, filters.Clone())
	records, err := cache.Remember(ctx, p.cfg.Cache, key, cache.TTLMedium, func(ctx context.Context) ([]T, error) {
		return p.def.fetch(p.store, ctx, q)
	})
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, apperror.Wrap(err, apperror.CodeFetchFailed, "failed to load "+string(p.def.kind)+" records")
	}

	if len(records) > q.Limit {
		records = records[:q.Limit]
	}
	p.cfg.Logger.DebugContext(ctx, "report records loaded", "report_type", p.def.kind, "count", len(records))
	return records, nil
}

// ApplyFilters оставляет записи, совпадающие по всем известным полям.
// Сравнение без учёта регистра и диакритики, неизвестные ключи пропускаются.
func (p *Provider[T]) ApplyFilters(records []T, filters domain.Filters) []T {
	exact := filters.Exact()
	if len(exact) == 0 {
		return records
	}

	keys := make([]string, 0, len(exact))
	for k := range exact {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]T, 0, len(records))
	for i := range records {
		if p.matches(&records[i], keys, exact) {
			out = append(out, records[i])
		}
	}
	return out
}

func (p *Provider[T]) matches(record *T, keys []string, exact map[string]string) bool {
	for _, k := range keys {
		value, known := p.def.field(record, k)
		if !known {
			continue
		}
		if !textnorm.Equal(value, exact[k]) {
			return false
		}
	}
	return true
}

// FormatData переводит записи в строки раскладки
func (p *Provider[T]) FormatData(records []T) []domain.Row {
	rows := make([]domain.Row, len(records))
	for i := range records {
		rows[i] = p.def.row(p.cfg.Locale, &records[i])
	}
	return rows
}

// GetMetadata считает агрегаты по всему набору записей
func (p *Provider[T]) GetMetadata(records []T) domain.Metadata {
	m := domain.Metadata{}
	if p.def.metadata != nil {
		m = p.def.metadata(records)
	}
	m[domain.MetaTotalRecords] = len(records)
	return m
}

// Collect выполняет весь конвейер
func (p *Provider[T]) Collect(ctx context.Context, filters domain.Filters) (*Dataset, error) {
	records, err := p.GetData(ctx, filters)
	if err != nil {
		return nil, err
	}
	records = p.ApplyFilters(records, filters)
	if records == nil {
		records = []T{}
	}

	return &Dataset{
		Layout:   p.def.layout,
		Records:  records,
		Rows:     p.FormatData(records),
		Metadata: p.GetMetadata(records),
	}, nil
}

func (p *Provider[T]) grouping(dimension string) (grouping, bool) {
	for _, g := range p.def.groupings {
		if g.dimension.Key == dimension {
			return g, true
		}
	}
	return grouping{}, false
}

// GetDataBy агрегирует записи по измерению на стороне хранилища.
// Результат кэшируется на долгий срок.
func (p *Provider[T]) GetDataBy(ctx context.Context, dimension string, filters domain.Filters) ([]domain.Group, error) {
	ctx, span := telemetry.StartSpan(ctx, "Provider.GetDataBy",
		telemetry.WithAttributes(telemetry.QueryAttributes(string(p.def.kind), filters.Search() != "", 0)...))
	defer span.End()

	g, ok := p.grouping(dimension)
	if !ok {
		return nil, apperror.Newf(apperror.CodeUnknownDimension,
			"report %s cannot be grouped by %q", p.def.kind, dimension).WithField("group_by")
	}

	q, err := p.query(filters)
	if err != nil {
		return nil, err
	}

	key := p.cfg.Cache.GenerateKey(string(p.def.kind), opDataBy+dimension, filters.Clone())
	groups, err := cache.Remember(ctx, p.cfg.Cache, key, cache.TTLLong, func(ctx context.Context) ([]domain.Group, error) {
		return g.fetch(p.store, ctx, q)
	})
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, apperror.Wrap(err, apperror.CodeFetchFailed, "failed to load grouped "+string(p.def.kind)+" records")
	}

	if len(groups) > q.Limit {
		groups = groups[:q.Limit]
	}
	return groups, nil
}

// FormatGroups переводит группы в строки сгруппированной раскладки
func (p *Provider[T]) FormatGroups(dimension string, groups []domain.Group) []domain.Row {
	g, ok := p.grouping(dimension)
	if !ok {
		return nil
	}
	rows := make([]domain.Row, len(groups))
	for i := range groups {
		rows[i] = g.row(p.cfg.Locale, &groups[i])
	}
	return rows
}

// CollectGrouped выполняет конвейер сгруппированного варианта
func (p *Provider[T]) CollectGrouped(ctx context.Context, dimension string, filters domain.Filters) (*Dataset, error) {
	groups, err := p.GetDataBy(ctx, dimension, filters)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []domain.Group{}
	}

	layout, _ := p.GroupLayout(dimension)
	return &Dataset{
		Layout:   layout,
		GroupBy:  dimension,
		Records:  groups,
		Rows:     p.FormatGroups(dimension, groups),
		Metadata: groupMetadata(groups),
	}, nil
}

func groupMetadata(groups []domain.Group) domain.Metadata {
	var (
		count    int64
		quantity int64
		area     float64
	)
	for _, g := range groups {
		count += g.Count
		quantity += g.Quantity
		area += g.Area
	}
	return domain.Metadata{
		domain.MetaTotalRecords: len(groups),
		"grouped_records":       count,
		"total_quantity":        quantity,
		"total_area":            area,
	}
}
