// services/report-svc/internal/domain/report.go
package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ReportType идентификатор домена отчёта
type ReportType string

const (
	TypeProperty       ReportType = "property"
	TypeHerd           ReportType = "herd"
	TypeProducer       ReportType = "producer"
	TypeProductionUnit ReportType = "production_unit"
)

// AllReportTypes возвращает типы в порядке отображения
func AllReportTypes() []ReportType {
	return []ReportType{TypeProperty, TypeHerd, TypeProducer, TypeProductionUnit}
}

// ParseReportType разбирает идентификатор типа
func ParseReportType(s string) (ReportType, bool) {
	t := ReportType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllReportTypes() {
		if t == known {
			return t, true
		}
	}
	return t, false
}

func (t ReportType) String() string { return string(t) }

// Format формат выгрузки
type Format string

const (
	FormatSpreadsheet   Format = "spreadsheet"
	FormatDelimitedText Format = "delimited_text"
	FormatDocument      Format = "document"
)

// DefaultFormat используется, когда формат не указан
const DefaultFormat = FormatDocument

var formatAliases = map[string]Format{
	"spreadsheet":    FormatSpreadsheet,
	"xlsx":           FormatSpreadsheet,
	"excel":          FormatSpreadsheet,
	"delimited_text": FormatDelimitedText,
	"csv":            FormatDelimitedText,
	"document":       FormatDocument,
	"pdf":            FormatDocument,
}

// AllFormats возвращает известные форматы
func AllFormats() []Format {
	return []Format{FormatSpreadsheet, FormatDelimitedText, FormatDocument}
}

// ParseFormat разбирает формат с учётом псевдонимов. Пустая строка даёт
// DefaultFormat; неизвестное значение возвращается как есть и не поддерживается
// ни одной стратегией.
func ParseFormat(s string) Format {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return DefaultFormat
	}
	if f, ok := formatAliases[key]; ok {
		return f
	}
	return Format(key)
}

// Known проверяет, что формат из списка известных
func (f Format) Known() bool {
	_, ok := formatLabels[f]
	return ok
}

var formatLabels = map[Format]string{
	FormatSpreadsheet:   "Excel (XLSX)",
	FormatDelimitedText: "CSV",
	FormatDocument:      "PDF",
}

// Label подпись формата для списка опций
func (f Format) Label() string {
	if label, ok := formatLabels[f]; ok {
		return label
	}
	return string(f)
}

func (f Format) String() string { return string(f) }

// Зарезервированные ключи фильтров
const (
	FilterSearch   = "search"
	FilterDateFrom = "date_from"
	FilterDateTo   = "date_to"
)

const dateParamLayout = "2006-01-02"

// Filters параметры запроса отчёта
type Filters map[string]string

// Search возвращает строку поиска
func (f Filters) Search() string {
	return strings.TrimSpace(f[FilterSearch])
}

// Exact возвращает фильтры точного совпадения без зарезервированных ключей и пустых значений
func (f Filters) Exact() map[string]string {
	out := make(map[string]string)
	for k, v := range f {
		if isReserved(k) || strings.TrimSpace(v) == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// DateRange разбирает date_from/date_to (YYYY-MM-DD, включительно)
func (f Filters) DateRange() (from, to *time.Time, err error) {
	if from, err = parseDateParam(f[FilterDateFrom]); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", FilterDateFrom, err)
	}
	if to, err = parseDateParam(f[FilterDateTo]); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", FilterDateTo, err)
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, fmt.Errorf("%s is before %s", FilterDateTo, FilterDateFrom)
	}
	return from, to, nil
}

// Clone копирует фильтры, отбрасывая пустые значения
func (f Filters) Clone() Filters {
	out := make(Filters, len(f))
	for k, v := range f {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out
}

// Keys возвращает отсортированные ключи
func (f Filters) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isReserved(key string) bool {
	return key == FilterSearch || key == FilterDateFrom || key == FilterDateTo
}

func parseDateParam(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateParamLayout, s)
	if err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return &t, nil
}

// ReportRequest запрос на данные или выгрузку отчёта
type ReportRequest struct {
	Type    ReportType `json:"report_type"`
	Format  Format     `json:"format"`
	Filters Filters    `json:"filters,omitempty"`
	GroupBy string     `json:"group_by,omitempty"`
}

// Metadata агрегаты по полному набору записей
type Metadata map[string]any

// MetaTotalRecords ключ обязательного счётчика записей
const MetaTotalRecords = "total_records"

// TotalRecords возвращает число записей
func (m Metadata) TotalRecords() int {
	switch v := m[MetaTotalRecords].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}
