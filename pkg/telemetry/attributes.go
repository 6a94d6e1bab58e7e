package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	// Отчёт
	AttrReportType    = "report.type"
	AttrReportFormat  = "report.format"
	AttrReportGroupBy = "report.group_by"
	AttrReportRecords = "report.records"
	AttrReportFile    = "report.filename"
	AttrReportBytes   = "report.bytes"

	// Выборка
	AttrQueryDomain  = "query.domain"
	AttrQuerySearch  = "query.search"
	AttrQueryFilters = "query.filters"

	// Кэш
	AttrCacheModule = "cache.module"
)

// ReportAttributes возвращает атрибуты запроса отчёта
func ReportAttributes(reportType, format string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrReportType, reportType),
	}
	if format != "" {
		attrs = append(attrs, attribute.String(AttrReportFormat, format))
	}
	return attrs
}

// ArtifactAttributes возвращает атрибуты готового файла
func ArtifactAttributes(filename string, records int, size int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrReportFile, filename),
		attribute.Int(AttrReportRecords, records),
		attribute.Int64(AttrReportBytes, size),
	}
}

// QueryAttributes возвращает атрибуты выборки из хранилища
func QueryAttributes(domain string, search bool, filters int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrQueryDomain, domain),
		attribute.Bool(AttrQuerySearch, search),
		attribute.Int(AttrQueryFilters, filters),
	}
}
