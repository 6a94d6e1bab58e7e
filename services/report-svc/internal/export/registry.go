// services/report-svc/internal/export/registry.go
package export

import (
	"farmreport/pkg/apperror"
	"farmreport/services/report-svc/internal/domain"
)

type registryKey struct {
	layout string
	format domain.Format
}

// Registry стратегии по паре (раскладка, формат). Собирается один раз при старте.
type Registry struct {
	strategies map[registryKey]Strategy
}

// NewRegistry регистрирует все форматы для каждой раскладки
func NewRegistry(opts Options, layouts ...domain.Layout) *Registry {
	r := &Registry{strategies: make(map[registryKey]Strategy)}
	for _, s := range Strategies(opts) {
		for _, l := range layouts {
			r.Register(l.ID, s)
		}
	}
	return r
}

// Strategies возвращает по одной стратегии на формат
func Strategies(opts Options) []Strategy {
	return []Strategy{
		NewSpreadsheetStrategy(opts),
		NewDelimitedTextStrategy(opts),
		NewDocumentStrategy(opts),
	}
}

// Register добавляет или заменяет стратегию для раскладки
func (r *Registry) Register(layoutID string, s Strategy) {
	r.strategies[registryKey{layout: layoutID, format: s.Format()}] = s
}

// Lookup ищет стратегию; промах означает неподдерживаемый формат
func (r *Registry) Lookup(layoutID string, format domain.Format) (Strategy, error) {
	if s, ok := r.strategies[registryKey{layout: layoutID, format: format}]; ok {
		return s, nil
	}
	return nil, apperror.Newf(apperror.CodeUnsupportedFormat,
		"format %q is not supported for %s report", format, layoutID).
		WithField("format").
		WithDetails("report_type", layoutID).
		WithDetails("format", string(format))
}

// Formats форматы, зарегистрированные для раскладки, в порядке отображения
func (r *Registry) Formats(layoutID string) []domain.Format {
	var out []domain.Format
	for _, f := range domain.AllFormats() {
		if _, ok := r.strategies[registryKey{layout: layoutID, format: f}]; ok {
			out = append(out, f)
		}
	}
	return out
}
