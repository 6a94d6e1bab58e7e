// services/report-svc/internal/generator/registry.go
package generator

import (
	"farmreport/pkg/apperror"
	"farmreport/services/report-svc/internal/domain"
	"farmreport/services/report-svc/internal/provider"
	"farmreport/services/report-svc/internal/repository"
)

// NewPropertyGenerator отчёт по propriedades
func NewPropertyGenerator(p provider.Source, cfg Config) *Generator {
	return New(p, "Relatório de Propriedades",
		"Propriedades rurais com produtor, área total, unidades produtivas e rebanho", cfg)
}

// NewHerdGenerator отчёт по rebanhos
func NewHerdGenerator(p provider.Source, cfg Config) *Generator {
	return New(p, "Relatório de Rebanhos",
		"Rebanhos por espécie, quantidade, finalidade e propriedade", cfg)
}

// NewProducerGenerator отчёт по produtores
func NewProducerGenerator(p provider.Source, cfg Config) *Generator {
	return New(p, "Relatório de Produtores",
		"Produtores rurais com contato, localização e número de propriedades", cfg)
}

// NewProductionUnitGenerator отчёт по unidades produtivas
func NewProductionUnitGenerator(p provider.Source, cfg Config) *Generator {
	return New(p, "Relatório de Unidades Produtivas",
		"Unidades produtivas com cultura, área e propriedade", cfg)
}

// Registry генераторы по типу отчёта. Собирается при старте и передаётся сервису.
type Registry struct {
	generators map[domain.ReportType]*Generator
	order      []domain.ReportType
}

// NewRegistry создаёт реестр из готовых генераторов
func NewRegistry(generators ...*Generator) *Registry {
	r := &Registry{generators: make(map[domain.ReportType]*Generator, len(generators))}
	for _, g := range generators {
		if _, exists := r.generators[g.Type()]; !exists {
			r.order = append(r.order, g.Type())
		}
		r.generators[g.Type()] = g
	}
	return r
}

// NewDefaultRegistry создаёт генераторы всех доменов поверх одного хранилища
func NewDefaultRegistry(store repository.Store, pcfg provider.Config, cfg Config) *Registry {
	return NewRegistry(
		NewPropertyGenerator(provider.NewPropertyProvider(store, pcfg), cfg),
		NewHerdGenerator(provider.NewHerdProvider(store, pcfg), cfg),
		NewProducerGenerator(provider.NewProducerProvider(store, pcfg), cfg),
		NewProductionUnitGenerator(provider.NewProductionUnitProvider(store, pcfg), cfg),
	)
}

// Get возвращает генератор типа
func (r *Registry) Get(t domain.ReportType) (*Generator, error) {
	if g, ok := r.generators[t]; ok {
		return g, nil
	}
	return nil, apperror.Newf(apperror.CodeUnknownReportType, "unknown report type: %s", t).
		WithField("report_type")
}

// All возвращает генераторы в порядке регистрации
func (r *Registry) All() []*Generator {
	out := make([]*Generator, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.generators[t])
	}
	return out
}
