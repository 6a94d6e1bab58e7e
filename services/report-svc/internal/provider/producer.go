package provider

import (
	"farmreport/pkg/format"
	"farmreport/services/report-svc/internal/domain"
	"farmreport/services/report-svc/internal/repository"
)

// ProducerProvider производители
type ProducerProvider = Provider[domain.Producer]

// NewProducerProvider создаёт провайдер производителей. Группировок нет.
func NewProducerProvider(store repository.Store, cfg Config) *ProducerProvider {
	return newProvider(definition[domain.Producer]{
		kind:      domain.TypeProducer,
		layout:    ProducerLayout,
		dateRange: true,
		fetch:     repository.Store.Producers,
		field:     (*domain.Producer).Field,
		row:       producerRow,
		metadata:  producerMetadata,
	}, store, cfg)
}

func producerRow(l format.Locale, p *domain.Producer) domain.Row {
	return ProducerLayout.NewRow().
		Text("nome", p.Name).
		Text("cpf_cnpj", p.Document).
		Text("telefone", p.Phone).
		Text("email", p.Email).
		Text("municipio", p.Municipality).
		Text("uf", p.State).
		Number("propriedades", l.Integer(p.PropertiesCount), float64(p.PropertiesCount)).
		Text("data_cadastro", l.Date(p.CreatedAt)).
		Build()
}

func producerMetadata(producers []domain.Producer) domain.Metadata {
	var properties int64
	municipalities := make(map[string]struct{})
	for _, p := range producers {
		properties += p.PropertiesCount
		municipalities[p.Municipality] = struct{}{}
	}
	return domain.Metadata{
		"total_properties":     properties,
		"municipalities_count": len(municipalities),
	}
}
