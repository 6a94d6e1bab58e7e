package provider

import (
	"farmreport/pkg/format"
	"farmreport/services/report-svc/internal/domain"
	"farmreport/services/report-svc/internal/repository"
)

// PropertyProvider хозяйства
type PropertyProvider = Provider[domain.Property]

// NewPropertyProvider создаёт провайдер хозяйств
func NewPropertyProvider(store repository.Store, cfg Config) *PropertyProvider {
	return newProvider(definition[domain.Property]{
		kind:     domain.TypeProperty,
		layout:   PropertyLayout,
		fetch:    repository.Store.Properties,
		field:    (*domain.Property).Field,
		row:      propertyRow,
		metadata: propertyMetadata,
		groupings: []grouping{{
			dimension: Dimension{Key: domain.DimensionMunicipality, Label: "Município"},
			layout:    PropertiesByMunicipalityLayout,
			fetch:     repository.Store.PropertiesByMunicipality,
			row:       municipalityGroupRow,
		}},
	}, store, cfg)
}

func propertyRow(l format.Locale, p *domain.Property) domain.Row {
	var producerName, document string
	if p.Producer != nil {
		producerName, document = p.Producer.Name, p.Producer.Document
	}
	units := int64(len(p.ProductionUnits))
	animals := p.TotalAnimals()

	return PropertyLayout.NewRow().
		Text("nome", p.Name).
		Text("municipio", p.Municipality).
		Text("uf", p.State).
		Number("area_total", l.Float(p.TotalArea, 2), p.TotalArea).
		Text("produtor", producerName).
		Text("cpf_cnpj", document).
		Number("unidades_produtivas", l.Integer(units), float64(units)).
		Number("total_animais", l.Integer(animals), float64(animals)).
		Build()
}

func propertyMetadata(props []domain.Property) domain.Metadata {
	var (
		area    float64
		animals int64
	)
	municipalities := make(map[string]struct{})
	producers := make(map[int64]struct{})
	for i := range props {
		area += props[i].TotalArea
		animals += props[i].TotalAnimals()
		municipalities[props[i].Municipality] = struct{}{}
		if props[i].Producer != nil {
			producers[props[i].Producer.ID] = struct{}{}
		}
	}
	return domain.Metadata{
		"total_area":           area,
		"total_animals":        animals,
		"municipalities_count": len(municipalities),
		"producers_count":      len(producers),
	}
}

func municipalityGroupRow(l format.Locale, g *domain.Group) domain.Row {
	return PropertiesByMunicipalityLayout.NewRow().
		Text("municipio", g.Key).
		Text("uf", g.Secondary).
		Number("propriedades", l.Integer(g.Count), float64(g.Count)).
		Number("area_total", l.Float(g.Area, 2), g.Area).
		Text("produtores", joinMembers(g.Members)).
		Build()
}
