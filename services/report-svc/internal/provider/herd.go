package provider

import (
	"farmreport/pkg/format"
	"farmreport/services/report-svc/internal/domain"
	"farmreport/services/report-svc/internal/repository"
)

// HerdProvider стада
type HerdProvider = Provider[domain.Herd]

// NewHerdProvider создаёт провайдер стад
func NewHerdProvider(store repository.Store, cfg Config) *HerdProvider {
	return newProvider(definition[domain.Herd]{
		kind:      domain.TypeHerd,
		layout:    HerdLayout,
		dateRange: true,
		fetch:     repository.Store.Herds,
		field:     (*domain.Herd).Field,
		row:       herdRow,
		metadata:  herdMetadata,
		groupings: []grouping{{
			dimension: Dimension{Key: domain.DimensionSpecies, Label: "Espécie"},
			layout:    HerdsBySpeciesLayout,
			fetch:     repository.Store.HerdsBySpecies,
			row:       speciesGroupRow,
		}},
	}, store, cfg)
}

func herdRow(l format.Locale, h *domain.Herd) domain.Row {
	var propertyName, municipality string
	if h.Property != nil {
		propertyName, municipality = h.Property.Name, h.Property.Municipality
	}

	return HerdLayout.NewRow().
		Text("especie", domain.SpeciesLabels.Label(l, h.Species)).
		Number("quantidade", l.Integer(h.Quantity), float64(h.Quantity)).
		Text("finalidade", domain.PurposeLabels.Label(l, h.Purpose)).
		Text("ultima_atualizacao", l.Date(h.UpdatedAt)).
		Text("propriedade", propertyName).
		Text("municipio", municipality).
		Build()
}

func herdMetadata(herds []domain.Herd) domain.Metadata {
	var animals int64
	species := make(map[string]struct{})
	properties := make(map[int64]struct{})
	for _, h := range herds {
		animals += h.Quantity
		species[h.Species] = struct{}{}
		if h.Property != nil {
			properties[h.Property.ID] = struct{}{}
		}
	}
	return domain.Metadata{
		"total_animals":    animals,
		"species_count":    len(species),
		"properties_count": len(properties),
	}
}

func speciesGroupRow(l format.Locale, g *domain.Group) domain.Row {
	return HerdsBySpeciesLayout.NewRow().
		Text("especie", domain.SpeciesLabels.Label(l, g.Key)).
		Number("rebanhos", l.Integer(g.Count), float64(g.Count)).
		Number("total_animais", l.Integer(g.Quantity), float64(g.Quantity)).
		Text("propriedades", joinMembers(g.Members)).
		Build()
}
