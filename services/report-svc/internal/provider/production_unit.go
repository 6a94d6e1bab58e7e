package provider

import (
	"strings"

	"farmreport/pkg/format"
	"farmreport/services/report-svc/internal/domain"
	"farmreport/services/report-svc/internal/repository"
)

// ProductionUnitProvider производственные единицы
type ProductionUnitProvider = Provider[domain.ProductionUnit]

// NewProductionUnitProvider создаёт провайдер производственных единиц
func NewProductionUnitProvider(store repository.Store, cfg Config) *ProductionUnitProvider {
	return newProvider(definition[domain.ProductionUnit]{
		kind:      domain.TypeProductionUnit,
		layout:    ProductionUnitLayout,
		dateRange: true,
		fetch:     repository.Store.ProductionUnits,
		field:     (*domain.ProductionUnit).Field,
		row:       unitRow,
		metadata:  unitMetadata,
		groupings: []grouping{{
			dimension: Dimension{Key: domain.DimensionProperty, Label: "Propriedade"},
			layout:    UnitsByPropertyLayout,
			fetch:     repository.Store.UnitsByProperty,
			row:       propertyGroupRow,
		}},
	}, store, cfg)
}

func unitRow(l format.Locale, u *domain.ProductionUnit) domain.Row {
	var propertyName, municipality string
	if u.Property != nil {
		propertyName, municipality = u.Property.Name, u.Property.Municipality
	}

	return ProductionUnitLayout.NewRow().
		Text("nome", u.Name).
		Text("tipo_cultura", domain.CropLabels.Label(l, u.CropType)).
		Number("area", l.Float(u.Area, 2), u.Area).
		Text("propriedade", propertyName).
		Text("municipio", municipality).
		Text("data_cadastro", l.Date(u.CreatedAt)).
		Build()
}

func unitMetadata(units []domain.ProductionUnit) domain.Metadata {
	var area float64
	crops := make(map[string]struct{})
	properties := make(map[int64]struct{})
	for _, u := range units {
		area += u.Area
		crops[u.CropType] = struct{}{}
		if u.Property != nil {
			properties[u.Property.ID] = struct{}{}
		}
	}
	return domain.Metadata{
		"total_area":       area,
		"crop_types_count": len(crops),
		"properties_count": len(properties),
	}
}

func propertyGroupRow(l format.Locale, g *domain.Group) domain.Row {
	crops := make([]string, len(g.Members))
	for i, code := range g.Members {
		crops[i] = domain.CropLabels.Label(l, code)
	}

	return UnitsByPropertyLayout.NewRow().
		Text("propriedade", g.Key).
		Text("municipio", g.Secondary).
		Number("unidades", l.Integer(g.Count), float64(g.Count)).
		Number("area_total", l.Float(g.Area, 2), g.Area).
		Text("culturas", strings.Join(crops, ", ")).
		Build()
}

func joinMembers(members []string) string {
	return strings.Join(members, ", ")
}
