package provider

import "farmreport/services/report-svc/internal/domain"

// Раскладки колонок. Span в сумме даёт 24 (сетка pdf).
var (
	HerdLayout = domain.Layout{
		ID:    "herd",
		Title: "Relatório de Rebanhos",
		Columns: []domain.Column{
			{Key: "especie", Label: "Espécie", Kind: domain.KindText, Width: 16, Span: 4},
			{Key: "quantidade", Label: "Quantidade", Kind: domain.KindInteger, Width: 12, Span: 3},
			{Key: "finalidade", Label: "Finalidade", Kind: domain.KindText, Width: 14, Span: 3},
			{Key: "ultima_atualizacao", Label: "Última Atualização", Kind: domain.KindDate, Width: 18, Span: 4},
			{Key: "propriedade", Label: "Propriedade", Kind: domain.KindText, Width: 30, Span: 6},
			{Key: "municipio", Label: "Município", Kind: domain.KindText, Width: 20, Span: 4},
		},
	}

	PropertyLayout = domain.Layout{
		ID:    "property",
		Title: "Relatório de Propriedades",
		Columns: []domain.Column{
			{Key: "nome", Label: "Nome", Kind: domain.KindText, Width: 30, Span: 4},
			{Key: "municipio", Label: "Município", Kind: domain.KindText, Width: 20, Span: 3},
			{Key: "uf", Label: "UF", Kind: domain.KindText, Width: 6, Span: 1},
			{Key: "area_total", Label: "Área Total (ha)", Kind: domain.KindDecimal, Width: 16, Span: 3},
			{Key: "produtor", Label: "Produtor", Kind: domain.KindText, Width: 28, Span: 4},
			{Key: "cpf_cnpj", Label: "CPF/CNPJ", Kind: domain.KindText, Width: 20, Span: 3},
			{Key: "unidades_produtivas", Label: "Unidades Produtivas", Kind: domain.KindInteger, Width: 20, Span: 3},
			{Key: "total_animais", Label: "Total de Animais", Kind: domain.KindInteger, Width: 16, Span: 3},
		},
	}

	ProducerLayout = domain.Layout{
		ID:    "producer",
		Title: "Relatório de Produtores",
		Columns: []domain.Column{
			{Key: "nome", Label: "Nome", Kind: domain.KindText, Width: 30, Span: 4},
			{Key: "cpf_cnpj", Label: "CPF/CNPJ", Kind: domain.KindText, Width: 20, Span: 3},
			{Key: "telefone", Label: "Telefone", Kind: domain.KindText, Width: 16, Span: 3},
			{Key: "email", Label: "E-mail", Kind: domain.KindText, Width: 30, Span: 4},
			{Key: "municipio", Label: "Município", Kind: domain.KindText, Width: 20, Span: 3},
			{Key: "uf", Label: "UF", Kind: domain.KindText, Width: 6, Span: 1},
			{Key: "propriedades", Label: "Propriedades", Kind: domain.KindInteger, Width: 14, Span: 2},
			{Key: "data_cadastro", Label: "Data de Cadastro", Kind: domain.KindDate, Width: 16, Span: 4},
		},
	}

	ProductionUnitLayout = domain.Layout{
		ID:    "production_unit",
		Title: "Relatório de Unidades Produtivas",
		Columns: []domain.Column{
			{Key: "nome", Label: "Nome", Kind: domain.KindText, Width: 28, Span: 5},
			{Key: "tipo_cultura", Label: "Tipo de Cultura", Kind: domain.KindText, Width: 18, Span: 4},
			{Key: "area", Label: "Área (ha)", Kind: domain.KindDecimal, Width: 14, Span: 3},
			{Key: "propriedade", Label: "Propriedade", Kind: domain.KindText, Width: 30, Span: 5},
			{Key: "municipio", Label: "Município", Kind: domain.KindText, Width: 20, Span: 4},
			{Key: "data_cadastro", Label: "Data de Cadastro", Kind: domain.KindDate, Width: 16, Span: 3},
		},
	}
)

// Раскладки сгруппированных отчётов
var (
	HerdsBySpeciesLayout = domain.Layout{
		ID:    "herd_by_especie",
		Title: "Rebanhos por Espécie",
		Columns: []domain.Column{
			{Key: "especie", Label: "Espécie", Kind: domain.KindText, Width: 18, Span: 5},
			{Key: "rebanhos", Label: "Rebanhos", Kind: domain.KindInteger, Width: 12, Span: 4},
			{Key: "total_animais", Label: "Total de Animais", Kind: domain.KindInteger, Width: 16, Span: 5},
			{Key: "propriedades", Label: "Propriedades", Kind: domain.KindText, Width: 60, Span: 10},
		},
	}

	PropertiesByMunicipalityLayout = domain.Layout{
		ID:    "property_by_municipio",
		Title: "Propriedades por Município",
		Columns: []domain.Column{
			{Key: "municipio", Label: "Município", Kind: domain.KindText, Width: 22, Span: 5},
			{Key: "uf", Label: "UF", Kind: domain.KindText, Width: 6, Span: 2},
			{Key: "propriedades", Label: "Propriedades", Kind: domain.KindInteger, Width: 14, Span: 4},
			{Key: "area_total", Label: "Área Total (ha)", Kind: domain.KindDecimal, Width: 16, Span: 5},
			{Key: "produtores", Label: "Produtores", Kind: domain.KindText, Width: 50, Span: 8},
		},
	}

	UnitsByPropertyLayout = domain.Layout{
		ID:    "production_unit_by_propriedade",
		Title: "Unidades Produtivas por Propriedade",
		Columns: []domain.Column{
			{Key: "propriedade", Label: "Propriedade", Kind: domain.KindText, Width: 30, Span: 6},
			{Key: "municipio", Label: "Município", Kind: domain.KindText, Width: 20, Span: 5},
			{Key: "unidades", Label: "Unidades", Kind: domain.KindInteger, Width: 12, Span: 3},
			{Key: "area_total", Label: "Área Total (ha)", Kind: domain.KindDecimal, Width: 16, Span: 4},
			{Key: "culturas", Label: "Culturas", Kind: domain.KindText, Width: 40, Span: 6},
		},
	}
)

// Layouts все раскладки, плоские и сгруппированные
func Layouts() []domain.Layout {
	return []domain.Layout{
		PropertyLayout, HerdLayout, ProducerLayout, ProductionUnitLayout,
		HerdsBySpeciesLayout, PropertiesByMunicipalityLayout, UnitsByPropertyLayout,
	}
}
