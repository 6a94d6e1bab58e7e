package domain

import "farmreport/pkg/format"

// Dashboard сводные показатели по всем доменам
type Dashboard struct {
	Producers       int64          `json:"producers"`
	Properties      int64          `json:"properties"`
	ProductionUnits int64          `json:"production_units"`
	Herds           int64          `json:"herds"`
	TotalAnimals    int64          `json:"total_animals"`
	TotalArea       float64        `json:"total_area"`
	CultivatedArea  float64        `json:"cultivated_area"`
	Species         []SpeciesCount `json:"species"`
}

// SpeciesCount разбивка поголовья по виду
type SpeciesCount struct {
	Species string `json:"species"`
	Label   string `json:"label"`
	Herds   int64  `json:"herds"`
	Animals int64  `json:"animals"`
}

// FilterOptions значения для фильтров интерфейса
type FilterOptions struct {
	Species        []format.Option `json:"species"`
	CropTypes      []format.Option `json:"crop_types"`
	Municipalities []string        `json:"municipalities"`
	States         []string        `json:"states"`
}

// GeneratorOptions возможности генератора отчёта
type GeneratorOptions struct {
	Formats   map[Format]string `json:"formats"`
	DateRange bool              `json:"date_range"`
	GroupBy   map[string]string `json:"group_by"`
}

// ReportInfo описание доступного отчёта
type ReportInfo struct {
	Type        ReportType       `json:"type"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Options     GeneratorOptions `json:"options"`
}
