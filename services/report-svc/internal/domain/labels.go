package domain

import "farmreport/pkg/format"

// SpeciesLabels виды животных
var SpeciesLabels = format.NewLabelTable(
	[2]string{"bovinos", "Bovinos"},
	[2]string{"caprinos", "Caprinos"},
	[2]string{"ovinos", "Ovinos"},
	[2]string{"suinos", "Suínos"},
	[2]string{"equinos", "Equinos"},
	[2]string{"bubalinos", "Bubalinos"},
	[2]string{"aves", "Aves"},
	[2]string{"asininos", "Asininos"},
	[2]string{"muares", "Muares"},
)

// PurposeLabels назначение стада
var PurposeLabels = format.NewLabelTable(
	[2]string{"corte", "Corte"},
	[2]string{"leite", "Leite"},
	[2]string{"misto", "Misto"},
	[2]string{"reproducao", "Reprodução"},
)

// CropLabels типы культур
var CropLabels = format.NewLabelTable(
	[2]string{"milho", "Milho"},
	[2]string{"feijao", "Feijão"},
	[2]string{"soja", "Soja"},
	[2]string{"mandioca", "Mandioca"},
	[2]string{"arroz", "Arroz"},
	[2]string{"caju", "Caju"},
	[2]string{"hortalicas", "Hortaliças"},
	[2]string{"fruticultura", "Fruticultura"},
	[2]string{"pastagem", "Pastagem"},
)
