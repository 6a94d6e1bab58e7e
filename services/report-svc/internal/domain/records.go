package domain

import "time"

// ProducerRef краткая ссылка на производителя
type ProducerRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Document string `json:"document"`
}

// PropertyRef краткая ссылка на хозяйство
type PropertyRef struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Municipality string `json:"municipality"`
	State        string `json:"state"`
}

// UnitRef производственная единица внутри хозяйства
type UnitRef struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	CropType string  `json:"crop_type"`
	Area     float64 `json:"area"`
}

// HerdRef стадо внутри хозяйства
type HerdRef struct {
	ID       int64  `json:"id"`
	Species  string `json:"species"`
	Quantity int64  `json:"quantity"`
}

// Property хозяйство с производителем, единицами и стадами
type Property struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	Municipality    string       `json:"municipality"`
	State           string       `json:"state"`
	TotalArea       float64      `json:"total_area"`
	Producer        *ProducerRef `json:"producer,omitempty"`
	ProductionUnits []UnitRef    `json:"production_units"`
	Herds           []HerdRef    `json:"herds"`
	CreatedAt       time.Time    `json:"created_at"`
}

// TotalAnimals сумма голов по всем стадам хозяйства
func (p *Property) TotalAnimals() int64 {
	var total int64
	for _, h := range p.Herds {
		total += h.Quantity
	}
	return total
}

// Field значение поля для точного фильтра
func (p *Property) Field(key string) (string, bool) {
	switch key {
	case "municipio":
		return p.Municipality, true
	case "uf":
		return p.State, true
	case "produtor":
		if p.Producer == nil {
			return "", true
		}
		return p.Producer.Name, true
	case "nome":
		return p.Name, true
	}
	return "", false
}

// Herd стадо с хозяйством
type Herd struct {
	ID        int64        `json:"id"`
	Species   string       `json:"species"`
	Quantity  int64        `json:"quantity"`
	Purpose   string       `json:"purpose"`
	UpdatedAt time.Time    `json:"updated_at"`
	Property  *PropertyRef `json:"property,omitempty"`
}

func (h *Herd) Field(key string) (string, bool) {
	switch key {
	case "especie":
		return h.Species, true
	case "finalidade":
		return h.Purpose, true
	case "propriedade":
		if h.Property == nil {
			return "", true
		}
		return h.Property.Name, true
	case "municipio":
		if h.Property == nil {
			return "", true
		}
		return h.Property.Municipality, true
	case "uf":
		if h.Property == nil {
			return "", true
		}
		return h.Property.State, true
	}
	return "", false
}

// Producer производитель
type Producer struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Document        string    `json:"document"`
	Phone           string    `json:"phone"`
	Email           string    `json:"email"`
	Municipality    string    `json:"municipality"`
	State           string    `json:"state"`
	PropertiesCount int64     `json:"properties_count"`
	CreatedAt       time.Time `json:"created_at"`
}

func (p *Producer) Field(key string) (string, bool) {
	switch key {
	case "municipio":
		return p.Municipality, true
	case "uf":
		return p.State, true
	case "nome":
		return p.Name, true
	}
	return "", false
}

// ProductionUnit производственная единица (участок под культуру)
type ProductionUnit struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	CropType  string       `json:"crop_type"`
	Area      float64      `json:"area"`
	Property  *PropertyRef `json:"property,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

func (u *ProductionUnit) Field(key string) (string, bool) {
	switch key {
	case "tipo_cultura":
		return u.CropType, true
	case "propriedade":
		if u.Property == nil {
			return "", true
		}
		return u.Property.Name, true
	case "municipio":
		if u.Property == nil {
			return "", true
		}
		return u.Property.Municipality, true
	}
	return "", false
}

// Group строка сгруппированного запроса
type Group struct {
	Key       string   `json:"key"`
	Secondary string   `json:"secondary,omitempty"`
	Count     int64    `json:"count"`
	Quantity  int64    `json:"quantity"`
	Area      float64  `json:"area"`
	Members   []string `json:"members"`
}

// Измерения группировки
const (
	DimensionSpecies      = "especie"
	DimensionMunicipality = "municipio"
	DimensionProperty     = "propriedade"
)
