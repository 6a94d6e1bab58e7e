// services/report-svc/internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"farmreport/services/report-svc/internal/domain"
)

// MaxLimit жёсткий предел выборки
const MaxLimit = 1000

// Ошибки
var (
	ErrUnavailable = errors.New("store unavailable")
	ErrClosed      = errors.New("store is closed")
)

// Query параметры выборки
type Query struct {
	Search   string
	DateFrom *time.Time
	DateTo   *time.Time // включительно
	Limit    int
}

// EffectiveLimit ограничивает лимит диапазоном 1..MaxLimit
func (q Query) EffectiveLimit() int {
	if q.Limit <= 0 || q.Limit > MaxLimit {
		return MaxLimit
	}
	return q.Limit
}

// Store интерфейс чтения данных хозяйств. Хранилище только читается.
type Store interface {
	// Properties возвращает хозяйства по имени
	Properties(ctx context.Context, q Query) ([]domain.Property, error)

	// Herds возвращает стада по хозяйству и виду
	Herds(ctx context.Context, q Query) ([]domain.Herd, error)

	// Producers возвращает производителей по имени
	Producers(ctx context.Context, q Query) ([]domain.Producer, error)

	// ProductionUnits возвращает производственные единицы по имени
	ProductionUnits(ctx context.Context, q Query) ([]domain.ProductionUnit, error)

	// HerdsBySpecies группирует стада по виду
	HerdsBySpecies(ctx context.Context, q Query) ([]domain.Group, error)

	// PropertiesByMunicipality группирует хозяйства по муниципалитету
	PropertiesByMunicipality(ctx context.Context, q Query) ([]domain.Group, error)

	// UnitsByProperty группирует единицы по хозяйству
	UnitsByProperty(ctx context.Context, q Query) ([]domain.Group, error)

	// Dashboard считает сводные показатели
	Dashboard(ctx context.Context) (*domain.Dashboard, error)

	// Municipalities возвращает различные муниципалитеты хозяйств
	Municipalities(ctx context.Context) ([]string, error)

	// States возвращает различные штаты хозяйств
	States(ctx context.Context) ([]string, error)

	// Ping проверяет соединение
	Ping(ctx context.Context) error

	// Close закрывает соединения
	Close() error
}
