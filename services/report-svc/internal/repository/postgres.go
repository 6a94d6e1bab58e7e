// services/report-svc/internal/repository/postgres.go
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"farmreport/pkg/database"
	"farmreport/pkg/telemetry"
	"farmreport/services/report-svc/internal/domain"
)

// PostgresStore чтение схемы хозяйств из PostgreSQL
type PostgresStore struct {
	db database.DB
}

// NewPostgresStore создаёт хранилище
func NewPostgresStore(db database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectProperties = `
SELECT p.id, p.nome, COALESCE(p.municipio, ''), COALESCE(p.uf, ''),
       COALESCE(p.area_total, 0)::float8, p.created_at,
       COALESCE(pr.id, 0), COALESCE(pr.nome, ''), COALESCE(pr.cpf_cnpj, ''),
       COALESCE((SELECT json_agg(json_build_object(
                    'id', u.id, 'name', u.nome, 'crop_type', COALESCE(u.tipo_cultura, ''),
                    'area', COALESCE(u.area, 0)) ORDER BY u.nome)
                 FROM unidades_producao u WHERE u.propriedade_id = p.id), '[]'),
       COALESCE((SELECT json_agg(json_build_object(
                    'id', r.id, 'species', COALESCE(r.especie, ''), 'quantity', COALESCE(r.quantidade, 0))
                    ORDER BY r.especie)
                 FROM rebanhos r WHERE r.propriedade_id = p.id), '[]')
FROM propriedades p
LEFT JOIN produtores pr ON pr.id = p.produtor_id`

// Properties возвращает хозяйства
func (s *PostgresStore) Properties(ctx context.Context, q Query) ([]domain.Property, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresStore.Properties",
		telemetry.WithAttributes(telemetry.QueryAttributes("property", q.Search != "", 0)...))
	defer span.End()

	sql, args := newSelect(selectProperties).
		search(q.Search, "p.nome", "p.municipio", "pr.nome", "pr.cpf_cnpj").
		dateRange("p.created_at", q.DateFrom, q.DateTo).
		order("p.nome ASC, p.id ASC").
		limitTo(q.EffectiveLimit()).
		build()

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	var out []domain.Property
	for rows.Next() {
		var (
			p            domain.Property
			producer     domain.ProducerRef
			units, herds []byte
		)
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Municipality, &p.State, &p.TotalArea, &p.CreatedAt,
			&producer.ID, &producer.Name, &producer.Document,
			&units, &herds,
		); err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		p.CreatedAt = p.CreatedAt.UTC()
		if producer.ID != 0 {
			p.Producer = &producer
		}
		if err := decodeList(units, &p.ProductionUnits); err != nil {
			return nil, fmt.Errorf("property %d units: %w", p.ID, err)
		}
		if err := decodeList(herds, &p.Herds); err != nil {
			return nil, fmt.Errorf("property %d herds: %w", p.ID, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read properties: %w", err)
	}

	return out, nil
}

const selectHerds = `
SELECT r.id, COALESCE(r.especie, ''), COALESCE(r.quantidade, 0), COALESCE(r.finalidade, ''),
       COALESCE(r.updated_at, r.created_at),
       COALESCE(p.id, 0), COALESCE(p.nome, ''), COALESCE(p.municipio, ''), COALESCE(p.uf, '')
FROM rebanhos r
LEFT JOIN propriedades p ON p.id = r.propriedade_id`

// Herds возвращает стада
func (s *PostgresStore) Herds(ctx context.Context, q Query) ([]domain.Herd, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresStore.Herds",
		telemetry.WithAttributes(telemetry.QueryAttributes("herd", q.Search != "", 0)...))
	defer span.End()

	sql, args := newSelect(selectHerds).
		search(q.Search, "r.especie", "p.nome", "p.municipio").
		dateRange("COALESCE(r.updated_at, r.created_at)", q.DateFrom, q.DateTo).
		order("p.nome ASC, r.especie ASC, r.id ASC").
		limitTo(q.EffectiveLimit()).
		build()

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, fmt.Errorf("failed to query herds: %w", err)
	}
	defer rows.Close()

	var out []domain.Herd
	for rows.Next() {
		var (
			h    domain.Herd
			prop domain.PropertyRef
		)
		if err := rows.Scan(
			&h.ID, &h.Species, &h.Quantity, &h.Purpose, &h.UpdatedAt,
			&prop.ID, &prop.Name, &prop.Municipality, &prop.State,
		); err != nil {
			return nil, fmt.Errorf("failed to scan herd: %w", err)
		}
		h.UpdatedAt = h.UpdatedAt.UTC()
		if prop.ID != 0 {
			h.Property = &prop
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read herds: %w", err)
	}

	return out, nil
}

const selectProducers = `
SELECT pr.id, pr.nome, COALESCE(pr.cpf_cnpj, ''), COALESCE(pr.telefone, ''), COALESCE(pr.email, ''),
       COALESCE(pr.municipio, ''), COALESCE(pr.uf, ''),
       (SELECT COUNT(*) FROM propriedades p WHERE p.produtor_id = pr.id),
       pr.created_at
FROM produtores pr`

// Producers возвращает производителей
func (s *PostgresStore) Producers(ctx context.Context, q Query) ([]domain.Producer, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresStore.Producers",
		telemetry.WithAttributes(telemetry.QueryAttributes("producer", q.Search != "", 0)...))
	defer span.End()

	sql, args := newSelect(selectProducers).
		search(q.Search, "pr.nome", "pr.cpf_cnpj", "pr.municipio", "pr.email").
		dateRange("pr.created_at", q.DateFrom, q.DateTo).
		order("pr.nome ASC, pr.id ASC").
		limitTo(q.EffectiveLimit()).
		build()

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, fmt.Errorf("failed to query producers: %w", err)
	}
	defer rows.Close()

	var out []domain.Producer
	for rows.Next() {
		var p domain.Producer
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Document, &p.Phone, &p.Email,
			&p.Municipality, &p.State, &p.PropertiesCount, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan producer: %w", err)
		}
		p.CreatedAt = p.CreatedAt.UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read producers: %w", err)
	}

	return out, nil
}

const selectUnits = `
SELECT u.id, u.nome, COALESCE(u.tipo_cultura, ''), COALESCE(u.area, 0)::float8, u.created_at,
       COALESCE(p.id, 0), COALESCE(p.nome, ''), COALESCE(p.municipio, ''), COALESCE(p.uf, '')
FROM unidades_producao u
LEFT JOIN propriedades p ON p.id = u.propriedade_id`

// ProductionUnits возвращает производственные единицы
func (s *PostgresStore) ProductionUnits(ctx context.Context, q Query) ([]domain.ProductionUnit, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresStore.ProductionUnits",
		telemetry.WithAttributes(telemetry.QueryAttributes("production_unit", q.Search != "", 0)...))
	defer span.End()

	sql, args := newSelect(selectUnits).
		search(q.Search, "u.nome", "u.tipo_cultura", "p.nome", "p.municipio").
		dateRange("u.created_at", q.DateFrom, q.DateTo).
		order("u.nome ASC, u.id ASC").
		limitTo(q.EffectiveLimit()).
		build()

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, fmt.Errorf("failed to query production units: %w", err)
	}
	defer rows.Close()

	var out []domain.ProductionUnit
	for rows.Next() {
		var (
			u    domain.ProductionUnit
			prop domain.PropertyRef
		)
		if err := rows.Scan(
			&u.ID, &u.Name, &u.CropType, &u.Area, &u.CreatedAt,
			&prop.ID, &prop.Name, &prop.Municipality, &prop.State,
		); err != nil {
			return nil, fmt.Errorf("failed to scan production unit: %w", err)
		}
		u.CreatedAt = u.CreatedAt.UTC()
		if prop.ID != 0 {
			u.Property = &prop
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read production units: %w", err)
	}

	return out, nil
}

const selectHerdsBySpecies = `
SELECT COALESCE(r.especie, ''), '', COUNT(*), COALESCE(SUM(r.quantidade), 0)::bigint, 0::float8,
       COALESCE(array_agg(DISTINCT p.nome ORDER BY p.nome) FILTER (WHERE p.nome <> ''), '{}')
FROM rebanhos r
LEFT JOIN propriedades p ON p.id = r.propriedade_id`

// HerdsBySpecies группирует стада по виду
func (s *PostgresStore) HerdsBySpecies(ctx context.Context, q Query) ([]domain.Group, error) {
	b := newSelect(selectHerdsBySpecies).
		search(q.Search, "r.especie", "p.nome", "p.municipio").
		dateRange("COALESCE(r.updated_at, r.created_at)", q.DateFrom, q.DateTo).
		group("r.especie").
		order("r.especie ASC").
		limitTo(q.EffectiveLimit())
	return s.groups(ctx, "PostgresStore.HerdsBySpecies", b)
}

const selectPropertiesByMunicipality = `
SELECT COALESCE(p.municipio, ''), COALESCE(MAX(p.uf), ''), COUNT(*), 0, COALESCE(SUM(p.area_total), 0)::float8,
       COALESCE(array_agg(DISTINCT pr.nome ORDER BY pr.nome) FILTER (WHERE pr.nome <> ''), '{}')
FROM propriedades p
LEFT JOIN produtores pr ON pr.id = p.produtor_id`

// PropertiesByMunicipality группирует хозяйства по муниципалитету
func (s *PostgresStore) PropertiesByMunicipality(ctx context.Context, q Query) ([]domain.Group, error) {
	b := newSelect(selectPropertiesByMunicipality).
		search(q.Search, "p.nome", "p.municipio", "pr.nome", "pr.cpf_cnpj").
		dateRange("p.created_at", q.DateFrom, q.DateTo).
		group("p.municipio").
		order("p.municipio ASC").
		limitTo(q.EffectiveLimit())
	return s.groups(ctx, "PostgresStore.PropertiesByMunicipality", b)
}

const selectUnitsByProperty = `
SELECT COALESCE(p.nome, ''), COALESCE(MAX(p.municipio), ''), COUNT(*), 0, COALESCE(SUM(u.area), 0)::float8,
       COALESCE(array_agg(DISTINCT u.tipo_cultura ORDER BY u.tipo_cultura) FILTER (WHERE u.tipo_cultura <> ''), '{}')
FROM unidades_producao u
LEFT JOIN propriedades p ON p.id = u.propriedade_id`

// UnitsByProperty группирует единицы по хозяйству
func (s *PostgresStore) UnitsByProperty(ctx context.Context, q Query) ([]domain.Group, error) {
	b := newSelect(selectUnitsByProperty).
		search(q.Search, "u.nome", "u.tipo_cultura", "p.nome", "p.municipio").
		dateRange("u.created_at", q.DateFrom, q.DateTo).
		group("p.nome").
		order("p.nome ASC").
		limitTo(q.EffectiveLimit())
	return s.groups(ctx, "PostgresStore.UnitsByProperty", b)
}

func (s *PostgresStore) groups(ctx context.Context, spanName string, b *selectBuilder) ([]domain.Group, error) {
	ctx, span := telemetry.StartSpan(ctx, spanName)
	defer span.End()

	sql, args := b.build()

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var out []domain.Group
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.Key, &g.Secondary, &g.Count, &g.Quantity, &g.Area, &g.Members); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		if g.Members == nil {
			g.Members = []string{}
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read groups: %w", err)
	}

	return out, nil
}

const selectDashboardTotals = `
SELECT (SELECT COUNT(*) FROM produtores),
       (SELECT COUNT(*) FROM propriedades),
       (SELECT COUNT(*) FROM unidades_producao),
       (SELECT COUNT(*) FROM rebanhos),
       (SELECT COALESCE(SUM(quantidade), 0)::bigint FROM rebanhos),
       (SELECT COALESCE(SUM(area_total), 0)::float8 FROM propriedades),
       (SELECT COALESCE(SUM(area), 0)::float8 FROM unidades_producao)`

const selectSpeciesBreakdown = `
SELECT COALESCE(especie, ''), COUNT(*), COALESCE(SUM(quantidade), 0)::bigint
FROM rebanhos
GROUP BY especie
ORDER BY especie`

// Dashboard считает показатели в одном снимке данных
func (s *PostgresStore) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresStore.Dashboard")
	defer span.End()

	d, err := database.WithReadOnly(ctx, s.db, func(tx pgx.Tx) (*domain.Dashboard, error) {
		d := &domain.Dashboard{Species: []domain.SpeciesCount{}}
		if err := tx.QueryRow(ctx, selectDashboardTotals).Scan(
			&d.Producers, &d.Properties, &d.ProductionUnits, &d.Herds,
			&d.TotalAnimals, &d.TotalArea, &d.CultivatedArea,
		); err != nil {
			return nil, fmt.Errorf("failed to read totals: %w", err)
		}

		rows, err := tx.Query(ctx, selectSpeciesBreakdown)
		if err != nil {
			return nil, fmt.Errorf("failed to query species: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var sc domain.SpeciesCount
			if err := rows.Scan(&sc.Species, &sc.Herds, &sc.Animals); err != nil {
				return nil, fmt.Errorf("failed to scan species: %w", err)
			}
			d.Species = append(d.Species, sc)
		}
		return d, rows.Err()
	})
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, err
	}

	return d, nil
}

// Municipalities возвращает различные муниципалитеты
func (s *PostgresStore) Municipalities(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "municipio")
}

// States возвращает различные штаты
func (s *PostgresStore) States(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "uf")
}

func (s *PostgresStore) distinct(ctx context.Context, column string) ([]string, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresStore.Distinct")
	defer span.End()

	ident := pgx.Identifier{column}.Sanitize()
	sql := fmt.Sprintf(
		"SELECT DISTINCT %[1]s FROM propriedades WHERE %[1]s IS NOT NULL AND %[1]s <> '' ORDER BY %[1]s", ident)

	rows, err := s.db.Query(ctx, sql)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, fmt.Errorf("failed to query distinct %s: %w", column, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", column, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Ping проверяет соединение
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.db.Ping(ctx)
}

// Close закрывает пул
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func decodeList[T any](raw []byte, dst *[]T) error {
	if len(raw) == 0 {
		*dst = []T{}
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	if *dst == nil {
		*dst = []T{}
	}
	return nil
}
