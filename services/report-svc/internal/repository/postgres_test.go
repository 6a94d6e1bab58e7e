package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pgxMockAdapter struct {
	mock pgxmock.PgxPoolIface
}

func (a *pgxMockAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return a.mock.Exec(ctx, sql, args...)
}

func (a *pgxMockAdapter) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return a.mock.Query(ctx, sql, args...)
}

func (a *pgxMockAdapter) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return a.mock.QueryRow(ctx, sql, args...)
}

func (a *pgxMockAdapter) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return a.mock.BeginTx(ctx, txOptions)
}

func (a *pgxMockAdapter) Close() {
	a.mock.Close()
}

func (a *pgxMockAdapter) Ping(ctx context.Context) error {
	return a.mock.Ping(ctx)
}

func setupPostgresStore(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return mock, NewPostgresStore(&pgxMockAdapter{mock: mock})
}

var created = time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

func TestPostgresStore_Properties(t *testing.T) {
	mock, s := setupPostgresStore(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{
		"id", "nome", "municipio", "uf", "area_total", "created_at",
		"produtor_id", "produtor_nome", "cpf_cnpj", "unidades", "rebanhos",
	}).
		AddRow(int64(10), "Fazenda Boa Vista", "Quixadá", "CE", 120.5, created,
			int64(1), "João da Silva", "123.456.789-00",
			[]byte(`[{"id":100,"name":"Roçado Norte","crop_type":"milho","area":20.5}]`),
			[]byte(`[{"id":1000,"species":"bovinos","quantity":120}]`)).
		AddRow(int64(13), "Sítio Sem Dono", "Crato", "CE", 5.0, created,
			int64(0), "", "", []byte(`[]`), []byte(`[]`))

	mock.ExpectQuery(`FROM propriedades p\s+LEFT JOIN produtores pr`).
		WithArgs("quixada", 1000).
		WillReturnRows(rows)

	props, err := s.Properties(context.Background(), Query{Search: "Quixadá"})
	require.NoError(t, err)
	require.Len(t, props, 2)

	assert.Equal(t, "Fazenda Boa Vista", props[0].Name)
	require.NotNil(t, props[0].Producer)
	assert.Equal(t, "João da Silva", props[0].Producer.Name)
	require.Len(t, props[0].ProductionUnits, 1)
	assert.Equal(t, "milho", props[0].ProductionUnits[0].CropType)
	assert.Equal(t, int64(120), props[0].TotalAnimals())

	assert.Nil(t, props[1].Producer)
	assert.NotNil(t, props[1].Herds)
	assert.Empty(t, props[1].Herds)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Herds(t *testing.T) {
	mock, s := setupPostgresStore(t)
	defer mock.Close()

	updated := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "especie", "quantidade", "finalidade", "updated_at", "p_id", "p_nome", "municipio", "uf"}).
		AddRow(int64(1000), "bovinos", int64(120), "corte", updated, int64(10), "Fazenda Boa Vista", "Quixadá", "CE").
		AddRow(int64(1005), "aves", int64(300), "", updated, int64(0), "", "", "")

	mock.ExpectQuery(`FROM rebanhos r\s+LEFT JOIN propriedades p`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), 1000).
		WillReturnRows(rows)

	herds, err := s.Herds(context.Background(), Query{DateFrom: day("2025-01-01"), DateTo: day("2025-12-31")})
	require.NoError(t, err)
	require.Len(t, herds, 2)

	assert.Equal(t, int64(120), herds[0].Quantity)
	require.NotNil(t, herds[0].Property)
	assert.Equal(t, "Fazenda Boa Vista", herds[0].Property.Name)
	assert.Nil(t, herds[1].Property)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Producers(t *testing.T) {
	mock, s := setupPostgresStore(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "nome", "cpf_cnpj", "telefone", "email", "municipio", "uf", "propriedades", "created_at"}).
		AddRow(int64(1), "João da Silva", "123.456.789-00", "(88) 99999-0001", "joao.silva@example.com", "Quixadá", "CE", int64(2), created)

	mock.ExpectQuery(`FROM produtores pr`).
		WithArgs(25).
		WillReturnRows(rows)

	producers, err := s.Producers(context.Background(), Query{Limit: 25})
	require.NoError(t, err)
	require.Len(t, producers, 1)
	assert.Equal(t, int64(2), producers[0].PropertiesCount)
	assert.Equal(t, "joao.silva@example.com", producers[0].Email)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ProductionUnits_QueryError(t *testing.T) {
	mock, s := setupPostgresStore(t)
	defer mock.Close()

	mock.ExpectQuery(`FROM unidades_producao u`).
		WithArgs(1000).
		WillReturnError(errors.New("connection refused"))

	_, err := s.ProductionUnits(context.Background(), Query{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query production units")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_HerdsBySpecies(t *testing.T) {
	mock, s := setupPostgresStore(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"key", "secondary", "count", "quantity", "area", "members"}).
		AddRow("bovinos", "", int64(2), int64(200), 0.0, []string{"Fazenda Boa Vista", "Fazenda Santa Luzia"}).
		AddRow("caprinos", "", int64(1), int64(45), 0.0, []string{"Sítio Esperança"})

	mock.ExpectQuery(`GROUP BY r.especie\s+ORDER BY r.especie ASC`).
		WithArgs(1000).
		WillReturnRows(rows)

	groups, err := s.HerdsBySpecies(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, int64(200), groups[0].Quantity)
	assert.Equal(t, []string{"Fazenda Boa Vista", "Fazenda Santa Luzia"}, groups[0].Members)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PropertiesByMunicipality(t *testing.T) {
	mock, s := setupPostgresStore(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"key", "secondary", "count", "quantity", "area", "members"}).
		AddRow("Quixadá", "CE", int64(2), int64(0), 420.5, []string{"João da Silva"})

	mock.ExpectQuery(`GROUP BY p.municipio`).
		WithArgs("joao", 1000).
		WillReturnRows(rows)

	groups, err := s.PropertiesByMunicipality(context.Background(), Query{Search: "João"})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "CE", groups[0].Secondary)
	assert.InDelta(t, 420.5, groups[0].Area, 1e-9)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UnitsByProperty(t *testing.T) {
	mock, s := setupPostgresStore(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"key", "secondary", "count", "quantity", "area", "members"}).
		AddRow("Fazenda Boa Vista", "Quixadá", int64(2), int64(0), 30.5, []string{"feijao", "milho"})

	mock.ExpectQuery(`GROUP BY p.nome`).
		WithArgs(1000).
		WillReturnRows(rows)

	groups, err := s.UnitsByProperty(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"feijao", "milho"}, groups[0].Members)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GroupMembersKeepCommas(t *testing.T) {
	mock, s := setupPostgresStore(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"key", "secondary", "count", "quantity", "area", "members"}).
		AddRow("Sobral", "CE", int64(2), int64(0), 95.0, []string{"Agropecuária Silva, Filhos & Cia", "Maria Souza"}).
		AddRow("Quixeramobim", "CE", int64(1), int64(0), 12.0, []string(nil))

	mock.ExpectQuery(`array_agg\(DISTINCT pr\.nome`).
		WithArgs(1000).
		WillReturnRows(rows)

	groups, err := s.PropertiesByMunicipality(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"Agropecuária Silva, Filhos & Cia", "Maria Souza"}, groups[0].Members)
	assert.NotNil(t, groups[1].Members)
	assert.Empty(t, groups[1].Members)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Dashboard(t *testing.T) {
	mock, s := setupPostgresStore(t)
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectQuery(`SELECT \(SELECT COUNT\(\*\) FROM produtores\)`).
		WillReturnRows(pgxmock.NewRows([]string{"producers", "properties", "units", "herds", "animals", "area", "cultivated"}).
			AddRow(int64(3), int64(3), int64(4), int64(4), int64(275), 465.75, 189.25))
	mock.ExpectQuery(`GROUP BY especie`).
		WillReturnRows(pgxmock.NewRows([]string{"especie", "herds", "animals"}).
			AddRow("bovinos", int64(2), int64(200)).
			AddRow("caprinos", int64(1), int64(45)))
	mock.ExpectRollback()

	d, err := s.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), d.Producers)
	assert.Equal(t, int64(275), d.TotalAnimals)
	assert.InDelta(t, 189.25, d.CultivatedArea, 1e-9)
	require.Len(t, d.Species, 2)
	assert.Equal(t, int64(45), d.Species[1].Animals)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Dashboard_RollsBackOnError(t *testing.T) {
	mock, s := setupPostgresStore(t)
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectQuery(`SELECT \(SELECT COUNT\(\*\) FROM produtores\)`).
		WillReturnError(errors.New("canceling statement due to statement timeout"))
	mock.ExpectRollback()

	_, err := s.Dashboard(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read totals")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Municipalities(t *testing.T) {
	mock, s := setupPostgresStore(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT DISTINCT "municipio" FROM propriedades`).
		WillReturnRows(pgxmock.NewRows([]string{"municipio"}).AddRow("Quixadá").AddRow("Sobral"))

	values, err := s.Municipalities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Quixadá", "Sobral"}, values)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_States_Empty(t *testing.T) {
	mock, s := setupPostgresStore(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT DISTINCT "uf" FROM propriedades`).
		WillReturnRows(pgxmock.NewRows([]string{"uf"}))

	values, err := s.States(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, values)
	assert.Empty(t, values)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	mock, s := setupPostgresStore(t)
	defer mock.Close()

	mock.ExpectPing()
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
