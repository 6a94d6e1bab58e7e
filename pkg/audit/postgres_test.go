package audit

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

func setupPostgresLogger(t *testing.T) (pgxmock.PgxPoolIface, *PostgresLogger) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return mock, NewPostgresLogger(&pgxMockAdapter{mock: mock}, "report-svc")
}

func TestPostgresLogger_Log(t *testing.T) {
	mock, l := setupPostgresLogger(t)
	defer mock.Close()

	at := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	entry := NewEntry(at, CategoryReport, ActionExport, "Relatório de Rebanhos").
		With("format", "delimited_text")

	mock.ExpectExec(`INSERT INTO activity_log`).
		WithArgs(
			entry.ID,
			at,
			"report-svc",
			"report",
			"EXPORT",
			"Relatório de Rebanhos",
			"",
			[]byte(`{"format":"delimited_text"}`),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, l.Log(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLogger_LogError(t *testing.T) {
	mock, l := setupPostgresLogger(t)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO activity_log`).
		WillReturnError(errors.New("relation \"activity_log\" does not exist"))

	err := l.Log(context.Background(), reportEntry("x"))
	assert.ErrorContains(t, err, "failed to insert activity")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLogger_Query(t *testing.T) {
	mock, l := setupPostgresLogger(t)
	defer mock.Close()

	created := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"id", "created_at", "service", "category", "action", "display_name", "request_id", "extra",
	}).
		AddRow("0b5d8f0e-7c1f-4c3e-9d59-3f7a2a8e6c11", created, "report-svc", "report", "EXPORT",
			"Relatório de Rebanhos", "req-1", []byte(`{"record_count":3}`))

	mock.ExpectQuery(`FROM activity_log\s+WHERE category = \$1\s+ORDER BY created_at DESC\s+LIMIT \$2`).
		WithArgs("report", 10).
		WillReturnRows(rows)

	entries, err := l.Query(context.Background(), &QueryFilter{Category: CategoryReport, Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, CategoryReport, e.Category)
	assert.Equal(t, ActionExport, e.Action)
	assert.Equal(t, "Relatório de Rebanhos", e.DisplayName)
	assert.Equal(t, created, e.Timestamp)
	assert.EqualValues(t, 3, e.Extra["record_count"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLogger_QueryDefaultLimit(t *testing.T) {
	mock, l := setupPostgresLogger(t)
	defer mock.Close()

	mock.ExpectQuery(`FROM activity_log\s+ORDER BY created_at DESC\s+LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "created_at", "service", "category", "action", "display_name", "request_id", "extra",
		}))

	entries, err := l.Query(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_Postgres(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l, err := New(&Config{Enabled: true, Backend: "postgres", Service: "report-svc"}, WithDB(&pgxMockAdapter{mock: mock}))
	require.NoError(t, err)
	assert.IsType(t, &PostgresLogger{}, l)
}
