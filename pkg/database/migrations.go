package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"farmreport/pkg/config"
	"farmreport/pkg/logger"
)

// Migrator применяет миграции служебных таблиц (activity_log).
// Таблицы фермы принадлежат основному приложению и не мигрируются.
type Migrator struct {
	pool       *pgxpool.Pool
	migrations fs.FS
	dir        string
}

// MigrationStatus строка вывода migrate status
type MigrationStatus struct {
	Version int64
	Path    string
	Applied bool
}

func NewMigrator(pool *pgxpool.Pool, migrations fs.FS, dir string) *Migrator {
	return &Migrator{pool: pool, migrations: migrations, dir: dir}
}

// Up применяет все новые миграции
func (m *Migrator) Up(ctx context.Context) error {
	return m.with(func(p *goose.Provider) error {
		results, err := p.Up(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		for _, r := range results {
			logger.Log.Info("Migration applied", "path", r.Source.Path, "duration", r.Duration)
		}
		return nil
	})
}

// Down откатывает последнюю миграцию
func (m *Migrator) Down(ctx context.Context) error {
	return m.with(func(p *goose.Provider) error {
		r, err := p.Down(ctx)
		if err != nil {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		logger.Log.Info("Migration rolled back", "path", r.Source.Path)
		return nil
	})
}

// Status перечисляет известные миграции
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	var out []MigrationStatus
	err := m.with(func(p *goose.Provider) error {
		statuses, err := p.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to read migration status: %w", err)
		}
		for _, s := range statuses {
			out = append(out, MigrationStatus{
				Version: s.Source.Version,
				Path:    s.Source.Path,
				Applied: s.State == goose.StateApplied,
			})
		}
		return nil
	})
	return out, err
}

func (m *Migrator) with(fn func(p *goose.Provider) error) error {
	fsys := m.migrations
	if m.dir != "" && m.dir != "." {
		sub, err := fs.Sub(fsys, m.dir)
		if err != nil {
			return fmt.Errorf("migrations dir: %w", err)
		}
		fsys = sub
	}

	db := stdlib.OpenDBFromPool(m.pool)
	defer func(db *sql.DB) { _ = db.Close() }(db)

	p, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}
	return fn(p)
}

// RunMigrations применяет миграции при database.auto_migrate
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, cfg *config.DatabaseConfig, migrations fs.FS, dir string) error {
	if !cfg.AutoMigrate {
		logger.Log.Info("Auto-migration is disabled")
		return nil
	}
	return NewMigrator(pool, migrations, dir).Up(ctx)
}
