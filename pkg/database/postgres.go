package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"farmreport/pkg/config"
	"farmreport/pkg/logger"
)

// DB то, чем хранилище отчётов пользуется от пула. Его же реализует pgxmock.
type DB interface {
	Beginner
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresDB пул pgx с ограничением времени на Ping
type PostgresDB struct {
	*pgxpool.Pool
}

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
)

// NewPostgresDB открывает пул и сразу проверяет соединение
func NewPostgresDB(ctx context.Context, cfg *config.DatabaseConfig, appName string) (*PostgresDB, error) {
	pc, err := poolConfig(cfg, appName)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	db := &PostgresDB{Pool: pool}
	if err := db.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Host, err)
	}

	logger.Log.Info("Connected to PostgreSQL",
		"host", cfg.Host,
		"database", cfg.Database,
		"max_conns", pc.MaxConns,
		"statement_timeout", cfg.QueryTimeout,
	)
	return db, nil
}

func poolConfig(cfg *config.DatabaseConfig, appName string) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(connURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		pc.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pc.MinConns = int32(min(cfg.MaxIdleConns, int(pc.MaxConns)))
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	pc.ConnConfig.ConnectTimeout = connectTimeout

	rp := pc.ConnConfig.RuntimeParams
	if appName != "" {
		rp["application_name"] = appName
	}
	// тяжёлые отчёты обрываются на стороне сервера
	if cfg.QueryTimeout > 0 {
		rp["statement_timeout"] = strconv.FormatInt(cfg.QueryTimeout.Milliseconds(), 10)
	}
	return pc, nil
}

// connURL postgres:// URL с экранированными учётными данными
func connURL(cfg *config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Database,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String()
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return db.Pool.Ping(ctx)
}

func (db *PostgresDB) Close() {
	db.Pool.Close()
	logger.Log.Info("PostgreSQL connection pool closed")
}
