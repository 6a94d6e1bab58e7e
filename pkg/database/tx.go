package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// snapshotOptions один снимок данных без права записи
var snapshotOptions = pgx.TxOptions{
	IsoLevel:   pgx.RepeatableRead,
	AccessMode: pgx.ReadOnly,
}

// Beginner открывает транзакции: пул, соединение или pgxmock
type Beginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// WithReadOnly выполняет fn в транзакции REPEATABLE READ, READ ONLY.
// Агрегаты из нескольких запросов видят согласованные данные.
// Транзакция всегда откатывается: писать в ней нечего.
func WithReadOnly[T any](ctx context.Context, db Beginner, fn func(tx pgx.Tx) (T, error)) (result T, err error) {
	tx, err := db.BeginTx(ctx, snapshotOptions)
	if err != nil {
		return result, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	return fn(tx)
}
