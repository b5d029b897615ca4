package common

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// GetByField читает одну строку table по равенству field.
// q может быть как *sqlx.DB, так и *sqlx.Tx.
func GetByField[T any](ctx context.Context, q sqlx.QueryerContext, table, field string, value interface{}) (*T, error) {
	var row T
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1", table, field)
	if err := sqlx.GetContext(ctx, q, &row, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s repository: get by %s %w", table, field, err)
	}
	return &row, nil
}

// Affected число строк, изменённых условным UPDATE.
func Affected(result sql.Result, op string) (int64, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s rows affected %w", op, err)
	}
	return rows, nil
}

// RequireAffected превращает UPDATE без изменённых строк в ErrNotFound.
func RequireAffected(result sql.Result, op string) error {
	rows, err := Affected(result, op)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// WithTransaction выполняет fn в транзакции: ошибка или паника fn откатывают её, иначе коммит.
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
