package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/roadside-backend/internal/models"
)

// BalanceRepository глобальные счётчики платформы. Значения меняются только инкрементом.
type BalanceRepository struct {
	db *sqlx.DB
}

// NewBalanceRepository создаёт экземпляр репозитория.
func NewBalanceRepository(db *sqlx.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Increment атомарно прибавляет delta и возвращает новое значение; отсутствующая строка создаётся.
func (r *BalanceRepository) Increment(ctx context.Context, key string, delta decimal.Decimal) (decimal.Decimal, error) {
	return incrementBalance(ctx, r.db, key, delta)
}

// List возвращает все балансы.
func (r *BalanceRepository) List(ctx context.Context) ([]models.Balance, error) {
	balances := []models.Balance{}
	if err := r.db.SelectContext(ctx, &balances, `SELECT key, name, value FROM balances ORDER BY key`); err != nil {
		return nil, fmt.Errorf("balance repository: list %w", err)
	}
	return balances, nil
}
