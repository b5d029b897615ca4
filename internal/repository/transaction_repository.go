package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/roadside-backend/internal/models"
)

// TransactionRepository чтение истории переводов.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository создаёт экземпляр репозитория.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ListByUser возвращает переводы, где пользователь плательщик или получатель.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM transactions WHERE customer_id = $1 OR provider_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("transaction repository: count %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE customer_id = $1 OR provider_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, transactionColumns)

	transactions := []models.Transaction{}
	if err := r.db.SelectContext(ctx, &transactions, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("transaction repository: list %w", err)
	}
	return transactions, total, nil
}

// ListByJobProcess возвращает переводы процесса в порядке создания.
func (r *TransactionRepository) ListByJobProcess(ctx context.Context, jobProcessID uuid.UUID) ([]models.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE job_process_id = $1 ORDER BY created_at`, transactionColumns)

	transactions := []models.Transaction{}
	if err := r.db.SelectContext(ctx, &transactions, query, jobProcessID); err != nil {
		return nil, fmt.Errorf("transaction repository: list by job process %w", err)
	}
	return transactions, nil
}
