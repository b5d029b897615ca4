package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/repository/common"
)

// ErrInsufficientFunds возвращается, когда в кошельке меньше запрошенной суммы.
var ErrInsufficientFunds = errors.New("insufficient funds")

const jobProcessColumns = `id, job_id, provider_id, customer_id, services, service_price, status, rating, comment, created_at, updated_at`

const transactionColumns = `id, customer_id, provider_id, job_process_id, type, amount, status, is_refund_requested, refund_details, refund_images, created_at, updated_at`

// TxStore операции, выполняемые в одной транзакции БД.
type TxStore interface {
	JobProcessExists(ctx context.Context, jobID, providerID uuid.UUID) (bool, error)
	PullJobTarget(ctx context.Context, jobID, providerID uuid.UUID) (*models.Job, error)
	InsertJobProcess(ctx context.Context, jp *models.JobProcess) error
	LockJobProcess(ctx context.Context, id uuid.UUID, ownerColumn string, ownerID uuid.UUID, statuses []string) (*models.JobProcess, error)
	UpdateJobProcess(ctx context.Context, jp *models.JobProcess) error
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)

	InsertTransaction(ctx context.Context, t *models.Transaction) error
	DebitWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error
	CreditWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error
	IncrementBalance(ctx context.Context, key string, delta decimal.Decimal) (decimal.Decimal, error)
	FinalizeTransactions(ctx context.Context, jobProcessID uuid.UUID) ([]models.Transaction, error)
	LockRefundCandidate(ctx context.Context, jobProcessID uuid.UUID, txType string, customerID uuid.UUID) (*models.Transaction, error)
	LockRequestedRefund(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	LockDueTransactions(ctx context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error)
	UpdateTransaction(ctx context.Context, t *models.Transaction) error
}

// Store открывает транзакции БД для сервисов.
type Store struct {
	db *sqlx.DB
}

// NewStore создаёт Store.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// InTx выполняет fn в транзакции; ошибка fn откатывает все изменения.
func (s *Store) InTx(ctx context.Context, fn func(tx TxStore) error) error {
	return common.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

type txStore struct {
	tx *sqlx.Tx
}

// JobProcessExists проверяет, откликался ли исполнитель на заявку.
func (s *txStore) JobProcessExists(ctx context.Context, jobID, providerID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM job_processes WHERE job_id = $1 AND provider_id = $2)`
	if err := s.tx.GetContext(ctx, &exists, query, jobID, providerID); err != nil {
		return false, fmt.Errorf("job process repository: exists %w", err)
	}
	return exists, nil
}

// PullJobTarget атомарно убирает исполнителя из кандидатов активной заявки.
func (s *txStore) PullJobTarget(ctx context.Context, jobID, providerID uuid.UUID) (*models.Job, error) {
	var job models.Job
	query := `
		UPDATE jobs
		SET targets = array_remove(targets, $2::uuid), updated_at = NOW()
		WHERE id = $1 AND status = 'active' AND is_deleted = FALSE AND $2::uuid = ANY(targets)
		RETURNING id, customer_id, targets, status, platform, car_model, location_lng, location_lat,
			destination_lng, destination_lat, is_deleted, created_at, updated_at
	`
	if err := s.tx.GetContext(ctx, &job, query, jobID, providerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("job repository: pull target %w", err)
	}
	return &job, nil
}

// InsertJobProcess создаёт процесс; уникальный индекс защищает от второго активного процесса.
func (s *txStore) InsertJobProcess(ctx context.Context, jp *models.JobProcess) error {
	query := `
		INSERT INTO job_processes (job_id, provider_id, customer_id, services, service_price, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := s.tx.QueryRowxContext(ctx, query, jp.JobID, jp.ProviderID, jp.CustomerID, jp.Services, jp.ServicePrice, jp.Status).
		Scan(&jp.ID, &jp.CreatedAt, &jp.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("job process repository: insert %w", err)
	}
	return nil
}

// LockJobProcess блокирует процесс, если он принадлежит владельцу и находится в одном из статусов.
// Конкурирующая транзакция ждёт блокировку и после коммита первой перепроверяет условие.
func (s *txStore) LockJobProcess(ctx context.Context, id uuid.UUID, ownerColumn string, ownerID uuid.UUID, statuses []string) (*models.JobProcess, error) {
	if ownerColumn != "customer_id" && ownerColumn != "provider_id" {
		return nil, common.ErrInvalidInput
	}

	var jp models.JobProcess
	query := fmt.Sprintf(`
		SELECT %s FROM job_processes
		WHERE id = $1 AND %s = $2 AND status = ANY($3)
		FOR UPDATE
	`, jobProcessColumns, ownerColumn)
	if err := s.tx.GetContext(ctx, &jp, query, id, ownerID, pq.Array(statuses)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("job process repository: lock %w", err)
	}
	return &jp, nil
}

// UpdateJobProcess сохраняет изменяемые поля процесса.
func (s *txStore) UpdateJobProcess(ctx context.Context, jp *models.JobProcess) error {
	query := `
		UPDATE job_processes
		SET services = $2, service_price = $3, status = $4, rating = $5, comment = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	if err := s.tx.QueryRowxContext(ctx, query, jp.ID, jp.Services, jp.ServicePrice, jp.Status, jp.Rating, jp.Comment).
		Scan(&jp.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("job process repository: update %w", err)
	}
	return nil
}

// UpdateJobStatus меняет статус родительской заявки.
func (s *txStore) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string) error {
	if _, err := s.tx.ExecContext(ctx, `UPDATE jobs SET status = $2, updated_at = NOW() WHERE id = $1`, jobID, status); err != nil {
		return fmt.Errorf("job repository: update status %w", err)
	}
	return nil
}

// GetUser возвращает пользователя в рамках транзакции.
func (s *txStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return getUser(ctx, s.tx, id)
}

// InsertTransaction создаёт запись о переводе.
func (s *txStore) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (customer_id, provider_id, job_process_id, type, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_refund_requested, refund_images, created_at, updated_at
	`
	if err := s.tx.QueryRowxContext(ctx, query, t.CustomerID, t.ProviderID, t.JobProcessID, t.Type, t.Amount, t.Status).
		Scan(&t.ID, &t.IsRefundRequested, &t.RefundImages, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return fmt.Errorf("transaction repository: insert %w", err)
	}
	return nil
}

// DebitWallet списывает сумму условным обновлением, без чтения баланса в приложение.
func (s *txStore) DebitWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	result, err := s.tx.ExecContext(ctx, `
		UPDATE users SET wallet = wallet - $2, updated_at = NOW()
		WHERE id = $1 AND wallet >= $2
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("wallet repository: debit %w", err)
	}

	rows, err := common.Affected(result, "wallet repository: debit")
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := s.tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID); err != nil {
		return fmt.Errorf("wallet repository: debit exists %w", err)
	}
	if !exists {
		return common.ErrNotFound
	}
	return ErrInsufficientFunds
}

// CreditWallet зачисляет сумму на кошелёк.
func (s *txStore) CreditWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	return creditWallet(ctx, s.tx, userID, amount)
}

// IncrementBalance атомарно меняет глобальный баланс.
func (s *txStore) IncrementBalance(ctx context.Context, key string, delta decimal.Decimal) (decimal.Decimal, error) {
	return incrementBalance(ctx, s.tx, key, delta)
}

// FinalizeTransactions переводит ожидающие транзакции процесса в success и возвращает их.
func (s *txStore) FinalizeTransactions(ctx context.Context, jobProcessID uuid.UUID) ([]models.Transaction, error) {
	query := fmt.Sprintf(`
		UPDATE transactions SET status = 'success', is_refund_requested = FALSE, updated_at = NOW()
		WHERE job_process_id = $1 AND status = 'created'
		RETURNING %s
	`, transactionColumns)

	var finalized []models.Transaction
	if err := s.tx.SelectContext(ctx, &finalized, query, jobProcessID); err != nil {
		return nil, fmt.Errorf("transaction repository: finalize %w", err)
	}
	return finalized, nil
}

// LockRefundCandidate находит ожидающую транзакцию клиента для запроса возврата.
func (s *txStore) LockRefundCandidate(ctx context.Context, jobProcessID uuid.UUID, txType string, customerID uuid.UUID) (*models.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE job_process_id = $1 AND type = $2 AND customer_id = $3 AND status = 'created'
		FOR UPDATE
	`, transactionColumns)
	return s.lockTransaction(ctx, query, jobProcessID, txType, customerID)
}

// LockRequestedRefund находит транзакцию с открытым запросом возврата.
func (s *txStore) LockRequestedRefund(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE id = $1 AND is_refund_requested = TRUE AND status = 'created'
		FOR UPDATE
	`, transactionColumns)
	return s.lockTransaction(ctx, query, id)
}

// LockDueTransactions выбирает ожидающие выплаты транзакции старше отсечки.
// Строки без открытого запроса возврата; занятые другой транзакцией пропускаются.
func (s *txStore) LockDueTransactions(ctx context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE status = 'created' AND is_refund_requested = FALSE AND created_at <= $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, transactionColumns)

	var due []models.Transaction
	if err := s.tx.SelectContext(ctx, &due, query, createdBefore, limit); err != nil {
		return nil, fmt.Errorf("transaction repository: due %w", err)
	}
	return due, nil
}

// UpdateTransaction сохраняет статус и поля возврата.
func (s *txStore) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $2, is_refund_requested = $3, refund_details = $4, refund_images = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	if err := s.tx.QueryRowxContext(ctx, query, t.ID, t.Status, t.IsRefundRequested, t.RefundDetails, t.RefundImages).
		Scan(&t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("transaction repository: update %w", err)
	}
	return nil
}

func (s *txStore) lockTransaction(ctx context.Context, query string, args ...interface{}) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.tx.GetContext(ctx, &t, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("transaction repository: lock %w", err)
	}
	return &t, nil
}

// getUser читает пользователя через любой исполнитель запросов.
func getUser(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, name, role, location_lng, location_lat, wallet, price_per_unit, certifications, created_at, updated_at
		FROM users WHERE id = $1
	`
	if err := sqlx.GetContext(ctx, q, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("user repository: get %w", err)
	}
	return &user, nil
}

func creditWallet(ctx context.Context, e sqlx.ExecerContext, userID uuid.UUID, amount decimal.Decimal) error {
	result, err := e.ExecContext(ctx, `UPDATE users SET wallet = wallet + $2, updated_at = NOW() WHERE id = $1`, userID, amount)
	if err != nil {
		return fmt.Errorf("wallet repository: credit %w", err)
	}
	return common.RequireAffected(result, "wallet repository: credit")
}

func incrementBalance(ctx context.Context, q sqlx.QueryerContext, key string, delta decimal.Decimal) (decimal.Decimal, error) {
	var value decimal.Decimal
	query := `
		INSERT INTO balances (key, name, value)
		VALUES ($1, $1, $2)
		ON CONFLICT (key) DO UPDATE SET value = balances.value + EXCLUDED.value
		RETURNING value
	`
	if err := sqlx.GetContext(ctx, q, &value, query, key, delta); err != nil {
		return decimal.Zero, fmt.Errorf("balance repository: increment %s %w", key, err)
	}
	return value, nil
}
