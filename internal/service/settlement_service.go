package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ignatzorin/roadside-backend/internal/domain/valueobject"
	"github.com/ignatzorin/roadside-backend/internal/logger"
	"github.com/ignatzorin/roadside-backend/internal/metrics"
	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
	"github.com/ignatzorin/roadside-backend/internal/repository"
	"github.com/ignatzorin/roadside-backend/internal/repository/common"
)

var tracer = otel.Tracer("github.com/ignatzorin/roadside-backend/internal/service")

// releaseBatchSize сколько выплат обрабатывается за одну транзакцию sweep.
const releaseBatchSize = 100

// TxRunner открывает транзакцию хранилища.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx repository.TxStore) error) error
}

// SettingReader числовые настройки площадки.
type SettingReader interface {
	Decimal(ctx context.Context, key string, fallback decimal.Decimal) decimal.Decimal
}

// TransferRequest перевод от клиента исполнителю по процессу.
type TransferRequest struct {
	CustomerID   uuid.UUID
	ProviderID   uuid.UUID
	JobProcessID uuid.UUID
	Amount       decimal.Decimal
	Type         string
	// Status success делает перевод сразу зачисленным и невозвратным; пустой означает created.
	Status string
}

// RefundRequest запрос клиента на возврат с доказательствами.
type RefundRequest struct {
	CustomerID   uuid.UUID
	JobProcessID uuid.UUID
	Type         string
	Details      string
	Images       []string
}

// SettlementService переводы между кошельками, выплаты и возвраты.
type SettlementService struct {
	store    TxRunner
	settings SettingReader
	notifier Notifier
	metrics  *metrics.Collector
	log      *logrus.Entry
	now      func() time.Time
}

// NewSettlementService создаёт сервис расчётов.
func NewSettlementService(store TxRunner, settings SettingReader, notifier Notifier, m *metrics.Collector) *SettlementService {
	return &SettlementService{
		store:    store,
		settings: settings,
		notifier: notifier,
		metrics:  m,
		log:      logger.For("settlement"),
		now:      time.Now,
	}
}

// Transfer выполняет перевод в собственной транзакции и уведомляет исполнителя.
func (s *SettlementService) Transfer(ctx context.Context, req TransferRequest) (*models.Transaction, error) {
	var (
		t     *models.Transaction
		payer *models.User
	)
	err := s.store.InTx(ctx, func(tx repository.TxStore) error {
		var err error
		if t, err = s.TransferTx(ctx, tx, req); err != nil {
			return err
		}
		payer, err = tx.GetUser(ctx, req.CustomerID)
		return mapUserErr(err)
	})
	if err != nil {
		return nil, err
	}

	s.NotifyTransfer(ctx, t, payer.Name)
	return t, nil
}

// TransferTx списывает сумму с клиента и создаёт транзакцию внутри tx. Уведомление вызывающий
// отправляет сам после коммита через NotifyTransfer.
func (s *SettlementService) TransferTx(ctx context.Context, tx repository.TxStore, req TransferRequest) (t *models.Transaction, err error) {
	ctx, span := tracer.Start(ctx, "settlement.transfer")
	span.SetAttributes(
		attribute.String("job_process_id", req.JobProcessID.String()),
		attribute.String("type", req.Type),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		amount, _ := req.Amount.Float64()
		s.metrics.RecordTransfer(req.Type, amount, err)
	}()

	amount, err := valueobject.NewAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	if err := tx.DebitWallet(ctx, req.CustomerID, amount); err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientFunds):
			return nil, apperror.ErrInsufficientFunds
		case errors.Is(err, common.ErrNotFound):
			return nil, apperror.ErrUserNotFound
		}
		return nil, apperror.Internal(err)
	}

	status := req.Status
	if status == "" {
		status = models.TransactionStatusCreated
	}
	t = &models.Transaction{
		CustomerID:   req.CustomerID,
		ProviderID:   req.ProviderID,
		JobProcessID: req.JobProcessID,
		Type:         req.Type,
		Amount:       amount,
		Status:       status,
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return nil, apperror.Internal(err)
	}

	if status == models.TransactionStatusSuccess {
		if err := s.creditProvider(ctx, tx, t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// NotifyTransfer сообщает исполнителю о поступившем переводе.
func (s *SettlementService) NotifyTransfer(ctx context.Context, t *models.Transaction, payerName string) {
	s.notifier.Notify(ctx, t.ProviderID, "Перевод средств",
		fmt.Sprintf("Вы получили $%s от %s. Сумма скоро поступит на ваш кошелёк.", t.Amount.StringFixed(2), payerName))
}

// FinalizeTx переводит ожидающие транзакции процесса в success и зачисляет их исполнителю.
// Повторный вызов ничего не меняет: уже завершённые транзакции не выбираются.
func (s *SettlementService) FinalizeTx(ctx context.Context, tx repository.TxStore, jobProcessID uuid.UUID) ([]models.Transaction, error) {
	finalized, err := tx.FinalizeTransactions(ctx, jobProcessID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	for i := range finalized {
		if err := s.creditProvider(ctx, tx, &finalized[i]); err != nil {
			return nil, err
		}
	}
	return finalized, nil
}

// NotifyReleased сообщает исполнителям о зачислении.
func (s *SettlementService) NotifyReleased(ctx context.Context, released []models.Transaction) {
	for _, t := range released {
		s.notifier.Notify(ctx, t.ProviderID, "Баланс пополнен",
			fmt.Sprintf("$%s зачислено на ваш кошелёк.", t.Amount.StringFixed(2)))
	}
}

// ReleaseDue зачисляет исполнителям переводы старше transaction-transfer-hours без запроса возврата.
// Возвращает число зачисленных переводов.
func (s *SettlementService) ReleaseDue(ctx context.Context) (int, error) {
	started := s.now()
	defer s.metrics.ObserveSweep("release", started)

	hours := s.settings.Decimal(ctx, models.SettingTransactionTransferHours, decimal.NewFromInt(24))
	cutoff := started.Add(-time.Duration(hours.Mul(decimal.NewFromInt(int64(time.Hour))).IntPart()))

	total := 0
	for {
		var released []models.Transaction
		err := s.store.InTx(ctx, func(tx repository.TxStore) error {
			due, err := tx.LockDueTransactions(ctx, cutoff, releaseBatchSize)
			if err != nil {
				return apperror.Internal(err)
			}
			for i := range due {
				due[i].Status = models.TransactionStatusSuccess
				if err := tx.UpdateTransaction(ctx, &due[i]); err != nil {
					return apperror.Internal(err)
				}
				if err := s.creditProvider(ctx, tx, &due[i]); err != nil {
					return err
				}
			}
			released = due
			return nil
		})
		if err != nil {
			return total, err
		}

		total += len(released)
		s.NotifyReleased(ctx, released)
		if len(released) < releaseBatchSize {
			break
		}
	}

	if total > 0 {
		s.log.WithField("count", total).Info("выплаты зачислены исполнителям")
	}
	return total, nil
}

// RequestRefund отмечает ожидающий перевод клиента как оспоренный.
func (s *SettlementService) RequestRefund(ctx context.Context, req RefundRequest) (*models.Transaction, error) {
	var t *models.Transaction
	err := s.store.InTx(ctx, func(tx repository.TxStore) error {
		var err error
		t, err = tx.LockRefundCandidate(ctx, req.JobProcessID, req.Type, req.CustomerID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return apperror.ErrTransactionNotFound
			}
			return apperror.Internal(err)
		}
		// повторный запрос заменил бы доказательства, которые уже смотрит администратор
		if t.IsRefundRequested {
			return apperror.ErrRefundPending
		}

		details := req.Details
		t.IsRefundRequested = true
		t.RefundDetails = &details
		t.RefundImages = req.Images
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return apperror.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// DecideRefund закрывает запрос возврата: refunded возвращает деньги клиенту,
// иначе перевод получает исполнитель.
func (s *SettlementService) DecideRefund(ctx context.Context, transactionID uuid.UUID, refunded bool) (*models.Transaction, error) {
	var (
		t        *models.Transaction
		customer *models.User
	)
	err := s.store.InTx(ctx, func(tx repository.TxStore) error {
		var err error
		t, err = tx.LockRequestedRefund(ctx, transactionID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return apperror.ErrTransactionNotFound
			}
			return apperror.Internal(err)
		}

		if customer, err = tx.GetUser(ctx, t.CustomerID); err != nil {
			return mapUserErr(err)
		}

		t.IsRefundRequested = false
		if refunded {
			t.Status = models.TransactionStatusRefunded
			if err := tx.CreditWallet(ctx, t.CustomerID, t.Amount); err != nil {
				return mapUserErr(err)
			}
		} else {
			t.Status = models.TransactionStatusReceived
			if err := s.creditProvider(ctx, tx, t); err != nil {
				return err
			}
		}
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return apperror.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if refunded {
		s.notifier.Notify(ctx, t.CustomerID, "Возврат средств", "Ваш запрос на возврат одобрен.")
		s.notifier.Notify(ctx, t.ProviderID, "Возврат средств", fmt.Sprintf("Запрос на возврат от %s одобрен.", customer.Name))
	} else {
		s.notifier.Notify(ctx, t.CustomerID, "Возврат средств", "Ваш запрос на возврат отклонён.")
	}
	return t, nil
}

// creditProvider зачисляет исполнителю сумму за вычетом комиссии, комиссия уходит в charge-balance.
func (s *SettlementService) creditProvider(ctx context.Context, tx repository.TxStore, t *models.Transaction) error {
	rate := s.settings.Decimal(ctx, models.SettingCommissionRate, decimal.Zero)
	commission := valueobject.Commission(t.Amount, rate)

	if err := tx.CreditWallet(ctx, t.ProviderID, t.Amount.Sub(commission)); err != nil {
		return mapUserErr(err)
	}
	if commission.IsPositive() {
		if _, err := tx.IncrementBalance(ctx, models.BalanceKeyCharge, commission); err != nil {
			return apperror.Internal(err)
		}
	}
	return nil
}

func mapUserErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrNotFound) {
		return apperror.ErrUserNotFound
	}
	return apperror.Internal(err)
}
