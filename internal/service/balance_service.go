package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/roadside-backend/internal/logger"
	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
	"github.com/ignatzorin/roadside-backend/internal/repository"
)

// BalanceRepository глобальные балансы площадки.
type BalanceRepository interface {
	Increment(ctx context.Context, key string, delta decimal.Decimal) (decimal.Decimal, error)
	List(ctx context.Context) ([]models.Balance, error)
}

// BalanceService балансы площадки и пополнение кошельков.
type BalanceService struct {
	store    TxRunner
	repo     BalanceRepository
	notifier Notifier
	log      *logrus.Entry
}

// NewBalanceService создаёт сервис балансов.
func NewBalanceService(store TxRunner, repo BalanceRepository, notifier Notifier) *BalanceService {
	return &BalanceService{store: store, repo: repo, notifier: notifier, log: logger.For("balance")}
}

// List возвращает оба баланса; отсутствующие строки создаются с нулём.
func (s *BalanceService) List(ctx context.Context) ([]models.Balance, error) {
	balances, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	present := make(map[string]bool, len(balances))
	for _, b := range balances {
		present[b.Key] = true
	}

	seeded := false
	for _, key := range models.BalanceKeys {
		if present[key] {
			continue
		}
		if _, err := s.repo.Increment(ctx, key, decimal.Zero); err != nil {
			return nil, apperror.Internal(err)
		}
		seeded = true
	}
	if !seeded {
		return balances, nil
	}

	balances, err = s.repo.List(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return balances, nil
}

// Deposit пополняет кошелёк пользователя; деньги в кошельках учитываются в app-balance.
func (s *BalanceService) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.User, error) {
	if !amount.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма пополнения должна быть положительной")
	}

	var user *models.User
	err := s.store.InTx(ctx, func(tx repository.TxStore) error {
		if err := tx.CreditWallet(ctx, userID, amount); err != nil {
			return mapUserErr(err)
		}
		if _, err := tx.IncrementBalance(ctx, models.BalanceKeyApp, amount); err != nil {
			return apperror.Internal(err)
		}
		var err error
		user, err = tx.GetUser(ctx, userID)
		return mapUserErr(err)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": userID, "amount": amount.String()}).Info("кошелёк пополнен")
	s.notifier.Notify(ctx, userID, "Кошелёк пополнен", "На ваш кошелёк зачислено $"+amount.StringFixed(2)+".")
	return user, nil
}
