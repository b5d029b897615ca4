package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/roadside-backend/internal/dto"
	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
)

// TransactionReader история переводов.
type TransactionReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, int, error)
	ListByJobProcess(ctx context.Context, jobProcessID uuid.UUID) ([]models.Transaction, error)
}

// UserReader профили участников пачкой.
type UserReader interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error)
}

// TransactionQueryService история переводов пользователя.
type TransactionQueryService struct {
	transactions TransactionReader
	users        UserReader
}

// NewTransactionQueryService создаёт сервис.
func NewTransactionQueryService(transactions TransactionReader, users UserReader) *TransactionQueryService {
	return &TransactionQueryService{transactions: transactions, users: users}
}

// List возвращает страницу переводов, где пользователь плательщик или получатель.
func (s *TransactionQueryService) List(ctx context.Context, userID uuid.UUID, page, limit int) ([]dto.TransactionItem, dto.Pagination, error) {
	if page <= 0 {
		page = defaultPage
	}
	if limit <= 0 || limit > 100 {
		limit = defaultLimit
	}

	transactions, total, err := s.transactions.ListByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, dto.Pagination{}, apperror.Internal(err)
	}

	items, err := s.withNames(ctx, transactions)
	if err != nil {
		return nil, dto.Pagination{}, err
	}
	return items, dto.NewPagination(total, page, limit), nil
}

// ForJobProcess возвращает переводы процесса, если пользователь его сторона.
func (s *TransactionQueryService) ForJobProcess(ctx context.Context, userID, jobProcessID uuid.UUID) ([]dto.TransactionItem, error) {
	transactions, err := s.transactions.ListByJobProcess(ctx, jobProcessID)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	own := transactions[:0]
	for _, t := range transactions {
		if t.CustomerID == userID || t.ProviderID == userID {
			own = append(own, t)
		}
	}
	if len(own) == 0 {
		return []dto.TransactionItem{}, nil
	}
	return s.withNames(ctx, own)
}

func (s *TransactionQueryService) withNames(ctx context.Context, transactions []models.Transaction) ([]dto.TransactionItem, error) {
	ids := make([]uuid.UUID, 0, len(transactions)*2)
	seen := make(map[uuid.UUID]bool, len(transactions)*2)
	for _, t := range transactions {
		for _, id := range []uuid.UUID{t.CustomerID, t.ProviderID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	items := make([]dto.TransactionItem, 0, len(transactions))
	for _, t := range transactions {
		items = append(items, dto.TransactionItem{
			Transaction:  t,
			CustomerName: users[t.CustomerID].Name,
			ProviderName: users[t.ProviderID].Name,
		})
	}
	return items, nil
}
