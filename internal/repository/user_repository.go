package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/roadside-backend/internal/models"
)

// UserRepository читает профили участников; сами профили ведёт внешний модуль пользователей.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return getUser(ctx, r.db, id)
}

// GetByIDs возвращает пользователей пачкой, ключ карты - идентификатор.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error) {
	result := make(map[uuid.UUID]models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `
		SELECT id, name, role, location_lng, location_lat, wallet, price_per_unit, certifications, created_at, updated_at
		FROM users WHERE id = ANY($1)
	`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(uuidStrings(ids))); err != nil {
		return nil, fmt.Errorf("user repository: get by ids %w", err)
	}

	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
