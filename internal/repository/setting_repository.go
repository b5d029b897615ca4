package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/repository/common"
)

// SettingRepository справочник настроек ключ-значение.
type SettingRepository struct {
	db *sqlx.DB
}

// NewSettingRepository создаёт экземпляр репозитория.
func NewSettingRepository(db *sqlx.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get возвращает значение настройки.
func (r *SettingRepository) Get(ctx context.Context, key string) (string, error) {
	setting, err := common.GetByField[models.Setting](ctx, r.db, "settings", "key", key)
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// Upsert сохраняет настройку.
func (r *SettingRepository) Upsert(ctx context.Context, setting models.Setting) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, setting.Key, setting.Value)
	if err != nil {
		return fmt.Errorf("setting repository: upsert %w", err)
	}
	return nil
}
