package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/roadside-backend/internal/logger"
	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
	"github.com/ignatzorin/roadside-backend/internal/repository/common"
)

const settingCacheTTL = 5 * time.Minute

// SettingRepository хранилище справочника настроек.
type SettingRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Upsert(ctx context.Context, setting models.Setting) error
}

// Cache кэш с вычислением значения при промахе.
type Cache interface {
	GetOrSet(ctx context.Context, key string, ttl time.Duration, dst interface{}, fn func() (interface{}, error)) error
	Delete(ctx context.Context, key string) error
}

// cachedSetting кладётся в кэш и для отсутствующих ключей, чтобы не ходить в БД на каждый промах.
type cachedSetting struct {
	Value string
	Found bool
}

// SettingService читает настройки через кэш.
type SettingService struct {
	repo  SettingRepository
	cache Cache
	log   *logrus.Entry
}

// NewSettingService создаёт сервис настроек.
func NewSettingService(repo SettingRepository, cache Cache) *SettingService {
	return &SettingService{repo: repo, cache: cache, log: logger.For("settings")}
}

// Get возвращает значение настройки и признак её наличия.
func (s *SettingService) Get(ctx context.Context, key string) (string, bool, error) {
	var setting cachedSetting
	err := s.cache.GetOrSet(ctx, SettingCacheKey(key), settingCacheTTL, &setting, func() (interface{}, error) {
		value, err := s.repo.Get(ctx, key)
		if errors.Is(err, common.ErrNotFound) {
			return cachedSetting{}, nil
		}
		if err != nil {
			return nil, err
		}
		return cachedSetting{Value: value, Found: true}, nil
	})
	if err != nil {
		return "", false, apperror.Internal(err)
	}
	return setting.Value, setting.Found, nil
}

// Decimal читает числовую настройку; при отсутствии или ошибке возвращает fallback.
func (s *SettingService) Decimal(ctx context.Context, key string, fallback decimal.Decimal) decimal.Decimal {
	value, found, err := s.Get(ctx, key)
	if err != nil {
		s.log.WithField("key", key).WithError(err).Warn("не удалось прочитать настройку")
		return fallback
	}
	if !found || value == "" {
		return fallback
	}

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		s.log.WithFields(logrus.Fields{"key": key, "value": value}).Warn("настройка не является числом")
		return fallback
	}
	return parsed
}

// Set сохраняет настройку и сбрасывает кэш.
func (s *SettingService) Set(ctx context.Context, key, value string) error {
	if err := s.repo.Upsert(ctx, models.Setting{Key: key, Value: value}); err != nil {
		return apperror.Internal(err)
	}
	if err := s.cache.Delete(ctx, SettingCacheKey(key)); err != nil {
		s.log.WithField("key", key).WithError(err).Warn("не удалось сбросить кэш настройки")
	}
	return nil
}
