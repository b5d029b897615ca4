package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const localCacheSize = 10000

// CacheService двухуровневый кэш: локальный TinyLFU поверх redis.
type CacheService struct {
	cache *cache.Cache
}

// NewCacheService создаёт кэш. Без redis работает только локальный уровень.
func NewCacheService(rdb redis.UniversalClient) *CacheService {
	opts := &cache.Options{
		LocalCache: cache.NewTinyLFU(localCacheSize, time.Minute),
	}
	if rdb != nil {
		opts.Redis = rdb
	}
	return &CacheService{cache: cache.New(opts)}
}

// GetOrSet читает значение в dst или вычисляет его через fn и кладёт в кэш.
// Одновременные промахи по одному ключу вычисляются один раз.
func (cs *CacheService) GetOrSet(ctx context.Context, key string, ttl time.Duration, dst interface{}, fn func() (interface{}, error)) error {
	return cs.cache.Once(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: dst,
		TTL:   ttl,
		Do: func(*cache.Item) (interface{}, error) {
			return fn()
		},
	})
}

// Delete удаляет ключ из обоих уровней.
func (cs *CacheService) Delete(ctx context.Context, key string) error {
	err := cs.cache.Delete(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}

// Cache key generators
func SettingCacheKey(key string) string {
	return "setting:" + key
}

func ReputationCacheKey(providerID uuid.UUID) string {
	return "reputation:" + providerID.String()
}
