package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "presence:"

// Registry хранит в redis, какие пользователи сейчас подключены к websocket.
// Запись живёт ttl и продлевается при каждом pong, поэтому падение инстанса не оставляет вечных "онлайн".
type Registry struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRegistry создаёт реестр присутствия.
func NewRegistry(rdb redis.Cmdable, ttl time.Duration) *Registry {
	return &Registry{rdb: rdb, ttl: ttl}
}

func key(userID uuid.UUID) string {
	return keyPrefix + userID.String()
}

// Touch отмечает пользователя онлайн на ttl.
func (r *Registry) Touch(ctx context.Context, userID uuid.UUID) error {
	if err := r.rdb.Set(ctx, key(userID), 1, r.ttl).Err(); err != nil {
		return fmt.Errorf("presence: touch %w", err)
	}
	return nil
}

// Leave снимает отметку.
func (r *Registry) Leave(ctx context.Context, userID uuid.UUID) error {
	if err := r.rdb.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("presence: leave %w", err)
	}
	return nil
}

// IsOnline проверяет, подключён ли пользователь хотя бы к одному инстансу.
func (r *Registry) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	n, err := r.rdb.Exists(ctx, key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("presence: exists %w", err)
	}
	return n > 0, nil
}
