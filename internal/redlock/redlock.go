package redlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockHeld возвращается, когда блокировку держит другой владелец.
var ErrLockHeld = errors.New("redlock: lock is already held")

// ErrNotHolder возвращается, когда блокировка истекла или принадлежит другому владельцу.
var ErrNotHolder = errors.New("redlock: lock expired or held by another owner")

const (
	unlockScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	extendScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('pexpire', KEYS[1], ARGV[2]) else return 0 end"
)

// Locker блокировка на одном ключе redis. value отличает владельца.
type Locker struct {
	client redis.UniversalClient
	key    string
	value  string
}

// NewLocker создаёт блокировку.
func NewLocker(client redis.UniversalClient, key, value string) *Locker {
	return &Locker{client: client, key: key, value: value}
}

// Lock захватывает блокировку на ttl.
func (l *Locker) Lock(ctx context.Context, ttl time.Duration) error {
	ok, err := l.client.SetNX(ctx, l.key, l.value, ttl).Result()
	if err != nil {
		return fmt.Errorf("redlock: lock %s: %w", l.key, err)
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

// Unlock снимает блокировку, только если она всё ещё наша.
func (l *Locker) Unlock(ctx context.Context) error {
	result, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("redlock: unlock %s: %w", l.key, err)
	}
	if result == int64(0) {
		return ErrNotHolder
	}
	return nil
}

// Extend продлевает блокировку.
func (l *Locker) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := l.client.Eval(ctx, extendScript, []string{l.key}, l.value, fmt.Sprintf("%d", ttl.Milliseconds())).Result()
	if err != nil {
		return fmt.Errorf("redlock: extend %s: %w", l.key, err)
	}
	if result == int64(0) {
		return ErrNotHolder
	}
	return nil
}
