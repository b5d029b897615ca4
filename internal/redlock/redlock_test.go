package redlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestLocker_Lock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "scheduler:sweep", "owner-1")

	mock.ExpectSetNX("scheduler:sweep", "owner-1", 30*time.Second).SetVal(true)

	assert.NoError(t, locker.Lock(context.Background(), 30*time.Second))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_Lock_Held(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "scheduler:sweep", "owner-2")

	mock.ExpectSetNX("scheduler:sweep", "owner-2", 30*time.Second).SetVal(false)

	err := locker.Lock(context.Background(), 30*time.Second)
	assert.True(t, errors.Is(err, ErrLockHeld))
}

func TestLocker_Lock_RedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "scheduler:sweep", "owner-1")

	mock.ExpectSetNX("scheduler:sweep", "owner-1", time.Second).SetErr(errors.New("connection refused"))

	err := locker.Lock(context.Background(), time.Second)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrLockHeld))
}

func TestLocker_Unlock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "scheduler:sweep", "owner-1")

	mock.ExpectEval(unlockScript, []string{"scheduler:sweep"}, "owner-1").SetVal(int64(1))

	assert.NoError(t, locker.Unlock(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_Unlock_NotHolder(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "scheduler:sweep", "owner-1")

	mock.ExpectEval(unlockScript, []string{"scheduler:sweep"}, "owner-1").SetVal(int64(0))

	assert.True(t, errors.Is(locker.Unlock(context.Background()), ErrNotHolder))
}

func TestLocker_Extend(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "scheduler:sweep", "owner-1")

	mock.ExpectEval(extendScript, []string{"scheduler:sweep"}, "owner-1", "5000").SetVal(int64(1))

	assert.NoError(t, locker.Extend(context.Background(), 5*time.Second))
	assert.NoError(t, mock.ExpectationsWereMet())
}
