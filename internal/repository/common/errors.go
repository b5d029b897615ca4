package common

import (
	"errors"

	"github.com/lib/pq"
)

// Ошибки хранилища. Сервисы переводят их в AppError.
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrInvalidInput  = errors.New("invalid repository input")
)

const uniqueViolation pq.ErrorCode = "23505"

// IsUniqueViolation сообщает, что postgres отклонил запись уникальным индексом.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
