package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
)

// UUIDValidator проверяет, что параметры маршрута являются валидными UUID.
// Использование: group.POST("/transactions/:id/refund", UUIDValidator("id"), handler.DecideRefund)
func UUIDValidator(paramNames ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range paramNames {
			raw := c.Param(name)
			if raw == "" {
				abortWithAppError(c, apperror.New(apperror.ErrCodeBadRequest, "параметр "+name+" обязателен"))
				return
			}
			if _, err := uuid.Parse(raw); err != nil {
				abortWithAppError(c, apperror.New(apperror.ErrCodeValidation, "параметр "+name+" должен быть валидным UUID"))
				return
			}
		}
		c.Next()
	}
}
