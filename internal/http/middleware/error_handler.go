package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/roadside-backend/internal/dto"
	"github.com/ignatzorin/roadside-backend/internal/logger"
	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно.
// Ошибки, добавленные через c.Error, отдаются в общем формате; внутренние маскируются.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Проверяем, не был ли уже отправлен ответ
		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		c.JSON(apperror.HTTPStatus(err), errorEnvelope(c, err))
	}
}

// AbortWithError прерывает запрос с ошибкой в общем формате.
func AbortWithError(c *gin.Context, err error) {
	abortWithAppError(c, err)
}

func abortWithAppError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperror.HTTPStatus(err), errorEnvelope(c, err))
}

func errorEnvelope(c *gin.Context, err error) dto.Envelope {
	status := apperror.HTTPStatus(err)

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || status >= http.StatusInternalServerError {
		logger.Ctx(c.Request.Context(), "http").WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).WithError(err).Error("Request error")
	}
	if appErr == nil {
		return dto.Envelope{Code: status, Message: "внутренняя ошибка сервера", ErrorCode: string(apperror.ErrCodeInternal)}
	}
	return dto.Envelope{Code: status, Message: appErr.Message, ErrorCode: string(appErr.Code)}
}
