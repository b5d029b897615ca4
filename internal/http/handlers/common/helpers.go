package common

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/roadside-backend/internal/dto"
	"github.com/ignatzorin/roadside-backend/internal/http/middleware"
	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
	"github.com/ignatzorin/roadside-backend/internal/service"
)

// ErrInvalidUUID is returned when UUID parsing fails
var ErrInvalidUUID = apperror.New(apperror.ErrCodeBadRequest, "неверный формат UUID")

// CurrentActor extracts the caller put into the context by AuthMiddleware
func CurrentActor(c *gin.Context) (service.Actor, error) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return service.Actor{}, apperror.ErrUnauthorized
	}
	return actor, nil
}

// ParseUUIDParam parses UUID from URL parameter
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, apperror.New(apperror.ErrCodeBadRequest, fmt.Sprintf("параметр %s отсутствует", paramName))
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}

	return parsed, nil
}

// Validatable is implemented by request DTOs
type Validatable interface {
	Validate() error
}

// BindAndValidate binds JSON request and runs its Validate
func BindAndValidate(c *gin.Context, req Validatable) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, "ошибка валидации запроса: "+err.Error())
	}
	return Validate(req)
}

// Validate runs ozzo validation and converts its error into a validation AppError
func Validate(req Validatable) error {
	if err := req.Validate(); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	return nil
}

// RespondError sends a standardized error response
func RespondError(c *gin.Context, err error) {
	middleware.AbortWithError(c, err)
}

// RespondSuccess sends a standardized success response
func RespondSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, dto.Envelope{
		Code:    statusCode,
		Message: message,
		Data:    data,
	})
}

// RespondPage sends a page of items with pagination metadata
func RespondPage(c *gin.Context, message string, data interface{}, pagination dto.Pagination) {
	c.JSON(http.StatusOK, dto.Envelope{
		Code:       http.StatusOK,
		Message:    message,
		Data:       data,
		Pagination: &pagination,
	})
}

// ParseIntQuery safely reads an integer query parameter with a fallback value
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPagination extracts limit and offset from query parameters with defaults
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", 20)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return
}
