package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest        ErrorCode = "BAD_REQUEST"
	ErrCodeConflict          ErrorCode = "CONFLICT"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError     ErrorCode = "DATABASE_ERROR"
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду и сообщению, чтобы errors.Is работал с предопределёнными значениями.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Internal оборачивает неожиданную ошибку хранилища.
func Internal(err error) *AppError {
	return Wrap(err, ErrCodeInternal, "внутренняя ошибка сервера")
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeInsufficientFunds:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HTTPStatus возвращает HTTP код для любой ошибки: AppError несёт свой, остальные считаются внутренними.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeForbidden
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

func IsInsufficientFunds(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeInsufficientFunds
}

var (
	ErrJobProcessNotFound  = New(ErrCodeNotFound, "процесс заявки не найден")
	ErrJobNotAvailable     = New(ErrCodeNotFound, "заявка сейчас недоступна, попробуйте позже или выберите другую")
	ErrAlreadyRequested    = New(ErrCodeNotFound, "вы уже откликнулись на эту заявку")
	ErrTransactionNotFound = New(ErrCodeNotFound, "транзакция не найдена или возврат не запрошен")
	ErrUserNotFound        = New(ErrCodeNotFound, "пользователь не найден")
	ErrRefundPending       = New(ErrCodeConflict, "возврат по этому переводу уже запрошен")
	ErrStatusNotPermitted  = New(ErrCodeUnauthorized, "нет доступа к этому статусу")
	ErrInsufficientFunds   = New(ErrCodeInsufficientFunds, "недостаточно средств, пополните кошелёк")
	ErrNegativeAmount      = New(ErrCodeValidation, "сумма не может быть отрицательной")
	ErrInvalidRole         = New(ErrCodeValidation, "некорректная роль")
	ErrInvalidStatus       = New(ErrCodeValidation, "некорректный статус")
	ErrNotTowTruck         = New(ErrCodeBadRequest, "вы не являетесь эвакуатором")
	ErrJobRouteMissing     = New(ErrCodeBadRequest, "у заявки нет точки отправления или назначения")
	ErrUnauthorized        = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden           = New(ErrCodeForbidden, "недостаточно прав")
)
