package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/ignatzorin/roadside-backend/internal/logger"
)

// Logger интерфейс для логирования ошибок
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	logger Logger
}

// NewRecoveryHandler создает новый обработчик
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(fn func()) {
	go rh.run(fn)
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic.
// Контекст отвязывается от отмены родителя: побочные эффекты переживают завершение HTTP запроса.
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	detached := context.WithoutCancel(ctx)
	go rh.run(func() { fn(detached) })
}

func (rh *RecoveryHandler) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			rh.logger.Errorf("Panic in goroutine: %v\nStack trace:\n%s", r, debug.Stack())
		}
	}()
	fn()
}

// componentLogger пишет в общий logrus логгер, который может быть инициализирован позже пакета.
type componentLogger struct{}

func (componentLogger) Errorf(format string, args ...interface{}) {
	logger.For("goroutine").Errorf(format, args...)
}

// DefaultRecoveryHandler - глобальный обработчик с логированием через logrus
var DefaultRecoveryHandler = NewRecoveryHandler(componentLogger{})

// SafeGo - упрощенная функция для запуска безопасной горутины
func SafeGo(fn func()) {
	DefaultRecoveryHandler.SafeGo(fn)
}

// SafeGoWithContext - упрощенная функция для запуска безопасной горутины с контекстом
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, fn)
}
