package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/roadside-backend/internal/logger"
	"github.com/ignatzorin/roadside-backend/internal/models"
)

// Deliverer сохраняет уведомление и доставляет его онлайн получателю.
type Deliverer interface {
	Deliver(ctx context.Context, n models.Notification) error
}

// HandleNotification обработчик задачи доставки. Битое тело не ретраится.
func HandleNotification(d Deliverer) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload NotificationPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("queue: decode notification: %v: %w", err, asynq.SkipRetry)
		}

		n := models.Notification{UserID: payload.ReceiverID, Title: payload.Title, Message: payload.Message}
		if err := d.Deliver(ctx, n); err != nil {
			retry, _ := asynq.GetRetryCount(ctx)
			logger.For("queue").WithError(err).WithFields(logrus.Fields{
				"receiver_id": payload.ReceiverID,
				"retry":       retry,
			}).Warn("notification delivery failed")
			return err
		}
		return nil
	}
}

// NewServeMux регистрирует обработчики задач.
func NewServeMux(d Deliverer) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeNotificationDeliver, HandleNotification(d))
	return mux
}

// NewServer создаёт сервер воркеров.
func NewServer(opt asynq.RedisConnOpt, concurrency int) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueNotifications: 1},
		Logger:      logger.For("asynq"),
	})
}
