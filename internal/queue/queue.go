package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/roadside-backend/internal/logger"
	"github.com/ignatzorin/roadside-backend/internal/models"
)

const (
	// TypeNotificationDeliver задача сохранения и живой доставки уведомления.
	TypeNotificationDeliver = "notification:deliver"
	// QueueNotifications очередь уведомлений.
	QueueNotifications = "notifications"

	notificationMaxRetry = 5
	notificationTimeout  = 30 * time.Second
)

// NotificationPayload тело задачи уведомления.
type NotificationPayload struct {
	ReceiverID uuid.UUID `json:"receiver_id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
}

// RedisOpt переводит опции go-redis в опции подключения asynq.
func RedisOpt(opts *redis.Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}
}

// NewNotificationTask создаёт задачу доставки.
func NewNotificationTask(n models.Notification) (*asynq.Task, error) {
	payload, err := json.Marshal(NotificationPayload{ReceiverID: n.UserID, Title: n.Title, Message: n.Message})
	if err != nil {
		return nil, fmt.Errorf("queue: marshal notification: %w", err)
	}
	return asynq.NewTask(TypeNotificationDeliver, payload,
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(notificationMaxRetry),
		asynq.Timeout(notificationTimeout),
	), nil
}

// Client ставит задачи в очередь.
type Client struct {
	client *asynq.Client
}

// NewClient создаёт клиента очереди.
func NewClient(opt asynq.RedisConnOpt) *Client {
	return &Client{client: asynq.NewClient(opt)}
}

// EnqueueNotification ставит уведомление в очередь доставки.
func (c *Client) EnqueueNotification(ctx context.Context, n models.Notification) error {
	task, err := NewNotificationTask(n)
	if err != nil {
		return err
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("queue: enqueue notification: %w", err)
	}

	logger.For("queue").WithFields(logrus.Fields{
		"task_id":     info.ID,
		"receiver_id": n.UserID,
	}).Debug("notification enqueued")
	return nil
}

// Close закрывает соединение клиента.
func (c *Client) Close() error {
	return c.client.Close()
}
