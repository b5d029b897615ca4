package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/roadside-backend/internal/goroutine"
	"github.com/ignatzorin/roadside-backend/internal/logger"
	"github.com/ignatzorin/roadside-backend/internal/metrics"
	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
	"github.com/ignatzorin/roadside-backend/internal/repository/common"
)

// NotificationRepository описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// NotificationEnqueuer ставит доставку уведомления в очередь.
type NotificationEnqueuer interface {
	EnqueueNotification(ctx context.Context, n models.Notification) error
}

// PresenceChecker отвечает, подключён ли пользователь к websocket.
type PresenceChecker interface {
	IsOnline(ctx context.Context, userID uuid.UUID) (bool, error)
}

// LivePublisher отдаёт уведомление в живой канал.
type LivePublisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// Notifier отправляет уведомление без ожидания результата.
type Notifier interface {
	Notify(ctx context.Context, receiverID uuid.UUID, title, message string)
}

var errNotificationNotFound = apperror.New(apperror.ErrCodeNotFound, "уведомление не найдено")

// NotificationService содержит бизнес-логику работы с уведомлениями.
type NotificationService struct {
	repo      NotificationRepository
	queue     NotificationEnqueuer
	presence  PresenceChecker
	publisher LivePublisher
	metrics   *metrics.Collector
	log       *logrus.Entry
}

// NewNotificationService создаёт новый сервис уведомлений. queue, presence и publisher могут быть nil:
// тогда уведомление сохраняется сразу и без живой доставки.
func NewNotificationService(repo NotificationRepository, queue NotificationEnqueuer, presence PresenceChecker, publisher LivePublisher, m *metrics.Collector) *NotificationService {
	return &NotificationService{
		repo:      repo,
		queue:     queue,
		presence:  presence,
		publisher: publisher,
		metrics:   m,
		log:       logger.For("notification"),
	}
}

// Notify ставит уведомление в очередь в отдельной горутине и сразу возвращается.
// Ошибки только логируются.
func (s *NotificationService) Notify(ctx context.Context, receiverID uuid.UUID, title, message string) {
	n := models.Notification{UserID: receiverID, Title: title, Message: message}
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		s.dispatch(ctx, n)
	})
}

func (s *NotificationService) dispatch(ctx context.Context, n models.Notification) {
	fields := logrus.Fields{"user_id": n.UserID, "title": n.Title}

	if s.queue != nil {
		err := s.queue.EnqueueNotification(ctx, n)
		if err == nil {
			s.metrics.RecordNotification("enqueued")
			return
		}
		s.log.WithFields(fields).WithError(err).Warn("очередь недоступна, доставляем напрямую")
	}

	if err := s.Deliver(ctx, n); err != nil {
		s.metrics.RecordNotification("failed")
		s.log.WithFields(fields).WithError(err).Error("не удалось доставить уведомление")
	}
}

// Deliver сохраняет уведомление и, если получатель онлайн, публикует его в живой канал.
func (s *NotificationService) Deliver(ctx context.Context, n models.Notification) error {
	if err := s.repo.Create(ctx, &n); err != nil {
		return err
	}
	s.metrics.RecordNotification("stored")

	if s.presence == nil || s.publisher == nil {
		return nil
	}

	online, err := s.presence.IsOnline(ctx, n.UserID)
	if err != nil {
		// уведомление уже сохранено, пользователь увидит его в списке
		s.log.WithField("user_id", n.UserID).WithError(err).Warn("не удалось проверить присутствие")
		return nil
	}
	if !online {
		return nil
	}

	if err := s.publisher.Publish(ctx, n); err != nil {
		s.log.WithField("user_id", n.UserID).WithError(err).Warn("не удалось опубликовать уведомление")
		return nil
	}
	s.metrics.RecordNotification("live")
	return nil
}

// ListNotifications возвращает список уведомлений пользователя.
func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.repo.List(ctx, userID, limit, offset, unreadOnly)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return items, nil
}

// MarkAsRead отмечает уведомление пользователя как прочитанное.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.repo.MarkAsRead(ctx, id, userID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return errNotificationNotFound
		}
		return apperror.Internal(err)
	}
	return nil
}

// MarkAllAsRead отмечает все уведомления пользователя как прочитанные.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.MarkAllAsRead(ctx, userID); err != nil {
		return apperror.Internal(err)
	}
	return nil
}

// CountUnread возвращает количество непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperror.Internal(err)
	}
	return count, nil
}
