package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/repository/common"
)

const notificationColumns = `id, user_id, title, message, is_read, created_at`

// NotificationRepository история уведомлений пользователей.
type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create сохраняет уведомление и заполняет id и created_at.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO notifications (user_id, title, message, is_read)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, n.UserID, n.Title, n.Message, n.IsRead).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("notification repository: create %w", err)
	}
	return nil
}

// List уведомления пользователя, новые первыми. limit 0 снимает ограничение.
func (r *NotificationRepository) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	where := "user_id = $1"
	if unreadOnly {
		where += " AND is_read = FALSE"
	}
	query := fmt.Sprintf("SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC", notificationColumns, where)

	args := []interface{}{userID}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	items := make([]models.Notification, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("notification repository: list %w", err)
	}
	return items, nil
}

// MarkAsRead отмечает уведомление прочитанным. Чужое или отсутствующее даёт common.ErrNotFound.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("notification repository: mark as read %w", err)
	}
	return common.RequireAffected(result, "notification repository: mark as read")
}

func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID); err != nil {
		return fmt.Errorf("notification repository: mark all as read %w", err)
	}
	return nil
}

// CountUnread число непрочитанных уведомлений для бейджа.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID); err != nil {
		return 0, fmt.Errorf("notification repository: count unread %w", err)
	}
	return count, nil
}
