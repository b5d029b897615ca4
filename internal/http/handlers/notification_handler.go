package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/roadside-backend/internal/dto"
	"github.com/ignatzorin/roadside-backend/internal/http/handlers/common"
	"github.com/ignatzorin/roadside-backend/internal/models"
)

// Notifications чтение и отметка уведомлений пользователя.
type Notifications interface {
	ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// NotificationHandler обслуживает маршруты уведомлений.
type NotificationHandler struct {
	notifications Notifications
}

// NewNotificationHandler создаёт новый хэндлер.
func NewNotificationHandler(notifications Notifications) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListNotifications обрабатывает GET /notifications.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	unreadOnly := c.Query("unread_only") == "true"

	notifications, err := h.notifications.ListNotifications(c.Request.Context(), actor.ID, limit, offset, unreadOnly)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "Уведомления получены", notifications)
}

// CountUnread обрабатывает GET /notifications/unread-count.
func (h *NotificationHandler) CountUnread(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	count, err := h.notifications.CountUnread(c.Request.Context(), actor.ID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "Количество непрочитанных", dto.UnreadCountResponse{Count: count})
}

// MarkAsRead обрабатывает PUT /notifications/:id/read.
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	if err := h.notifications.MarkAsRead(c.Request.Context(), id, actor.ID); err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "Уведомление прочитано", nil)
}

// MarkAllAsRead обрабатывает PUT /notifications/read-all.
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	if err := h.notifications.MarkAllAsRead(c.Request.Context(), actor.ID); err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "Все уведомления прочитаны", nil)
}
