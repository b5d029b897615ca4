package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
	"github.com/ignatzorin/roadside-backend/internal/service"
)

type mockNotifications struct {
	mock.Mock
}

func (m *mockNotifications) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit, offset, unreadOnly)
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *mockNotifications) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *mockNotifications) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockNotifications) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func newNotificationRouter(actor service.Actor, notifications *mockNotifications) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withActor(actor))
	h := NewNotificationHandler(notifications)
	r.GET("/notifications", h.ListNotifications)
	r.GET("/notifications/unread-count", h.CountUnread)
	r.PUT("/notifications/read-all", h.MarkAllAsRead)
	r.PUT("/notifications/:id/read", h.MarkAsRead)
	return r
}

func TestNotificationHandler_List(t *testing.T) {
	actor := service.Actor{ID: uuid.New(), Role: models.UserRoleCustomer}
	notifications := new(mockNotifications)
	r := newNotificationRouter(actor, notifications)

	notifications.On("ListNotifications", mock.Anything, actor.ID, 100, 0, true).
		Return([]models.Notification{{ID: uuid.New(), UserID: actor.ID, Title: "Обновление процесса"}}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications?limit=500&offset=-4&unread_only=true", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeEnvelope(t, w)["data"], 1)
	notifications.AssertExpectations(t)
}

func TestNotificationHandler_CountUnread(t *testing.T) {
	actor := service.Actor{ID: uuid.New(), Role: models.UserRoleMechanic}
	notifications := new(mockNotifications)
	r := newNotificationRouter(actor, notifications)
	notifications.On("CountUnread", mock.Anything, actor.ID).Return(4, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications/unread-count", nil))

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 4, data["count"])
}

func TestNotificationHandler_MarkAsRead_NotFound(t *testing.T) {
	actor := service.Actor{ID: uuid.New(), Role: models.UserRoleCustomer}
	notifications := new(mockNotifications)
	r := newNotificationRouter(actor, notifications)
	id := uuid.New()
	notifications.On("MarkAsRead", mock.Anything, id, actor.ID).
		Return(apperror.New(apperror.ErrCodeNotFound, "уведомление не найдено"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/notifications/"+id.String()+"/read", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotificationHandler_MarkAsRead_InvalidID(t *testing.T) {
	actor := service.Actor{ID: uuid.New(), Role: models.UserRoleCustomer}
	notifications := new(mockNotifications)
	r := newNotificationRouter(actor, notifications)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/notifications/not-a-uuid/read", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotificationHandler_MarkAllAsRead(t *testing.T) {
	actor := service.Actor{ID: uuid.New(), Role: models.UserRoleCustomer}
	notifications := new(mockNotifications)
	r := newNotificationRouter(actor, notifications)
	notifications.On("MarkAllAsRead", mock.Anything, actor.ID).Return(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/notifications/read-all", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	notifications.AssertExpectations(t)
}
