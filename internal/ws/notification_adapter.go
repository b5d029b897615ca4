package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/roadside-backend/internal/models"
)

// LiveChannel redis канал живых уведомлений, общий для всех инстансов.
const LiveChannel = "notifications:live"

// EventNotification имя события уведомления в контракте WebSocket API.
const EventNotification = "notification"

type liveEnvelope struct {
	UserID       uuid.UUID           `json:"user_id"`
	Notification models.Notification `json:"notification"`
}

// Publish отправляет уведомление во все инстансы; каждый доставит его своим подключениям.
func (h *Hub) Publish(ctx context.Context, n models.Notification) error {
	raw, err := json.Marshal(liveEnvelope{UserID: n.UserID, Notification: n})
	if err != nil {
		return fmt.Errorf("ws: marshal live notification: %w", err)
	}
	if err := h.rdb.Publish(ctx, LiveChannel, raw).Err(); err != nil {
		return fmt.Errorf("ws: publish live notification: %w", err)
	}
	return nil
}

// Subscribe слушает канал живых уведомлений до отмены контекста хаба.
// ready закрывается, когда подписка подтверждена сервером.
func (h *Hub) Subscribe(ready chan<- struct{}) error {
	sub := h.rdb.Subscribe(h.ctx, LiveChannel)
	defer sub.Close()

	if _, err := sub.Receive(h.ctx); err != nil {
		return fmt.Errorf("ws: subscribe %s: %w", LiveChannel, err)
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-h.ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var envelope liveEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				h.log.WithError(err).Warn("skip malformed live notification")
				continue
			}
			if !h.IsConnected(envelope.UserID) {
				continue
			}
			if err := h.BroadcastToUser(envelope.UserID, EventNotification, envelope.Notification); err != nil {
				h.log.WithError(err).Warn("live notification broadcast failed")
			}
		}
	}
}
