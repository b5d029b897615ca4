package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/roadside-backend/internal/goroutine"
	"github.com/ignatzorin/roadside-backend/internal/logger"
)

// Presence отмечает подключённых пользователей во внешнем реестре.
type Presence interface {
	Touch(ctx context.Context, userID uuid.UUID) error
	Leave(ctx context.Context, userID uuid.UUID) error
}

// Hub управляет WebSocket клиентами этого инстанса.
// Сообщения для пользователей приходят через redis канал, поэтому любой инстанс может их опубликовать.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	rdb        redis.UniversalClient
	presence   Presence
	ctx        context.Context
	log        *logrus.Entry
}

type message struct {
	userID  uuid.UUID
	payload []byte
}

// NewHub создаёт новый хаб.
func NewHub(ctx context.Context, rdb redis.UniversalClient, presence Presence) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 32),
		rdb:        rdb,
		presence:   presence,
		ctx:        ctx,
		log:        logger.For("ws"),
	}
}

// Run запускает главный цикл хаба до отмены контекста.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.userID, msg.payload)
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	h.touch(client.userID)
	h.register <- client
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// BroadcastToUser отправляет событие локальным подключениям пользователя.
func (h *Hub) BroadcastToUser(userID uuid.UUID, event string, data any) error {
	// Сообщение для клиента строго следует контракту WebSocket API:
	// поле "type" содержит имя события, "data" содержит полезную нагрузку.
	raw, err := json.Marshal(map[string]any{"type": event, "data": data})
	if err != nil {
		return fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}

	select {
	case h.broadcast <- message{userID: userID, payload: raw}:
	case <-h.ctx.Done():
	}
	return nil
}

// IsConnected сообщает, есть ли у пользователя подключения к этому инстансу.
func (h *Hub) IsConnected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) touch(userID uuid.UUID) {
	if h.presence == nil {
		return
	}
	if err := h.presence.Touch(h.ctx, userID); err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("presence touch failed")
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.userID]
	if !ok {
		return
	}
	delete(clients, client)
	if len(clients) > 0 {
		return
	}
	delete(h.clients, client.userID)

	if h.presence != nil {
		userID := client.userID
		goroutine.SafeGo(func() {
			if err := h.presence.Leave(h.ctx, userID); err != nil {
				h.log.WithError(err).WithField("user_id", userID).Warn("presence leave failed")
			}
		})
	}
}

func (h *Hub) send(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
			// Медленный клиент: закрываем асинхронно, чтобы не блокировать цикл хаба.
			goroutine.SafeGo(client.Close)
		}
	}
}
