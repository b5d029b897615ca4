package handlers

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ignatzorin/roadside-backend/internal/http/handlers/common"
	"github.com/ignatzorin/roadside-backend/internal/http/middleware"
	"github.com/ignatzorin/roadside-backend/internal/logger"
	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
	"github.com/ignatzorin/roadside-backend/internal/ws"
)

// WSHandler отвечает за установку WebSocket соединений.
type WSHandler struct {
	hub      *ws.Hub
	tokens   middleware.TokenParser
	upgrader websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер. Пустой allowedOrigins пропускает любой Origin.
func NewWSHandler(hub *ws.Hub, tokens middleware.TokenParser, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:    hub,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

// Handle обслуживает GET /api/ws?token=...
func (h *WSHandler) Handle(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		common.RespondError(c, apperror.New(apperror.ErrCodeUnauthorized, "access токен обязателен"))
		return
	}

	actor, err := h.tokens.ParseAccess(rawToken)
	if err != nil {
		common.RespondError(c, apperror.New(apperror.ErrCodeUnauthorized, "невалидный access токен"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		logger.For("ws").WithError(err).WithField("user_id", actor.ID).Debug("websocket upgrade failed")
		return
	}

	client := ws.NewClient(conn, h.hub, actor.ID)
	h.hub.Register(client)

	client.Run(c.Request.Context())
}
