package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const healthTimeout = 5 * time.Second

// probe одна проверка зависимости. Упавшая critical проверка переводит сервис в unhealthy,
// остальные только помечаются degraded.
type probe struct {
	name     string
	critical bool
	check    func(ctx context.Context) error
}

// HealthHandler GET /health: postgres обязателен, redis нет.
type HealthHandler struct {
	db     *sqlx.DB
	probes []probe
}

// NewHealthHandler rdb может быть nil.
func NewHealthHandler(db *sqlx.DB, rdb redis.UniversalClient) *HealthHandler {
	probes := []probe{{name: "database", critical: true, check: db.PingContext}}
	if rdb != nil {
		probes = append(probes, probe{name: "redis", check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	return &HealthHandler{db: db, probes: probes}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Timestamp: time.Now(), Checks: make(map[string]string, len(h.probes)+1)}
	for _, p := range h.probes {
		err := p.check(ctx)
		switch {
		case err == nil:
			resp.Checks[p.name] = "healthy"
		case p.critical:
			resp.Checks[p.name] = "unhealthy: " + err.Error()
			resp.Status = "unhealthy"
		default:
			resp.Checks[p.name] = "degraded: " + err.Error()
		}
	}

	if stats := h.db.Stats(); stats.MaxOpenConnections > 0 && stats.OpenConnections >= stats.MaxOpenConnections {
		resp.Checks["connection_pool"] = "warning: pool exhausted"
	} else {
		resp.Checks["connection_pool"] = "healthy"
	}

	code := http.StatusOK
	if resp.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}
