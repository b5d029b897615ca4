package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/ignatzorin/roadside-backend/internal/logger"
	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
)

const rateLimitPrefix = "ratelimit"

var errTooManyRequests = &apperror.AppError{
	Code:       "TOO_MANY_REQUESTS",
	Message:    "слишком много запросов, попробуйте позже",
	HTTPStatus: http.StatusTooManyRequests,
}

// RateLimitMiddleware ограничивает количество запросов с одного IP.
// С redis счётчики общие для всех инстансов, без него хранятся в памяти.
func RateLimitMiddleware(rdb redis.UniversalClient, limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = 1 * time.Minute
	}

	rate := limiter.Rate{
		Period: period,
		Limit:  limit,
	}
	instance := limiter.New(newLimiterStore(rdb), rate)

	return func(c *gin.Context) {
		key := c.ClientIP()
		context, err := instance.Get(c, key)
		if err != nil {
			// счётчик недоступен, запрос пропускаем
			logger.For("rate_limit").WithError(err).Warn("не удалось проверить лимит запросов")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", context.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", context.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", context.Reset))

		if context.Reached {
			abortWithAppError(c, errTooManyRequests)
			return
		}

		c.Next()
	}
}

func newLimiterStore(rdb redis.UniversalClient) limiter.Store {
	if rdb != nil {
		store, err := sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: rateLimitPrefix})
		if err == nil {
			return store
		}
		logger.For("rate_limit").WithError(err).Warn("redis store недоступен, счётчики в памяти")
	}
	return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: rateLimitPrefix, CleanUpInterval: limiter.DefaultCleanUpInterval})
}
