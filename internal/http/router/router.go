package router

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ignatzorin/roadside-backend/internal/config"
	"github.com/ignatzorin/roadside-backend/internal/domain/valueobject"
	"github.com/ignatzorin/roadside-backend/internal/http/handlers"
	"github.com/ignatzorin/roadside-backend/internal/http/middleware"
	"github.com/ignatzorin/roadside-backend/internal/metrics"
	"github.com/ignatzorin/roadside-backend/internal/models"
)

// Handlers набор хэндлеров приложения.
type Handlers struct {
	Health       *handlers.HealthHandler
	JobProcess   *handlers.JobProcessHandler
	Transaction  *handlers.TransactionHandler
	Admin        *handlers.AdminHandler
	Notification *handlers.NotificationHandler
	WS           *handlers.WSHandler
}

// Deps общая инфраструктура для middleware. Redis и Metrics могут быть nil.
type Deps struct {
	Tokens  middleware.TokenParser
	Redis   redis.UniversalClient
	Metrics *metrics.Collector
}

func SetupRouter(cfg *config.Config, h Handlers, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	r.Use(deps.Metrics.GinMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	// фотографии к запросам возврата: только владельцу и администратору, без листинга каталогов
	media := r.Group(cfg.MediaPublicPath)
	media.Use(middleware.AuthMiddleware(deps.Tokens))
	media.GET("/:ownerId/:file", h.Transaction.RefundImage)

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(deps.Redis, cfg.RateLimitLimit, cfg.RateLimitPeriod))

	// токен приходит в query, заголовок браузер для websocket не передаёт
	api.GET("/ws", h.WS.Handle)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(deps.Tokens))

	jobProcesses := protected.Group("/job-processes")
	{
		jobProcesses.GET("/share-location", h.JobProcess.ShareLocation)

		jobProcesses.POST("/provider/do-request",
			middleware.RequireFixedSide(valueobject.RoleProvider), h.JobProcess.DoRequest)
		jobProcesses.POST("/provider/add-services/:id",
			middleware.RequireFixedSide(valueobject.RoleProvider), middleware.UUIDValidator("id"), h.JobProcess.AddServices)
		jobProcesses.POST("/customer/feedback/:id",
			middleware.RequireFixedSide(valueobject.RoleCustomer), middleware.UUIDValidator("id"), h.JobProcess.Feedback)

		jobProcesses.GET("/:role", middleware.RequireSide("role"), h.JobProcess.List)
		jobProcesses.GET("/:role/:id", middleware.RequireSide("role"), middleware.UUIDValidator("id"), h.JobProcess.Get)
		jobProcesses.PUT("/:role/:id", middleware.RequireSide("role"), middleware.UUIDValidator("id"), h.JobProcess.UpdateStatus)
	}

	transactions := protected.Group("/transactions")
	{
		transactions.GET("", h.Transaction.List)
		transactions.POST("/refund/:jobProcessId",
			middleware.RequireRoles(models.UserRoleCustomer), middleware.UUIDValidator("jobProcessId"), h.Transaction.RequestRefund)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", h.Notification.ListNotifications)
		notifications.GET("/unread-count", h.Notification.CountUnread)
		notifications.PUT("/read-all", h.Notification.MarkAllAsRead)
		notifications.PUT("/:id/read", middleware.UUIDValidator("id"), h.Notification.MarkAsRead)
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRoles(models.UserRoleAdmin))
	{
		admin.POST("/transactions/release", h.Admin.Release)
		admin.POST("/transactions/:id/refund", middleware.UUIDValidator("id"), h.Admin.DecideRefund)
		admin.POST("/wallets/:userId/deposit", middleware.UUIDValidator("userId"), h.Admin.Deposit)
		admin.GET("/balances", h.Admin.ListBalances)
	}

	return r
}
