package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/roadside-backend/internal/config"
	"github.com/ignatzorin/roadside-backend/internal/db"
	"github.com/ignatzorin/roadside-backend/internal/geo"
	"github.com/ignatzorin/roadside-backend/internal/logger"
	"github.com/ignatzorin/roadside-backend/internal/metrics"
	"github.com/ignatzorin/roadside-backend/internal/presence"
	"github.com/ignatzorin/roadside-backend/internal/queue"
	"github.com/ignatzorin/roadside-backend/internal/redisdb"
	"github.com/ignatzorin/roadside-backend/internal/redlock"
	"github.com/ignatzorin/roadside-backend/internal/repository"
	"github.com/ignatzorin/roadside-backend/internal/scheduler"
	"github.com/ignatzorin/roadside-backend/internal/service"
	"github.com/ignatzorin/roadside-backend/internal/ws"
)

const schedulerLockKey = "scheduler:tick"

// application собранные зависимости процесса.
type application struct {
	cfg     *config.Config
	db      *sqlx.DB
	redis   *redis.Client
	metrics *metrics.Collector
	tokens  *service.TokenManager
	queue   *queue.Client
	hub     *ws.Hub

	users         *repository.UserRepository
	notifications *service.NotificationService
	settlement    *service.SettlementService
	balances      *service.BalanceService
	jobProcesses  *service.JobProcessService
	expiry        *service.ExpiryService
	queries       *service.JobProcessQueryService
	transactions  *service.TransactionQueryService
	scheduler     *scheduler.Scheduler

	closers []func() error
}

// newApplication подключается к postgres и redis и собирает сервисы.
func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	app := &application{cfg: cfg, metrics: metrics.NewCollector()}

	conn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("main: ошибка подключения к базе: %w", err)
	}
	app.db = conn
	app.closers = append(app.closers, conn.Close)

	rdb, err := redisdb.New(ctx, cfg.RedisURL)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("main: ошибка подключения к redis: %w", err)
	}
	app.redis = rdb
	app.closers = append(app.closers, rdb.Close)

	redisOpts, err := redisdb.ParseURL(cfg.RedisURL)
	if err != nil {
		app.close()
		return nil, err
	}
	app.queue = queue.NewClient(queue.RedisOpt(redisOpts))
	app.closers = append(app.closers, app.queue.Close)

	transportFee, err := decimal.NewFromString(cfg.JobProcess.TransportFee)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("main: неверная стоимость перевозки %q: %w", cfg.JobProcess.TransportFee, err)
	}

	app.tokens = service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)
	cache := service.NewCacheService(rdb)

	// Репозитории.
	store := repository.NewStore(conn)
	jobProcessRepo := repository.NewJobProcessRepository(conn)
	app.users = repository.NewUserRepository(conn)

	// Вебсокеты и живые уведомления.
	online := presence.NewRegistry(rdb, cfg.Presence.TTL)
	app.hub = ws.NewHub(ctx, rdb, online)

	// Сервисы.
	settings := service.NewSettingService(repository.NewSettingRepository(conn), cache)
	app.notifications = service.NewNotificationService(
		repository.NewNotificationRepository(conn), app.queue, online, app.hub, app.metrics)
	app.settlement = service.NewSettlementService(store, settings, app.notifications, app.metrics)
	app.balances = service.NewBalanceService(store, repository.NewBalanceRepository(conn), app.notifications)
	app.jobProcesses = service.NewJobProcessService(store, jobProcessRepo, app.settlement, app.notifications, cache, app.metrics, transportFee)
	app.expiry = service.NewExpiryService(jobProcessRepo,
		time.Duration(cfg.JobProcess.AutoRejectRequestedDelay)*time.Minute,
		time.Duration(cfg.JobProcess.AutoRejectServicedDelay)*time.Minute,
		app.metrics)

	var sweeper service.Sweeper
	if cfg.JobProcess.SweepOnRead {
		sweeper = app.expiry
	}
	geocoder := geo.NewGeocoder(&http.Client{Timeout: 5 * time.Second}, cfg.Geocoder.BaseURL, cfg.Geocoder.APIKey, cache)
	app.queries = service.NewJobProcessQueryService(jobProcessRepo, sweeper, settings, geocoder, cache)
	app.transactions = service.NewTransactionQueryService(repository.NewTransactionRepository(conn), app.users)

	app.scheduler = scheduler.New(app.expiry, app.settlement, redlock.NewLocker(rdb, schedulerLockKey, instanceID()), cfg.JobProcess.SweepInterval)

	return app, nil
}

// close освобождает ресурсы в обратном порядке.
func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.For("main").WithError(err).Warn("ошибка при освобождении ресурса")
		}
	}
	a.closers = nil
}

// instanceID значение блокировки планировщика, уникальное для процесса.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return host + "-" + uuid.NewString()
}
