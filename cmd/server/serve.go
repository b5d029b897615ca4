package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/roadside-backend/internal/goroutine"
	"github.com/ignatzorin/roadside-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/roadside-backend/internal/http/router"
	"github.com/ignatzorin/roadside-backend/internal/logger"
	"github.com/ignatzorin/roadside-backend/internal/queue"
	"github.com/ignatzorin/roadside-backend/internal/redisdb"
	"github.com/ignatzorin/roadside-backend/internal/storage"
	"github.com/ignatzorin/roadside-backend/internal/tracing"
)

func serveCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "start the HTTP API (with embedded worker and scheduler when enabled)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	cfg := c.cfg
	log := logger.For("main")

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.WithError(err).Warn("ошибка остановки трассировки")
		}
	}()

	app, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close()

	images, err := storage.NewImageStorage(cfg.MediaStoragePath, cfg.MediaPublicPath, cfg.MaxUploadSizeMB)
	if err != nil {
		return fmt.Errorf("main: не удалось подготовить файловое хранилище: %w", err)
	}

	// Живые уведомления из всех инстансов.
	go app.hub.Run()
	goroutine.SafeGo(func() {
		if err := app.hub.Subscribe(nil); err != nil {
			log.WithError(err).Error("подписка на живые уведомления завершилась")
		}
	})

	if cfg.Worker.Embedded {
		redisOpts, err := redisdb.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		worker := queue.NewServer(queue.RedisOpt(redisOpts), cfg.Worker.Concurrency)
		if err := worker.Start(queue.NewServeMux(app.notifications)); err != nil {
			return fmt.Errorf("main: не удалось запустить воркер: %w", err)
		}
		defer worker.Shutdown()

		app.scheduler.Start(ctx)
		defer app.scheduler.Stop()
	}

	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Health:       handlers.NewHealthHandler(app.db, app.redis),
		JobProcess:   handlers.NewJobProcessHandler(app.jobProcesses, app.queries),
		Transaction:  handlers.NewTransactionHandler(app.transactions, app.settlement, images),
		Admin:        handlers.NewAdminHandler(app.settlement, app.balances),
		Notification: handlers.NewNotificationHandler(app.notifications),
		WS:           handlers.NewWSHandler(app.hub, app.tokens, cfg.AllowedOrigins),
	}, httpRouter.Deps{
		Tokens:  app.tokens,
		Redis:   app.redis,
		Metrics: app.metrics,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("ошибка остановки http сервера")
		}
	}()

	log.WithField("port", cfg.HTTPPort).Info("HTTP сервер запущен")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("main: сервер завершился с ошибкой: %w", err)
	}
	return nil
}
