package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/roadside-backend/internal/logger"
	"github.com/ignatzorin/roadside-backend/internal/queue"
	"github.com/ignatzorin/roadside-backend/internal/redisdb"
)

// workerCommand запускает доставку уведомлений и планировщик отдельно от HTTP.
func workerCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "start notification workers and the expiry/payout scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApplication(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer app.close()

			redisOpts, err := redisdb.ParseURL(c.cfg.RedisURL)
			if err != nil {
				return err
			}
			server := queue.NewServer(queue.RedisOpt(redisOpts), c.cfg.Worker.Concurrency)
			if err := server.Start(queue.NewServeMux(app.notifications)); err != nil {
				return fmt.Errorf("worker: не удалось запустить сервер задач: %w", err)
			}

			app.scheduler.Start(ctx)
			logger.For("worker").WithField("concurrency", c.cfg.Worker.Concurrency).Info("воркер запущен")

			<-ctx.Done()
			app.scheduler.Stop()
			server.Shutdown()
			return nil
		},
	}
}
