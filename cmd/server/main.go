package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ignatzorin/roadside-backend/internal/config"
	"github.com/ignatzorin/roadside-backend/internal/logger"
)

// cli общее состояние команд: конфигурация читается один раз перед запуском любой команды.
type cli struct {
	cfg *config.Config
}

func (c *cli) preRun(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.cfg = cfg

	if cfg.Env == "development" {
		logger.Init("debug", true)
	} else {
		logger.Init("info", false)
	}
	return nil
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:               "roadside",
		Short:             "Roadside assistance marketplace backend",
		SilenceUsage:      true,
		PersistentPreRunE: c.preRun,
		// без подкоманды запускается HTTP сервер
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
	}

	root.AddCommand(serveCommand(c))
	root.AddCommand(workerCommand(c))
	root.AddCommand(migrateCommand(c))
	root.AddCommand(sweepCommand(c))
	root.AddCommand(tokenCommand(c))

	return root
}

func main() {
	defer func() {
		if rec := recover(); rec != nil {
			logrus.Error(rec)
			os.Exit(1)
		}
	}()

	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
