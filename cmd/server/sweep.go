package main

import (
	"github.com/spf13/cobra"

	"github.com/ignatzorin/roadside-backend/internal/logger"
)

// sweepCommand выполняет один тик планировщика, например из cron.
func sweepCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "run one auto-reject and payout pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.scheduler.Tick(cmd.Context()); err != nil {
				return err
			}
			logger.For("sweep").Info("проход завершён")
			return nil
		},
	}
}
