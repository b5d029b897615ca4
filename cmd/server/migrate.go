package main

import (
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"

	"github.com/ignatzorin/roadside-backend/internal/db"
	"github.com/ignatzorin/roadside-backend/internal/logger"
)

func migrateCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply or roll back database migrations",
	}

	cmd.AddCommand(migrateDirectionCommand(c, "up", migrate.Up))
	cmd.AddCommand(migrateDirectionCommand(c, "down", migrate.Down))

	return cmd
}

func migrateDirectionCommand(c *cli, use string, direction migrate.MigrationDirection) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: "migrate " + use,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.NewPostgres(cmd.Context(), c.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer conn.Close()

			n, err := db.Migrate(conn, direction)
			if err != nil {
				return err
			}
			logger.For("migrate").WithField("direction", use).Infof("применено миграций: %d", n)
			return nil
		},
	}
}
