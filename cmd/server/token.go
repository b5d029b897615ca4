package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ignatzorin/roadside-backend/internal/db"
	"github.com/ignatzorin/roadside-backend/internal/repository"
	"github.com/ignatzorin/roadside-backend/internal/service"
)

// tokenCommand выпускает access токен существующему пользователю. Только для development.
func tokenCommand(c *cli) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "issue a development access token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Env == "production" {
				return errors.New("token: команда недоступна в production")
			}
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("token: неверный --user: %w", err)
			}

			conn, err := db.NewPostgres(cmd.Context(), c.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer conn.Close()

			user, err := repository.NewUserRepository(conn).GetByID(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("token: пользователь %s: %w", id, err)
			}

			token, err := service.NewTokenManager(c.cfg.JWTSecret, c.cfg.AccessTokenTTL).GenerateAccess(user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
