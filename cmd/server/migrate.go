package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"symptom-triage/internal/config"
	"symptom-triage/internal/db"
	"symptom-triage/internal/logging"
	"symptom-triage/internal/screening"
	"symptom-triage/internal/session"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is not set")
			}
			logger := logging.New(cfg.Env, cfg.LogLevel)

			conn, err := db.Open(cmd.Context(), cfg.DatabaseURL, 10, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.Migrate(conn); err != nil {
				return err
			}
			logger.Info().Msg("migrations applied")
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge-sessions",
		Short: "Delete expired screening sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is not set")
			}
			logger := logging.New(cfg.Env, cfg.LogLevel)

			conn, err := db.Open(cmd.Context(), cfg.DatabaseURL, 1, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			n, err := session.NewPostgresStore[screening.Session](conn, cfg.SessionTTL).PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info().Int64("deleted", n).Msg("expired sessions purged")
			return nil
		},
	})

	return cmd
}
