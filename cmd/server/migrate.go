package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/madhavanSPR/VDI-DASHBOARD/internal/platform/config"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/platform/logging"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Long:  "Connects to DATABASE_URL, applies the embedded tern migrations under an advisory lock and exits.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logging.Init(cfg.LogLevel, cfg.LogFormat)

			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required for migrate")
			}

			pool, err := setupDB(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer pool.Close()

			slog.Info("Migrations complete")
			return nil
		},
	}
}
