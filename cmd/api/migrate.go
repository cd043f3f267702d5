package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-mentorchat/internal/config"
	"go-mentorchat/internal/infrastructure/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		in, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer in.Close()

		switch cfg.Database.Driver {
		case config.DriverPostgres:
			if err := database.Migrate(ctx, in.pool); err != nil {
				return fmt.Errorf("migrate postgres: %w", err)
			}
		case config.DriverSQLite:
			// openStore already migrated the embedded schema
		default:
			logger.Info("nothing to migrate", zap.String("driver", cfg.Database.Driver))
			return nil
		}
		logger.Info("schema is up to date", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
