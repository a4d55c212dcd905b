package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/persistence"
)

var migrationsDirFlag string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending SQL migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		if cfg.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required to run migrations")
		}
		pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()

		dir := cfg.Postgres.MigrationsDir
		if migrationsDirFlag != "" {
			dir = migrationsDirFlag
		}
		applied, err := persistence.RunMigrations(cmd.Context(), pg.Pool, dir, logger)
		if err != nil {
			return err
		}
		logger.Info("migrate finished", zap.Int("applied", applied), zap.String("dir", dir))
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDirFlag, "dir", "", "migrations directory (default POSTGRES_MIGRATIONS_DIR)")
	rootCmd.AddCommand(migrateCmd)
}
