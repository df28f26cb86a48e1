package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/quickblog-api/internal/database"
	"github.com/JakeFAU/quickblog-api/internal/logging"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Database.ConnectTimeout)
			defer cancel()
			pool, err := database.OpenPostgres(ctx, database.PostgresConfig{
				DSN:      cfg.Database.DSN,
				MaxConns: 1,
			})
			if err != nil {
				return &database.ConnectionError{Err: err}
			}
			defer pool.Close()

			if err := database.Migrate(cmd.Context(), pool, logger.Named("migrate")); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migrations applied", zap.String("environment", cfg.Environment))
			return nil
		},
	}
}
