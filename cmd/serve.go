package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/quickblog-api/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Builds the service from configuration and runs it. In the listening
state the database is connected before the port is bound and a failed
connection aborts startup.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	app, err := server.Build(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer app.Close()
	return app.Run(cmd.Context()) //nolint:wrapcheck // Run errors are already descriptive
}
