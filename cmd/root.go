// Package cmd defines the CLI commands of the blog API executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/quickblog-api/internal/config"
	"github.com/JakeFAU/quickblog-api/internal/database"
)

type rootOptions struct {
	configFile string
}

// newRootCmd creates the root command. Running it without a subcommand
// behaves like serve.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "blogapi",
		Short: "HTTP API for the blog and its admin panel.",
		Long: `blogapi serves the public blog and admin endpoints backed by Postgres.

It listens on server.host:server.port in a long-lived process, or stays
passive when deployed as a serverless function (deploy.mode or VERCEL).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (YAML, JSON or TOML)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		var connErr *database.ConnectionError
		if errors.As(err, &connErr) {
			fmt.Fprintf(stderr, "startup aborted: %v\n", err)
		} else {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}
