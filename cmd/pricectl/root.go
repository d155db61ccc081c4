package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emiliopc17/redmil-crm/internal/app"
	"github.com/emiliopc17/redmil-crm/pkg/config"
)

// builder constructs the dependency graph for one command run.
type builder func(ctx context.Context, envFile, logLevel string) (*app.Dependencies, error)

func defaultBuilder(ctx context.Context, envFile, logLevel string) (*app.Dependencies, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Observability.LogLevel = logLevel
	}
	// The CLI reports through stdout; logs go to stderr.
	logger := app.NewLogger(os.Stderr, cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	return app.InitDependencies(ctx, cfg, logger)
}

type cli struct {
	build    builder
	envFile  string
	logLevel string
	deps     *app.Dependencies
}

// newRootCmd returns the command tree and a func that releases whatever the
// executed command opened. Cleanup must run even when the command fails.
func newRootCmd(build builder) (*cobra.Command, func()) {
	c := &cli{build: build}

	root := &cobra.Command{
		Use:           "pricectl",
		Short:         "Manage the supplier price catalog",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := c.build(cmd.Context(), c.envFile, c.logLevel)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			c.deps = deps
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.envFile, "env", ".env", "dotenv file to load")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		c.ingestCmd(),
		c.brandsCmd(),
		c.historyCmd(),
		c.ratesCmd(),
		c.clearProductsCmd(),
		c.exportCmd(),
	)
	return root, c.cleanup
}

func (c *cli) cleanup() {
	if c.deps != nil {
		c.deps.Cleanup()
		c.deps = nil
	}
}
