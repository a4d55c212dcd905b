package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "support-desk",
	Short: "Support ticketing and threaded messaging service",
	Long: `support-desk serves the ticket lifecycle and message threads of the platform.

Without a subcommand it runs the HTTP server.

Examples:
  support-desk                 # same as "serve"
  support-desk migrate         # apply pending SQL migrations and exit
  support-desk token --id u1   # sign a development bearer token`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the process logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(zap.String("service", cfg.App.Name), zap.String("env", cfg.App.Env))
	return cfg, logger, nil
}
