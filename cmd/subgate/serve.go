package main

import (
	"fmt"

	"github.com/meterly/subgate/bootstrap"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the subscription gate server",
	Long: `Start the subgate server.

The server will:
  - Load configuration from subgate.yaml (or --config)
  - Connect to the billing provider and document database
  - Serve the subscription gate and generation API
  - Watch the config file and SIGHUP for hot reload

Environment variables override file values:
  SUBGATE_PROVIDER_SECRET_KEY - Billing provider secret key
  SUBGATE_JWT_SECRET          - Token signing secret
  SUBGATE_GENERATOR_API_KEY   - Upstream generator API key
  SUBGATE_REDIS_ADDR          - Redis address for the shared cache
  SUBGATE_PORT                - Server port

Examples:
  subgate serve
  subgate serve --config /etc/subgate/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(cfgFile)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
