package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "subgate",
	Short: "Subscription gate for metered billing",
	Long: `Subgate resolves whether an authenticated caller holds an active
subscription with the billing provider, gates access on the answer, and
reports metered usage back.

Quick start:
  subgate validate  # Check configuration
  subgate serve     # Start the server

Management:
  subgate token     # Mint an access token for testing
  subgate version   # Print version information`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "subgate.yaml", "config file path")
}
