package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Godwin-T/blue-green-deployment/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "bluegreen",
	Short: "Failover reverse proxy for blue/green deployments",
	Long: `Bluegreen keeps a stateless service available across blue/green releases.

All traffic goes to the active (primary) backend pool; when the primary
fails, the same client request is retried transparently against the standby
pool within one request lifecycle. A built-in verification harness injects
chaos into the primary and statistically confirms the failover contract.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
