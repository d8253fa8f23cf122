package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "igmonitor",
	Short: "Instagram account monitoring service with adaptive rate protection",
	Long: `igmonitor watches Instagram accounts for privacy changes and new
stories, and emails subscribers consolidated reports on a schedule.

All outbound checks pass through an adaptive protection gate that
enforces daily, hourly and interval quotas, backs off progressively on
failures and pauses entirely when the upstream shows signs of blocking
the monitoring account.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.igmonitor.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}
