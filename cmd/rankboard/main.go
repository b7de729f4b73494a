// Package main is the entry point for the rankboard CLI.
//
// Rankboard can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	rankboard serve                    # Start the demo with the simulator
//	rankboard serve -c config.yaml     # Start the dashboard
//	rankboard validate -c config.yaml  # Validate configuration
//	rankboard watch                    # Follow a dashboard in the terminal
//	rankboard version                  # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "rankboard",
	Short: "A live ranking dashboard",
	Long: `Rankboard is a real-time leaderboard dashboard.

It keeps a set of named entities with per-series numeric histories, ranks
them by the latest value of one series and pushes every change to a web UI
over WebSocket and Server-Sent Events.

Quick start:
  1. Run: rankboard serve
  2. Open http://localhost:8080 in your browser
  3. Or follow it in the terminal: rankboard watch

Example config:
  port: 8080
  ranking_series: access
  top_n: 5
  source:
    name: traffic
    url: https://stats.example.com/sites
    decoder: json:data`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// newLogger creates a JSON logger on stderr at the given level.
func newLogger(raw string) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", raw, err)
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})), nil
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this rankboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rankboard %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(versionCmd)
}
