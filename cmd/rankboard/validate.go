package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/rankboard/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a rankboard configuration file without starting the server.

This command parses the YAML, applies RANKBOARD_* overrides, expands
environment variables, and validates all fields. It's useful for CI/CD
pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  rankboard validate -c config.yaml
  rankboard validate --config /etc/rankboard/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	producer := "none (API only)"
	switch {
	case cfg.Source != nil:
		producer = fmt.Sprintf("source %s (%s)", cfg.Source.Name, cfg.Source.URL)
	case cfg.Simulator.Enabled:
		seed := "built-in seed"
		if n := len(cfg.Simulator.Seed); n > 0 {
			seed = fmt.Sprintf("%d seed entities", n)
		}
		producer = "simulator, " + seed
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:          %d\n", cfg.Port)
	fmt.Printf("  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Printf("  Series:        %s (ranking by %s)\n", strings.Join(cfg.SeriesKeys, ", "), cfg.RankingSeries)
	fmt.Printf("  Producer:      %s\n", producer)

	return nil
}
