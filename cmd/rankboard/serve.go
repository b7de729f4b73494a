package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/rankboard"
	"github.com/jpalmerr/rankboard/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// demoConfig is used when serve runs without a config file.
const demoConfig = `
simulator:
  enabled: true
`

// serveCmd starts the rankboard dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the rankboard dashboard server.

The server will:
  - Load configuration from the given YAML file, or run the built-in
    simulator when no file is given
  - Start the configured producer (HTTP source or simulator)
  - Serve the dashboard UI and API on the configured port

RANKBOARD_* environment variables override the file.
The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  rankboard serve
  rankboard serve -c config.yaml
  RANKBOARD_PORT=9090 rankboard serve --config /etc/rankboard/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (default: simulator demo)")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Parse([]byte(demoConfig))
	}
	return config.Load(path)
}

func runServe(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(level)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	producer := "none"
	switch {
	case cfg.Source != nil:
		producer = "source"
	case cfg.Simulator.Enabled:
		producer = "simulator"
	}
	logger.Info("config loaded",
		"file", configFile,
		"producer", producer,
		"series_keys", cfg.SeriesKeys,
		"ranking_series", cfg.RankingSeries,
	)
	logger.Info("starting server",
		"port", cfg.Port,
		"poll_interval", cfg.PollInterval.Duration().String(),
	)

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts, rankboard.WithLogger(logger))

	rb, err := rankboard.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create rankboard: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- rb.Start(ctx)
	}()

	// wait for server to finish
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
