package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/rankboard/internal/watch"
)

// watchCmd follows a running dashboard in the terminal.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a running dashboard in the terminal",
	Long: `Connect to a running rankboard over WebSocket and render the live
ranking with a history chart of the selected entity.

Keys:
  up/down  select an entity
  s/tab    switch to the next series
  d        remove the selected entity (simulator only)
  q        quit

Example:
  rankboard watch
  rankboard watch --url ws://dashboard.internal:9090/api/ws`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("url", "ws://localhost:8080/api/ws", "dashboard WebSocket URL")
	watchCmd.Flags().String("title", "Rankboard", "title shown above the ranking")
}

func runWatch(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	title, _ := cmd.Flags().GetString("title")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := watch.Run(ctx, url, title); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}
