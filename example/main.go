package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/rankboard"
)

func main() {
	// start mock server (see mock_server.go)
	go StartMockSnapshotServer(":9999")
	time.Sleep(100 * time.Millisecond)

	src, err := rankboard.NewSource("traffic", "http://localhost:9999/sites",
		rankboard.WithDecoder(rankboard.JSONFieldDecoder("data")),
		rankboard.WithInterval(3*time.Second),
	)
	if err != nil {
		slog.Error("failed to create source", "error", err)
		os.Exit(1)
	}

	// log every change of leader
	var leader string
	onUpdate := func(u rankboard.Update) {
		if u.Top == nil || u.Top.Name == leader {
			return
		}
		slog.Info("new leader", "name", u.Top.Name, "value", u.Top.Value, "seq", u.Seq)
		leader = u.Top.Name
	}

	rb, err := rankboard.New(
		rankboard.WithSource(src),
		rankboard.WithTopN(5),
		rankboard.WithPort(8080),
		rankboard.WithUpdateCallback(onUpdate),
	)
	if err != nil {
		slog.Error("failed to create rankboard", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Rankboard Demo                                      ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║   or run: rankboard watch                             ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Source: mock snapshot server, polled every 3s       ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rb.Start(ctx); err != nil {
		slog.Error("rankboard error", "error", err)
		os.Exit(1)
	}
}
