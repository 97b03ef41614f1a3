// File: main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/probeworks/shopflow-cli/cmd"
	"github.com/probeworks/shopflow-cli/internal/observability"
)

// main is the entry point of the application.
func main() {
	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM)
	// so a probe mid-flight can shut its browser and database down cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)

	// Flush buffered log entries before deciding the exit code.
	observability.Sync()

	if err != nil {
		// A run cut short by Ctrl+C is a clean shutdown, not a failure.
		if errors.Is(err, context.Canceled) {
			return
		}
		os.Exit(1)
	}
}
