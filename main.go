// ./main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tradehelm/kitelaunch/cmd"
	"github.com/tradehelm/kitelaunch/internal/observability"
)

// main is the entry point for the kitelaunch CLI.
func main() {
	// Ctrl+C stops launching new attempts; windows already handed over to
	// the operator are unaffected.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
