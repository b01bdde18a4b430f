// Command backlogctl plans and forecasts a game backlog from the terminal.
//
// The plan and project commands work offline on a TOML or YAML snapshot. The
// generate, undo, runs, export and migrate commands operate on the SQLite
// database the API server uses and take the same per-user file lock.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
