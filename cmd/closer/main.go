// Command closer runs reconciliation, daily report preparation and the
// daily close from the terminal.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"invclose/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, cli.NewRootCommand(cli.PostgresOpener))
	stop()
	os.Exit(code)
}
