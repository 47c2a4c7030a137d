// sessionctl drives the client session from a terminal: request and redeem
// magic links, inspect and refresh the stored credential, and check what the
// route guard would do for a path.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd(newEnv).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
