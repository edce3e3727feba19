package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// commandContext is cancelled on Ctrl+C or SIGTERM so in-flight embedding
// and storage calls stop with the command.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
