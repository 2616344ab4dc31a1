// Package signal converts process termination signals into context
// cancellation.
package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// NotifyContext derives a context from parent that is cancelled on SIGINT or
// SIGTERM. Calling stop unregisters the signal handling.
func NotifyContext(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
