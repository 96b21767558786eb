package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/semmidev/alipan-runner/internal/usecase"
)

var stopNotify = signal.Stop

// NotifyContext is like signal.NotifyContext, but the received signal is
// kept as the cancellation cause so the loop can report which one it was.
// Only the first signal is caught; a second one gets the default handler and
// terminates the process even while a drive call is in flight.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	release := stopNotify

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-ch:
			cancel(&usecase.SignalError{Signal: sig})
			release(ch)
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		release(ch)
		cancel(context.Canceled)
	}
}
