package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// WithSignals cancels the returned context on the first SIGINT/SIGTERM. A
// second signal exits the process at once.
func WithSignals(ctx context.Context, log *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			log.Warn("signal received, stopping after the current payee", "signal", sig.String())
			cancel()
		case <-ctx.Done():
			return
		}
		sig := <-ch
		log.Error("second signal received, exiting", "signal", sig.String())
		os.Exit(130)
	}()

	return ctx, cancel
}
