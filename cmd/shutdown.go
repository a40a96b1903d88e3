package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/benignx/nfs-mirror/internal/logger"
)

// shutdownFn is one step of an orderly shutdown (closing a listener,
// removing a PID file, and so on).
type shutdownFn func() error

// joinShutdownFuncs combines fns into a single function that runs every
// step and joins their errors, the way gcsfuse's common.JoinShutdownFunc
// combines a mount's unmount/cleanup steps into one callback.
func joinShutdownFuncs(fns ...shutdownFn) shutdownFn {
	return func() error {
		var err error
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			err = errors.Join(err, fn())
		}
		return err
	}
}

// waitForShutdownSignal blocks until SIGINT or SIGTERM arrives, then runs
// onShutdown and logs any error from it. It is meant to run in its own
// goroutine alongside a blocking nfsd.Serve call: onShutdown is expected to
// close the listener Serve is blocked on, which is what causes Serve to
// return and the process to exit 0 rather than being killed.
func waitForShutdownSignal(ctx context.Context, onShutdown shutdownFn) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(ch)

	select {
	case sig := <-ch:
		logger.Infof("received %s, shutting down", sig)
	case <-ctx.Done():
		return
	}

	if err := onShutdown(); err != nil {
		logger.Errorf("error during shutdown: %v", err)
	}
}
