// Package termination turns process signals into an error for an errgroup.
package termination

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/studyquest/achievement-check/o11y"
)

// ErrTerminated is a warning, an operator interrupt is not a fault to trace or report.
var ErrTerminated = o11y.NewWarning("terminated")

// Handle blocks until the process is interrupted or ctx is done. An interrupt
// returns ErrTerminated so the surrounding group cancels the check, a finished
// ctx returns nil.
func Handle(ctx context.Context) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		return fmt.Errorf("%w: %s", ErrTerminated, sig)
	case <-ctx.Done():
		return nil
	}
}
