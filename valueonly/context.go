// Package valueonly detaches a context from its parent's cancellation while
// keeping its values, such as the o11y provider.
package valueonly

import (
	"context"
	"time"
)

// Context wraps another and suppresses its deadline and cancellation.
type Context struct{ context.Context }

func (Context) Deadline() (deadline time.Time, ok bool) { return }
func (Context) Done() <-chan struct{}                   { return nil }
func (Context) Err() error                              { return nil }

// WithTimeout detaches ctx and gives it a fresh timeout, for cleanup work that
// has to run after the original context was cancelled.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(Context{Context: ctx}, d)
}
