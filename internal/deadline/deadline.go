// Package deadline bounds external calls with a failsafe-go timeout policy so
// a hung provider cannot stall a whole pipeline run.
package deadline

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/timeout"
)

// ErrExceeded is returned when a call runs past its budget.
var ErrExceeded = timeout.ErrExceeded

// Get runs fn with a context that is cancelled after d. A non-positive d runs
// fn directly under ctx.
func Get[R any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (R, error)) (R, error) {
	if d <= 0 {
		return fn(ctx)
	}
	executor := failsafe.With[R](timeout.New[R](d))
	return executor.WithContext(ctx).GetWithExecution(func(exec failsafe.Execution[R]) (R, error) {
		return fn(exec.Context())
	})
}

// Run is Get for calls without a result.
func Run(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	_, err := Get(ctx, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// IsExceeded reports whether err came from an expired budget.
func IsExceeded(err error) bool {
	return errors.Is(err, timeout.ErrExceeded) || errors.Is(err, context.DeadlineExceeded)
}
