package resilience

import (
	"context"
	"time"
)

// WithCallTimeout runs fn under a per-call deadline. A zero timeout runs fn
// with ctx unchanged.
func WithCallTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}
