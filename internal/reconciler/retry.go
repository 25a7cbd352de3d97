package reconciler

import (
	"context"
	"errors"
	"time"

	"github.com/trilheiros/trilheiros/internal/remote"
)

// RetryPolicy decides how a single remote operation is attempted. The engine
// never cares which policy is installed; swapping one in changes no call site.
type RetryPolicy interface {
	Do(ctx context.Context, op func() error) error
}

// NoRetry attempts the operation exactly once. This is the default: failed
// operations are re-queued as pending and retried on the next reconciliation
// pass instead.
type NoRetry struct{}

func (NoRetry) Do(ctx context.Context, op func() error) error {
	return op()
}

// FixedBackoff retries unreachable errors a bounded number of times with a
// constant delay. Rejections are not retried; the server already answered.
type FixedBackoff struct {
	Attempts int
	Delay    time.Duration
}

func (p FixedBackoff) Do(ctx context.Context, op func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = op()
		if err == nil || !errors.Is(err, remote.ErrUnreachable) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return err
		}
	}
	return err
}
