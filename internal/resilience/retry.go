package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	retryInitialInterval = 2 * time.Second
	retryMaxInterval     = 10 * time.Second
	// retryMaxAttempts counts the first try plus retries.
	retryMaxAttempts = 3
)

// Retry runs fn up to three times with exponential backoff between 2s
// and 10s, stopping early on ctx cancellation or a Permanent error.
func Retry(ctx context.Context, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	bo.MaxInterval = retryMaxInterval
	bo.MaxElapsedTime = 0
	return retryWith(ctx, bo, fn)
}

func retryWith(ctx context.Context, bo backoff.BackOff, fn func() error) error {
	wrapped := backoff.WithContext(backoff.WithMaxRetries(bo, retryMaxAttempts-1), ctx)
	return backoff.Retry(fn, wrapped)
}

// Permanent marks an error as non-retryable, aborting Retry at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}
