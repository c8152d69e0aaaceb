package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker("llm-test", nil)
	ctx := context.Background()
	boom := errors.New("timeout")

	for i := 0; i < breakerFailMax; i++ {
		err := b.Do(ctx, func(context.Context) error { return boom })
		require.ErrorIs(t, err, boom)
	}

	err := b.Do(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, "open", b.State())
}

func TestBreakerIgnoresExcludedErrors(t *testing.T) {
	b := NewBreaker("db-test", nil)
	ctx := context.Background()
	validation := errors.New("slot already taken")

	for i := 0; i < breakerFailMax*2; i++ {
		err := b.Do(ctx, func(context.Context) error { return Exclude(validation) })
		// The caller still sees the original error.
		require.ErrorIs(t, err, validation)
	}

	assert.Equal(t, "closed", b.State())
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewBreaker("gateway-test", nil)
	ctx := context.Background()
	boom := errors.New("503")

	for i := 0; i < breakerFailMax-1; i++ {
		_ = b.Do(ctx, func(context.Context) error { return boom })
	}
	require.NoError(t, b.Do(ctx, func(context.Context) error { return nil }))

	for i := 0; i < breakerFailMax-1; i++ {
		_ = b.Do(ctx, func(context.Context) error { return boom })
	}
	// Still under the consecutive-failure limit after the reset.
	assert.Equal(t, "closed", b.State())
}

func TestBreakerStateChangeHook(t *testing.T) {
	var transitions []string
	hook := func(name, from, to string) {
		transitions = append(transitions, from+"->"+to)
	}
	b := NewBreaker("hooked", nil, hook)
	ctx := context.Background()

	for i := 0; i < breakerFailMax; i++ {
		_ = b.Do(ctx, func(context.Context) error { return errors.New("x") })
	}
	require.NotEmpty(t, transitions)
	assert.Equal(t, "closed->open", transitions[0])
}

func TestRetryEventuallySucceeds(t *testing.T) {
	attempts := 0
	bo := backoff.NewConstantBackOff(time.Millisecond)

	err := retryWith(context.Background(), bo, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhausts(t *testing.T) {
	attempts := 0
	bo := backoff.NewConstantBackOff(time.Millisecond)

	err := retryWith(context.Background(), bo, func() error {
		attempts++
		return errors.New("still down")
	})
	require.Error(t, err)
	assert.Equal(t, retryMaxAttempts, attempts)
}

func TestRetryPermanentStopsImmediately(t *testing.T) {
	attempts := 0
	bo := backoff.NewConstantBackOff(time.Millisecond)
	fatal := errors.New("bad request")

	err := retryWith(context.Background(), bo, func() error {
		attempts++
		return Permanent(fatal)
	})
	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, attempts)
}
