package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/salonware/booking-assistant/pkg/logging"
)

// Breaker names, one per external dependency.
const (
	BreakerOpenRouter = "openrouter"
	BreakerChatwoot   = "chatwoot"
	BreakerCalendar   = "calendar"
	BreakerDatabase   = "database"
)

// ErrBreakerOpen is returned when a dependency's breaker rejects the
// call. Callers emit their degraded reply on it.
var ErrBreakerOpen = errors.New("circuit breaker open")

const (
	breakerFailMax      = 5
	breakerResetTimeout = 30 * time.Second
	breakerProbes       = 1
)

// Breaker wraps one named gobreaker instance. Consecutive failures trip
// it; excluded (user-visible validation) errors never count.
type Breaker struct {
	name   string
	cb     *gobreaker.CircuitBreaker[any]
	logger *logging.Logger
}

// StateChangeHook observes breaker transitions, e.g. for metrics.
type StateChangeHook func(name, from, to string)

// NewBreaker creates a breaker with the dependency-protection defaults.
func NewBreaker(name string, logger *logging.Logger, hooks ...StateChangeHook) *Breaker {
	if logger == nil {
		logger = logging.Default()
	}
	b := &Breaker{name: name, logger: logger}

	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: breakerProbes,
		Timeout:     breakerResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailMax
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isExcluded(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
			for _, hook := range hooks {
				hook(name, from.String(), to.String())
			}
		},
	})
	return b
}

// Name returns the breaker's dependency name.
func (b *Breaker) Name() string { return b.name }

// Do runs fn under the breaker. When the breaker is open the call fails
// fast with ErrBreakerOpen; results travel through fn's closure.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("resilience: %s: %w", b.name, ErrBreakerOpen)
		}
		return err
	}
	return nil
}

// State reports the current breaker state as a string.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// excludedError marks an error that must not count against a breaker.
type excludedError struct {
	err error
}

func (e *excludedError) Error() string { return e.err.Error() }
func (e *excludedError) Unwrap() error { return e.err }

// Exclude wraps a user-visible validation error so the breaker ignores
// it while callers still see the original via errors.Is/As.
func Exclude(err error) error {
	if err == nil {
		return nil
	}
	return &excludedError{err: err}
}

func isExcluded(err error) bool {
	var excluded *excludedError
	return errors.As(err, &excluded)
}
