// Package retry provides a bounded retry executor with a fixed delay between
// attempts.
//
// A [Policy] allows one initial attempt plus up to MaxAttempts retries. When
// every attempt fails, the error returned by the last attempt is handed back
// unmodified so callers can still inspect the underlying cause with
// errors.Is and errors.As.
//
// The plain [Do] and [DoValue] entry points block the calling goroutine for
// the policy delay after every failed attempt. [DoContext] makes that wait
// interruptible.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/iamnilay3/Shimmer/internal/errors"
	"github.com/iamnilay3/Shimmer/internal/logging"
)

// Defaults used by DefaultPolicy.
const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 100 * time.Millisecond
)

// Policy configures how often and how far apart an action is retried.
type Policy struct {
	// MaxAttempts is the number of retries after the initial attempt.
	MaxAttempts int

	// Delay is the fixed wait between a failed attempt and the next one.
	Delay time.Duration

	// Jitter is the maximum random deviation applied to Delay, as a fraction
	// of Delay (0-1). Zero disables jitter.
	Jitter float64
}

// NewPolicy returns a Policy allowing maxAttempts retries with a fixed delay.
// It panics if maxAttempts is less than 1 or delay is negative: both are
// programming errors, not runtime conditions.
func NewPolicy(maxAttempts int, delay time.Duration) Policy {
	if maxAttempts < 1 {
		panic(fmt.Sprintf("retry: maxAttempts must be at least 1, got %d", maxAttempts))
	}
	if delay < 0 {
		panic(fmt.Sprintf("retry: delay must not be negative, got %s", delay))
	}
	return Policy{MaxAttempts: maxAttempts, Delay: delay}
}

// DefaultPolicy returns the policy used for short-lived file operations.
func DefaultPolicy() Policy {
	return NewPolicy(DefaultMaxAttempts, DefaultDelay)
}

// WithJitter returns a copy of the policy with the given jitter fraction,
// clamped to [0, 1].
func (p Policy) WithJitter(fraction float64) Policy {
	p.Jitter = min(max(fraction, 0), 1)
	return p
}

// Attempts returns the total number of invocations the policy allows.
// A zero-value Policy still permits the initial attempt.
func (p Policy) Attempts() int {
	return 1 + max(p.MaxAttempts, 0)
}

// wait returns the delay before the next attempt.
func (p Policy) wait() time.Duration {
	if p.Jitter <= 0 || p.Delay <= 0 {
		return p.Delay
	}
	deviation := (rand.Float64()*2 - 1) * p.Jitter
	return time.Duration(float64(p.Delay) * (1 + deviation))
}

// Option configures a single retry run.
type Option func(*options)

type options struct {
	logger  *logging.Logger
	retryIf func(error) bool
}

// WithLogger logs every failed attempt at DEBUG level.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRetryIf limits retries to failures for which retryable returns true.
// Any other failure is returned immediately. By default every failure is
// retried.
func WithRetryIf(retryable func(error) bool) Option {
	return func(o *options) {
		o.retryIf = retryable
	}
}

// Do runs action until it succeeds or the policy is exhausted. The error of
// the final attempt is returned as-is.
func Do(action func() error, policy Policy, opts ...Option) error {
	_, err := DoValue(func() (struct{}, error) {
		return struct{}{}, action()
	}, policy, opts...)
	return err
}

// DoValue is Do for actions that produce a value.
func DoValue[T any](action func() (T, error), policy Policy, opts ...Option) (T, error) {
	return run(context.Background(), action, policy, opts)
}

// DoContext is Do with a cancellable wait. If ctx is done before an attempt
// or while waiting, DoContext stops and returns ctx.Err() joined with the
// last failure, if any.
func DoContext(ctx context.Context, action func() error, policy Policy, opts ...Option) error {
	_, err := run(ctx, func() (struct{}, error) {
		return struct{}{}, action()
	}, policy, opts)
	return err
}

func run[T any](ctx context.Context, action func() (T, error), policy Policy, opts []Option) (T, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.OrNop(o.logger)

	var zero T
	var lastErr error
	attempts := policy.Attempts()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, errors.Join(lastErr, err)
		}

		value, err := action()
		if err == nil {
			return value, nil
		}
		lastErr = err

		if o.retryIf != nil && !o.retryIf(err) {
			logger.Debug("failure not retryable",
				"attempt", attempt,
				"error", err.Error(),
			)
			return zero, err
		}

		if attempt >= attempts {
			logger.Debug("retries exhausted",
				"attempts", attempt,
				"error", err.Error(),
			)
			return zero, err
		}

		delay := policy.wait()
		logger.Debug("attempt failed, retrying",
			"attempt", attempt,
			"remaining", attempts-attempt,
			"delay_ms", delay.Milliseconds(),
			"error", err.Error(),
		)

		if err := sleep(ctx, delay); err != nil {
			return zero, errors.Join(lastErr, err)
		}
	}
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
