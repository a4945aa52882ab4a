// Package resilience provides resilient execution of store writes using fortify.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

// Executor runs backend operations behind a bulkhead, a circuit breaker and retry.
type Executor struct {
	bulkhead  bulkhead.Bulkhead[struct{}]
	breaker   circuitbreaker.CircuitBreaker[struct{}]
	retry     retry.Retry[struct{}]
	timeout   time.Duration
	permanent func(error) bool
}

// ExecutorConfig configures the resilient executor.
type ExecutorConfig struct {
	// MaxConcurrent limits concurrent operations.
	MaxConcurrent int

	// CircuitBreakerThreshold is the number of consecutive failures before opening.
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long the circuit stays open.
	CircuitBreakerTimeout time.Duration

	// RetryMaxAttempts is the maximum number of attempts per operation.
	RetryMaxAttempts int

	// RetryInitialDelay is the initial delay between retries.
	RetryInitialDelay time.Duration

	// RetryBackoffMultiplier is the exponential backoff multiplier.
	RetryBackoffMultiplier float64

	// DefaultTimeout bounds a single operation, retries included.
	DefaultTimeout time.Duration

	// Permanent reports errors that must not be retried or counted
	// against the breaker (duplicate keys, invalid ids).
	Permanent func(error) bool
}

// DefaultExecutorConfig returns a configuration with sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrent:           10,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		RetryMaxAttempts:        3,
		RetryInitialDelay:       50 * time.Millisecond,
		RetryBackoffMultiplier:  2.0,
		DefaultTimeout:          10 * time.Second,
	}
}

// NewExecutor creates a new resilient executor.
func NewExecutor(config ExecutorConfig) *Executor {
	// Ensure non-negative values for uint32 conversion
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	threshold := config.CircuitBreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	attempts := config.RetryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	multiplier := config.RetryBackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}
	timeout := config.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultExecutorConfig().DefaultTimeout
	}
	permanent := config.Permanent
	if permanent == nil {
		permanent = isContextError
	}

	return &Executor{
		bulkhead: bulkhead.New[struct{}](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
		}),
		breaker: circuitbreaker.New[struct{}](circuitbreaker.Config{
			MaxRequests: uint32(maxConcurrent), // #nosec G115 -- bounds checked above
			Interval:    config.CircuitBreakerTimeout,
			Timeout:     config.CircuitBreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- bounds checked above
			},
		}),
		retry: retry.New[struct{}](retry.Config{
			MaxAttempts:   attempts,
			InitialDelay:  config.RetryInitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    multiplier,
		}),
		timeout:   timeout,
		permanent: permanent,
	}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return NewExecutor(DefaultExecutorConfig())
}

// Do runs op with resilience patterns applied.
// Composition order: Bulkhead → Timeout → Circuit Breaker → Retry.
//
// A permanent error stops retrying at once and is reported as a success to
// the breaker; it is still returned to the caller.
func (e *Executor) Do(ctx context.Context, op func(context.Context) error) error {
	var permanentErr error

	_, err := e.bulkhead.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		return e.breaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
			return e.retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
				err := op(ctx)
				if err != nil && e.permanent(err) {
					permanentErr = err
					return struct{}{}, nil
				}
				return struct{}{}, err
			})
		})
	})

	if permanentErr != nil {
		return permanentErr
	}
	return err
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (e *Executor) CircuitBreakerState() circuitbreaker.State {
	return e.breaker.State()
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Permanent combines sentinel errors into a Permanent predicate.
// Context errors are always permanent.
func Permanent(sentinels ...error) func(error) bool {
	return func(err error) bool {
		if isContextError(err) {
			return true
		}
		for _, s := range sentinels {
			if errors.Is(err, s) {
				return true
			}
		}
		return false
	}
}
