package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-premerge/internal/clock"
)

// Policy bounds a retried operation.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the first exponential backoff step.
	BaseDelay time.Duration
	// MaxDelay caps computed backoff. Zero means uncapped.
	MaxDelay time.Duration
}

// Backoff returns BaseDelay × 2^attempt, where attempt counts failed
// attempts starting at zero. Uncapped delays saturate at the largest
// Duration instead of overflowing.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		if delay > math.MaxInt64/2 {
			delay = math.MaxInt64
		} else {
			delay *= 2
		}
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Decision is a classifier verdict for one failed attempt.
type Decision struct {
	Retry bool
	// Delay overrides the policy backoff when positive.
	Delay time.Duration
}

// Classifier separates retryable from fatal errors.
type Classifier func(err error) Decision

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Retrier runs operations under a policy and classifier.
type Retrier struct {
	policy   Policy
	classify Classifier
	clock    clock.Clock
	logger   *zap.Logger
	onRetry  func(operation string, attempt int, delay time.Duration)
}

// Option customizes a Retrier.
type Option func(*Retrier)

// WithRetryHook registers a callback invoked before every backoff wait.
func WithRetryHook(hook func(operation string, attempt int, delay time.Duration)) Option {
	return func(r *Retrier) {
		r.onRetry = hook
	}
}

// New builds a Retrier. MaxAttempts below one is treated as one.
func New(policy Policy, classify Classifier, clk clock.Clock, logger *zap.Logger, opts ...Option) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if classify == nil {
		classify = func(error) Decision { return Decision{} }
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Retrier{policy: policy, classify: classify, clock: clk, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. It returns the number of attempts made.
// Non-retryable errors are returned unwrapped; exhaustion yields
// *ExhaustedError.
func Do[T any](ctx context.Context, r *Retrier, operation string, fn func(context.Context) (T, error)) (T, int, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		value, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				r.logger.Info("operation succeeded after retry",
					zap.String("operation", operation),
					zap.Int("attempts", attempt+1))
			}
			return value, attempt + 1, nil
		}
		lastErr = err

		decision := r.classify(err)
		if !decision.Retry {
			return zero, attempt + 1, err
		}
		if attempt == r.policy.MaxAttempts-1 {
			break
		}

		delay := decision.Delay
		if delay <= 0 {
			delay = r.policy.Backoff(attempt)
		}
		r.logger.Warn("operation failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", r.policy.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err))
		if r.onRetry != nil {
			r.onRetry(operation, attempt+1, delay)
		}

		if err := r.clock.Sleep(ctx, delay); err != nil {
			return zero, attempt + 1, fmt.Errorf("%s: interrupted during backoff: %w", operation, err)
		}
	}

	return zero, r.policy.MaxAttempts, &ExhaustedError{
		Operation: operation,
		Attempts:  r.policy.MaxAttempts,
		Err:       lastErr,
	}
}

// Run is Do for operations without a result value.
func Run(ctx context.Context, r *Retrier, operation string, fn func(context.Context) error) (int, error) {
	_, attempts, err := Do(ctx, r, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return attempts, err
}
