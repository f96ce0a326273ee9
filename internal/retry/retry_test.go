package retry

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-premerge/internal/clock"
)

var errTransient = errors.New("transient")

func transientOnly(err error) Decision {
	return Decision{Retry: errors.Is(err, errTransient)}
}

func TestPolicyBackoff(t *testing.T) {
	policy := Policy{BaseDelay: time.Second}
	assert.Equal(t, time.Second, policy.Backoff(0))
	assert.Equal(t, 2*time.Second, policy.Backoff(1))
	assert.Equal(t, 8*time.Second, policy.Backoff(3))

	capped := Policy{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	assert.Equal(t, 5*time.Second, capped.Backoff(10))

	uncapped := Policy{BaseDelay: time.Second}
	assert.Equal(t, time.Duration(math.MaxInt64), uncapped.Backoff(40))
	assert.Equal(t, time.Duration(math.MaxInt64), uncapped.Backoff(200))
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	fake := clock.Fake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	r := New(Policy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond}, transientOnly, fake, zap.NewNop())

	calls := 0
	value, attempts, err := Do(context.Background(), r, "op", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", value)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, fake.Sleeps())
}

func TestDo_ClassifierDelayOverridesBackoff(t *testing.T) {
	fake := clock.Fake(time.Time{})
	classify := func(err error) Decision { return Decision{Retry: true, Delay: 7 * time.Second} }
	r := New(Policy{MaxAttempts: 2, BaseDelay: time.Second}, classify, fake, nil)

	attempts, err := Run(context.Background(), r, "op", func(context.Context) error { return errTransient })

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, []time.Duration{7 * time.Second}, fake.Sleeps())
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	fake := clock.Fake(time.Time{})
	r := New(Policy{MaxAttempts: 5, BaseDelay: time.Second}, transientOnly, fake, nil)
	permanent := errors.New("bad request")

	attempts, err := Run(context.Background(), r, "op", func(context.Context) error { return permanent })

	assert.Equal(t, 1, attempts)
	assert.Same(t, permanent, err)
	assert.Empty(t, fake.Sleeps())
}

func TestDo_RetryHookAndCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := clock.Fake(time.Time{})
	var hooked []int
	r := New(Policy{MaxAttempts: 5, BaseDelay: time.Second}, transientOnly, fake, nil,
		WithRetryHook(func(_ string, attempt int, _ time.Duration) {
			hooked = append(hooked, attempt)
			cancel()
		}))

	attempts, err := Run(ctx, r, "op", func(context.Context) error { return errTransient })

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, []int{1}, hooked)
}
