package tagging

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-premerge/internal/clock"
	"github.com/spec-kit/ticket-premerge/internal/domain"
	"github.com/spec-kit/ticket-premerge/internal/retry"
	"github.com/spec-kit/ticket-premerge/internal/zendesk"
)

// TicketTagger reads and replaces ticket tag lists.
type TicketTagger interface {
	TicketTags(ctx context.Context, ticketID int64) ([]string, error)
	UpdateTicketTags(ctx context.Context, ticketID int64, tags []string) error
}

// Options configures retry and pacing.
type Options struct {
	MaxAttempts       int
	BackoffBase       time.Duration
	MaxBackoff        time.Duration
	InterRequestDelay time.Duration
	// OnRetry is called before each backoff wait.
	OnRetry func(operation string, attempt int, delay time.Duration)
}

// Marker applies a fixed tag set to tickets, one at a time.
type Marker struct {
	client  TicketTagger
	retrier *retry.Retrier
	delay   time.Duration
	clock   clock.Clock
	logger  *zap.Logger
}

func NewMarker(client TicketTagger, opts Options, clk clock.Clock, logger *zap.Logger) *Marker {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var retryOpts []retry.Option
	if opts.OnRetry != nil {
		retryOpts = append(retryOpts, retry.WithRetryHook(opts.OnRetry))
	}
	policy := retry.Policy{
		MaxAttempts: opts.MaxAttempts,
		BaseDelay:   opts.BackoffBase,
		MaxDelay:    opts.MaxBackoff,
	}
	return &Marker{
		client:  client,
		retrier: retry.New(policy, ClassifyRateLimit, clk, logger, retryOpts...),
		delay:   opts.InterRequestDelay,
		clock:   clk,
		logger:  logger,
	}
}

// ClassifyRateLimit retries only rate-limited responses, honoring the
// server's Retry-After when present.
func ClassifyRateLimit(err error) retry.Decision {
	if !zendesk.IsRateLimited(err) {
		return retry.Decision{}
	}
	delay, _ := zendesk.RetryAfter(err)
	return retry.Decision{Retry: true, Delay: delay}
}

// UnionTags appends the tags of add missing from existing. Existing order is
// kept and duplicates are collapsed. changed reports whether the result
// differs from existing.
func UnionTags(existing, add []string) (tags []string, changed bool) {
	seen := make(map[string]struct{}, len(existing)+len(add))
	tags = make([]string, 0, len(existing)+len(add))
	for _, tag := range existing {
		if _, ok := seen[tag]; ok {
			changed = true
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	for _, tag := range add {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		changed = true
	}
	return tags, changed
}

// Apply tags every ticket in order and returns one outcome per id. Failures
// are recorded in the outcome; Apply never aborts the batch. The
// inter-request delay separates consecutive tickets.
func (m *Marker) Apply(ctx context.Context, ticketIDs []int64, tags []string) []domain.TagOutcome {
	outcomes := make([]domain.TagOutcome, 0, len(ticketIDs))
	for i, id := range ticketIDs {
		if i > 0 && m.delay > 0 {
			if err := m.clock.Sleep(ctx, m.delay); err != nil {
				m.logger.Warn("inter-request delay interrupted", zap.Error(err))
			}
		}
		outcome := m.tag(ctx, id, tags)
		if outcome.Success {
			m.logger.Info("ticket tagged",
				zap.Int64("ticket_id", id),
				zap.Bool("changed", outcome.Changed),
				zap.Int("attempts", outcome.Attempts))
		} else {
			m.logger.Error("tagging failed",
				zap.Int64("ticket_id", id),
				zap.Int("attempts", outcome.Attempts),
				zap.String("reason", outcome.Reason))
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (m *Marker) tag(ctx context.Context, id int64, add []string) domain.TagOutcome {
	outcome := domain.TagOutcome{TicketID: id}

	current, attempts, err := retry.Do(ctx, m.retrier, fmt.Sprintf("read tags of ticket %d", id),
		func(ctx context.Context) ([]string, error) {
			return m.client.TicketTags(ctx, id)
		})
	if err != nil {
		outcome.Attempts = attempts
		outcome.Reason = err.Error()
		return outcome
	}

	merged, changed := UnionTags(current, add)
	if !changed {
		outcome.Attempts = attempts
		outcome.Success = true
		return outcome
	}

	attempts, err = retry.Run(ctx, m.retrier, fmt.Sprintf("update tags of ticket %d", id),
		func(ctx context.Context) error {
			return m.client.UpdateTicketTags(ctx, id, merged)
		})
	outcome.Attempts = attempts
	if err != nil {
		outcome.Reason = err.Error()
		return outcome
	}
	outcome.Success = true
	outcome.Changed = true
	return outcome
}
