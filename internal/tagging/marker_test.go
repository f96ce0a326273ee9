package tagging

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-premerge/internal/clock"
	"github.com/spec-kit/ticket-premerge/internal/zendesk"
)

var target = []string{"pre_merge_vin", "merge_validado"}

// fakeTagger stores tags in memory. updateErrs are returned by successive
// updates before the write succeeds.
type fakeTagger struct {
	tags        map[int64][]string
	readErr     map[int64]error
	updateErrs  []error
	updateCalls []int64
}

func newFakeTagger() *fakeTagger {
	return &fakeTagger{tags: map[int64][]string{}, readErr: map[int64]error{}}
}

func (f *fakeTagger) TicketTags(_ context.Context, id int64) ([]string, error) {
	if err := f.readErr[id]; err != nil {
		return nil, err
	}
	return append([]string(nil), f.tags[id]...), nil
}

func (f *fakeTagger) UpdateTicketTags(_ context.Context, id int64, tags []string) error {
	f.updateCalls = append(f.updateCalls, id)
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		return err
	}
	f.tags[id] = tags
	return nil
}

func rateLimited(retryAfter time.Duration) error {
	return &zendesk.APIError{StatusCode: http.StatusTooManyRequests, Message: "slow down", RetryAfter: retryAfter}
}

func newMarker(client TicketTagger, clk clock.Clock) *Marker {
	return NewMarker(client, Options{
		MaxAttempts:       5,
		BackoffBase:       time.Second,
		InterRequestDelay: 200 * time.Millisecond,
	}, clk, nil)
}

func TestUnionTags(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		add      []string
		want     []string
		changed  bool
	}{
		{"appends missing", []string{"vip"}, target, []string{"vip", "pre_merge_vin", "merge_validado"}, true},
		{"already present", []string{"merge_validado", "x", "pre_merge_vin"}, target, []string{"merge_validado", "x", "pre_merge_vin"}, false},
		{"collapses duplicates", []string{"a", "a"}, nil, []string{"a"}, true},
		{"empty existing", nil, target, target, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := UnionTags(tt.existing, tt.add)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.changed, changed)
		})
	}
}

func TestApply_IsIdempotent(t *testing.T) {
	client := newFakeTagger()
	client.tags[1] = []string{"vip"}
	m := newMarker(client, clock.Fake(time.Unix(0, 0)))

	first := m.Apply(context.Background(), []int64{1}, target)
	second := m.Apply(context.Background(), []int64{1}, target)

	require.True(t, first[0].Success)
	assert.True(t, first[0].Changed)
	require.True(t, second[0].Success)
	assert.False(t, second[0].Changed)
	assert.Equal(t, 1, second[0].Attempts)
	assert.Equal(t, []string{"vip", "pre_merge_vin", "merge_validado"}, client.tags[1])
	assert.Equal(t, []int64{1}, client.updateCalls)
}

func TestApply_RetriesRateLimitThenSucceeds(t *testing.T) {
	client := newFakeTagger()
	client.updateErrs = []error{rateLimited(0), rateLimited(0)}
	clk := clock.Fake(time.Unix(0, 0))
	m := newMarker(client, clk)

	outcomes := m.Apply(context.Background(), []int64{42}, target)

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, 3, outcomes[0].Attempts)
	assert.Equal(t, []int64{42, 42, 42}, client.updateCalls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clk.Sleeps())
}

func TestApply_AlreadyTaggedCountsReadAttempts(t *testing.T) {
	client := &flakyReader{fakeTagger: newFakeTagger(), failures: 2}
	client.tags[5] = append([]string{"vip"}, target...)
	clk := clock.Fake(time.Unix(0, 0))

	outcomes := newMarker(client, clk).Apply(context.Background(), []int64{5}, target)

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Success)
	assert.False(t, outcomes[0].Changed)
	assert.Equal(t, 3, outcomes[0].Attempts)
	assert.Empty(t, client.updateCalls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clk.Sleeps())
}

// flakyReader rate-limits the first failures tag reads.
type flakyReader struct {
	*fakeTagger
	failures int
}

func (f *flakyReader) TicketTags(ctx context.Context, id int64) ([]string, error) {
	if f.failures > 0 {
		f.failures--
		return nil, rateLimited(0)
	}
	return f.fakeTagger.TicketTags(ctx, id)
}

func TestApply_HonorsRetryAfter(t *testing.T) {
	client := newFakeTagger()
	client.updateErrs = []error{rateLimited(7 * time.Second)}
	clk := clock.Fake(time.Unix(0, 0))

	outcomes := newMarker(client, clk).Apply(context.Background(), []int64{1}, target)

	assert.True(t, outcomes[0].Success)
	assert.Equal(t, []time.Duration{7 * time.Second}, clk.Sleeps())
}

func TestApply_ExhaustionAndPermanentFailuresDoNotAbort(t *testing.T) {
	client := newFakeTagger()
	client.readErr[2] = &zendesk.APIError{StatusCode: http.StatusNotFound, Message: "gone"}
	client.updateErrs = []error{rateLimited(0), rateLimited(0), rateLimited(0), rateLimited(0), rateLimited(0)}
	clk := clock.Fake(time.Unix(0, 0))

	outcomes := newMarker(client, clk).Apply(context.Background(), []int64{1, 2, 3}, target)

	require.Len(t, outcomes, 3)
	assert.False(t, outcomes[0].Success)
	assert.Equal(t, 5, outcomes[0].Attempts)
	assert.Contains(t, outcomes[0].Reason, "after 5 attempts")

	assert.False(t, outcomes[1].Success)
	assert.Equal(t, 1, outcomes[1].Attempts)
	assert.Contains(t, outcomes[1].Reason, "HTTP 404")

	assert.True(t, outcomes[2].Success)
	assert.Equal(t, []int64{1, 2, 3}, []int64{outcomes[0].TicketID, outcomes[1].TicketID, outcomes[2].TicketID})

	// Four backoff waits for ticket 1, then one delay before each later ticket.
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		200 * time.Millisecond,
		200 * time.Millisecond,
	}, clk.Sleeps())
}

func TestApply_NonRateLimitUpdateErrorFailsImmediately(t *testing.T) {
	client := newFakeTagger()
	client.updateErrs = []error{errors.New("connection reset")}

	outcomes := newMarker(client, clock.Fake(time.Unix(0, 0))).Apply(context.Background(), []int64{9}, target)

	assert.False(t, outcomes[0].Success)
	assert.Equal(t, 1, outcomes[0].Attempts)
	assert.Equal(t, "connection reset", outcomes[0].Reason)
}
