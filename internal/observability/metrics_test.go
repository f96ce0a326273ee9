package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/runs", "GET", 200, time.Millisecond)
		m.RecordError("/runs", "POST", "RUN_IN_PROGRESS")
		m.AddTicketsFetched(3)
		m.IncGroup("email", "validated")
		m.IncTagOutcome("updated")
		m.IncTagRetry()
		m.ObserveRun("manual", "success", time.Second, time.Now())
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics("test")

	m.AddTicketsFetched(4)
	m.AddTicketsFetched(0)
	m.IncGroup("vehicle_id", "validated")
	m.IncGroup("vehicle_id", "validated")
	m.IncGroup("email", "rejected")
	m.IncTagOutcome("failed")
	m.IncTagRetry()
	m.ObserveRun("schedule", "success", 2*time.Second, time.Unix(1700000000, 0))

	assert.Equal(t, 4.0, testutil.ToFloat64(m.ticketsFetched))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.groups.WithLabelValues("vehicle_id", "validated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.groups.WithLabelValues("email", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tagOutcomes.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tagRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("success", "schedule")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastRun))
}
