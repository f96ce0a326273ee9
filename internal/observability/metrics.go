package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes run and HTTP counters through Prometheus. All methods are
// safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry       *prometheus.Registry
	requestCount   *prometheus.CounterVec
	errorCount     *prometheus.CounterVec
	ticketsFetched prometheus.Counter
	groups         *prometheus.CounterVec
	tagOutcomes    *prometheus.CounterVec
	tagRetries     prometheus.Counter
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	lastRun        prometheus.Gauge
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics(serviceName string) *Metrics {
	if serviceName == "" {
		serviceName = "ticket-premerge"
	}
	constLabels := prometheus.Labels{"service": serviceName}
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "premerge_http_requests_total",
			Help:        "HTTP requests served by the API.",
			ConstLabels: constLabels,
		}, []string{"path", "method", "status"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "premerge_http_errors_total",
			Help:        "HTTP requests that ended in a domain error.",
			ConstLabels: constLabels,
		}, []string{"path", "method", "code"}),
		ticketsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "premerge_tickets_fetched_total",
			Help:        "Ticket records returned by search.",
			ConstLabels: constLabels,
		}),
		groups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "premerge_groups_total",
			Help:        "Candidate groups by key type and verdict.",
			ConstLabels: constLabels,
		}, []string{"key_type", "verdict"}),
		tagOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "premerge_tag_outcomes_total",
			Help:        "Per-ticket tagging outcomes.",
			ConstLabels: constLabels,
		}, []string{"result"}), // updated | unchanged | failed
		tagRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "premerge_tag_retries_total",
			Help:        "Backoff waits caused by rate-limited API calls.",
			ConstLabels: constLabels,
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "premerge_runs_total",
			Help:        "Runs by result.",
			ConstLabels: constLabels,
		}, []string{"result", "trigger"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "premerge_run_duration_seconds",
			Help:        "Wall time of completed runs.",
			Buckets:     []float64{5, 15, 30, 60, 120, 300, 600, 1800},
			ConstLabels: constLabels,
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "premerge_last_run_timestamp_seconds",
			Help:        "Unix time of the last finished run.",
			ConstLabels: constLabels,
		}),
	}

	registry.MustRegister(
		m.requestCount,
		m.errorCount,
		m.ticketsFetched,
		m.groups,
		m.tagOutcomes,
		m.tagRetries,
		m.runs,
		m.runDuration,
		m.lastRun,
	)
	return m
}

// Registry returns the registry backing /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

func (m *Metrics) AddTicketsFetched(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ticketsFetched.Add(float64(n))
}

func (m *Metrics) IncGroup(keyType, verdict string) {
	if m == nil {
		return
	}
	m.groups.WithLabelValues(keyType, verdict).Inc()
}

func (m *Metrics) IncTagOutcome(result string) {
	if m == nil {
		return
	}
	m.tagOutcomes.WithLabelValues(result).Inc()
}

func (m *Metrics) IncTagRetry() {
	if m == nil {
		return
	}
	m.tagRetries.Inc()
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(trigger, result string, duration time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result, trigger).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.lastRun.Set(float64(finished.Unix()))
}
