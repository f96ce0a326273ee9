package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-premerge/internal/clock"
	"github.com/spec-kit/ticket-premerge/internal/contacts"
	"github.com/spec-kit/ticket-premerge/internal/domain"
	"github.com/spec-kit/ticket-premerge/internal/events"
	"github.com/spec-kit/ticket-premerge/internal/grouping"
	"github.com/spec-kit/ticket-premerge/internal/lock"
	"github.com/spec-kit/ticket-premerge/internal/observability"
	"github.com/spec-kit/ticket-premerge/internal/report"
	"github.com/spec-kit/ticket-premerge/internal/source"
	"github.com/spec-kit/ticket-premerge/internal/tagging"
	"github.com/spec-kit/ticket-premerge/internal/validation"
	apperrors "github.com/spec-kit/ticket-premerge/pkg/util/errorutil"
)

// Run triggers.
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerAPI      = "api"
)

// API is the subset of the Zendesk client a run needs.
type API interface {
	source.SearchClient
	contacts.UserReader
	tagging.TicketTagger
}

// Settings are the per-deployment knobs of a run.
type Settings struct {
	WindowDays     int
	MaxPages       int
	SearchFilters  []string
	Location       *time.Location
	VehicleFieldID int64
	Parent         validation.ParentCriteria
	Policy         validation.Policy
	Tags           []string
	Tagging        tagging.Options
}

// Dependencies are the collaborators of the service. Only API is required.
type Dependencies struct {
	API        API
	Clock      clock.Clock
	Locker     lock.Locker
	Sinks      []report.Sink
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// RunOptions customize a single run.
type RunOptions struct {
	Trigger string
	// WindowDays overrides Settings.WindowDays when positive.
	WindowDays int
	// DryRun validates and reports without tagging.
	DryRun bool
}

// PreMergeService runs the fetch, group, validate, tag and report pipeline.
// At most one run executes per process; the Locker extends that across
// processes.
type PreMergeService struct {
	settings Settings
	deps     Dependencies

	running sync.Mutex
	active  atomic.Bool

	lifecycleMu sync.Mutex
	closing     bool
	background  sync.WaitGroup

	stateMu sync.RWMutex
	latest  *report.Report
}

func NewPreMergeService(settings Settings, deps Dependencies) *PreMergeService {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.Policy == nil {
		settings.Policy = validation.DefaultPolicy()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Locker == nil {
		deps.Locker = lock.NopLocker{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &PreMergeService{settings: settings, deps: deps}
}

// Run executes one run synchronously. The returned report is set whenever
// the pipeline completed, even if a report sink failed.
func (s *PreMergeService) Run(ctx context.Context, opts RunOptions) (*report.Report, error) {
	s.lifecycleMu.Lock()
	err := s.acquire()
	s.lifecycleMu.Unlock()
	if err != nil {
		return nil, err
	}
	defer s.release()
	return s.execute(ctx, uuid.NewString(), opts)
}

// Start launches a run in the background and returns its id. It fails with
// RUN_IN_PROGRESS when a run is already executing in this process, and with
// SHUTTING_DOWN once Shutdown was called.
func (s *PreMergeService) Start(ctx context.Context, opts RunOptions) (string, error) {
	s.lifecycleMu.Lock()
	if err := s.acquire(); err != nil {
		s.lifecycleMu.Unlock()
		return "", err
	}
	s.background.Add(1)
	s.lifecycleMu.Unlock()

	runID := uuid.NewString()
	go func() {
		defer s.background.Done()
		defer s.release()
		if _, err := s.execute(ctx, runID, opts); err != nil {
			s.deps.Logger.Error("background run failed", zap.String("run_id", runID), zap.Error(err))
		}
	}()
	return runID, nil
}

// Shutdown refuses new runs and waits for background runs to finish, so
// their lock lease is released and their report is saved before the
// backends close. It returns ctx.Err() if ctx ends first.
func (s *PreMergeService) Shutdown(ctx context.Context) error {
	s.lifecycleMu.Lock()
	s.closing = true
	s.lifecycleMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a run is in progress in this process.
func (s *PreMergeService) Running() bool {
	return s.active.Load()
}

// acquire takes the run slot. The caller holds lifecycleMu.
func (s *PreMergeService) acquire() error {
	if s.closing {
		return apperrors.NewShuttingDown()
	}
	if !s.running.TryLock() {
		return apperrors.NewRunInProgress()
	}
	s.active.Store(true)
	return nil
}

func (s *PreMergeService) release() {
	s.active.Store(false)
	s.running.Unlock()
}

// Latest returns the report of the last completed run of this process.
func (s *PreMergeService) Latest() (*report.Report, bool) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.latest, s.latest != nil
}

func (s *PreMergeService) execute(ctx context.Context, runID string, opts RunOptions) (*report.Report, error) {
	logger := s.deps.Logger.With(zap.String("run_id", runID))
	if opts.Trigger == "" {
		opts.Trigger = TriggerManual
	}
	windowDays := s.settings.WindowDays
	if opts.WindowDays > 0 {
		windowDays = opts.WindowDays
	}

	lease, err := s.deps.Locker.Acquire(ctx)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return nil, apperrors.NewRunInProgress()
		}
		return nil, err
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			logger.Warn("failed to release run lock", zap.Error(err))
		}
	}()

	summary := domain.RunSummary{
		RunID:      runID,
		StartedAt:  s.deps.Clock.Now(),
		WindowDays: windowDays,
		DryRun:     opts.DryRun,
	}
	logger.Info("pre-merge run started",
		zap.String("trigger", opts.Trigger),
		zap.Int("window_days", windowDays),
		zap.Bool("dry_run", opts.DryRun))
	s.publish(ctx, events.EventRunStarted, runID, events.RunStartedPayload{
		Trigger:    opts.Trigger,
		WindowDays: windowDays,
		DryRun:     opts.DryRun,
	})

	if err := s.pipeline(ctx, logger, &summary); err != nil {
		finished := s.deps.Clock.Now()
		s.deps.Metrics.ObserveRun(opts.Trigger, "failed", finished.Sub(summary.StartedAt), finished)
		domainErr := apperrors.ToDomainError(err)
		s.publish(ctx, events.EventRunFailed, runID, events.RunFailedPayload{Code: domainErr.Code, Error: err.Error()})
		logger.Error("pre-merge run aborted", zap.Error(err))
		return nil, err
	}

	summary.FinishedAt = s.deps.Clock.Now()
	rep := report.Build(summary)
	s.stateMu.Lock()
	s.latest = &rep
	s.stateMu.Unlock()

	sinkErr := s.save(ctx, logger, rep)
	result := "success"
	if sinkErr != nil {
		result = "report_failed"
	}
	s.deps.Metrics.ObserveRun(opts.Trigger, result, summary.FinishedAt.Sub(summary.StartedAt), summary.FinishedAt)

	counts := summary.Counts
	s.publish(ctx, events.EventRunCompleted, runID, events.RunCompletedPayload{
		TicketsFetched:   counts.TicketsFetched,
		TicketsUpdated:   counts.TicketsUpdated,
		TicketsFailed:    counts.TicketsFailed,
		GroupsValidated:  counts.GroupsValidated,
		GroupsRejected:   counts.GroupsRejected,
		Truncated:        summary.Truncated,
		TruncationReason: summary.TruncationReason,
		DurationMillis:   rep.Summary.DurationMillis,
	})
	logger.Info("pre-merge run finished",
		zap.Int("tickets_fetched", counts.TicketsFetched),
		zap.Int("tickets_processed", counts.TicketsProcessed),
		zap.Int("tickets_updated", counts.TicketsUpdated),
		zap.Int("tickets_skipped", counts.TicketsSkipped),
		zap.Int("tickets_failed", counts.TicketsFailed),
		zap.Int("groups_validated", counts.GroupsValidated),
		zap.Int("groups_rejected", counts.GroupsRejected))

	return &rep, sinkErr
}

// pipeline fills summary stage by stage. Only fetch errors are returned.
func (s *PreMergeService) pipeline(ctx context.Context, logger *zap.Logger, summary *domain.RunSummary) error {
	src := source.New(s.deps.API, source.Options{
		WindowDays: summary.WindowDays,
		MaxPages:   s.settings.MaxPages,
		Filters:    s.settings.SearchFilters,
		Location:   s.settings.Location,
	}, s.deps.Clock, logger)

	fetched, err := src.Fetch(ctx)
	if err != nil {
		return err
	}
	s.deps.Metrics.AddTicketsFetched(fetched.Fetched)

	counts := &summary.Counts
	counts.TicketsFetched = fetched.Fetched
	counts.TicketsProcessed = len(fetched.Tickets)
	counts.InvalidRecords = len(fetched.Invalid)
	counts.TicketsFailed = len(fetched.Invalid)
	counts.Pages = fetched.Pages
	summary.Truncated = fetched.Truncated
	summary.TruncationReason = fetched.TruncationReason
	if fetched.Truncated {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("partial window: fetch stopped after %d page(s) (%s)", fetched.Pages, fetched.TruncationReason))
	}
	for _, invalid := range fetched.Invalid {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("skipped ticket record %d: %s", invalid.TicketID, invalid.Reason))
	}

	// The contact cache lives for this run only.
	cache := contacts.NewCache(s.deps.API, logger)
	groups := grouping.NewGrouper(cache, s.settings.VehicleFieldID, s.settings.Location, logger).
		Group(ctx, fetched.Tickets)
	counts.GroupsFound = len(groups)

	validator := validation.NewValidator(s.settings.Policy, cache, s.settings.Parent, logger)
	for _, group := range groups {
		result := validator.Validate(ctx, group)
		keyType := string(group.Criterion.KeyType)
		if !result.Valid {
			summary.Rejected = append(summary.Rejected, domain.RejectedGroup{Group: group, Reason: *result.Reason})
			s.deps.Metrics.IncGroup(keyType, "rejected")
			s.publish(ctx, events.EventGroupRejected, summary.RunID, groupPayload(group, 0, result.Reason.Message))
			continue
		}
		summary.Validated = append(summary.Validated, domain.ValidatedGroup{
			Group:      group,
			Parent:     *result.Parent,
			Candidates: result.Candidates,
		})
		s.deps.Metrics.IncGroup(keyType, "validated")
		s.publish(ctx, events.EventGroupValidated, summary.RunID, groupPayload(group, result.Parent.ID, ""))
	}
	counts.GroupsValidated = len(summary.Validated)
	counts.GroupsRejected = len(summary.Rejected)

	if failures := cache.Failures(); failures > 0 {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("%d requester profile(s) could not be read", failures))
	}

	if summary.DryRun {
		logger.Info("dry run: skipping tagging", zap.Int("groups_validated", counts.GroupsValidated))
		return nil
	}
	s.tag(ctx, summary)
	return nil
}

// tag marks every ticket of every validated group. A ticket shared by two
// validated groups is tagged once; both groups report the same outcome.
func (s *PreMergeService) tag(ctx context.Context, summary *domain.RunSummary) {
	var ids []int64
	seen := make(map[int64]struct{})
	for _, validated := range summary.Validated {
		for _, ticket := range append([]domain.Ticket{validated.Parent}, validated.Candidates...) {
			if _, ok := seen[ticket.ID]; ok {
				continue
			}
			seen[ticket.ID] = struct{}{}
			ids = append(ids, ticket.ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	opts := s.settings.Tagging
	opts.OnRetry = func(string, int, time.Duration) { s.deps.Metrics.IncTagRetry() }
	marker := tagging.NewMarker(s.deps.API, opts, s.deps.Clock, s.deps.Logger.With(zap.String("run_id", summary.RunID)))

	outcomes := make(map[int64]domain.TagOutcome, len(ids))
	counts := &summary.Counts
	for _, outcome := range marker.Apply(ctx, ids, s.settings.Tags) {
		outcomes[outcome.TicketID] = outcome
		switch {
		case !outcome.Success:
			counts.TicketsFailed++
			s.deps.Metrics.IncTagOutcome("failed")
			s.publish(ctx, events.EventTagFailed, summary.RunID, events.TagFailedPayload{
				TicketID: outcome.TicketID,
				Attempts: outcome.Attempts,
				Reason:   outcome.Reason,
			})
		case outcome.Changed:
			counts.TicketsUpdated++
			s.deps.Metrics.IncTagOutcome("updated")
		default:
			counts.TicketsSkipped++
			s.deps.Metrics.IncTagOutcome("unchanged")
		}
	}

	for i := range summary.Validated {
		validated := &summary.Validated[i]
		tickets := append([]domain.Ticket{validated.Parent}, validated.Candidates...)
		validated.Tagging = make([]domain.TagOutcome, 0, len(tickets))
		for _, ticket := range tickets {
			validated.Tagging = append(validated.Tagging, outcomes[ticket.ID])
		}
	}
}

func (s *PreMergeService) save(ctx context.Context, logger *zap.Logger, rep report.Report) error {
	var errs []error
	for _, sink := range s.deps.Sinks {
		if err := sink.Save(ctx, rep); err != nil {
			logger.Error("report sink failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return apperrors.NewReportFailed(errors.Join(errs...))
	}
	return nil
}

func (s *PreMergeService) publish(ctx context.Context, eventType events.EventType, runID string, payload interface{}) {
	if s.deps.Dispatcher == nil {
		return
	}
	_ = s.deps.Dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		RunID:     runID,
		Timestamp: s.deps.Clock.Now(),
		Payload:   payload,
	})
}

func groupPayload(group domain.CandidateGroup, parentID int64, reason string) events.GroupPayload {
	return events.GroupPayload{
		KeyType:   string(group.Criterion.KeyType),
		Value:     group.Criterion.Value,
		Day:       group.Criterion.Day,
		TicketIDs: group.IDs(),
		ParentID:  parentID,
		Reason:    reason,
	}
}
