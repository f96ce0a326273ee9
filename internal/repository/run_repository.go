package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-premerge/internal/report"
)

// RunRecord is one stored run.
type RunRecord struct {
	RunID            string          `json:"run_id"`
	AnalysisAt       time.Time       `json:"analysis_at"`
	WindowDays       int             `json:"window_days"`
	DryRun           bool            `json:"dry_run"`
	Truncated        bool            `json:"truncated"`
	TruncationReason *string         `json:"truncation_reason,omitempty"`
	TicketsFetched   int             `json:"tickets_fetched"`
	TicketsUpdated   int             `json:"tickets_updated"`
	TicketsFailed    int             `json:"tickets_failed"`
	GroupsValidated  int             `json:"groups_validated"`
	GroupsRejected   int             `json:"groups_rejected"`
	Report           json.RawMessage `json:"report,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// RunRepository stores run history. It also serves as a report sink.
type RunRepository interface {
	Save(ctx context.Context, rep report.Report) error
	Latest(ctx context.Context) (*RunRecord, error)
	GetByID(ctx context.Context, runID string) (*RunRecord, error)
	List(ctx context.Context, limit, offset int) ([]RunRecord, error)
}

type runRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository instantiates repository.
func NewRunRepository(pool *pgxpool.Pool) RunRepository {
	return &runRepository{pool: pool}
}

func (r *runRepository) Save(ctx context.Context, rep report.Report) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	var reason *string
	if rep.Summary.TruncationReason != "" {
		reason = &rep.Summary.TruncationReason
	}

	const query = `
        INSERT INTO premerge_runs (run_id, analysis_at, window_days, dry_run, truncated, truncation_reason,
            tickets_fetched, tickets_updated, tickets_failed, groups_validated, groups_rejected, report)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (run_id) DO UPDATE SET report = EXCLUDED.report`
	_, err = r.pool.Exec(ctx, query,
		rep.RunID,
		rep.AnalysisTimestamp,
		rep.WindowDays,
		rep.DryRun,
		rep.Summary.Truncated,
		reason,
		rep.Summary.TicketsFetched,
		rep.Summary.TicketsUpdated,
		rep.Summary.TicketsFailed,
		rep.Summary.GroupsValidated,
		rep.Summary.GroupsRejected,
		payload,
	)
	return err
}

func (r *runRepository) Latest(ctx context.Context) (*RunRecord, error) {
	const query = `
        SELECT run_id::text, analysis_at, window_days, dry_run, truncated, truncation_reason,
               tickets_fetched, tickets_updated, tickets_failed, groups_validated, groups_rejected,
               report, created_at
        FROM premerge_runs ORDER BY analysis_at DESC LIMIT 1`
	return r.fetchSingle(ctx, query)
}

func (r *runRepository) GetByID(ctx context.Context, runID string) (*RunRecord, error) {
	const query = `
        SELECT run_id::text, analysis_at, window_days, dry_run, truncated, truncation_reason,
               tickets_fetched, tickets_updated, tickets_failed, groups_validated, groups_rejected,
               report, created_at
        FROM premerge_runs WHERE run_id::text=$1`
	return r.fetchSingle(ctx, query, runID)
}

// List returns run rows without the report body, newest first.
func (r *runRepository) List(ctx context.Context, limit, offset int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
        SELECT run_id::text, analysis_at, window_days, dry_run, truncated, truncation_reason,
               tickets_fetched, tickets_updated, tickets_failed, groups_validated, groups_rejected,
               NULL::jsonb, created_at
        FROM premerge_runs ORDER BY analysis_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (r *runRepository) fetchSingle(ctx context.Context, query string, args ...any) (*RunRecord, error) {
	return scanRun(r.pool.QueryRow(ctx, query, args...))
}

func scanRun(row pgx.Row) (*RunRecord, error) {
	var run RunRecord
	var payload []byte
	if err := row.Scan(
		&run.RunID,
		&run.AnalysisAt,
		&run.WindowDays,
		&run.DryRun,
		&run.Truncated,
		&run.TruncationReason,
		&run.TicketsFetched,
		&run.TicketsUpdated,
		&run.TicketsFailed,
		&run.GroupsValidated,
		&run.GroupsRejected,
		&payload,
		&run.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		run.Report = json.RawMessage(payload)
	}
	return &run, nil
}
