package dto

import (
	"time"

	"github.com/spec-kit/ticket-premerge/internal/repository"
)

// TriggerRunRequest payload of POST /runs. Both fields are optional.
type TriggerRunRequest struct {
	WindowDays int  `json:"window_days"`
	DryRun     bool `json:"dry_run"`
}

// TriggerRunResponse body of 202 Accepted.
type TriggerRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// RunListQuery captures paging parameters.
type RunListQuery struct {
	Limit  int
	Offset int
}

// RunSummary is a run history row without the report body.
type RunSummary struct {
	RunID            string  `json:"run_id"`
	AnalysisAt       string  `json:"analysis_at"`
	WindowDays       int     `json:"window_days"`
	DryRun           bool    `json:"dry_run"`
	Truncated        bool    `json:"truncated"`
	TruncationReason *string `json:"truncation_reason,omitempty"`
	TicketsFetched   int     `json:"tickets_fetched"`
	TicketsUpdated   int     `json:"tickets_updated"`
	TicketsFailed    int     `json:"tickets_failed"`
	GroupsValidated  int     `json:"groups_validated"`
	GroupsRejected   int     `json:"groups_rejected"`
}

// NewRunSummary maps a stored run.
func NewRunSummary(run repository.RunRecord) RunSummary {
	return RunSummary{
		RunID:            run.RunID,
		AnalysisAt:       run.AnalysisAt.UTC().Format(time.RFC3339),
		WindowDays:       run.WindowDays,
		DryRun:           run.DryRun,
		Truncated:        run.Truncated,
		TruncationReason: run.TruncationReason,
		TicketsFetched:   run.TicketsFetched,
		TicketsUpdated:   run.TicketsUpdated,
		TicketsFailed:    run.TicketsFailed,
		GroupsValidated:  run.GroupsValidated,
		GroupsRejected:   run.GroupsRejected,
	}
}
