package report

import (
	"time"

	"github.com/spec-kit/ticket-premerge/internal/domain"
)

// Report is the JSON document produced for each run.
type Report struct {
	RunID             string          `json:"run_id"`
	AnalysisTimestamp time.Time       `json:"analysis_timestamp"`
	WindowDays        int             `json:"window_days"`
	DryRun            bool            `json:"dry_run"`
	Summary           Summary         `json:"summary"`
	Groups            []GroupEntry    `json:"groups"`
	Rejected          []RejectedEntry `json:"rejected"`
	Warnings          []string        `json:"warnings,omitempty"`
}

type Summary struct {
	TicketsFetched   int    `json:"tickets_fetched"`
	TicketsProcessed int    `json:"tickets_processed"`
	TicketsUpdated   int    `json:"tickets_updated"`
	TicketsSkipped   int    `json:"tickets_skipped"`
	TicketsFailed    int    `json:"tickets_failed"`
	InvalidRecords   int    `json:"invalid_records"`
	Pages            int    `json:"pages"`
	Truncated        bool   `json:"truncated"`
	TruncationReason string `json:"truncation_reason,omitempty"`
	GroupsFound      int    `json:"groups_found"`
	GroupsValidated  int    `json:"groups_validated"`
	GroupsRejected   int    `json:"groups_rejected"`
	DurationMillis   int64  `json:"duration_ms"`
}

type Criterion struct {
	Value string `json:"value"`
	Day   string `json:"day"`
}

type TicketEntry struct {
	ID        int64     `json:"id"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Parent    bool      `json:"parent,omitempty"`
	Tagged    bool      `json:"tagged"`
	Error     string    `json:"error,omitempty"`
}

type GroupEntry struct {
	Type      string        `json:"type"`
	Criterion Criterion     `json:"criterion"`
	Signature string        `json:"signature"`
	Parent    *int64        `json:"parent,omitempty"`
	Tickets   []TicketEntry `json:"tickets"`
}

type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RejectedEntry struct {
	Type      string        `json:"type"`
	Criterion Criterion     `json:"criterion"`
	Signature string        `json:"signature"`
	Reason    Reason        `json:"reason"`
	Tickets   []TicketEntry `json:"tickets"`
}

// Build assembles the report of a run. It performs no I/O.
func Build(summary domain.RunSummary) Report {
	counts := summary.Counts
	report := Report{
		RunID:             summary.RunID,
		AnalysisTimestamp: summary.StartedAt.UTC(),
		WindowDays:        summary.WindowDays,
		DryRun:            summary.DryRun,
		Summary: Summary{
			TicketsFetched:   counts.TicketsFetched,
			TicketsProcessed: counts.TicketsProcessed,
			TicketsUpdated:   counts.TicketsUpdated,
			TicketsSkipped:   counts.TicketsSkipped,
			TicketsFailed:    counts.TicketsFailed,
			InvalidRecords:   counts.InvalidRecords,
			Pages:            counts.Pages,
			Truncated:        summary.Truncated,
			TruncationReason: summary.TruncationReason,
			GroupsFound:      counts.GroupsFound,
			GroupsValidated:  counts.GroupsValidated,
			GroupsRejected:   counts.GroupsRejected,
			DurationMillis:   summary.FinishedAt.Sub(summary.StartedAt).Milliseconds(),
		},
		Groups:   make([]GroupEntry, 0, len(summary.Validated)),
		Rejected: make([]RejectedEntry, 0, len(summary.Rejected)),
		Warnings: summary.Warnings,
	}

	for _, validated := range summary.Validated {
		report.Groups = append(report.Groups, groupEntry(validated))
	}
	for _, rejected := range summary.Rejected {
		report.Rejected = append(report.Rejected, RejectedEntry{
			Type:      string(rejected.Group.Criterion.KeyType),
			Criterion: criterion(rejected.Group.Criterion),
			Signature: string(rejected.Group.Signature),
			Reason:    Reason{Code: string(rejected.Reason.Code), Message: rejected.Reason.Message},
			Tickets:   ticketEntries(rejected.Group.Members, 0, nil),
		})
	}
	return report
}

func groupEntry(validated domain.ValidatedGroup) GroupEntry {
	parentID := validated.Parent.ID
	outcomes := make(map[int64]domain.TagOutcome, len(validated.Tagging))
	for _, outcome := range validated.Tagging {
		outcomes[outcome.TicketID] = outcome
	}

	// Parent first, then candidates in member order.
	tickets := append([]domain.Ticket{validated.Parent}, validated.Candidates...)
	return GroupEntry{
		Type:      string(validated.Group.Criterion.KeyType),
		Criterion: criterion(validated.Group.Criterion),
		Signature: string(validated.Group.Signature),
		Parent:    &parentID,
		Tickets:   ticketEntries(tickets, parentID, outcomes),
	}
}

func ticketEntries(tickets []domain.Ticket, parentID int64, outcomes map[int64]domain.TagOutcome) []TicketEntry {
	entries := make([]TicketEntry, 0, len(tickets))
	for _, ticket := range tickets {
		entry := TicketEntry{
			ID:        ticket.ID,
			Subject:   ticket.Subject,
			Status:    string(ticket.Status),
			CreatedAt: ticket.CreatedAt.UTC(),
			Parent:    parentID != 0 && ticket.ID == parentID,
		}
		if outcome, ok := outcomes[ticket.ID]; ok {
			entry.Tagged = outcome.Success
			if !outcome.Success {
				entry.Error = outcome.Reason
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

func criterion(c domain.Criterion) Criterion {
	return Criterion{Value: c.Value, Day: c.Day}
}
