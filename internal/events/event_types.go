package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRunStarted     EventType = "run_started"
	EventRunCompleted   EventType = "run_completed"
	EventRunFailed      EventType = "run_failed"
	EventGroupValidated EventType = "group_validated"
	EventGroupRejected  EventType = "group_rejected"
	EventTagFailed      EventType = "tag_failed"
)

// Event represents a run event emitted by the pre-merge service.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RunID     string      `json:"run_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RunStartedPayload payload.
type RunStartedPayload struct {
	Trigger    string `json:"trigger"`
	WindowDays int    `json:"window_days"`
	DryRun     bool   `json:"dry_run"`
}

// RunCompletedPayload payload.
type RunCompletedPayload struct {
	TicketsFetched   int    `json:"tickets_fetched"`
	TicketsUpdated   int    `json:"tickets_updated"`
	TicketsFailed    int    `json:"tickets_failed"`
	GroupsValidated  int    `json:"groups_validated"`
	GroupsRejected   int    `json:"groups_rejected"`
	Truncated        bool   `json:"truncated"`
	TruncationReason string `json:"truncation_reason,omitempty"`
	DurationMillis   int64  `json:"duration_ms"`
}

// RunFailedPayload payload.
type RunFailedPayload struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// GroupPayload describes a validated or rejected group.
type GroupPayload struct {
	KeyType   string  `json:"key_type"`
	Value     string  `json:"value"`
	Day       string  `json:"day"`
	TicketIDs []int64 `json:"ticket_ids"`
	ParentID  int64   `json:"parent_id,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// TagFailedPayload payload.
type TagFailedPayload struct {
	TicketID int64  `json:"ticket_id"`
	Attempts int    `json:"attempts"`
	Reason   string `json:"reason"`
}
