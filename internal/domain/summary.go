package domain

import "time"

// TagOutcome is the result of tagging a single ticket.
type TagOutcome struct {
	TicketID int64
	Success  bool
	// Changed is false when the ticket already carried every target tag.
	Changed bool
	// Attempts counts calls in the phase that decided the outcome: the tag
	// update when one was needed, otherwise the tag read.
	Attempts int
	Reason   string
}

// ValidatedGroup is a group that passed the rule chain, with the tagging
// outcome of each of its tickets (parent first).
type ValidatedGroup struct {
	Group      CandidateGroup
	Parent     Ticket
	Candidates []Ticket
	Tagging    []TagOutcome
}

// RejectedGroup is a group that failed the rule chain.
type RejectedGroup struct {
	Group  CandidateGroup
	Reason RejectReason
}

// RunCounts aggregates per-run counters.
type RunCounts struct {
	TicketsFetched   int
	TicketsProcessed int
	TicketsUpdated   int
	TicketsSkipped   int
	TicketsFailed    int
	InvalidRecords   int
	Pages            int
	GroupsFound      int
	GroupsValidated  int
	GroupsRejected   int
}

// RunSummary is the complete outcome of one run, handed to report sinks.
type RunSummary struct {
	RunID            string
	StartedAt        time.Time
	FinishedAt       time.Time
	WindowDays       int
	DryRun           bool
	Truncated        bool
	TruncationReason string
	Counts           RunCounts
	Validated        []ValidatedGroup
	Rejected         []RejectedGroup
	Warnings         []string
}
