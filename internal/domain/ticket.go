package domain

import (
	"strings"
	"time"
)

// TicketStatus mirrors the ticketing system's lifecycle states.
type TicketStatus string

const (
	TicketStatusNew     TicketStatus = "new"
	TicketStatusOpen    TicketStatus = "open"
	TicketStatusPending TicketStatus = "pending"
	TicketStatusHold    TicketStatus = "hold"
	TicketStatusSolved  TicketStatus = "solved"
	TicketStatusClosed  TicketStatus = "closed"
)

// IsTerminal reports whether the case is no longer active.
func (s TicketStatus) IsTerminal() bool {
	switch TicketStatus(strings.ToLower(string(s))) {
	case TicketStatusSolved, TicketStatusClosed:
		return true
	default:
		return false
	}
}

// Ticket is a validated, read-only view of a fetched ticket.
type Ticket struct {
	ID           int64
	Subject      string
	Status       TicketStatus
	RequesterID  int64
	CreatedAt    time.Time
	CustomFields map[int64]string
	Tags         []string
}

// Field returns the normalized value of a custom field, or "" when unset.
func (t Ticket) Field(fieldID int64) string {
	if t.CustomFields == nil {
		return ""
	}
	return NormalizeKey(t.CustomFields[fieldID])
}

// IsActive reports whether the ticket is in a non-terminal status.
func (t Ticket) IsActive() bool {
	return !t.Status.IsTerminal()
}

// Day returns the creation date bucket in loc, formatted as YYYY-MM-DD.
func (t Ticket) Day(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.CreatedAt.In(loc).Format(DayLayout)
}

// DayLayout is the format of day buckets.
const DayLayout = "2006-01-02"

// NormalizeKey trims and lower-cases a grouping value.
func NormalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
