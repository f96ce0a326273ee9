package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-premerge/internal/domain"
)

func sampleSummary() domain.RunSummary {
	started := time.Date(2024, 1, 31, 2, 0, 0, 0, time.UTC)
	a := domain.Ticket{ID: 1, Subject: "Falla motor", Status: "open", RequesterID: 9, CreatedAt: started.AddDate(0, 0, -30)}
	b := domain.Ticket{ID: 2, Subject: "Falla motor", Status: "solved", RequesterID: 9, CreatedAt: started.AddDate(0, 0, -30)}
	c := domain.Ticket{ID: 3, Status: "open", CreatedAt: started}
	d := domain.Ticket{ID: 4, Status: "open", CreatedAt: started}

	validGroup := domain.CandidateGroup{
		Criterion: domain.Criterion{KeyType: domain.KeyTypeVehicleID, Value: "abc123", Day: "2024-01-01"},
		Members:   []domain.Ticket{b, a},
		Signature: "1,2",
	}
	rejectedGroup := domain.CandidateGroup{
		Criterion: domain.Criterion{KeyType: domain.KeyTypeEmail, Value: "x@example.com", Day: "2024-01-31"},
		Members:   []domain.Ticket{c, d},
		Signature: "3,4",
	}

	return domain.RunSummary{
		RunID:            "run-1",
		StartedAt:        started,
		FinishedAt:       started.Add(1500 * time.Millisecond),
		WindowDays:       30,
		Truncated:        true,
		TruncationReason: "page_cap",
		Counts: domain.RunCounts{
			TicketsFetched: 4, TicketsProcessed: 4, TicketsUpdated: 1, TicketsFailed: 1,
			Pages: 10, GroupsFound: 2, GroupsValidated: 1, GroupsRejected: 1,
		},
		Validated: []domain.ValidatedGroup{{
			Group:      validGroup,
			Parent:     a,
			Candidates: []domain.Ticket{b},
			Tagging: []domain.TagOutcome{
				{TicketID: 1, Success: true, Changed: true, Attempts: 1},
				{TicketID: 2, Reason: "HTTP 404"},
			},
		}},
		Rejected: []domain.RejectedGroup{{
			Group:  rejectedGroup,
			Reason: domain.RejectReason{Code: domain.RejectIncorrectActiveCount, Message: "incorrect active-ticket count: 2 (must be 1)"},
		}},
	}
}

func TestBuild(t *testing.T) {
	report := Build(sampleSummary())

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 30, report.WindowDays)
	assert.Equal(t, int64(1500), report.Summary.DurationMillis)
	assert.True(t, report.Summary.Truncated)
	assert.Equal(t, "page_cap", report.Summary.TruncationReason)

	require.Len(t, report.Groups, 1)
	group := report.Groups[0]
	assert.Equal(t, "vehicle_id", group.Type)
	assert.Equal(t, Criterion{Value: "abc123", Day: "2024-01-01"}, group.Criterion)
	require.NotNil(t, group.Parent)
	assert.Equal(t, int64(1), *group.Parent)
	require.Len(t, group.Tickets, 2)
	assert.Equal(t, TicketEntry{ID: 1, Subject: "Falla motor", Status: "open", CreatedAt: group.Tickets[0].CreatedAt, Parent: true, Tagged: true}, group.Tickets[0])
	assert.False(t, group.Tickets[1].Tagged)
	assert.Equal(t, "HTTP 404", group.Tickets[1].Error)

	require.Len(t, report.Rejected, 1)
	assert.Equal(t, Reason{Code: "incorrect_active_count", Message: "incorrect active-ticket count: 2 (must be 1)"}, report.Rejected[0].Reason)
	assert.Len(t, report.Rejected[0].Tickets, 2)
}

func TestBuild_EmptyRunEncodesEmptyLists(t *testing.T) {
	content, err := Marshal(Build(domain.RunSummary{RunID: "r"}))
	require.NoError(t, err)
	assert.Contains(t, string(content), `"groups": []`)
	assert.Contains(t, string(content), `"rejected": []`)
}

func TestFileSink_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	sink := NewFileSink(dir, "pre_merge_candidates.json", nil)

	report := Build(sampleSummary())
	require.NoError(t, sink.Save(context.Background(), report))

	data, err := os.ReadFile(sink.Path())
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.RunID, decoded.RunID)
	assert.Len(t, decoded.Groups, 1)

	// A second save replaces the file.
	report.RunID = "run-2"
	require.NoError(t, sink.Save(context.Background(), report))
	data, err = os.ReadFile(sink.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id": "run-2"`)
}
