package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-premerge/internal/clock"
	"github.com/spec-kit/ticket-premerge/internal/domain"
	"github.com/spec-kit/ticket-premerge/internal/zendesk"
	apperrors "github.com/spec-kit/ticket-premerge/pkg/util/errorutil"
)

const (
	TruncatedPageCap     = "page_cap"
	TruncatedSearchLimit = "search_limit"
)

// SearchClient is the subset of the Zendesk client used to page through
// search results.
type SearchClient interface {
	Search(ctx context.Context, query string) (*zendesk.SearchPage, error)
	SearchNext(ctx context.Context, path string) (*zendesk.SearchPage, error)
}

// Options configures the fetch window.
type Options struct {
	WindowDays int
	MaxPages   int
	// Filters are extra search terms appended to the base query,
	// e.g. "-tags:merge_validado".
	Filters  []string
	Location *time.Location
}

// InvalidRecord is a search result rejected at the API boundary.
type InvalidRecord struct {
	TicketID int64
	Reason   string
}

// Result is the outcome of one fetch.
type Result struct {
	Tickets          []domain.Ticket
	Fetched          int
	Pages            int
	Truncated        bool
	TruncationReason string
	Invalid          []InvalidRecord
	Duplicates       int
}

// TicketSource fetches the tickets of a trailing time window.
type TicketSource struct {
	client SearchClient
	opts   Options
	clock  clock.Clock
	logger *zap.Logger
}

// New builds a TicketSource. MaxPages below one is treated as one.
func New(client SearchClient, opts Options, clk clock.Clock, logger *zap.Logger) *TicketSource {
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketSource{client: client, opts: opts, clock: clk, logger: logger}
}

// Query returns the search query for the current window.
func (s *TicketSource) Query() string {
	since := s.clock.Now().In(s.opts.Location).AddDate(0, 0, -s.opts.WindowDays)
	terms := []string{"type:ticket", "created>=" + since.Format(domain.DayLayout)}
	for _, filter := range s.opts.Filters {
		if filter = strings.TrimSpace(filter); filter != "" {
			terms = append(terms, filter)
		}
	}
	return strings.Join(terms, " ")
}

// Fetch pages through the search results in order. Reaching the page cap or
// the API's search limit (HTTP 422) ends the fetch with the tickets gathered
// so far; any other error aborts with a FETCH_ABORTED domain error.
func (s *TicketSource) Fetch(ctx context.Context) (*Result, error) {
	query := s.Query()
	result := &Result{}
	seen := make(map[int64]struct{})

	s.logger.Info("fetching tickets", zap.String("query", query), zap.Int("max_pages", s.opts.MaxPages))

	next := ""
	for {
		var (
			page *zendesk.SearchPage
			err  error
		)
		if result.Pages == 0 {
			page, err = s.client.Search(ctx, query)
		} else {
			page, err = s.client.SearchNext(ctx, next)
		}
		if err != nil {
			if zendesk.IsUnprocessable(err) {
				result.Truncated = true
				result.TruncationReason = TruncatedSearchLimit
				s.logger.Warn("search limit reached; processing tickets gathered so far",
					zap.Int("pages", result.Pages),
					zap.Int("tickets", len(result.Tickets)))
				return result, nil
			}
			return nil, apperrors.NewFetchAborted(fmt.Errorf("search page %d: %w", result.Pages+1, err))
		}

		result.Pages++
		s.collect(result, page.Results, seen)

		next, err = zendesk.RelativePath(page.NextPage)
		if err != nil {
			return nil, apperrors.NewFetchAborted(err)
		}
		if next == "" {
			break
		}
		if result.Pages >= s.opts.MaxPages {
			result.Truncated = true
			result.TruncationReason = TruncatedPageCap
			s.logger.Warn("page cap reached; processing tickets gathered so far",
				zap.Int("max_pages", s.opts.MaxPages),
				zap.Int("tickets", len(result.Tickets)))
			break
		}
	}

	s.logger.Info("tickets fetched",
		zap.Int("pages", result.Pages),
		zap.Int("fetched", result.Fetched),
		zap.Int("valid", len(result.Tickets)),
		zap.Int("invalid", len(result.Invalid)))
	return result, nil
}

func (s *TicketSource) collect(result *Result, records []zendesk.TicketRecord, seen map[int64]struct{}) {
	for _, record := range records {
		if record.ResultType != "" && record.ResultType != "ticket" {
			continue
		}
		result.Fetched++

		ticket, err := record.ToTicket()
		if err != nil {
			result.Invalid = append(result.Invalid, InvalidRecord{TicketID: record.ID, Reason: err.Error()})
			s.logger.Warn("skipping invalid ticket record", zap.Int64("ticket_id", record.ID), zap.Error(err))
			continue
		}
		if _, dup := seen[ticket.ID]; dup {
			result.Duplicates++
			continue
		}
		seen[ticket.ID] = struct{}{}
		result.Tickets = append(result.Tickets, ticket)
	}
}
