package zendesk

import (
	"context"
	"fmt"
	"net/http"
)

type ticketEnvelope struct {
	Ticket TicketRecord `json:"ticket"`
}

type tagsUpdate struct {
	Ticket struct {
		Tags []string `json:"tags"`
	} `json:"ticket"`
}

// GetTicket reads a single ticket.
func (c *Client) GetTicket(ctx context.Context, ticketID int64) (*TicketRecord, error) {
	var envelope ticketEnvelope
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tickets/%d.json", ticketID), nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Ticket, nil
}

// TicketTags returns the current tag list of a ticket.
func (c *Client) TicketTags(ctx context.Context, ticketID int64) ([]string, error) {
	ticket, err := c.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return ticket.Tags, nil
}

// UpdateTicketTags replaces the ticket's tag list. Only the tags attribute is
// sent, so other fields are left untouched.
func (c *Client) UpdateTicketTags(ctx context.Context, ticketID int64, tags []string) error {
	var body tagsUpdate
	body.Ticket.Tags = tags
	if body.Ticket.Tags == nil {
		body.Ticket.Tags = []string{}
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/tickets/%d.json", ticketID), body, nil)
}
