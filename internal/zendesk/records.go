package zendesk

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/ticket-premerge/internal/domain"
)

// ErrInvalidRecord marks an API record that lacks fields required to build
// a domain value.
var ErrInvalidRecord = errors.New("invalid record")

// CustomField is a ticket custom field as returned by the API. Value may be
// a string, number, bool, list or null depending on the field type.
type CustomField struct {
	ID    int64 `json:"id"`
	Value any   `json:"value"`
}

// TicketRecord is the wire form of a ticket.
type TicketRecord struct {
	ID           int64         `json:"id"`
	ResultType   string        `json:"result_type,omitempty"`
	Subject      string        `json:"subject"`
	Status       string        `json:"status"`
	RequesterID  int64         `json:"requester_id"`
	CreatedAt    string        `json:"created_at"`
	CustomFields []CustomField `json:"custom_fields"`
	Tags         []string      `json:"tags"`
}

// ToTicket validates the record at the API boundary. Records without an id
// or a parseable creation time are rejected with ErrInvalidRecord.
func (r TicketRecord) ToTicket() (domain.Ticket, error) {
	if r.ID <= 0 {
		return domain.Ticket{}, fmt.Errorf("%w: ticket without id", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.CreatedAt) == "" {
		return domain.Ticket{}, fmt.Errorf("%w: ticket %d without created_at", ErrInvalidRecord, r.ID)
	}
	createdAt, err := time.Parse(time.RFC3339, r.CreatedAt)
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("%w: ticket %d created_at %q: %v", ErrInvalidRecord, r.ID, r.CreatedAt, err)
	}

	fields := make(map[int64]string, len(r.CustomFields))
	for _, field := range r.CustomFields {
		if value, ok := fieldString(field.Value); ok {
			fields[field.ID] = value
		}
	}

	return domain.Ticket{
		ID:           r.ID,
		Subject:      r.Subject,
		Status:       domain.TicketStatus(strings.ToLower(strings.TrimSpace(r.Status))),
		RequesterID:  r.RequesterID,
		CreatedAt:    createdAt,
		CustomFields: fields,
		Tags:         append([]string(nil), r.Tags...),
	}, nil
}

func fieldString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := fieldString(item); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ","), len(parts) > 0
	default:
		return fmt.Sprint(v), true
	}
}

// UserRecord is the wire form of a user profile.
type UserRecord struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// ToContact normalizes the profile's contact data.
func (u UserRecord) ToContact() domain.Contact {
	var email, phone string
	if u.Email != nil {
		email = *u.Email
	}
	if u.Phone != nil {
		phone = *u.Phone
	}
	return domain.NewContact(u.ID, email, phone)
}
