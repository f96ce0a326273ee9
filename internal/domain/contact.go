package domain

import "strings"

// Contact holds the normalized contact data of a requester. Empty strings
// mean the value is absent.
type Contact struct {
	RequesterID int64
	Email       string
	Phone       string
}

// NewContact normalizes raw profile values: email is trimmed and
// lower-cased, phone is trimmed.
func NewContact(requesterID int64, email, phone string) Contact {
	return Contact{
		RequesterID: requesterID,
		Email:       strings.ToLower(strings.TrimSpace(email)),
		Phone:       strings.TrimSpace(phone),
	}
}

// IsEmpty reports whether neither email nor phone is known.
func (c Contact) IsEmpty() bool {
	return c.Email == "" && c.Phone == ""
}
