package validation

import (
	"context"
	"fmt"

	"github.com/spec-kit/ticket-premerge/internal/domain"
)

// RuleName identifies a rule of the chain.
type RuleName string

const (
	RuleSize               RuleName = "size"
	RuleSingleRequester    RuleName = "single_requester"
	RuleContactPresent     RuleName = "contact_present"
	RuleContactConsistency RuleName = "contact_consistency"
	RuleActiveCount        RuleName = "active_count"
	RuleParentCandidacy    RuleName = "parent_candidacy"
)

// ChainOrder is the fixed evaluation order. Policies only switch rules on
// or off; they never reorder them.
var ChainOrder = []RuleName{
	RuleSize,
	RuleSingleRequester,
	RuleContactPresent,
	RuleContactConsistency,
	RuleActiveCount,
	RuleParentCandidacy,
}

func knownRule(name RuleName) bool {
	for _, known := range ChainOrder {
		if known == name {
			return true
		}
	}
	return false
}

// ContactLookup resolves a requester to normalized contact data.
type ContactLookup interface {
	Lookup(ctx context.Context, requesterID int64) domain.Contact
}

// ParentCriteria is the service-area predicate a parent must satisfy.
type ParentCriteria struct {
	AreaFieldID int64
	ServiceArea string
}

func (p ParentCriteria) eligible(ticket domain.Ticket) bool {
	return ticket.IsActive() && ticket.Field(p.AreaFieldID) == domain.NormalizeKey(p.ServiceArea)
}

// evaluation carries per-group state between rules.
type evaluation struct {
	ctx      context.Context
	group    domain.CandidateGroup
	contacts ContactLookup
	criteria ParentCriteria
	parent   *domain.Ticket
}

func (e *evaluation) contact(ticket domain.Ticket) domain.Contact {
	if e.contacts == nil {
		return domain.Contact{}
	}
	return e.contacts.Lookup(e.ctx, ticket.RequesterID)
}

type rule func(e *evaluation) *domain.RejectReason

var rules = map[RuleName]rule{
	RuleSize:               checkSize,
	RuleSingleRequester:    checkSingleRequester,
	RuleContactPresent:     checkContactPresent,
	RuleContactConsistency: checkContactConsistency,
	RuleActiveCount:        checkActiveCount,
	RuleParentCandidacy:    checkParentCandidacy,
}

func reject(code domain.RejectCode, format string, args ...any) *domain.RejectReason {
	return &domain.RejectReason{Code: code, Message: fmt.Sprintf(format, args...)}
}

func checkSize(e *evaluation) *domain.RejectReason {
	if n := len(e.group.Members); n < 2 {
		return reject(domain.RejectTooFewTickets, "group has %d ticket(s) (need at least 2)", n)
	}
	return nil
}

func checkSingleRequester(e *evaluation) *domain.RejectReason {
	var requester int64
	for _, ticket := range e.group.Members {
		if ticket.RequesterID == 0 {
			return reject(domain.RejectMissingRequester, "ticket %d has no requester", ticket.ID)
		}
		if requester == 0 {
			requester = ticket.RequesterID
			continue
		}
		if ticket.RequesterID != requester {
			return reject(domain.RejectDifferentRequesters, "different requesters: %d and %d", requester, ticket.RequesterID)
		}
	}
	return nil
}

func checkContactPresent(e *evaluation) *domain.RejectReason {
	for _, ticket := range e.group.Members {
		if e.contact(ticket).IsEmpty() {
			return reject(domain.RejectMissingContact, "requester of ticket %d has no email or phone", ticket.ID)
		}
	}
	return nil
}

// checkContactConsistency compares every known email and phone against the
// first known value. Absent values never conflict.
func checkContactConsistency(e *evaluation) *domain.RejectReason {
	var email, phone string
	for _, ticket := range e.group.Members {
		contact := e.contact(ticket)
		if contact.Email != "" {
			if email == "" {
				email = contact.Email
			} else if contact.Email != email {
				return reject(domain.RejectContactMismatch, "contact mismatch: email %q vs %q", email, contact.Email)
			}
		}
		if contact.Phone != "" {
			if phone == "" {
				phone = contact.Phone
			} else if contact.Phone != phone {
				return reject(domain.RejectContactMismatch, "contact mismatch: phone %q vs %q", phone, contact.Phone)
			}
		}
	}
	return nil
}

func checkActiveCount(e *evaluation) *domain.RejectReason {
	active := 0
	for _, ticket := range e.group.Members {
		if ticket.IsActive() {
			active++
		}
	}
	if active != 1 {
		return reject(domain.RejectIncorrectActiveCount, "incorrect active-ticket count: %d (must be 1)", active)
	}
	return nil
}

func checkParentCandidacy(e *evaluation) *domain.RejectReason {
	for i := range e.group.Members {
		if e.criteria.eligible(e.group.Members[i]) {
			parent := e.group.Members[i]
			e.parent = &parent
			return nil
		}
	}
	return reject(domain.RejectNoEligibleParent, "no eligible parent ticket")
}
