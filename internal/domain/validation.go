package domain

// RejectCode classifies why a group failed validation.
type RejectCode string

const (
	RejectTooFewTickets        RejectCode = "too_few_tickets"
	RejectMissingRequester     RejectCode = "missing_requester"
	RejectDifferentRequesters  RejectCode = "different_requesters"
	RejectMissingContact       RejectCode = "missing_contact"
	RejectContactMismatch      RejectCode = "contact_mismatch"
	RejectIncorrectActiveCount RejectCode = "incorrect_active_count"
	RejectNoEligibleParent     RejectCode = "no_eligible_parent"
)

// RejectReason is the first failing rule of a rejected group.
type RejectReason struct {
	Code    RejectCode
	Message string
}

// ValidationResult is the verdict of the rule chain for one group.
type ValidationResult struct {
	Valid      bool
	Parent     *Ticket
	Candidates []Ticket
	Reason     *RejectReason
}

// Accept builds a valid result.
func Accept(parent Ticket, candidates []Ticket) ValidationResult {
	return ValidationResult{Valid: true, Parent: &parent, Candidates: candidates}
}

// Reject builds a rejected result.
func Reject(code RejectCode, message string) ValidationResult {
	return ValidationResult{Reason: &RejectReason{Code: code, Message: message}}
}
