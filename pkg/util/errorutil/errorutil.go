package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

const (
	CodeConfigurationInvalid = "CONFIGURATION_INVALID"
	CodeFetchAborted         = "FETCH_ABORTED"
	CodeRunInProgress        = "RUN_IN_PROGRESS"
	CodeShuttingDown         = "SHUTTING_DOWN"
	CodeReportFailed         = "REPORT_FAILED"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeNotFound             = "NOT_FOUND"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeInternal             = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewConfigurationError reports missing credentials or required settings.
// Runs never start when configuration is invalid.
func NewConfigurationError(message string, details map[string]any) error {
	return NewDomainError(CodeConfigurationInvalid, message, http.StatusInternalServerError, details)
}

// NewFetchAborted wraps a fatal ticket fetch failure.
func NewFetchAborted(err error) error {
	return &DomainError{
		Code:       CodeFetchAborted,
		Message:    "ticket fetch aborted",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewRunInProgress() error {
	return NewDomainError(CodeRunInProgress, "a pre-merge run is already in progress", http.StatusConflict, nil)
}

// NewShuttingDown rejects runs requested after shutdown began.
func NewShuttingDown() error {
	return NewDomainError(CodeShuttingDown, "service is shutting down", http.StatusServiceUnavailable, nil)
}

func NewReportFailed(err error) error {
	return &DomainError{
		Code:       CodeReportFailed,
		Message:    "report sink failed",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err wraps a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}
