package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the lifecycle/SLA core taxonomy.
const (
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeWorkflowComplete       = "WORKFLOW_COMPLETE"
	CodeTerminalState          = "TERMINAL_STATE"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodePolicyNotFound         = "POLICY_NOT_FOUND"
	CodeInternal               = "INTERNAL_ERROR"
)

// DomainError standardizes application errors. Nothing here is shown to an
// end user directly; the calling layer translates codes into messages.
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

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, details)
}

// NewInvalidTransition rejects a lifecycle mutation; the ticket is left
// unchanged.
func NewInvalidTransition(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidTransition, message, http.StatusConflict, details)
}

// NewWorkflowComplete signals that the workflow already sits at its final
// step and cannot advance further.
func NewWorkflowComplete(ticketID string) error {
	return NewDomainError(CodeWorkflowComplete, "workflow already at final step", http.StatusConflict,
		map[string]any{"ticket_id": ticketID})
}

// NewTerminalState signals a mutation attempt on a closed or cancelled
// ticket.
func NewTerminalState(ticketID string) error {
	return NewDomainError(CodeTerminalState, "ticket is in a terminal state", http.StatusConflict,
		map[string]any{"ticket_id": ticketID})
}

// NewConcurrentModification reports an optimistic-lock conflict; callers
// retry after re-reading the ticket.
func NewConcurrentModification(ticketID string) error {
	return NewDomainError(CodeConcurrentModification, "ticket was modified concurrently", http.StatusConflict,
		map[string]any{"ticket_id": ticketID})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given domain error code.
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
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
