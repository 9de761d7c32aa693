package domain

import (
	"fmt"
	"strings"
)

// Error types for consistent error handling across the BFA.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrForbidden indicates the user lacks permission for the operation.
// RequiredRoles names the roles that would have been allowed, when known.
type ErrForbidden struct {
	Action        string
	RequiredRoles []Role
}

func (e *ErrForbidden) Error() string {
	if len(e.RequiredRoles) == 0 {
		return fmt.Sprintf("forbidden: %s", e.Action)
	}
	names := make([]string, 0, len(e.RequiredRoles))
	for _, r := range e.RequiredRoles {
		names = append(names, r.String())
	}
	return fmt.Sprintf("forbidden: %s (requires %s)", e.Action, strings.Join(names, ", "))
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates the backend refused an operation because of existing state,
// e.g. an order already derived from the quote.
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrInvalidTransition indicates a quote event that its current approval state does not accept.
type ErrInvalidTransition struct {
	QuoteID int64
	From    ApprovalStatus
	Event   string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("quote %d: %s not allowed from %s", e.QuoteID, e.Event, e.From)
}

// ErrNotEligible indicates the backend eligibility check refused order creation.
type ErrNotEligible struct {
	QuoteID int64
}

func (e *ErrNotEligible) Error() string {
	return fmt.Sprintf("quote %d is not eligible for order creation: it must be approved and accepted first", e.QuoteID)
}

// ErrCorruptSession indicates a stored session record that could not be decoded.
type ErrCorruptSession struct {
	SessionID string
	Err       error
}

func (e *ErrCorruptSession) Error() string {
	return fmt.Sprintf("corrupt session record %s: %v", e.SessionID, e.Err)
}

func (e *ErrCorruptSession) Unwrap() error {
	return e.Err
}
