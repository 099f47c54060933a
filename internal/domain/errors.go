package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures reported by the mediation core.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindConflict          ErrorKind = "conflict"
	KindEditLimitExceeded ErrorKind = "edit_limit_exceeded"
	KindValidation        ErrorKind = "validation_error"
	KindUpstream          ErrorKind = "upstream_failure"
	KindForbidden         ErrorKind = "forbidden"
)

// Error is a typed failure with a stable code and a caller-safe message.
// Err carries internal detail and is never shown to end users.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrSessionNotFound  = &Error{Kind: KindNotFound, Code: "session_not_found", Message: "session not found"}
	ErrEnvelopeNotFound = &Error{Kind: KindNotFound, Code: "envelope_not_found", Message: "envelope not found"}
	ErrPaymentNotFound  = &Error{Kind: KindNotFound, Code: "payment_not_found", Message: "no checkout recorded with this id"}
	ErrAlreadyJoined    = &Error{Kind: KindConflict, Code: "already_joined", Message: "caller already occupies a party slot"}
	ErrSessionFull      = &Error{Kind: KindConflict, Code: "session_full", Message: "both party slots are occupied"}
	ErrInvalidState     = &Error{Kind: KindInvalidTransition, Code: "invalid_state", Message: "operation not allowed in the current session state"}
	ErrConcurrentUpdate = &Error{Kind: KindConflict, Code: "concurrent_update", Message: "session was modified concurrently, retry"}
	ErrEditLimit        = &Error{Kind: KindEditLimitExceeded, Code: "edit_limit_exceeded", Message: "each party may submit at most two edits"}
	ErrNotParty         = &Error{Kind: KindForbidden, Code: "not_a_party", Message: "caller is not a party to this session"}
)

// NewError builds a typed error.
func NewError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// InvalidTransition reports a violated state machine precondition.
func InvalidTransition(message string) *Error {
	return &Error{Kind: KindInvalidTransition, Code: "invalid_state", Message: message}
}

// Validation reports malformed or oversized input.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: "validation_error", Message: message}
}

// Upstream wraps a provider failure. The provider detail stays in Err.
func Upstream(provider string, err error) *Error {
	return &Error{
		Kind:    KindUpstream,
		Code:    provider + "_unavailable",
		Message: "an external provider failed, please retry",
		Err:     err,
	}
}

// KindOf returns the kind of a typed error, or "" for untyped errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
