// Package protocol defines the structured error contract shared by every
// tool and resource handler.
//
// Every caller-visible failure is an *Error with a Kind tag; the facade
// converts it to the wire shape {code, message, action} in exactly one
// place (WireError). Internal faults that are not *Error are wrapped as
// ExecutionFailed before they cross the boundary, so raw Go errors never
// leak to the client.
package protocol

import (
	"errors"
	"fmt"
)

// Kind classifies a caller-visible failure.
type Kind string

const (
	// KindInputInvalid covers malformed or missing arguments.
	KindInputInvalid Kind = "input_invalid"
	// KindNotFound covers unknown sessions, jobs, and resource URIs.
	KindNotFound Kind = "not_found"
	// KindSequenceMismatch covers resume cursors ahead of the event log.
	KindSequenceMismatch Kind = "sequence_mismatch"
	// KindSecurityRejected covers origin and bearer-auth rejections.
	KindSecurityRejected Kind = "security_rejected"
	// KindExecutionFailed covers faults from the injected answer and
	// regeneration callbacks.
	KindExecutionFailed Kind = "execution_failed"
)

// Error is the tagged failure type carried across internal boundaries.
// Code is stable and machine-readable; Message says what went wrong;
// Action tells the caller what to do next.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Action  string

	// Field names the offending argument for input validation errors.
	Field string
	// Alternatives lists valid ids/URIs for not-found errors, when the
	// valid set is small enough to enumerate.
	Alternatives []string
	// Cause preserves the underlying error for logging; it is never
	// serialized to the client.
	Cause error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WireError is the three-field shape every error takes on the wire.
type WireError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Action  string   `json:"action"`
	Field   string   `json:"field,omitempty"`
	Uris    []string `json:"availableUris,omitempty"`
}

// Wire converts any error into the wire shape. A non-*Error input is
// treated as an execution failure so nothing escapes unnormalized.
func Wire(err error) WireError {
	var pe *Error
	if !errors.As(err, &pe) {
		pe = ExecutionFailed("internal_error", err.Error(),
			"Retry the call; if the failure persists, check the server logs.", err)
	}
	return WireError{
		Code:    pe.Code,
		Message: pe.Message,
		Action:  pe.Action,
		Field:   pe.Field,
		Uris:    pe.Alternatives,
	}
}

// InvalidInput reports a malformed argument.
func InvalidInput(field, message string) *Error {
	return &Error{
		Kind:    KindInputInvalid,
		Code:    "invalid_argument",
		Message: message,
		Action:  fmt.Sprintf("Fix the %q argument and call the tool again.", field),
		Field:   field,
	}
}

// NotFound reports an unknown id or URI. alternatives may be nil.
func NotFound(code, message, action string, alternatives []string) *Error {
	return &Error{
		Kind:         KindNotFound,
		Code:         code,
		Message:      message,
		Action:       action,
		Alternatives: alternatives,
	}
}

// SequenceMismatch reports a resume cursor beyond the session's log.
func SequenceMismatch(sessionID string, ack, last int64) *Error {
	return &Error{
		Kind: KindSequenceMismatch,
		Code: "sequence_mismatch",
		Message: fmt.Sprintf(
			"lastAckSequence %d is beyond the log of session %q (lastSequence %d)",
			ack, sessionID, last),
		Action: "Call qa_stream_status to learn the current lastSequence, then resume from there.",
	}
}

// SecurityRejected reports an origin or auth rejection.
func SecurityRejected(code, message, action string) *Error {
	return &Error{
		Kind:    KindSecurityRejected,
		Code:    code,
		Message: message,
		Action:  action,
	}
}

// ExecutionFailed wraps a fault from an injected callback.
func ExecutionFailed(code, message, action string, cause error) *Error {
	return &Error{
		Kind:    KindExecutionFailed,
		Code:    code,
		Message: message,
		Action:  action,
		Cause:   cause,
	}
}

// IsKind reports whether err is a protocol error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}
