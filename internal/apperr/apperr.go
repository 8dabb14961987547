// Package apperr provides structured domain errors with machine-readable codes.
package apperr

import "errors"

// Code is a stable machine-readable error code surfaced to API clients.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Enrolment rule violations.
	CodeEventNotPublished   Code = "EVENT_NOT_PUBLISHED"
	CodeIneligibleEnrolment Code = "INELIGIBLE_ENROLMENT"
	CodeChildAlreadyJoined  Code = "CHILD_ALREADY_JOINED"
	CodeOccurrenceFull      Code = "OCCURRENCE_FULL"
	CodePastOccurrence      Code = "PAST_OCCURRENCE"
	CodePastEnrolment       Code = "PAST_ENROLMENT"

	// Ticket credential pool.
	CodeNoFreePasswords         Code = "NO_FREE_PASSWORDS"
	CodePasswordAlreadyAssigned Code = "PASSWORD_ALREADY_ASSIGNED"

	// Publish and update preconditions.
	CodeEventAlreadyPublished           Code = "EVENT_ALREADY_PUBLISHED"
	CodeEventGroupAlreadyPublished      Code = "EVENT_GROUP_ALREADY_PUBLISHED"
	CodeEventGroupNotReadyForPublishing Code = "EVENT_GROUP_NOT_READY_FOR_PUBLISHING"
	CodeDataValidation                  Code = "DATA_VALIDATION_ERROR"
	CodeTicketSystemURLMissing          Code = "TICKET_SYSTEM_URL_MISSING"
	CodeMissingDefaultTranslation       Code = "MISSING_DEFAULT_TRANSLATION"
	CodeOccurrenceYearMismatch          Code = "OCCURRENCE_YEAR_MISMATCH"
	CodeSingleEventsDisallowed          Code = "SINGLE_EVENTS_DISALLOWED"

	// Lookup and authorization.
	CodeObjectDoesNotExist Code = "OBJECT_DOES_NOT_EXIST"
	CodePermissionDenied   Code = "PERMISSION_DENIED"

	// Ticket reference codec.
	CodeMalformedReference Code = "MALFORMED_REFERENCE"
	CodeEnrolmentNotFound  Code = "ENROLMENT_NOT_FOUND"
)

// Error is the domain error type carrying a stable code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code from anywhere in err's chain, or CodeUnknown for
// non-domain errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
