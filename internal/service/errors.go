package service

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable class of a service failure.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindInvalidInput ErrorKind = "invalid_input"
	KindInvalidState ErrorKind = "invalid_state"
	KindConflict     ErrorKind = "conflict"
)

// Error is returned by every service operation that fails for a reason the
// caller can act on. Anything else is an internal failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind and message, so wrapped copies
// of the sentinels below still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// KindOf returns the kind of a service error, or "" for internal errors.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// --- Error Definitions ---
var (
	ErrClientNotFound     = &Error{Kind: KindNotFound, Message: "client not found"}
	ErrUserNotFound       = &Error{Kind: KindNotFound, Message: "user not found"}
	ErrPeriodNotFound     = &Error{Kind: KindNotFound, Message: "week period not found"}
	ErrPeriodClosed       = &Error{Kind: KindConflict, Message: "week period is already closed"}
	ErrAlreadyAdvanced    = &Error{Kind: KindConflict, Message: "rotation already advanced past this week"}
	ErrRotationNotStarted = &Error{Kind: KindInvalidState, Message: "client has no workout start date"}
	ErrNoActiveAssignment = &Error{Kind: KindInvalidState, Message: "client has no active program assignment"}
	ErrExportDisabled     = &Error{Kind: KindInvalidState, Message: "report export storage is not configured"}
)

func invalidInput(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}
