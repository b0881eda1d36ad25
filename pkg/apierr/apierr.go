// Package apierr classifies failures of the engagement core into the four
// kinds callers act on: validation, auth, transport, and not-found. Callers
// branch on the kind, never on transport details.
package apierr

import (
	"errors"
	"fmt"
)

// Kind is the failure class of an Error.
type Kind string

const (
	// KindValidation marks a client- or server-rejected field. Recoverable;
	// the caller keeps the draft and reports the field inline.
	KindValidation Kind = "validation"
	// KindAuth marks a missing, expired, or rejected credential. Not locally
	// recoverable; the caller clears the session and redirects to login.
	KindAuth Kind = "auth"
	// KindTransport marks a network failure, timeout, or unexpected status.
	// Recoverable by user-initiated retry.
	KindTransport Kind = "transport"
	// KindNotFound marks an absent gig, profile, or company. Rendered as an
	// empty state, not a crash.
	KindNotFound Kind = "not_found"
)

// Error is a classified failure. Op names the operation that failed and
// Field is set for validation errors only.
type Error struct {
	Kind  Kind
	Op    string
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s %s: %s: %v", e.Op, e.Kind, e.Field, e.Msg, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: %s %s: %s", e.Op, e.Kind, e.Field, e.Msg)
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error with a human-readable message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Field builds a validation error naming the rejected field.
func Field(op, field, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Msg: msg}
}

// KindOf returns the kind of err, or KindTransport when err carries no
// classification. An unclassified failure is treated as a transport fault so
// callers fail toward "retryable" rather than dropping state.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransport
}

func is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return is(err, KindValidation) }

// IsAuth reports whether err is an auth failure.
func IsAuth(err error) bool { return is(err, KindAuth) }

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool { return is(err, KindTransport) }

// IsNotFound reports whether err is a not-found condition.
func IsNotFound(err error) bool { return is(err, KindNotFound) }
