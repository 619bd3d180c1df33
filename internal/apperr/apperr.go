// Package apperr defines the error kinds surfaced by docshelf operations.
//
// Every operation that can fail for a domain reason returns an *Error with an
// explicit Kind. Callers switch on KindOf(err) instead of inspecting concrete
// error types, and the HTTP layer maps each Kind to exactly one status code.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	// KindInternal is an unexpected storage or infrastructure failure.
	KindInternal Kind = iota
	// KindUnauthenticated means no valid token was presented where one is required.
	KindUnauthenticated
	// KindForbidden means the actor is authenticated but its role or ownership is insufficient.
	KindForbidden
	// KindNotFound means the addressed record does not exist.
	KindNotFound
	// KindConflict is a uniqueness violation on email or username.
	KindConflict
	// KindInvalidCredentials is a failed login. The cause is never disclosed.
	KindInvalidCredentials
	// KindInvalidInput is a malformed or rejected request.
	KindInvalidInput
	// KindUpstream is a failure of the ingestion service.
	KindUpstream
)

var kindNames = map[Kind]string{
	KindInternal:           "internal",
	KindUnauthenticated:    "unauthenticated",
	KindForbidden:          "forbidden",
	KindNotFound:           "not_found",
	KindConflict:           "conflict",
	KindInvalidCredentials: "invalid_credentials",
	KindInvalidInput:       "invalid_input",
	KindUpstream:           "upstream_failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// HTTPStatus returns the status code a handler responds with for this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated, KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalidInput, KindUpstream:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Message is safe to show to the caller; Err
// holds the underlying cause, which is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an error of the given kind carrying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf reports the kind of err. Errors that were never classified are
// treated as internal failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the text that may be sent to a caller for err.
// Internal failures never leak their cause.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal server error"
}

// Convenience constructors for the kinds raised most often.

func Unauthenticated(message string) *Error { return New(KindUnauthenticated, message) }

func Forbidden(message string) *Error { return New(KindForbidden, message) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func Conflict(message string) *Error { return New(KindConflict, message) }

func InvalidInput(message string) *Error { return New(KindInvalidInput, message) }

func Internal(message string, cause error) *Error { return Wrap(KindInternal, message, cause) }
