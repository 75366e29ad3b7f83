package services

import "errors"

// Error kinds. Handlers map each kind to one HTTP status.
var (
	ErrValidation      = errors.New("validation error")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal error")
)

// Error is a classified failure with a reason that is safe to show to clients.
type Error struct {
	Kind   error
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Reason + ": " + e.cause.Error()
	}
	return e.Reason
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Kind, e.cause}
	}
	return []error{e.Kind}
}

func newError(kind error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// internal wraps an unexpected storage or collaborator failure. The cause is
// kept for logs; the reason shown to clients stays generic.
func internal(reason string, cause error) *Error {
	return &Error{Kind: ErrInternal, Reason: reason, cause: cause}
}

// Reason returns the client-facing reason of err.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	if errors.Is(err, ErrUnauthenticated) {
		return "Invalid or expired token"
	}
	return "Internal server error"
}
