package feed

import (
	"errors"
	"fmt"
)

// Error codes follow HTTP semantics, like the backends this client talks to.
const (
	CodeInvalidArgument = 400
	CodeUnauthorized    = 401
	CodeNotFound        = 404
	CodeInternal        = 500
	CodeUnavailable     = 503
)

// Error is a failed backend call.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("feed error %d: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code, so callers can compare against the
// sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrUnauthorized    = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrNotFound        = &Error{Code: CodeNotFound, Message: "not found"}
	ErrUnavailable     = &Error{Code: CodeUnavailable, Message: "unavailable"}
)

// Errorf builds an *Error with a formatted message.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
