package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the application error type carried through handlers. It pairs a
// user-facing message with the HTTP status code it should surface as, and
// optionally wraps the underlying cause.
type Error struct {
	Code    int
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

// NotFound reports an absent resource (404).
func NotFound(format string, args ...any) *Error {
	return &Error{Code: http.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation reports a business-rule violation (400).
func Validation(format string, args ...any) *Error {
	return &Error{Code: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a duplicate resource (409).
func Conflict(format string, args ...any) *Error {
	return &Error{Code: http.StatusConflict, Message: fmt.Sprintf(format, args...)}
}

// Unauthenticated reports a missing or invalid identity (401).
func Unauthenticated(message string) *Error {
	if message == "" {
		message = "authentication required"
	}
	return &Error{Code: http.StatusUnauthorized, Message: message}
}

// Forbidden reports an ownership or permission failure (403).
func Forbidden(message string) *Error {
	if message == "" {
		message = "permission denied"
	}
	return &Error{Code: http.StatusForbidden, Message: message}
}

// Database wraps a store transport or operation failure (500). The wrapped
// cause is only surfaced to clients in debug mode.
func Database(message string, err error) *Error {
	if message == "" {
		message = "database operation failed"
	}
	return &Error{Code: http.StatusInternalServerError, Message: message, Err: err}
}

// IsNotFound reports whether err is a 404 Error.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// IsConflict reports whether err is a 409 Error.
func IsConflict(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}

// IsValidation reports whether err is a 400 Error.
func IsValidation(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest
}
