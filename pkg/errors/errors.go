package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Lesson scheduling errors.
var (
	ErrPastDate           = New("PAST_DATE", http.StatusUnprocessableEntity, "lesson date is in the past")
	ErrInvalidTimeRange   = New("INVALID_TIME_RANGE", http.StatusBadRequest, "start time must be before end time")
	ErrNoActiveEnrollment = New("NO_ACTIVE_ENROLLMENT", http.StatusUnprocessableEntity, "no active enrollment for student, subject and teacher")
	ErrAlreadyStarted     = New("ALREADY_STARTED", http.StatusConflict, "lesson has already started")
	ErrAlreadyCancelled   = New("ALREADY_CANCELLED", http.StatusConflict, "lesson is already cancelled")
	ErrAlreadyCompleted   = New("ALREADY_COMPLETED", http.StatusConflict, "lesson is already completed")
	ErrCancellationWindow = New("CANCELLATION_WINDOW", http.StatusUnprocessableEntity, "lesson can no longer be cancelled")
	ErrBusy               = New("BUSY", http.StatusServiceUnavailable, "schedule is busy, retry later")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// IsCode reports whether err carries the same code as target.
func IsCode(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}

// Retryable reports whether the caller may retry the failed operation.
func Retryable(err error) bool {
	return IsCode(err, ErrBusy)
}
