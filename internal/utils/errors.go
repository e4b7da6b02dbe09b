package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures independently of the Go type that carries them.
type ErrorKind string

const (
	KindBadRequest  ErrorKind = "bad_request"
	KindNotFound    ErrorKind = "not_found"
	KindConflict    ErrorKind = "conflict"
	KindTimeout     ErrorKind = "timeout"
	KindUnavailable ErrorKind = "unavailable"
	KindInternal    ErrorKind = "internal"
)

// AppError is an error with a kind, a message describing the failed step, and
// the underlying cause.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error returns "message: cause" when a cause is present.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewInternalError wraps a collaborator failure at an orchestration boundary.
// The message names the step that failed.
func NewInternalError(step string, err error) error {
	return &AppError{Kind: KindInternal, Message: "failed to " + step, Err: err}
}

// NewNotFoundError reports a referenced entity that does not exist.
func NewNotFoundError(format string, args ...interface{}) error {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewBadRequestError reports malformed input.
func NewBadRequestError(format string, args ...interface{}) error {
	return &AppError{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

// NewConflictError reports a request that conflicts with current state.
func NewConflictError(format string, args ...interface{}) error {
	return &AppError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NewTimeoutError wraps a call that ran out of time.
func NewTimeoutError(operation string, err error) error {
	return &AppError{Kind: KindTimeout, Message: operation + " timed out", Err: err}
}

// NewUnavailableError wraps a collaborator that is down or refusing calls.
func NewUnavailableError(service string, err error) error {
	return &AppError{Kind: KindUnavailable, Message: service + " is unavailable", Err: err}
}

// KindOf returns the kind of the outermost AppError in the chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return KindBadRequest
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// RootCause returns the innermost error of the chain.
func RootCause(err error) error {
	for err != nil {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
	return nil
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ValidationError represents an error occurring during data validation.
type ValidationError struct {
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}
