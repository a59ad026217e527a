// Package errors classifies failures at the boundary between this service and
// the prediction backend. Callers see generic messages; logs and metrics see
// the classification.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeTransportFailed  ErrorCode = "TRANSPORT_FAILED"
	ErrCodeBackendFailed    ErrorCode = "BACKEND_FAILED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// Categories used as log fields and metric labels.
const (
	CategoryValidation = "validation"
	CategoryTransport  = "transport"
	CategoryBackend    = "backend"
	CategoryInternal   = "internal"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"statusCode,omitempty"` // backend HTTP status, when there was one
	Timestamp  time.Time `json:"timestamp"`
	Err        error     `json:"-"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Err
}

// NewValidationError reports input rejected before any network call.
func NewValidationError(message string, cause error) *StandardError {
	e := &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Err:       cause,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// NewTransportError reports a request that never produced a response.
func NewTransportError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportFailed,
		Message:   fmt.Sprintf("request to %s failed", service),
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewBackendStatusError reports a non-2xx response.
func NewBackendStatusError(service string, status int, body string) *StandardError {
	return &StandardError{
		Code:       ErrCodeBackendFailed,
		Message:    fmt.Sprintf("%s returned status %d", service, status),
		Details:    body,
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
	}
}

// NewBackendDecodeError reports a 2xx response whose body could not be used.
func NewBackendDecodeError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBackendFailed,
		Message:   fmt.Sprintf("%s returned an unreadable response", service),
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewInternalError wraps anything that is not a backend or input problem.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed:
		return CategoryValidation
	case ErrCodeTransportFailed:
		return CategoryTransport
	case ErrCodeBackendFailed:
		return CategoryBackend
	default:
		return CategoryInternal
	}
}

// Classify returns the category for any error, or "" for nil.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	return GetErrorCategory(Normalize(err).Code)
}

// IsCode reports whether err is a StandardError carrying code.
func IsCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return errors.As(err, &stdErr) && stdErr.Code == code
}
