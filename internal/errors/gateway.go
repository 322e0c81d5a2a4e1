package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Base error types
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUpstream     = errors.New("upstream failure")
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeForbidden  ErrorType = "forbidden"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeUpstream   ErrorType = "upstream"
	ErrorTypeInternal   ErrorType = "internal"
)

// RequestError is a structured error for a failed gateway request.
type RequestError struct {
	Type           ErrorType
	Op             string // Operation that failed (e.g., "fetch_log", "resolve_file")
	Reason         string // Short machine-readable reason for the response body
	Err            error  // Underlying error
	UpstreamStatus int    // Upstream HTTP status if applicable, for operators
}

func (e *RequestError) Error() string {
	if e.UpstreamStatus != 0 {
		return fmt.Sprintf("%s failed (upstream %d): %v", e.Op, e.UpstreamStatus, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Reason)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *RequestError) Is(target error) bool {
	if target == nil {
		return false
	}

	switch target {
	case ErrUnauthorized:
		return e.Type == ErrorTypeAuth
	case ErrForbidden:
		return e.Type == ErrorTypeForbidden
	case ErrNotFound:
		return e.Type == ErrorTypeNotFound
	case ErrInvalidInput:
		return e.Type == ErrorTypeValidation
	case ErrUpstream:
		return e.Type == ErrorTypeUpstream
	}

	return errors.Is(e.Err, target)
}

// HTTPStatus maps the error category to the gateway's response status.
func (e *RequestError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeAuth:
		return http.StatusUnauthorized
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// New creates a RequestError with a machine-readable reason.
func New(errorType ErrorType, op, reason string) *RequestError {
	return &RequestError{Type: errorType, Op: op, Reason: reason}
}

// Wrap creates a RequestError around an underlying error.
func Wrap(errorType ErrorType, op, reason string, err error) *RequestError {
	return &RequestError{Type: errorType, Op: op, Reason: reason, Err: err}
}

// StatusFor resolves any error to a gateway response status and reason.
// Unrecognized errors are reported as internal without leaking detail.
func StatusFor(err error) (int, string) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		reason := reqErr.Reason
		if reason == "" {
			reason = string(reqErr.Type)
		}
		return reqErr.HTTPStatus(), reason
	}
	return http.StatusInternalServerError, "internal_error"
}
