package errors

import (
	"fmt"
)

// APIError is an error that knows how it should be rendered to a client.
// Details is logged server-side and never serialized.
type APIError struct {
	Code    ErrorCode
	Message string
	Field   string
	Details string
	Status  int
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, message string) *APIError {
	return &APIError{Code: code, Message: message, Status: code.StatusCode()}
}

// NotFound creates a NOT_FOUND error for the named resource
func NotFound(resource string) *APIError {
	return newError(ErrNotFound, fmt.Sprintf("%s not found", resource))
}

// Unauthorized creates an UNAUTHORIZED error
func Unauthorized(message string) *APIError {
	if message == "" {
		message = "Authentication required"
	}
	return newError(ErrUnauthorized, message)
}

// TwoFactorRequired signals a correct password without the second factor
func TwoFactorRequired() *APIError {
	return newError(ErrTwoFactorRequired, "Two-factor code required")
}

// Forbidden creates a FORBIDDEN error
func Forbidden(message string) *APIError {
	if message == "" {
		message = "You do not have permission to do that"
	}
	return newError(ErrForbidden, message)
}

// Conflict creates a CONFLICT error
func Conflict(message string) *APIError {
	return newError(ErrConflict, message)
}

// ValidationError creates a VALIDATION_ERROR for a single field
func ValidationError(field, message string) *APIError {
	e := newError(ErrValidation, message)
	e.Field = field
	return e
}

// BadRequest creates a BAD_REQUEST error
func BadRequest(message string) *APIError {
	return newError(ErrBadRequest, message)
}

// MethodNotAllowed creates a METHOD_NOT_ALLOWED error
func MethodNotAllowed() *APIError {
	return newError(ErrMethodNotAllowed, "Method not allowed")
}

// PayloadTooLarge creates a PAYLOAD_TOO_LARGE error
func PayloadTooLarge(message string) *APIError {
	return newError(ErrPayloadTooLarge, message)
}

// InternalError creates an INTERNAL_ERROR. The client always sees the
// generic message; what is passed here ends up in Details.
func InternalError(details string) *APIError {
	e := newError(ErrInternalError, GenericInternalMessage)
	e.Details = details
	return e
}

// RateLimited creates a RATE_LIMITED error
func RateLimited(message string) *APIError {
	if message == "" {
		message = "Too many requests, slow down"
	}
	return newError(ErrRateLimited, message)
}

// ServiceUnavailable creates a SERVICE_UNAVAILABLE error
func ServiceUnavailable(service string) *APIError {
	return newError(ErrServiceUnavail, fmt.Sprintf("%s is temporarily unavailable", service))
}

// WithDetails adds server-side details to an error
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}
