package errors

import "net/http"

// ErrorCode is the machine-readable kind carried in every error response
type ErrorCode string

const (
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrTwoFactorRequired ErrorCode = "TWO_FACTOR_REQUIRED"
	ErrForbidden         ErrorCode = "FORBIDDEN"
	ErrConflict          ErrorCode = "CONFLICT"
	ErrValidation        ErrorCode = "VALIDATION_ERROR"
	ErrBadRequest        ErrorCode = "BAD_REQUEST"
	ErrMethodNotAllowed  ErrorCode = "METHOD_NOT_ALLOWED"
	ErrPayloadTooLarge   ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrInternalError     ErrorCode = "INTERNAL_ERROR"
	ErrRateLimited       ErrorCode = "RATE_LIMITED"
	ErrServiceUnavail    ErrorCode = "SERVICE_UNAVAILABLE"
)

// GenericInternalMessage is the only text a client ever sees for a 500.
const GenericInternalMessage = "Something went wrong. Please try again."

// StatusCodeMap maps ErrorCode to HTTP status code
var StatusCodeMap = map[ErrorCode]int{
	ErrNotFound:          http.StatusNotFound,
	ErrUnauthorized:      http.StatusUnauthorized,
	ErrTwoFactorRequired: http.StatusUnauthorized,
	ErrForbidden:         http.StatusForbidden,
	ErrConflict:          http.StatusConflict,
	ErrValidation:        http.StatusBadRequest,
	ErrBadRequest:        http.StatusBadRequest,
	ErrMethodNotAllowed:  http.StatusMethodNotAllowed,
	ErrPayloadTooLarge:   http.StatusRequestEntityTooLarge,
	ErrInternalError:     http.StatusInternalServerError,
	ErrRateLimited:       http.StatusTooManyRequests,
	ErrServiceUnavail:    http.StatusServiceUnavailable,
}

// StatusCode returns the HTTP status code for this error code
func (e ErrorCode) StatusCode() int {
	if code, ok := StatusCodeMap[e]; ok {
		return code
	}
	return http.StatusInternalServerError
}
