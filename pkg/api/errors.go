package api

import "fmt"

// ErrorType classifies an API error on the wire.
type ErrorType string

const (
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeUpstreamError   ErrorType = "upstream_error"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
)

// APIError is the error body returned by every endpoint. Param names
// the offending request field for validation errors; Code carries a
// backend failure class for upstream errors.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse is the top-level JSON envelope for errors.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewInvalidRequestError reports a bad request field.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{Type: ErrorTypeInvalidRequest, Param: param, Message: message}
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(message string) *APIError {
	return &APIError{Type: ErrorTypeNotFound, Message: message}
}

// NewServerError reports an internal failure.
func NewServerError(message string) *APIError {
	return &APIError{Type: ErrorTypeServerError, Message: message}
}

// NewUpstreamError reports a generation backend failure. code is the
// backend failure class ("connection", "authentication", ...).
func NewUpstreamError(code, message string) *APIError {
	return &APIError{Type: ErrorTypeUpstreamError, Code: code, Message: message}
}

// NewTooManyRequestsError reports rate limiting.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{Type: ErrorTypeTooManyRequests, Message: message}
}
