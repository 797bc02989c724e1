package provider

import (
	"fmt"
	"time"
)

// The error taxonomy shared by all backends. Adapters never let vendor
// errors escape raw: every failure is translated into one of these types
// and returned to the caller. None of them is retried internally; retry
// and backoff policy belongs to the layer above.

// ConfigError reports missing or invalid backend configuration. It is
// fatal at startup: the factory returns it before any network call.
type ConfigError struct {
	// Backend is the backend kind the configuration selects.
	Backend string

	// Field names the offending setting, as its environment variable
	// (e.g., "WATSONX_PROJECT_ID").
	Field string

	// Message describes what is wrong.
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("backend %q configuration error: %s (%s)", e.Backend, e.Message, e.Field)
	}
	return fmt.Sprintf("backend %q configuration error: %s", e.Backend, e.Message)
}

// AuthError reports rejected credentials (HTTP 401/403 or a failed token
// exchange). Surfaced to the caller, never retried by the adapter.
type AuthError struct {
	// Backend is the backend that rejected the credentials.
	Backend string

	// Message is the backend's error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("backend %q authentication failed: %s", e.Backend, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// ModelNotFoundError reports a model identifier the backend does not
// recognize or has not loaded.
type ModelNotFoundError struct {
	// Backend is the backend that rejected the model.
	Backend string

	// Model is the requested model identifier.
	Model string

	// Message is the backend's error message, when it adds detail.
	Message string
}

func (e *ModelNotFoundError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend %q: model %q not available: %s", e.Backend, e.Model, e.Message)
	}
	return fmt.Sprintf("backend %q: model %q not available", e.Backend, e.Model)
}

// RateLimitError reports an HTTP 429 from the backend. The adapter
// surfaces it immediately; whether and when to retry is the caller's
// decision.
type RateLimitError struct {
	// Backend is the backend that throttled the request.
	Backend string

	// RetryAfter is the wait the backend suggested via the Retry-After
	// header. Zero when the backend did not send one.
	RetryAfter time.Duration

	// Message is the backend's error message.
	Message string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("backend %q rate limit exceeded (retry after %s): %s", e.Backend, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("backend %q rate limit exceeded: %s", e.Backend, e.Message)
}

// ConnectionError reports a transport-level failure: the backend could
// not be reached, the connection dropped, or the per-call timeout fired.
type ConnectionError struct {
	// Backend is the backend the call was addressed to.
	Backend string

	// Endpoint is the URL the adapter tried to reach.
	Endpoint string

	// Message distinguishes the failure mode ("server unreachable",
	// "request timed out", ...).
	Message string

	// Cause is the underlying transport error.
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("backend %q: %s (%s)", e.Backend, e.Message, e.Endpoint)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// UnsupportedError reports an operation the active backend cannot serve,
// such as embeddings without a configured embedding model.
type UnsupportedError struct {
	// Backend is the active backend.
	Backend string

	// Operation names the unsupported operation.
	Operation string

	// Message adds detail when the plain operation name is not enough.
	Message string
}

func (e *UnsupportedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend %q does not support %s: %s", e.Backend, e.Operation, e.Message)
	}
	return fmt.Sprintf("backend %q does not support %s", e.Backend, e.Operation)
}

// ParseError reports a malformed response body from the backend.
type ParseError struct {
	// Backend is the backend that returned the malformed payload.
	Backend string

	// Cause is the underlying decode error.
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("backend %q returned a malformed response: %v", e.Backend, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
