package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/antwort-dev/auskunft/pkg/api"
	"github.com/antwort-dev/auskunft/pkg/provider"
	"github.com/antwort-dev/auskunft/pkg/storage"
)

// HTTPStatusFromError maps an APIError type to the corresponding HTTP status
// code. Transport-level errors (body too large, unsupported content type,
// method not allowed) are handled separately by the HTTP adapter.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case api.ErrorTypeUpstreamError:
		return http.StatusBadGateway
	case api.ErrorTypeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// TranslateError converts any handler error into an APIError plus the
// backend's suggested Retry-After, when present. The provider taxonomy
// maps as follows:
//
//	AuthError, ConnectionError -> upstream_error (502)
//	ModelNotFoundError         -> not_found (404)
//	RateLimitError             -> too_many_requests (429, Retry-After set)
//	UnsupportedError           -> invalid_request (400)
//	storage.ErrNotFound        -> not_found (404)
//
// Errors that are already *api.APIError pass through unchanged.
func TranslateError(err error) (*api.APIError, time.Duration) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr, 0
	}

	var (
		authErr  *provider.AuthError
		modelErr *provider.ModelNotFoundError
		rateErr  *provider.RateLimitError
		connErr  *provider.ConnectionError
		unsupErr *provider.UnsupportedError
		cfgErr   *provider.ConfigError
	)
	switch {
	case errors.As(err, &authErr):
		return api.NewUpstreamError("authentication", authErr.Error()), 0
	case errors.As(err, &modelErr):
		return api.NewNotFoundError(modelErr.Error()), 0
	case errors.As(err, &rateErr):
		return api.NewTooManyRequestsError(rateErr.Error()), rateErr.RetryAfter
	case errors.As(err, &connErr):
		return api.NewUpstreamError("connection", connErr.Error()), 0
	case errors.As(err, &unsupErr):
		return api.NewInvalidRequestError("", unsupErr.Error()), 0
	case errors.As(err, &cfgErr):
		return api.NewServerError(cfgErr.Error()), 0
	case errors.Is(err, storage.ErrNotFound):
		return api.NewNotFoundError(err.Error()), 0
	}

	return api.NewServerError(err.Error()), 0
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api. It sets the Content-Type header and writes
// the HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteError translates any handler error and writes it. A rate-limited
// backend's suggested wait is forwarded as a Retry-After header so the
// caller can apply its own backoff.
func WriteError(w http.ResponseWriter, err error) {
	apiErr, retryAfter := TranslateError(err)
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	}
	WriteAPIError(w, apiErr)
}
