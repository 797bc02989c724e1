package watsonx

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/antwort-dev/auskunft/pkg/provider"
)

// mapNetworkError converts a transport-level failure into a
// ConnectionError. The cause is preserved so context cancellation
// remains detectable via errors.Is.
func mapNetworkError(err error, endpoint string) error {
	return &provider.ConnectionError{
		Backend:  "watsonx",
		Endpoint: endpoint,
		Message:  "server unreachable",
		Cause:    err,
	}
}

// mapHTTPError converts a non-2xx ML API response into a typed
// provider error. The response body is consumed.
func mapHTTPError(resp *http.Response, model string) error {
	detail := extractErrorDetail(resp.Body)
	return mapStatusError(resp.StatusCode, detail, resp.Header, model)
}

// mapStatusError maps a status code plus parsed error detail to a
// provider error.
func mapStatusError(status int, detail errorDetail, header http.Header, model string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &provider.AuthError{
			Backend: "watsonx",
			Message: messageOr(detail, "request rejected by server"),
		}

	case http.StatusNotFound:
		if isModelError(detail) {
			return &provider.ModelNotFoundError{
				Backend: "watsonx",
				Model:   model,
				Message: messageOr(detail, "model not found"),
			}
		}
		return fmt.Errorf("watsonx: %s (HTTP %d)", messageOr(detail, "resource not found"), status)

	case http.StatusTooManyRequests:
		return &provider.RateLimitError{
			Backend:    "watsonx",
			RetryAfter: parseRetryAfter(header),
			Message:    messageOr(detail, "rate limit exceeded"),
		}

	default:
		return fmt.Errorf("watsonx: %s (HTTP %d)", messageOr(detail, "request failed"), status)
	}
}

// isModelError reports whether an error detail describes an unknown or
// unsupported model rather than a missing route.
func isModelError(detail errorDetail) bool {
	if detail.Code == "model_not_supported" || detail.Code == "model_not_found" {
		return true
	}
	return strings.Contains(strings.ToLower(detail.Message), "model")
}

// extractErrorDetail parses the first error entry from an ML API error
// body, tolerating bodies that are not JSON.
func extractErrorDetail(body io.Reader) errorDetail {
	if body == nil {
		return errorDetail{}
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return errorDetail{}
	}

	var errResp errorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && len(errResp.Errors) > 0 {
		return errResp.Errors[0]
	}

	return errorDetail{}
}

// messageOr returns the detail message or a fallback when the body
// carried none.
func messageOr(detail errorDetail, fallback string) string {
	if detail.Message != "" {
		return detail.Message
	}
	return fallback
}

// parseRetryAfter reads the Retry-After header, which carries either a
// delay in seconds or an HTTP date. Returns zero when absent or
// unparseable.
func parseRetryAfter(header http.Header) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}

	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}

	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}

	return 0
}
