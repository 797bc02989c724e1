package ollama

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/antwort-dev/auskunft/pkg/provider"
)

// mapNetworkError converts a transport-level failure (connection
// refused, DNS failure, timeout) into a ConnectionError. The cause is
// preserved so context cancellation remains detectable via errors.Is.
func mapNetworkError(err error, endpoint string) error {
	return &provider.ConnectionError{
		Backend:  "ollama",
		Endpoint: endpoint,
		Message:  "server unreachable",
		Cause:    err,
	}
}

// mapHTTPError converts a non-2xx response into a typed provider error.
// Ollama answers 404 on /api/generate when the requested model is not
// loaded, which is the case callers most need to tell apart from a
// dead server.
func mapHTTPError(resp *http.Response, model string) error {
	msg := extractErrorMessage(resp.Body)

	switch resp.StatusCode {
	case http.StatusNotFound:
		if model != "" {
			if msg == "" {
				msg = "model not loaded"
			}
			return &provider.ModelNotFoundError{Backend: "ollama", Model: model, Message: msg}
		}
		if msg == "" {
			msg = "resource not found"
		}
		return fmt.Errorf("ollama: %s (HTTP %d)", msg, resp.StatusCode)

	case http.StatusTooManyRequests:
		if msg == "" {
			msg = "rate limit exceeded"
		}
		return &provider.RateLimitError{Backend: "ollama", Message: msg}

	case http.StatusUnauthorized, http.StatusForbidden:
		if msg == "" {
			msg = "request rejected by server"
		}
		return &provider.AuthError{Backend: "ollama", Message: msg}

	default:
		if msg == "" {
			msg = "request failed"
		}
		return fmt.Errorf("ollama: %s (HTTP %d)", msg, resp.StatusCode)
	}
}

// extractErrorMessage parses Ollama's {"error":"..."} body if present.
func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp errorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}

	return ""
}
