package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/antwort-dev/auskunft/pkg/api"
	"github.com/antwort-dev/auskunft/pkg/provider"
	"github.com/antwort-dev/auskunft/pkg/storage"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		errType api.ErrorType
		want    int
	}{
		{api.ErrorTypeInvalidRequest, http.StatusBadRequest},
		{api.ErrorTypeNotFound, http.StatusNotFound},
		{api.ErrorTypeTooManyRequests, http.StatusTooManyRequests},
		{api.ErrorTypeUpstreamError, http.StatusBadGateway},
		{api.ErrorTypeServerError, http.StatusInternalServerError},
		{"something_else", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		got := HTTPStatusFromError(&api.APIError{Type: tt.errType})
		if got != tt.want {
			t.Errorf("HTTPStatusFromError(%q) = %d, want %d", tt.errType, got, tt.want)
		}
	}
}

func TestTranslateErrorPassesAPIErrorThrough(t *testing.T) {
	orig := api.NewInvalidRequestError("question", "question is required")

	apiErr, retryAfter := TranslateError(orig)
	if apiErr != orig {
		t.Errorf("expected the original APIError, got %+v", apiErr)
	}
	if retryAfter != 0 {
		t.Errorf("retryAfter = %v, want 0", retryAfter)
	}
}

func TestTranslateErrorProviderTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType api.ErrorType
		wantCode string
	}{
		{
			name:     "auth",
			err:      &provider.AuthError{Backend: "watsonx", Message: "IAM token exchange failed"},
			wantType: api.ErrorTypeUpstreamError,
			wantCode: "authentication",
		},
		{
			name:     "model not found",
			err:      &provider.ModelNotFoundError{Backend: "ollama", Model: "missing:7b"},
			wantType: api.ErrorTypeNotFound,
		},
		{
			name:     "connection",
			err:      &provider.ConnectionError{Backend: "ollama", Endpoint: "http://localhost:11434"},
			wantType: api.ErrorTypeUpstreamError,
			wantCode: "connection",
		},
		{
			name:     "unsupported",
			err:      &provider.UnsupportedError{Backend: "watsonx", Operation: "vision"},
			wantType: api.ErrorTypeInvalidRequest,
		},
		{
			name:     "config",
			err:      &provider.ConfigError{Backend: "watsonx", Field: "api_key"},
			wantType: api.ErrorTypeServerError,
		},
		{
			name:     "storage not found",
			err:      fmt.Errorf("loading answer: %w", storage.ErrNotFound),
			wantType: api.ErrorTypeNotFound,
		},
		{
			name:     "unknown",
			err:      errors.New("boom"),
			wantType: api.ErrorTypeServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr, _ := TranslateError(tt.err)
			if apiErr.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", apiErr.Type, tt.wantType)
			}
			if tt.wantCode != "" && apiErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", apiErr.Code, tt.wantCode)
			}
		})
	}
}

func TestTranslateErrorRateLimitCarriesRetryAfter(t *testing.T) {
	err := &provider.RateLimitError{Backend: "watsonx", RetryAfter: 30 * time.Second}

	apiErr, retryAfter := TranslateError(err)
	if apiErr.Type != api.ErrorTypeTooManyRequests {
		t.Errorf("Type = %q, want too_many_requests", apiErr.Type)
	}
	if retryAfter != 30*time.Second {
		t.Errorf("retryAfter = %v, want 30s", retryAfter)
	}
}

func TestWriteErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorResponse(rec, api.NewInvalidRequestError("model", "unknown model"), http.StatusBadRequest)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp api.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Error == nil || resp.Error.Param != "model" {
		t.Errorf("error body = %+v, want param=model", resp.Error)
	}
}

func TestWriteErrorSetsRetryAfterHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, &provider.RateLimitError{Backend: "watsonx", RetryAfter: 12 * time.Second})

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "12" {
		t.Errorf("Retry-After = %q, want 12", got)
	}
}

func TestWriteErrorMapsUpstreamTo502(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, &provider.ConnectionError{Backend: "ollama", Endpoint: "http://localhost:11434"})

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}
