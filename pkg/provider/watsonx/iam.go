package watsonx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/antwort-dev/auskunft/pkg/provider"
)

// iamGrantType is the IBM Cloud grant for exchanging an API key.
const iamGrantType = "urn:ibm:params:oauth:grant-type:apikey"

// tokenRefreshMargin is subtracted from the token lifetime so a token
// is never presented moments before it expires.
const tokenRefreshMargin = 60 * time.Second

// iamClient exchanges an API key for a bearer token and caches it
// until shortly before expiry. It is safe for concurrent use.
type iamClient struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	endpoint  string
	apiKey    string
	client    *http.Client
}

// getToken returns a valid bearer token, refreshing it via the IAM
// endpoint when the cached one is missing or expired.
func (c *iamClient) getToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.token != "" && time.Now().Before(c.expiresAt) {
		token := c.token
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring the write lock (another goroutine
	// may have refreshed).
	if c.token != "" && time.Now().Before(c.expiresAt) {
		return c.token, nil
	}

	if err := c.refresh(ctx); err != nil {
		return "", err
	}
	return c.token, nil
}

// refresh performs the token exchange. Must be called with the write
// lock held.
func (c *iamClient) refresh(ctx context.Context) error {
	form := url.Values{
		"grant_type": {iamGrantType},
		"apikey":     {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("watsonx: creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &provider.ConnectionError{
			Backend:  "watsonx",
			Endpoint: c.endpoint,
			Message:  "token endpoint unreachable",
			Cause:    err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &provider.AuthError{
			Backend: "watsonx",
			Message: iamErrorMessage(resp),
		}
	}

	var tok iamTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return &provider.ParseError{Backend: "watsonx", Cause: err}
	}
	if tok.AccessToken == "" {
		return &provider.AuthError{
			Backend: "watsonx",
			Message: "token response missing access_token",
		}
	}

	lifetime := time.Duration(tok.ExpiresIn) * time.Second
	if lifetime > tokenRefreshMargin {
		lifetime -= tokenRefreshMargin
	} else {
		lifetime /= 2
	}

	c.token = tok.AccessToken
	c.expiresAt = time.Now().Add(lifetime)

	slog.Debug("IAM token refreshed", "expires_in", tok.ExpiresIn)
	return nil
}

// iamErrorMessage extracts a human-readable message from an IAM error
// response.
func iamErrorMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(data) > 0 {
		var iamErr iamErrorResponse
		if json.Unmarshal(data, &iamErr) == nil && iamErr.ErrorMessage != "" {
			if iamErr.ErrorCode != "" {
				return fmt.Sprintf("token exchange failed: %s (%s)", iamErr.ErrorMessage, iamErr.ErrorCode)
			}
			return "token exchange failed: " + iamErr.ErrorMessage
		}
	}
	return fmt.Sprintf("token exchange failed with status %d", resp.StatusCode)
}
