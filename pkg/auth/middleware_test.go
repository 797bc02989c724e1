package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/antwort-dev/auskunft/pkg/storage"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(handler http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestMiddlewareBypassSkipsAuth(t *testing.T) {
	chain := &AuthChain{DefaultDecision: No}
	handler := Middleware(chain, nil, []string{"/healthz"})(okHandler())

	if rec := serve(handler, "GET", "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("bypass endpoint: status = %d, want 200", rec.Code)
	}
	if rec := serve(handler, "POST", "/v1/answers"); rec.Code != http.StatusUnauthorized {
		t.Errorf("non-bypass endpoint: status = %d, want 401", rec.Code)
	}
}

func TestMiddlewareRejectsWithoutCredentials(t *testing.T) {
	chain := &AuthChain{DefaultDecision: No}
	handler := Middleware(chain, nil, DefaultBypassEndpoints)(okHandler())

	rec := serve(handler, "POST", "/v1/answers")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestMiddlewareInjectsIdentityAndTenant(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{
			&voteAuthn{result: AuthResult{
				Decision: Yes,
				Identity: &Identity{Subject: "alice", Metadata: map[string]string{"tenant_id": "org-1"}},
			}},
		},
		DefaultDecision: No,
	}

	var gotSubject, gotTenant string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := IdentityFromContext(r.Context()); id != nil {
			gotSubject = id.Subject
		}
		gotTenant = storage.GetTenant(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(chain, nil, DefaultBypassEndpoints)(inner)

	if rec := serve(handler, "POST", "/v1/answers"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotSubject != "alice" {
		t.Errorf("subject in context = %q, want alice", gotSubject)
	}
	if gotTenant != "org-1" {
		t.Errorf("tenant in context = %q, want org-1", gotTenant)
	}
}

func TestMiddlewareEnforcesRateLimit(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{
			&voteAuthn{result: AuthResult{
				Decision: Yes,
				Identity: &Identity{Subject: "alice", ServiceTier: "limited"},
			}},
		},
		DefaultDecision: No,
	}
	limiter := NewInProcessLimiter(map[string]TierConfig{
		"limited": {RequestsPerMinute: 2},
	}, 100)
	handler := Middleware(chain, limiter, DefaultBypassEndpoints)(okHandler())

	for i := 0; i < 2; i++ {
		if rec := serve(handler, "POST", "/v1/answers"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
	if rec := serve(handler, "POST", "/v1/answers"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want 429", rec.Code)
	}
}

func TestMiddlewareNilLimiterNeverThrottles(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{
			vote(Yes, "alice"),
		},
	}
	handler := Middleware(chain, nil, DefaultBypassEndpoints)(okHandler())

	for i := 0; i < 100; i++ {
		if rec := serve(handler, "POST", "/v1/answers"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
}
