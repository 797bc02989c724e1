package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/antwort-dev/auskunft/pkg/storage/memory"
)

func TestServerHealthz(t *testing.T) {
	s := NewServer(&stubService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != "ok\n" {
		t.Errorf("body = %q, want ok", body)
	}
}

func TestServerReadyz(t *testing.T) {
	s := NewServer(&stubService{}, nil,
		WithReadinessChecks(ReadinessCheck{
			Name:  "store",
			Check: func(ctx context.Context) error { return nil },
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestServerReadyzFailingCheck(t *testing.T) {
	s := NewServer(&stubService{}, nil,
		WithReadinessChecks(
			ReadinessCheck{Name: "provider", Check: func(ctx context.Context) error { return nil }},
			ReadinessCheck{Name: "store", Check: func(ctx context.Context) error { return errors.New("connection refused") }},
		),
	)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "store") {
		t.Errorf("body = %q, want failing check named", rec.Body.String())
	}
}

func TestServerMountsAPI(t *testing.T) {
	s := NewServer(&stubService{}, memory.New(0))

	rec := postJSON(t, s.Handler(), "/v1/answers", `{"question":"q"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestServerExtraHandler(t *testing.T) {
	s := NewServer(&stubService{}, nil,
		WithHandler("GET /metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "# metrics\n")
		})),
	)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "# metrics") {
		t.Errorf("status = %d body = %q, want mounted handler output", rec.Code, rec.Body.String())
	}
}

func TestServerHTTPMiddlewareWrapsEverything(t *testing.T) {
	var paths []string
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paths = append(paths, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
	s := NewServer(&stubService{}, nil, WithHTTPMiddleware(mw))

	for _, path := range []string{"/healthz", "/v1/models"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		s.Handler().ServeHTTP(httptest.NewRecorder(), req)
	}

	if len(paths) != 2 || paths[0] != "/healthz" || paths[1] != "/v1/models" {
		t.Errorf("middleware saw %v, want both endpoints", paths)
	}
}
