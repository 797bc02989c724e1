package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/antwort-dev/auskunft/pkg/api"
	"github.com/antwort-dev/auskunft/pkg/storage"
	"github.com/antwort-dev/auskunft/pkg/storage/memory"
	"github.com/antwort-dev/auskunft/pkg/transport"
)

// stubService implements transport.Service with per-test behavior.
type stubService struct {
	createFn func(ctx context.Context, req *api.CreateAnswerRequest, w transport.AnswerWriter) error
	ingestFn func(ctx context.Context, req *api.IngestDocumentRequest) (*api.Document, error)
	searchFn func(ctx context.Context, req *api.SearchRequest) ([]api.Source, error)
	modelsFn func(ctx context.Context) ([]api.Model, error)
}

func (s *stubService) CreateAnswer(ctx context.Context, req *api.CreateAnswerRequest, w transport.AnswerWriter) error {
	if s.createFn != nil {
		return s.createFn(ctx, req, w)
	}
	return w.WriteAnswer(ctx, &api.Answer{
		ID:     "ans_stubAnswerIdentifier00", // 24 chars after prefix
		Object: "answer",
		Status: api.AnswerStatusCompleted,
		Text:   "stub answer",
	})
}

func (s *stubService) IngestDocument(ctx context.Context, req *api.IngestDocumentRequest) (*api.Document, error) {
	if s.ingestFn != nil {
		return s.ingestFn(ctx, req)
	}
	return &api.Document{ID: "11111111-2222-3333-4444-555555555555", Object: "document", Name: req.Name}, nil
}

func (s *stubService) Search(ctx context.Context, req *api.SearchRequest) ([]api.Source, error) {
	if s.searchFn != nil {
		return s.searchFn(ctx, req)
	}
	return []api.Source{{DocumentID: "doc1", Text: "matched chunk", Score: 0.8}}, nil
}

func (s *stubService) ListModels(ctx context.Context) ([]api.Model, error) {
	if s.modelsFn != nil {
		return s.modelsFn(ctx)
	}
	return []api.Model{{ID: "llama3.1:8b", Object: "model", OwnedBy: "ollama"}}, nil
}

func newTestAdapter(service transport.Service, store storage.Store) *Adapter {
	return NewAdapter(service, store, DefaultConfig())
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateAnswerNonStreaming(t *testing.T) {
	a := newTestAdapter(&stubService{}, nil)

	rec := postJSON(t, a.Handler(), "/v1/answers", `{"question":"what is RAG?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var ans api.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &ans); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if ans.Text != "stub answer" {
		t.Errorf("Text = %q, want stub answer", ans.Text)
	}
}

func TestCreateAnswerRejectsBadJSON(t *testing.T) {
	a := newTestAdapter(&stubService{}, nil)

	rec := postJSON(t, a.Handler(), "/v1/answers", `{"question":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	var resp api.ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Error == nil || resp.Error.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error = %+v, want invalid_request", resp.Error)
	}
}

func TestCreateAnswerRejectsWrongContentType(t *testing.T) {
	a := newTestAdapter(&stubService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/answers", strings.NewReader(`{"question":"q"}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func TestCreateAnswerRejectsOversizedBody(t *testing.T) {
	service := &stubService{}
	cfg := DefaultConfig()
	cfg.MaxBodySize = 64
	a := NewAdapter(service, nil, cfg)

	body := `{"question":"` + strings.Repeat("x", 200) + `"}`
	rec := postJSON(t, a.Handler(), "/v1/answers", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestCreateAnswerStreaming(t *testing.T) {
	service := &stubService{
		createFn: func(ctx context.Context, req *api.CreateAnswerRequest, w transport.AnswerWriter) error {
			ans := &api.Answer{ID: "ans_streamingIdentifier000", Object: "answer", Status: api.AnswerStatusInProgress}
			w.WriteEvent(ctx, api.StreamEvent{Type: api.EventAnswerCreated, SequenceNumber: 0, Answer: ans})
			w.WriteEvent(ctx, api.StreamEvent{Type: api.EventAnswerDelta, SequenceNumber: 1, Delta: "par"})
			w.WriteEvent(ctx, api.StreamEvent{Type: api.EventAnswerDelta, SequenceNumber: 2, Delta: "tial"})
			done := *ans
			done.Status = api.AnswerStatusCompleted
			done.Text = "partial"
			return w.WriteEvent(ctx, api.StreamEvent{Type: api.EventAnswerCompleted, SequenceNumber: 3, Answer: &done})
		},
	}
	a := newTestAdapter(service, nil)

	rec := postJSON(t, a.Handler(), "/v1/answers", `{"question":"q","stream":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	body := rec.Body.String()
	for _, marker := range []string{
		"event: answer.created",
		"event: answer.delta",
		"event: answer.completed",
		"data: [DONE]",
	} {
		if !strings.Contains(body, marker) {
			t.Errorf("stream missing %q:\n%s", marker, body)
		}
	}
}

func TestStreamingErrorAfterStartBecomesEvent(t *testing.T) {
	service := &stubService{
		createFn: func(ctx context.Context, req *api.CreateAnswerRequest, w transport.AnswerWriter) error {
			w.WriteEvent(ctx, api.StreamEvent{Type: api.EventAnswerCreated,
				Answer: &api.Answer{ID: "ans_failsMidStream0000000", Object: "answer"}})
			return api.NewUpstreamError("connection", "backend disconnected")
		},
	}
	a := newTestAdapter(service, nil)

	rec := postJSON(t, a.Handler(), "/v1/answers", `{"question":"q","stream":true}`)
	// Status was already written as 200 when streaming began.
	body := rec.Body.String()
	if !strings.Contains(body, "event: error") {
		t.Errorf("stream missing terminal error event:\n%s", body)
	}
	if !strings.Contains(body, "backend disconnected") {
		t.Errorf("stream missing error detail:\n%s", body)
	}
}

func TestCreateAnswerErrorBeforeStreamingIsJSON(t *testing.T) {
	service := &stubService{
		createFn: func(ctx context.Context, req *api.CreateAnswerRequest, w transport.AnswerWriter) error {
			return api.NewInvalidRequestError("question", "question is required")
		},
	}
	a := newTestAdapter(service, nil)

	rec := postJSON(t, a.Handler(), "/v1/answers", `{"stream":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var resp api.ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Error == nil || resp.Error.Param != "question" {
		t.Errorf("error = %+v, want param=question", resp.Error)
	}
}

func TestGetAnswer(t *testing.T) {
	store := memory.New(0)
	id := api.NewAnswerID()
	store.SaveAnswer(context.Background(), &api.Answer{
		ID: id, Object: "answer", Status: api.AnswerStatusCompleted, Question: "q", CreatedAt: 1000,
	})
	a := newTestAdapter(&stubService{}, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/answers/"+id, nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var ans api.Answer
	json.Unmarshal(rec.Body.Bytes(), &ans)
	if ans.ID != id {
		t.Errorf("ID = %q, want %q", ans.ID, id)
	}
}

func TestGetAnswerMalformedID(t *testing.T) {
	a := newTestAdapter(&stubService{}, memory.New(0))

	req := httptest.NewRequest(http.MethodGet, "/v1/answers/not-an-id", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetAnswerNotFound(t *testing.T) {
	a := newTestAdapter(&stubService{}, memory.New(0))

	req := httptest.NewRequest(http.MethodGet, "/v1/answers/"+api.NewAnswerID(), nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestStatefulEndpointsWithoutStore(t *testing.T) {
	a := newTestAdapter(&stubService{}, nil)

	paths := []string{
		"/v1/answers/" + api.NewAnswerID(),
		"/v1/answers",
		"/v1/documents",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusNotImplemented {
			t.Errorf("GET %s status = %d, want 501", path, rec.Code)
		}
	}
}

func TestListAnswers(t *testing.T) {
	store := memory.New(0)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		store.SaveAnswer(ctx, &api.Answer{
			ID: api.NewAnswerID(), Object: "answer", Status: api.AnswerStatusCompleted,
			Question: "q", CreatedAt: int64(1000 + i),
		})
	}
	a := newTestAdapter(&stubService{}, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/answers?limit=2", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var list api.AnswerList
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list.Data) != 2 || !list.HasMore {
		t.Errorf("got %d answers hasMore=%v, want 2 with more", len(list.Data), list.HasMore)
	}
}

func TestListAnswersRejectsBadParams(t *testing.T) {
	a := newTestAdapter(&stubService{}, memory.New(0))

	for _, query := range []string{"?order=sideways", "?limit=0", "?limit=abc", "?collection=bad/name"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/answers"+query, nil)
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", query, rec.Code)
		}
	}
}

func TestDeleteAnswer(t *testing.T) {
	store := memory.New(0)
	id := api.NewAnswerID()
	store.SaveAnswer(context.Background(), &api.Answer{
		ID: id, Object: "answer", Status: api.AnswerStatusCompleted, Question: "q", CreatedAt: 1000,
	})
	a := newTestAdapter(&stubService{}, store)

	req := httptest.NewRequest(http.MethodDelete, "/v1/answers/"+id, nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}

	// Second delete finds nothing.
	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/answers/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestDeleteCancelsInFlightStream(t *testing.T) {
	const streamID = "ans_cancelTargetStream000000"

	started := make(chan struct{})
	service := &stubService{
		createFn: func(ctx context.Context, req *api.CreateAnswerRequest, w transport.AnswerWriter) error {
			w.WriteEvent(ctx, api.StreamEvent{Type: api.EventAnswerCreated,
				Answer: &api.Answer{ID: streamID, Object: "answer", Status: api.AnswerStatusInProgress}})
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}
	a := newTestAdapter(service, nil)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/answers", "application/json",
		strings.NewReader(`{"question":"q","stream":true}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never started")
	}

	delReq, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/answers/"+streamID, nil)
	delResp, err := http.DefaultClient.Do(delReq)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want 204", delResp.StatusCode)
	}

	// The interrupted stream terminates with an error event.
	scanner := bufio.NewScanner(resp.Body)
	sawError := false
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), "event: error") {
			sawError = true
		}
	}
	if !sawError {
		t.Error("cancelled stream should end with an error event")
	}
}

func TestIngestDocument(t *testing.T) {
	a := newTestAdapter(&stubService{}, nil)

	rec := postJSON(t, a.Handler(), "/v1/documents", `{"name":"handbook","text":"some text"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var doc api.Document
	json.Unmarshal(rec.Body.Bytes(), &doc)
	if doc.Name != "handbook" {
		t.Errorf("Name = %q, want handbook", doc.Name)
	}
}

func TestDocumentCRUD(t *testing.T) {
	store := memory.New(0)
	ctx := context.Background()
	doc := &api.Document{
		ID: "11111111-2222-3333-4444-555555555555", Object: "document",
		Name: "handbook", Collection: "default", CreatedAt: 1000,
	}
	store.SaveDocument(ctx, doc, nil)
	a := newTestAdapter(&stubService{}, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/"+doc.ID, nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/documents", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("LIST status = %d, want 200", rec.Code)
	}
	var list api.DocumentList
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list.Data) != 1 {
		t.Errorf("got %d documents, want 1", len(list.Data))
	}

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/documents/"+doc.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/documents/"+doc.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want 404", rec.Code)
	}
}

func TestDocumentMalformedID(t *testing.T) {
	a := newTestAdapter(&stubService{}, memory.New(0))

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSearch(t *testing.T) {
	a := newTestAdapter(&stubService{}, nil)

	rec := postJSON(t, a.Handler(), "/v1/search", `{"query":"deployment runbook"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp api.SearchResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Query != "deployment runbook" || len(resp.Results) != 1 {
		t.Errorf("response = %+v, want the stub result echoed back", resp)
	}
}

func TestListModels(t *testing.T) {
	a := newTestAdapter(&stubService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var list api.ModelList
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list.Data) != 1 || list.Data[0].ID != "llama3.1:8b" {
		t.Errorf("models = %+v, want the stub model", list.Data)
	}
}

func TestRequestIDHeaderPropagation(t *testing.T) {
	a := newTestAdapter(&stubService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/answers", bytes.NewReader([]byte(`{"question":"q"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "trace-me-123")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "trace-me-123" {
		t.Errorf("X-Request-ID = %q, want trace-me-123", got)
	}
}
