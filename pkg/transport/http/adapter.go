package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/antwort-dev/auskunft/pkg/api"
	"github.com/antwort-dev/auskunft/pkg/storage"
	"github.com/antwort-dev/auskunft/pkg/transport"
)

// Adapter serves the auskunft API over HTTP. It routes requests to the
// engine and the store and serializes responses.
type Adapter struct {
	service  transport.Service
	creator  transport.AnswerCreator // service.CreateAnswer wrapped in middleware
	store    storage.Store           // nil if stateless-only
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout int // seconds
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodySize:     10 << 20, // 10 MB
		ShutdownTimeout: 30,
	}
}

// NewAdapter creates an HTTP adapter with the given Service and options.
// The store is optional; when nil, GET, LIST, and DELETE endpoints return
// an error indicating the operation is not available. Middleware is
// applied to the answer-creation path in the given order.
func NewAdapter(service transport.Service, store storage.Store, cfg Config, middlewares ...transport.Middleware) *Adapter {
	a := &Adapter{
		service:  service,
		store:    store,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	// The middleware chain only wraps answer creation, the one operation
	// with streaming output and per-request logging at this level.
	a.creator = service
	if len(middlewares) > 0 {
		a.creator = transport.Chain(middlewares...)(a.creator)
	}

	a.mux.HandleFunc("POST /v1/answers", a.handleCreateAnswer)
	a.mux.HandleFunc("GET /v1/answers/{id}", a.handleGetAnswer)
	a.mux.HandleFunc("GET /v1/answers", a.handleListAnswers)
	a.mux.HandleFunc("DELETE /v1/answers/{id}", a.handleDeleteAnswer)

	a.mux.HandleFunc("POST /v1/documents", a.handleIngestDocument)
	a.mux.HandleFunc("GET /v1/documents/{id}", a.handleGetDocument)
	a.mux.HandleFunc("GET /v1/documents", a.handleListDocuments)
	a.mux.HandleFunc("DELETE /v1/documents/{id}", a.handleDeleteDocument)

	a.mux.HandleFunc("POST /v1/search", a.handleSearch)
	a.mux.HandleFunc("GET /v1/models", a.handleListModels)

	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// HTTP-level middleware for request ID propagation.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a.mux)
}

// httpRequestIDMiddleware is HTTP-level middleware that propagates the
// X-Request-ID header. If present in the request, it is forwarded to
// the response. After the handler runs, it checks the context for a
// request ID (set by the transport-level RequestID middleware) and adds
// it to the response headers if not already set.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// If client sent X-Request-ID, propagate it into context.
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ctx := transport.ContextWithRequestID(r.Context(), id)
			r = r.WithContext(ctx)
		}
		// Use a response writer wrapper to capture and set the request ID
		// header before the first write.
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// decodeJSONBody decodes the request body into dst with a size limit.
// It writes the error response itself and returns false on failure.
func (a *Adapter) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return false
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return false
	}
	return true
}

// handleCreateAnswer handles POST /v1/answers.
func (a *Adapter) handleCreateAnswer(w http.ResponseWriter, r *http.Request) {
	var req api.CreateAnswerRequest
	if !a.decodeJSONBody(w, r, &req) {
		return
	}

	if req.Stream {
		a.handleStreamingAnswer(w, r, &req)
		return
	}

	// Non-streaming: create AnswerWriter and dispatch.
	rw := newSSEAnswerWriter(w, nil)
	if err := a.creator.CreateAnswer(r.Context(), &req, rw); err != nil {
		a.writeHandlerError(w, rw, err)
		return
	}
}

// handleStreamingAnswer handles streaming POST requests (stream: true).
func (a *Adapter) handleStreamingAnswer(w http.ResponseWriter, r *http.Request, req *api.CreateAnswerRequest) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var registeredID string
	rw := newSSEAnswerWriter(w, func(id string) {
		registeredID = id
		a.inflight.Register(id, cancel)
	})

	err := a.creator.CreateAnswer(ctx, req, rw)

	// Clean up in-flight registry after completion.
	if registeredID != "" {
		a.inflight.Remove(registeredID)
	}

	if err != nil {
		a.writeHandlerError(w, rw, err)
	}
}

// handleGetAnswer handles GET /v1/answers/{id}.
func (a *Adapter) handleGetAnswer(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w, "answer retrieval") {
		return
	}

	id := r.PathValue("id")
	if !api.ValidateAnswerID(id) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("id", "malformed answer ID"),
			http.StatusBadRequest,
		)
		return
	}

	ans, err := a.store.GetAnswer(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteAPIError(w, api.NewNotFoundError("answer "+id+" not found"))
		} else {
			transport.WriteError(w, err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ans)
}

// handleListAnswers handles GET /v1/answers.
func (a *Adapter) handleListAnswers(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w, "answer listing") {
		return
	}

	opts, apiErr := parseListOptions(r)
	if apiErr != nil {
		transport.WriteErrorResponse(w, apiErr, http.StatusBadRequest)
		return
	}

	result, err := a.store.ListAnswers(r.Context(), opts)
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// handleDeleteAnswer handles DELETE /v1/answers/{id}. It first checks the
// in-flight registry (for cancelling active streams), then falls through
// to the store for standard deletion.
func (a *Adapter) handleDeleteAnswer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateAnswerID(id) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("id", "malformed answer ID"),
			http.StatusBadRequest,
		)
		return
	}

	// Check in-flight registry first.
	if a.inflight.Cancel(id) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !a.requireStore(w, "answer deletion") {
		return
	}

	if err := a.store.DeleteAnswer(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteAPIError(w, api.NewNotFoundError("answer "+id+" not found"))
		} else {
			transport.WriteError(w, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleIngestDocument handles POST /v1/documents.
func (a *Adapter) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	var req api.IngestDocumentRequest
	if !a.decodeJSONBody(w, r, &req) {
		return
	}

	doc, err := a.service.IngestDocument(r.Context(), &req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(doc)
}

// handleGetDocument handles GET /v1/documents/{id}.
func (a *Adapter) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w, "document retrieval") {
		return
	}

	id := r.PathValue("id")
	if uuid.Validate(id) != nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("id", "malformed document ID"),
			http.StatusBadRequest,
		)
		return
	}

	doc, err := a.store.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteAPIError(w, api.NewNotFoundError("document "+id+" not found"))
		} else {
			transport.WriteError(w, err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// handleListDocuments handles GET /v1/documents.
func (a *Adapter) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w, "document listing") {
		return
	}

	opts, apiErr := parseListOptions(r)
	if apiErr != nil {
		transport.WriteErrorResponse(w, apiErr, http.StatusBadRequest)
		return
	}

	result, err := a.store.ListDocuments(r.Context(), opts)
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// handleDeleteDocument handles DELETE /v1/documents/{id}.
func (a *Adapter) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w, "document deletion") {
		return
	}

	id := r.PathValue("id")
	if uuid.Validate(id) != nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("id", "malformed document ID"),
			http.StatusBadRequest,
		)
		return
	}

	if err := a.store.DeleteDocument(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteAPIError(w, api.NewNotFoundError("document "+id+" not found"))
		} else {
			transport.WriteError(w, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSearch handles POST /v1/search.
func (a *Adapter) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req api.SearchRequest
	if !a.decodeJSONBody(w, r, &req) {
		return
	}

	results, err := a.service.Search(r.Context(), &req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	resp := api.SearchResponse{
		Object:  "list",
		Query:   req.Query,
		Results: results,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleListModels handles GET /v1/models.
func (a *Adapter) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := a.service.ListModels(r.Context())
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	resp := api.ModelList{Object: "list", Data: models}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// requireStore writes a 501 error when no store is configured.
func (a *Adapter) requireStore(w http.ResponseWriter, operation string) bool {
	if a.store == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", operation+" is not available (no store configured)"),
			http.StatusNotImplemented,
		)
		return false
	}
	return true
}

// parseListOptions extracts pagination parameters from the query string.
func parseListOptions(r *http.Request) (storage.ListOptions, *api.APIError) {
	q := r.URL.Query()
	opts := storage.ListOptions{
		After:      q.Get("after"),
		Order:      q.Get("order"),
		Collection: q.Get("collection"),
		Model:      q.Get("model"),
	}

	if opts.Order != "" && opts.Order != "asc" && opts.Order != "desc" {
		return opts, api.NewInvalidRequestError("order", "order must be 'asc' or 'desc'")
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	if !api.ValidateCollection(opts.Collection) {
		return opts, api.NewInvalidRequestError("collection", "collection must match [a-zA-Z0-9._-]{1,64}")
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return opts, api.NewInvalidRequestError("limit", "limit must be a positive integer")
		}
		opts.Limit = limit
	}

	return opts, nil
}

// writeHandlerError writes an error response from the handler. If streaming
// has already started, it sends an error event. Otherwise it writes a
// standard JSON error response.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, rw *sseAnswerWriter, err error) {
	apiErr, _ := transport.TranslateError(err)

	if rw.hasStartedStreaming() {
		// Streaming has begun; send a terminal error event.
		rw.WriteEvent(context.Background(), api.StreamEvent{
			Type:  api.EventError,
			Error: apiErr,
		})
		return
	}

	// No streaming started; return JSON error.
	transport.WriteError(w, err)
}
