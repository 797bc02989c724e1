package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/antwort-dev/auskunft/pkg/api"
	"github.com/antwort-dev/auskunft/pkg/debug"
	"github.com/antwort-dev/auskunft/pkg/observability"
	"github.com/antwort-dev/auskunft/pkg/provider"
	"github.com/antwort-dev/auskunft/pkg/storage"
	"github.com/antwort-dev/auskunft/pkg/transport"
)

// Engine orchestrates answer generation between the transport layer and
// the provider backend. It implements transport.Service.
type Engine struct {
	provider provider.Provider
	store    storage.Store // nil for stateless operation
	cfg      Config
}

// Ensure Engine implements transport.Service at compile time.
var _ transport.Service = (*Engine)(nil)

// New creates a new Engine. The provider must not be nil. The store can
// be nil for stateless operation; ingestion and retrieval then become
// unavailable.
func New(p provider.Provider, store storage.Store, cfg Config) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("engine: provider must not be nil")
	}
	return &Engine{
		provider: p,
		store:    store,
		cfg:      cfg.withDefaults(),
	}, nil
}

// CreateAnswer handles a non-streaming or streaming answer request: it
// validates the request, retrieves context chunks, assembles the prompt,
// and writes the generated answer to w.
func (e *Engine) CreateAnswer(ctx context.Context, req *api.CreateAnswerRequest, w transport.AnswerWriter) error {
	if apiErr := api.ValidateAnswerRequest(req, e.cfg.Validation); apiErr != nil {
		return apiErr
	}
	if apiErr := provider.ValidateCapabilities(e.provider.Capabilities(), req); apiErr != nil {
		return apiErr
	}

	model := req.Model
	if model == "" {
		model = e.cfg.GenerationModel
	}

	images, apiErr := decodeImages(req.Images)
	if apiErr != nil {
		return apiErr
	}

	collection := req.Collection
	if collection == "" {
		collection = e.cfg.DefaultCollection
	}

	topK := e.cfg.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	sources, err := e.retrieve(ctx, collection, req.Question, topK)
	if err != nil {
		return err
	}

	provReq := &provider.Request{
		Model:   model,
		Prompt:  buildPrompt(sources, req.Question),
		System:  answerSystemPrompt,
		Format:  req.Format,
		Images:  images,
		Think:   req.Think,
		Options: translateOptions(req.Options),
	}

	if req.Stream {
		return e.streamAnswer(ctx, req, provReq, collection, sources, w)
	}

	start := time.Now()
	resp, err := e.provider.Generate(ctx, provReq)
	e.recordLLMCall("generate", model, start, err)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	ans := &api.Answer{
		ID:          api.NewAnswerID(),
		Object:      "answer",
		CreatedAt:   now,
		CompletedAt: &now,
		Status:      api.AnswerStatusCompleted,
		Question:    req.Question,
		Text:        resp.Text,
		Model:       resp.Model,
		Backend:     e.provider.Name(),
		Collection:  collection,
		Sources:     sources,
		Usage:       usageFrom(resp.Usage),
	}
	e.recordTokens(resp.Model, resp.Usage)

	if e.store != nil && api.ResolveStore(req) {
		if err := e.store.SaveAnswer(ctx, ans); err != nil {
			e.recordStoreOp("save_answer", err)
			return fmt.Errorf("persisting answer: %w", err)
		}
		e.recordStoreOp("save_answer", nil)
	}

	return w.WriteAnswer(ctx, ans)
}

// streamAnswer runs the streaming pipeline: persist the answer record in
// state in_progress, emit created/sources/delta events as chunks arrive,
// then finalize the record and emit the completed event. The concatenated
// deltas equal the non-streaming text for the same deterministic request.
func (e *Engine) streamAnswer(ctx context.Context, req *api.CreateAnswerRequest, provReq *provider.Request, collection string, sources []api.Source, w transport.AnswerWriter) error {
	ans := &api.Answer{
		ID:         api.NewAnswerID(),
		Object:     "answer",
		CreatedAt:  time.Now().Unix(),
		Status:     api.AnswerStatusInProgress,
		Question:   req.Question,
		Model:      provReq.Model,
		Backend:    e.provider.Name(),
		Collection: collection,
		Sources:    sources,
	}

	persist := e.store != nil && api.ResolveStore(req)
	if persist {
		if err := e.store.SaveAnswer(ctx, ans); err != nil {
			e.recordStoreOp("save_answer", err)
			return fmt.Errorf("persisting answer: %w", err)
		}
		e.recordStoreOp("save_answer", nil)
	}

	seq := 0
	emit := func(ev api.StreamEvent) error {
		ev.SequenceNumber = seq
		seq++
		return w.WriteEvent(ctx, ev)
	}

	if err := emit(api.StreamEvent{Type: api.EventAnswerCreated, Answer: ans}); err != nil {
		return err
	}
	if len(sources) > 0 {
		if err := emit(api.StreamEvent{Type: api.EventAnswerSources, Sources: sources}); err != nil {
			return err
		}
	}

	start := time.Now()
	ch, err := e.provider.Stream(ctx, provReq)
	if err != nil {
		e.recordLLMCall("stream", provReq.Model, start, err)
		return e.failStream(ctx, ans, persist, emit, err)
	}

	var text strings.Builder
	backend := e.provider.Name()
	for chunk := range ch {
		if chunk.Err != nil {
			e.recordLLMCall("stream", provReq.Model, start, chunk.Err)
			return e.failStream(ctx, ans, persist, emit, chunk.Err)
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
			observability.StreamChunksTotal.WithLabelValues(backend).Inc()
			if err := emit(api.StreamEvent{Type: api.EventAnswerDelta, Delta: chunk.Text}); err != nil {
				return e.failStream(ctx, ans, persist, emit, err)
			}
		}
		if chunk.Done {
			if chunk.Usage != nil {
				ans.Usage = usageFrom(*chunk.Usage)
				e.recordTokens(provReq.Model, *chunk.Usage)
			}
		}
	}

	// A cancelled context closes the chunk channel without a terminal
	// chunk; the partial text must not be finalized as completed.
	if err := ctx.Err(); err != nil {
		e.recordLLMCall("stream", provReq.Model, start, err)
		return e.failStream(ctx, ans, persist, emit, fmt.Errorf("stream cancelled: %w", err))
	}
	e.recordLLMCall("stream", provReq.Model, start, nil)

	now := time.Now().Unix()
	ans.Text = text.String()
	ans.Status = api.AnswerStatusCompleted
	ans.CompletedAt = &now

	if persist {
		err := e.store.UpdateAnswer(ctx, ans)
		e.recordStoreOp("update_answer", err)
		if err != nil {
			return fmt.Errorf("finalizing answer: %w", err)
		}
	}

	return emit(api.StreamEvent{Type: api.EventAnswerCompleted, Answer: ans})
}

// failStream marks the answer failed, persists the terminal state, and
// emits the failure event. The update uses a detached context so the
// record is finalized even when the caller abandoned the stream.
func (e *Engine) failStream(ctx context.Context, ans *api.Answer, persist bool, emit func(api.StreamEvent) error, cause error) error {
	apiErr, _ := transport.TranslateError(cause)

	now := time.Now().Unix()
	ans.Status = api.AnswerStatusFailed
	ans.CompletedAt = &now
	ans.Error = apiErr

	if persist {
		updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := e.store.UpdateAnswer(updateCtx, ans); err != nil {
			e.recordStoreOp("update_answer", err)
			slog.Warn("failed to finalize answer record", "answer_id", ans.ID, "error", err)
		} else {
			e.recordStoreOp("update_answer", nil)
		}
	}

	if err := emit(api.StreamEvent{Type: api.EventAnswerFailed, Answer: ans}); err != nil {
		slog.Warn("failed to emit failure event", "answer_id", ans.ID, "error", err)
	}
	return cause
}

// retrieve embeds the question and returns the topK most similar chunks
// as sources. Retrieval is skipped when topK is zero, no store is
// configured, or the backend has no embedding model (nothing could have
// been ingested through it either).
func (e *Engine) retrieve(ctx context.Context, collection, question string, topK int) ([]api.Source, error) {
	if topK <= 0 || e.store == nil {
		return nil, nil
	}

	emb, err := e.embed(ctx, question)
	if err != nil {
		var unsupported *provider.UnsupportedError
		if errors.As(err, &unsupported) {
			slog.Warn("retrieval skipped: backend has no embedding model", "backend", e.provider.Name())
			return nil, nil
		}
		return nil, err
	}

	hits, err := e.store.SearchChunks(ctx, collection, emb, topK)
	e.recordStoreOp("search_chunks", err)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	debug.Log("retrieval", "chunks retrieved",
		"collection", collection, "top_k", topK, "hits", len(hits))

	sources := make([]api.Source, 0, len(hits))
	for _, h := range hits {
		sources = append(sources, api.Source{
			DocumentID:   h.Chunk.DocumentID,
			DocumentName: h.DocumentName,
			ChunkID:      h.Chunk.ID,
			Text:         h.Chunk.Text,
			Score:        h.Score,
		})
	}
	return sources, nil
}

// Search embeds the query and returns the top matching chunks without
// generating an answer.
func (e *Engine) Search(ctx context.Context, req *api.SearchRequest) ([]api.Source, error) {
	if apiErr := api.ValidateSearchRequest(req, e.cfg.Validation); apiErr != nil {
		return nil, apiErr
	}
	if e.store == nil {
		return nil, api.NewInvalidRequestError("", "search is not available (no store configured)")
	}

	collection := req.Collection
	if collection == "" {
		collection = e.cfg.DefaultCollection
	}
	topK := e.cfg.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	emb, err := e.embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	hits, err := e.store.SearchChunks(ctx, collection, emb, topK)
	e.recordStoreOp("search_chunks", err)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	sources := make([]api.Source, 0, len(hits))
	for _, h := range hits {
		sources = append(sources, api.Source{
			DocumentID:   h.Chunk.DocumentID,
			DocumentName: h.DocumentName,
			ChunkID:      h.Chunk.ID,
			Text:         h.Chunk.Text,
			Score:        h.Score,
		})
	}
	return sources, nil
}

// ListModels reports the models available on the active backend.
func (e *Engine) ListModels(ctx context.Context) ([]api.Model, error) {
	start := time.Now()
	infos, err := e.provider.ListModels(ctx)
	e.recordLLMCall("list_models", "", start, err)
	if err != nil {
		return nil, err
	}

	models := make([]api.Model, 0, len(infos))
	for _, mi := range infos {
		models = append(models, api.Model{
			ID:      mi.ID,
			Object:  "model",
			OwnedBy: mi.OwnedBy,
		})
	}
	return models, nil
}

// embed runs one embedding call through the provider, with metrics.
func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	resp, err := e.provider.Embed(ctx, &provider.EmbeddingRequest{Text: text})
	e.recordLLMCall("embed", "", start, err)
	if err != nil {
		return nil, err
	}
	return resp.Embedding, nil
}

// translateOptions maps the API sampling options onto the provider shape.
func translateOptions(opts api.GenerationOptions) provider.Options {
	return provider.Options{
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		TopK:        opts.TopK,
		MaxTokens:   opts.MaxTokens,
		Stop:        opts.Stop,
	}
}

// decodeImages decodes the base64 images of an answer request.
func decodeImages(images []string) ([][]byte, *api.APIError) {
	if len(images) == 0 {
		return nil, nil
	}
	decoded := make([][]byte, 0, len(images))
	for i, img := range images {
		raw, err := base64.StdEncoding.DecodeString(img)
		if err != nil {
			return nil, api.NewInvalidRequestError("images",
				fmt.Sprintf("image %d is not valid base64", i))
		}
		decoded = append(decoded, raw)
	}
	return decoded, nil
}

// usageFrom converts provider token accounting to the API shape.
// Returns nil when the backend reported nothing.
func usageFrom(u provider.Usage) *api.Usage {
	if u.PromptTokens == 0 && u.CompletionTokens == 0 {
		return nil
	}
	return &api.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.PromptTokens + u.CompletionTokens,
	}
}

func (e *Engine) recordLLMCall(operation, model string, start time.Time, err error) {
	backend := e.provider.Name()
	status := "ok"
	if err != nil {
		status = "error"
	}
	if model == "" {
		model = "default"
	}
	observability.LLMRequestsTotal.WithLabelValues(backend, model, operation, status).Inc()
	observability.LLMDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
}

func (e *Engine) recordTokens(model string, u provider.Usage) {
	if model == "" {
		model = "default"
	}
	backend := e.provider.Name()
	if u.PromptTokens > 0 {
		observability.LLMTokensTotal.WithLabelValues(backend, model, "input").Add(float64(u.PromptTokens))
	}
	if u.CompletionTokens > 0 {
		observability.LLMTokensTotal.WithLabelValues(backend, model, "output").Add(float64(u.CompletionTokens))
	}
}

func (e *Engine) recordStoreOp(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.StoreOperationsTotal.WithLabelValues(e.cfg.StoreKind, operation, status).Inc()
}
