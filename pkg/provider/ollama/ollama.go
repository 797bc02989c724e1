package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/antwort-dev/auskunft/pkg/provider"
)

// OllamaProvider implements provider.Provider against a local Ollama
// server using its native API.
type OllamaProvider struct {
	cfg          Config
	client       *http.Client
	streamClient *http.Client
}

// Ensure OllamaProvider implements provider.Provider at compile time.
var _ provider.Provider = (*OllamaProvider)(nil)

// New creates a new OllamaProvider with the given configuration.
// Returns a ConfigError if the host is missing.
func New(cfg Config) (*OllamaProvider, error) {
	if cfg.Host == "" {
		return nil, &provider.ConfigError{
			Backend: "ollama",
			Field:   "OLLAMA_HOST",
			Message: "server host is required",
		}
	}

	// Normalize: remove trailing slash from the host URL.
	cfg.Host = strings.TrimRight(cfg.Host, "/")

	// Apply default timeout if not set.
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &OllamaProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		// Streaming requests can legitimately outlive any fixed
		// timeout; the context governs their lifetime instead.
		streamClient: &http.Client{},
	}, nil
}

// Name returns the provider identifier.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Capabilities returns what this provider supports. Images and thinking
// are passed through to the model, which decides whether it can honor
// them. Embeddings require a configured embedding model.
func (p *OllamaProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Streaming:  true,
		Embeddings: p.cfg.EmbeddingModel != "",
		Vision:     true,
		Thinking:   true,
	}
}

// Generate performs non-streaming text generation via /api/generate.
func (p *OllamaProvider) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	genReq := translateRequest(req, false)

	httpResp, err := p.postJSON(ctx, p.client, "/api/generate", genReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, mapHTTPError(httpResp, req.Model)
	}

	var genResp generateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&genResp); err != nil {
		return nil, &provider.ParseError{Backend: "ollama", Cause: err}
	}

	return translateResponse(&genResp), nil
}

// Stream performs streaming text generation via /api/generate. It
// returns a channel of chunks that is closed after the terminal chunk.
// Request-level failures (unreachable server, unknown model) surface
// as an error before any chunk is produced.
func (p *OllamaProvider) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Chunk, error) {
	genReq := translateRequest(req, true)

	httpResp, err := p.postJSON(ctx, p.streamClient, "/api/generate", genReq)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		return nil, mapHTTPError(httpResp, req.Model)
	}

	ch := make(chan provider.Chunk, 16)

	go func() {
		defer close(ch)
		defer httpResp.Body.Close()
		decodeStream(ctx, httpResp.Body, ch)
	}()

	return ch, nil
}

// Embed computes a vector embedding via /api/embeddings. When the
// request names no model the configured embedding model is used; if
// neither is set the operation is unsupported.
func (p *OllamaProvider) Embed(ctx context.Context, req *provider.EmbeddingRequest) (*provider.EmbeddingResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.EmbeddingModel
	}
	if model == "" {
		return nil, &provider.UnsupportedError{
			Backend:   "ollama",
			Operation: "embeddings",
			Message:   "no embedding model configured",
		}
	}

	httpResp, err := p.postJSON(ctx, p.client, "/api/embeddings", &embeddingsRequest{
		Model:  model,
		Prompt: req.Text,
	})
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, mapHTTPError(httpResp, model)
	}

	var embResp embeddingsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&embResp); err != nil {
		return nil, &provider.ParseError{Backend: "ollama", Cause: err}
	}

	return &provider.EmbeddingResponse{
		Model:     model,
		Embedding: embResp.Embedding,
	}, nil
}

// ListModels returns the models available on the server via /api/tags.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.Host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("ollama: creating request: %w", err)
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err, p.cfg.Host)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, mapHTTPError(httpResp, "")
	}

	var tags tagsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&tags); err != nil {
		return nil, &provider.ParseError{Backend: "ollama", Cause: err}
	}

	models := make([]provider.ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, provider.ModelInfo{ID: m.Name, OwnedBy: "ollama"})
	}
	return models, nil
}

// Close releases provider resources.
func (p *OllamaProvider) Close() error {
	p.client.CloseIdleConnections()
	p.streamClient.CloseIdleConnections()
	return nil
}

// postJSON marshals payload and POSTs it to the given path. Transport
// failures are mapped to ConnectionError; the caller owns the response
// body on success.
func (p *OllamaProvider) postJSON(ctx context.Context, client *http.Client, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ollama: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err, p.cfg.Host)
	}
	return httpResp, nil
}
