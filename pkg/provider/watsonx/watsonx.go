package watsonx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/antwort-dev/auskunft/pkg/provider"
)

// WatsonxProvider implements provider.Provider against the watsonx.ai
// ML API.
type WatsonxProvider struct {
	cfg          Config
	iam          *iamClient
	client       *http.Client
	streamClient *http.Client
}

// Ensure WatsonxProvider implements provider.Provider at compile time.
var _ provider.Provider = (*WatsonxProvider)(nil)

// New creates a new WatsonxProvider with the given configuration.
// Missing credentials are reported as ConfigError before any network
// traffic happens.
func New(cfg Config) (*WatsonxProvider, error) {
	if cfg.APIKey == "" {
		return nil, &provider.ConfigError{
			Backend: "watsonx",
			Field:   "WATSONX_API_KEY",
			Message: "API key is required",
		}
	}
	if cfg.ProjectID == "" {
		return nil, &provider.ConfigError{
			Backend: "watsonx",
			Field:   "WATSONX_PROJECT_ID",
			Message: "project ID is required",
		}
	}

	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.IAMEndpoint == "" {
		cfg.IAMEndpoint = DefaultIAMEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	client := &http.Client{Timeout: cfg.Timeout}

	return &WatsonxProvider{
		cfg:    cfg,
		client: client,
		iam: &iamClient{
			endpoint: cfg.IAMEndpoint,
			apiKey:   cfg.APIKey,
			client:   client,
		},
		// Streaming requests can legitimately outlive any fixed
		// timeout; the context governs their lifetime instead.
		streamClient: &http.Client{},
	}, nil
}

// Name returns the provider identifier.
func (p *WatsonxProvider) Name() string {
	return "watsonx"
}

// Capabilities returns what this provider supports. The text
// generation endpoint takes no image input and produces no reasoning
// traces. Embeddings require a configured embedding model.
func (p *WatsonxProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Streaming:  true,
		Embeddings: p.cfg.EmbeddingModel != "",
	}
}

// Generate performs non-streaming text generation.
func (p *WatsonxProvider) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	genReq := translateRequest(req, p.cfg.ProjectID)

	httpResp, err := p.postJSON(ctx, p.client, "/ml/v1/text/generation", genReq, "")
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, mapHTTPError(httpResp, req.Model)
	}

	var genResp generationResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&genResp); err != nil {
		return nil, &provider.ParseError{Backend: "watsonx", Cause: err}
	}
	if len(genResp.Results) == 0 {
		return nil, &provider.ParseError{Backend: "watsonx", Cause: errors.New("response contained no results")}
	}

	return translateResponse(&genResp), nil
}

// Stream performs streaming text generation. When the deployment lacks
// the streaming endpoint (404 or 405 that does not name a model), the
// call degrades to unary generation and the full text arrives as a
// single terminal chunk.
func (p *WatsonxProvider) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Chunk, error) {
	genReq := translateRequest(req, p.cfg.ProjectID)

	httpResp, err := p.postJSON(ctx, p.streamClient, "/ml/v1/text/generation_stream", genReq, "text/event-stream")
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode == http.StatusNotFound || httpResp.StatusCode == http.StatusMethodNotAllowed {
		detail := extractErrorDetail(httpResp.Body)
		httpResp.Body.Close()

		if isModelError(detail) {
			return nil, &provider.ModelNotFoundError{
				Backend: "watsonx",
				Model:   req.Model,
				Message: messageOr(detail, "model not found"),
			}
		}

		slog.Debug("streaming endpoint unavailable, degrading to single-chunk stream",
			"status", httpResp.StatusCode,
		)
		return p.singleChunkStream(ctx, req)
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

// singleChunkStream satisfies a streaming request via unary generation.
// Consumers see one terminal chunk carrying the whole text.
func (p *WatsonxProvider) singleChunkStream(ctx context.Context, req *provider.Request) (<-chan provider.Chunk, error) {
	resp, err := p.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan provider.Chunk, 1)
	ch <- provider.Chunk{
		Text:         resp.Text,
		Done:         true,
		FinishReason: resp.FinishReason,
		Usage:        &resp.Usage,
	}
	close(ch)
	return ch, nil
}

// Embed computes a vector embedding via /ml/v1/text/embeddings. When
// the request names no model the configured embedding model is used;
// if neither is set the operation is unsupported.
func (p *WatsonxProvider) Embed(ctx context.Context, req *provider.EmbeddingRequest) (*provider.EmbeddingResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.EmbeddingModel
	}
	if model == "" {
		return nil, &provider.UnsupportedError{
			Backend:   "watsonx",
			Operation: "embeddings",
			Message:   "no embedding model configured",
		}
	}

	httpResp, err := p.postJSON(ctx, p.client, "/ml/v1/text/embeddings", &embeddingsRequest{
		ModelID:   model,
		Inputs:    []string{req.Text},
		ProjectID: p.cfg.ProjectID,
	}, "")
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, mapHTTPError(httpResp, model)
	}

	var embResp embeddingsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&embResp); err != nil {
		return nil, &provider.ParseError{Backend: "watsonx", Cause: err}
	}
	if len(embResp.Results) == 0 {
		return nil, &provider.ParseError{Backend: "watsonx", Cause: errors.New("response contained no results")}
	}

	return &provider.EmbeddingResponse{
		Model:     model,
		Embedding: embResp.Results[0].Embedding,
	}, nil
}

// ListModels returns the foundation models available on the deployment.
func (p *WatsonxProvider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	token, err := p.iam.getToken(ctx)
	if err != nil {
		return nil, err
	}

	u := p.cfg.URL + "/ml/v1/foundation_model_specs?version=" + apiVersion
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("watsonx: creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err, p.cfg.URL)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, mapHTTPError(httpResp, "")
	}

	var specs modelSpecsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&specs); err != nil {
		return nil, &provider.ParseError{Backend: "watsonx", Cause: err}
	}

	models := make([]provider.ModelInfo, 0, len(specs.Resources))
	for _, spec := range specs.Resources {
		models = append(models, provider.ModelInfo{ID: spec.ModelID, OwnedBy: spec.Provider})
	}
	return models, nil
}

// Close releases provider resources.
func (p *WatsonxProvider) Close() error {
	p.client.CloseIdleConnections()
	p.streamClient.CloseIdleConnections()
	return nil
}

// postJSON obtains a bearer token, marshals payload, and POSTs it to
// the given ML API path with the version query parameter. Transport
// failures are mapped to ConnectionError; the caller owns the response
// body on success.
func (p *WatsonxProvider) postJSON(ctx context.Context, client *http.Client, path string, payload any, accept string) (*http.Response, error) {
	token, err := p.iam.getToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("watsonx: marshaling request: %w", err)
	}

	u := p.cfg.URL + path + "?version=" + apiVersion
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("watsonx: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if accept != "" {
		httpReq.Header.Set("Accept", accept)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err, p.cfg.URL)
	}
	return httpResp, nil
}
