package ollama

// Wire types for Ollama's native HTTP API. Field names follow the JSON
// shapes documented at https://github.com/ollama/ollama/blob/main/docs/api.md.

// generateRequest is the request body for POST /api/generate.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`

	// Format constrains the output shape ("json" or empty).
	Format string `json:"format,omitempty"`

	// Images are base64-encoded image payloads for multimodal models.
	Images []string `json:"images,omitempty"`

	// Think toggles reasoning traces on models that support them.
	Think *bool `json:"think,omitempty"`

	Options *generateOptions `json:"options,omitempty"`
}

// generateOptions maps sampling parameters to Ollama's option names.
type generateOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// generateResponse is one response object from /api/generate. In
// streaming mode each NDJSON line decodes into this shape; the final
// line has Done set and carries the token counts.
type generateResponse struct {
	Model           string `json:"model"`
	CreatedAt       string `json:"created_at"`
	Response        string `json:"response"`
	Thinking        string `json:"thinking,omitempty"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

// embeddingsRequest is the request body for POST /api/embeddings.
type embeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embeddingsResponse is the response body from /api/embeddings.
type embeddingsResponse struct {
	Embedding []float32 `json:"embedding"`
}

// tagsResponse is the response body from GET /api/tags.
type tagsResponse struct {
	Models []modelTag `json:"models"`
}

type modelTag struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at"`
	Size       int64  `json:"size"`
}

// errorResponse is Ollama's error body, e.g. {"error":"model 'x' not found"}.
type errorResponse struct {
	Error string `json:"error"`
}
