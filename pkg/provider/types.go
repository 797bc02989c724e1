package provider

// Capabilities declares what features the backend supports.
// Used by the engine for early request validation.
type Capabilities struct {
	// Streaming indicates whether the backend supports incremental
	// delivery. Adapters without it still satisfy Stream via the
	// single-chunk fallback.
	Streaming bool

	// Embeddings indicates whether an embedding model is configured.
	Embeddings bool

	// Vision indicates whether the backend accepts image inputs.
	Vision bool

	// Thinking indicates whether the backend honors the Think flag.
	Thinking bool
}

// Request is the backend-facing generation request. It contains only the
// information the adapter needs, stripped of transport and storage
// concerns. Adapters treat it as immutable.
type Request struct {
	// Model identifies the model on the backend. Required; the engine
	// applies configured defaults before the request reaches an adapter.
	Model string `json:"model"`

	// Prompt is the full text prompt.
	Prompt string `json:"prompt"`

	// System is an optional system prompt, sent separately where the
	// backend supports it.
	System string `json:"system,omitempty"`

	// Format requests a structured output format ("json" or empty).
	Format string `json:"format,omitempty"`

	// Images holds raw image bytes for multimodal models. Adapters encode
	// them per their protocol; backends without image support log and
	// ignore them.
	Images [][]byte `json:"-"`

	// Think enables intermediate reasoning on models that support it.
	// Nil leaves the backend default in place.
	Think *bool `json:"think,omitempty"`

	// Options are the sampling parameters. All fields are optional;
	// nil means "backend default".
	Options Options `json:"options"`
}

// Options holds the generation parameters shared by both backends.
type Options struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// Response is the backend's complete non-streaming response, normalized
// to a common shape regardless of the vendor envelope.
type Response struct {
	// Model echoes the model that produced the text.
	Model string `json:"model"`

	// Text is the generated completion.
	Text string `json:"text"`

	// Done is true once the backend reports the generation finished.
	Done bool `json:"done"`

	// FinishReason is the normalized stop cause ("stop", "length", ...).
	// Empty when the backend does not report one.
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage holds token accounting when the backend reports it.
	Usage Usage `json:"usage"`
}

// Usage holds token counts as reported by the backend. Zero values mean
// the backend did not report them.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Chunk is one element of a streaming sequence: a partial text fragment,
// or the terminal marker carrying the final metadata.
//
// Exactly one terminal chunk ends every sequence: either Done is true
// (successful completion, FinishReason/Usage populated when known) or Err
// is set (the stream failed mid-flight). The channel is closed after the
// terminal chunk.
type Chunk struct {
	// Text is the incremental fragment. May be empty on the terminal chunk.
	Text string

	// Done marks the successful end of the sequence.
	Done bool

	// FinishReason is set on the terminal chunk when the backend reports it.
	FinishReason string

	// Usage is set on the terminal chunk when the backend reports it.
	Usage *Usage

	// Err is set instead of Done when the stream fails after it started.
	Err error
}

// EmbeddingRequest asks for an embedding vector of a single text.
type EmbeddingRequest struct {
	// Model identifies the embedding model. Empty means the adapter's
	// configured embedding model.
	Model string `json:"model"`

	// Text is the input to embed.
	Text string `json:"text"`
}

// EmbeddingResponse carries the embedding vector.
type EmbeddingResponse struct {
	// Model echoes the embedding model used.
	Model string `json:"model"`

	// Embedding is the ordered vector.
	Embedding []float32 `json:"embedding"`
}

// ModelInfo holds information about a model served by the backend.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
}
