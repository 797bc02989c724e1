package api

// ---------------------------------------------------------------------------
// Answer types
// ---------------------------------------------------------------------------

// AnswerStatus represents the lifecycle state of an answer.
type AnswerStatus string

const (
	AnswerStatusInProgress AnswerStatus = "in_progress"
	AnswerStatusCompleted  AnswerStatus = "completed"
	AnswerStatusFailed     AnswerStatus = "failed"
)

// GenerationOptions holds the sampling parameters a caller may set on an
// answer request. All fields are optional; nil means "backend default".
type GenerationOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// CreateAnswerRequest is the request body for POST /v1/answers.
type CreateAnswerRequest struct {
	// Question is the user's query. Required.
	Question string `json:"question"`

	// Collection selects the document collection to retrieve from.
	// Empty means "default".
	Collection string `json:"collection,omitempty"`

	// Model overrides the configured generation model.
	Model string `json:"model,omitempty"`

	// TopK is the number of context chunks to retrieve. Nil means the
	// server default; 0 disables retrieval for this answer.
	TopK *int `json:"top_k,omitempty"`

	// Stream requests server-sent events instead of a single JSON body.
	Stream bool `json:"stream,omitempty"`

	// Format requests structured model output ("json" or empty).
	Format string `json:"format,omitempty"`

	// Images holds base64-encoded images for multimodal models.
	Images []string `json:"images,omitempty"`

	// Think enables intermediate reasoning on models that support it.
	Think *bool `json:"think,omitempty"`

	// Options are the generation parameters.
	Options GenerationOptions `json:"options"`

	// Store controls whether the answer is persisted. Nil means true.
	Store *bool `json:"store,omitempty"`
}

// Answer is the API answer object.
type Answer struct {
	ID          string         `json:"id"`
	Object      string         `json:"object"`
	CreatedAt   int64          `json:"created_at"`
	CompletedAt *int64         `json:"completed_at"`
	Status      AnswerStatus   `json:"status"`
	Question    string         `json:"question"`
	Text        string         `json:"text"`
	Model       string         `json:"model"`
	Backend     string         `json:"backend"`
	Collection  string         `json:"collection,omitempty"`
	Sources     []Source       `json:"sources"`
	Usage       *Usage         `json:"usage,omitempty"`
	Error       *APIError      `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Source is one retrieved context chunk that grounded an answer.
type Source struct {
	// DocumentID identifies the document the chunk belongs to.
	DocumentID string `json:"document_id"`

	// DocumentName is the human-readable document name, when set at ingest.
	DocumentName string `json:"document_name,omitempty"`

	// ChunkID identifies the chunk.
	ChunkID string `json:"chunk_id"`

	// Text is the chunk text supplied to the model.
	Text string `json:"text"`

	// Score is the cosine similarity between question and chunk.
	Score float64 `json:"score"`
}

// Usage holds token accounting for one generation call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AnswerList is a cursor-paginated page of answers.
type AnswerList struct {
	Object  string   `json:"object"`
	Data    []Answer `json:"data"`
	HasMore bool     `json:"has_more"`
	LastID  string   `json:"last_id,omitempty"`
}

// ---------------------------------------------------------------------------
// Document types
// ---------------------------------------------------------------------------

// IngestDocumentRequest is the request body for POST /v1/documents.
type IngestDocumentRequest struct {
	// Name is a human-readable document name.
	Name string `json:"name,omitempty"`

	// Text is the raw document text. Required.
	Text string `json:"text"`

	// Collection assigns the document to a collection. Empty means
	// "default".
	Collection string `json:"collection,omitempty"`

	// Enrich controls contextual enrichment of chunks at ingest.
	// Nil means "enrich when an enrichment model is configured".
	Enrich *bool `json:"enrich,omitempty"`

	// Metadata is caller-defined document metadata.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Document is the API document object.
type Document struct {
	ID         string            `json:"id"`
	Object     string            `json:"object"`
	CreatedAt  int64             `json:"created_at"`
	Name       string            `json:"name,omitempty"`
	Collection string            `json:"collection"`
	ChunkCount int               `json:"chunk_count"`
	Enriched   bool              `json:"enriched"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// DocumentList is a cursor-paginated page of documents.
type DocumentList struct {
	Object  string     `json:"object"`
	Data    []Document `json:"data"`
	HasMore bool       `json:"has_more"`
	LastID  string     `json:"last_id,omitempty"`
}

// ---------------------------------------------------------------------------
// Search types
// ---------------------------------------------------------------------------

// SearchRequest is the request body for POST /v1/search.
type SearchRequest struct {
	// Query is the text to match against stored chunks. Required.
	Query string `json:"query"`

	// Collection restricts the search. Empty means "default".
	Collection string `json:"collection,omitempty"`

	// TopK is the number of results. Nil means the server default.
	TopK *int `json:"top_k,omitempty"`
}

// SearchResponse is the response body for POST /v1/search.
type SearchResponse struct {
	Object  string   `json:"object"`
	Query   string   `json:"query"`
	Results []Source `json:"results"`
}

// ---------------------------------------------------------------------------
// Model types
// ---------------------------------------------------------------------------

// Model describes one model available on the active backend.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// ModelList is the response body for GET /v1/models.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
