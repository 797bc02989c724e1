package storage

import (
	"context"
	"time"

	"github.com/antwort-dev/auskunft/pkg/api"
)

// Chunk is the persisted form of one document fragment. The embedding is
// computed at ingest time; Summary carries the optional contextual
// enrichment that is embedded and searched together with the text.
type Chunk struct {
	ID         string
	DocumentID string
	Collection string
	Seq        int
	Text       string
	Summary    string
	Embedding  []float32
}

// ScoredChunk is a search hit: a chunk plus its similarity to the query.
type ScoredChunk struct {
	Chunk        Chunk
	DocumentName string
	Score        float64
}

// ListOptions controls pagination and filtering for list operations.
type ListOptions struct {
	// Limit is the page size. Values <= 0 fall back to 20; the cap is 100.
	Limit int

	// After is an exclusive ID cursor into the sorted result.
	After string

	// Order is "asc" or "desc" by creation time. Default is "desc".
	Order string

	// Collection filters documents and answers by collection when set.
	Collection string

	// Model filters answers by generation model when set.
	Model string
}

// Store is the persistence interface for documents, their chunks, and
// answers. All operations are tenant-scoped when a tenant is present in
// the context (see SetTenant). Deletes are soft; PurgeDeleted removes
// soft-deleted records permanently.
type Store interface {
	// SaveDocument persists a document together with its chunks.
	// Returns ErrConflict if the document ID already exists.
	SaveDocument(ctx context.Context, doc *api.Document, chunks []Chunk) error

	// GetDocument retrieves a document by ID, excluding soft-deleted ones.
	GetDocument(ctx context.Context, id string) (*api.Document, error)

	// ListDocuments returns a paginated list of documents.
	ListDocuments(ctx context.Context, opts ListOptions) (*api.DocumentList, error)

	// DeleteDocument soft-deletes a document. Its chunks stop appearing
	// in search results immediately.
	DeleteDocument(ctx context.Context, id string) error

	// SearchChunks returns the topK chunks of the collection most similar
	// to the query embedding, ranked by cosine similarity. Chunks of
	// soft-deleted documents are excluded.
	SearchChunks(ctx context.Context, collection string, embedding []float32, topK int) ([]ScoredChunk, error)

	// SaveAnswer persists a new answer record.
	// Returns ErrConflict if the answer ID already exists.
	SaveAnswer(ctx context.Context, ans *api.Answer) error

	// UpdateAnswer replaces a previously saved answer, typically to
	// finalize a streamed answer. Returns ErrNotFound if it was never saved.
	UpdateAnswer(ctx context.Context, ans *api.Answer) error

	// GetAnswer retrieves an answer by ID, excluding soft-deleted ones.
	GetAnswer(ctx context.Context, id string) (*api.Answer, error)

	// ListAnswers returns a paginated list of answers.
	ListAnswers(ctx context.Context, opts ListOptions) (*api.AnswerList, error)

	// DeleteAnswer soft-deletes an answer.
	DeleteAnswer(ctx context.Context, id string) error

	// PurgeDeleted permanently removes records soft-deleted before the
	// given time. Returns the number of documents and answers removed.
	PurgeDeleted(ctx context.Context, olderThan time.Time) (int, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
