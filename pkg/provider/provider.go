package provider

import (
	"context"
)

// Provider abstracts a text-generation backend. The interface is
// protocol-agnostic: each adapter handles its own backend protocol
// (Ollama's native API, watsonx.ai's REST API) internally and
// normalizes responses to the common shapes.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the backend identifier (e.g., "ollama", "watsonx").
	Name() string

	// Capabilities returns what this backend supports.
	Capabilities() Capabilities

	// Generate performs a non-streaming completion. It blocks for the
	// duration of the network round trip, bounded by the adapter's
	// per-call timeout and the caller's context.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Stream performs a streaming completion. The returned channel yields
	// an ordered, finite, non-restartable sequence of Chunk values and is
	// closed by the adapter when the stream completes, errors, or the
	// context is cancelled. Backends without true streaming support serve
	// the full response as a single text chunk; callers cannot distinguish
	// the fallback except by latency.
	Stream(ctx context.Context, req *Request) (<-chan Chunk, error)

	// Embed computes an embedding vector for a single text. Backends with
	// no embedding model configured return *UnsupportedError.
	Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)

	// ListModels returns the models available on the backend.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Close releases backend resources (HTTP clients, cached sessions).
	Close() error
}
