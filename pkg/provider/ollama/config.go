package ollama

import "time"

// Config holds configuration for the Ollama provider adapter.
type Config struct {
	// Host is the Ollama server URL (e.g., "http://localhost:11434").
	Host string

	// Timeout for unary HTTP requests. Streaming requests are governed
	// by context cancellation instead. Defaults to 120s.
	Timeout time.Duration

	// EmbeddingModel is the model used for embedding requests that do
	// not name one. Embeddings are reported as unsupported when empty.
	EmbeddingModel string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(host string) Config {
	return Config{
		Host:    host,
		Timeout: 120 * time.Second,
	}
}
