package engine

import "github.com/antwort-dev/auskunft/pkg/api"

// Config holds the engine settings. Zero values fall back to the
// defaults applied by withDefaults.
type Config struct {
	// GenerationModel is the default model for answers when the request
	// does not name one. Empty falls through to the adapter's default.
	GenerationModel string

	// EnrichmentModel is the model used for contextual chunk enrichment
	// at ingest time. Empty disables enrichment unless a request asks
	// for it explicitly.
	EnrichmentModel string

	// DefaultCollection is the collection used when requests leave it
	// empty. Default: "default".
	DefaultCollection string

	// DefaultTopK is the number of chunks retrieved per answer when the
	// request does not set top_k. Default: 5.
	DefaultTopK int

	// ChunkSize is the target chunk length in bytes at ingest.
	// Default: 1200.
	ChunkSize int

	// ChunkOverlap is the overlap between consecutive chunks in bytes.
	// Default: 200.
	ChunkOverlap int

	// StoreKind labels store operations in metrics ("memory",
	// "postgres", "sqlite").
	StoreKind string

	// Validation carries the request size limits.
	Validation api.ValidationConfig
}

func (c Config) withDefaults() Config {
	if c.DefaultCollection == "" {
		c.DefaultCollection = "default"
	}
	if c.DefaultTopK == 0 {
		c.DefaultTopK = 5
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 1200
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 200
	}
	if c.StoreKind == "" {
		c.StoreKind = "memory"
	}
	if c.Validation == (api.ValidationConfig{}) {
		c.Validation = api.DefaultValidationConfig()
	}
	return c
}
