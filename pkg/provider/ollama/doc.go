// Package ollama implements the Provider interface for a local Ollama
// server. It speaks Ollama's native HTTP API: /api/generate for text
// generation (unary and NDJSON streaming), /api/embeddings for vector
// embeddings, and /api/tags for model discovery. No authentication is
// sent; the server is assumed to be reachable on a local or trusted
// network. Connection failures and missing models are reported as
// distinct error types so callers can tell "server unreachable" apart
// from "model not loaded".
package ollama
