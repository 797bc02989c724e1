// Package watsonx implements the Provider interface for IBM watsonx.ai
// foundation models. It exchanges the configured IBM Cloud API key for
// a bearer token via the IAM endpoint, caches the token until shortly
// before expiry, and calls the regional ML endpoints: /ml/v1/text/generation
// for unary inference, /ml/v1/text/generation_stream for SSE streaming,
// /ml/v1/text/embeddings for vectors, and /ml/v1/foundation_model_specs
// for model discovery.
//
// Deployments that lack the streaming endpoint degrade transparently:
// a 404 or 405 from generation_stream falls back to unary generation
// and the full text is delivered as a single terminal chunk.
//
// Vendor errors are mapped to the shared provider error types. Rate
// limit responses surface as RateLimitError with any Retry-After hint
// attached; the adapter never retries on its own. JSON format hints
// are not supported by the text generation endpoint and are ignored.
package watsonx
