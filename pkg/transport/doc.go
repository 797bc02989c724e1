// Package transport defines the handler interfaces and middleware chain for
// the auskunft HTTP/SSE transport layer.
//
// The transport layer bridges external clients and the RAG engine. It
// deserializes incoming requests into the types defined in pkg/api,
// dispatches them for processing, and serializes results back to the
// client in either synchronous (JSON) or streaming (SSE) format.
//
// # Handler Interfaces
//
// The Service interface defines the contract between the transport layer
// and the engine:
//
//   - AnswerCreator handles the core create-answer operation, streaming
//     or not, driven through an AnswerWriter.
//   - DocumentIngester, Searcher, and ModelLister cover ingestion,
//     standalone retrieval, and model discovery.
//
// Stored answers and documents are read and deleted directly through
// storage.Store; the engine is only involved where a backend call is
// needed.
//
// # Middleware
//
// The middleware chain wraps AnswerCreator with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog. HTTP-level
// concerns (auth, metrics) wrap the adapter's http.Handler instead.
//
// # Error mapping
//
// TranslateError converts the provider error taxonomy into API error
// envelopes: backend authentication and connection failures surface as
// 502, unknown models as 404, and rate limits as 429 with the backend's
// Retry-After forwarded. Nothing is retried at this layer.
package transport
