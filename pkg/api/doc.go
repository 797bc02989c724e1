// Package api defines the wire types for the auskunft HTTP API.
//
// This package provides all data types the service exposes over HTTP:
// answers and their sources, documents, search, streaming events, error
// envelopes, status transitions, validation, and ID generation.
//
// The package has zero external dependencies (Go standard library only)
// and performs no I/O.
//
// Core types:
//   - [CreateAnswerRequest] / [Answer]: question answering over the corpus
//   - [IngestDocumentRequest] / [Document]: document ingestion
//   - [SearchRequest] / [SearchResponse]: retrieval without generation
//   - [StreamEvent]: server-sent event for streaming answers
//   - [APIError]: structured error with type, code, param, and message
package api
