package transport

import (
	"context"

	"github.com/antwort-dev/auskunft/pkg/api"
)

// AnswerCreator handles the core create-answer operation. The
// implementation receives a request and writes the result (streaming
// events or a complete answer) to the AnswerWriter. It is the primary
// handler contract between the HTTP layer and the engine.
type AnswerCreator interface {
	CreateAnswer(ctx context.Context, req *api.CreateAnswerRequest, w AnswerWriter) error
}

// AnswerCreatorFunc is an adapter that allows using an ordinary function
// as an AnswerCreator.
type AnswerCreatorFunc func(ctx context.Context, req *api.CreateAnswerRequest, w AnswerWriter) error

// CreateAnswer calls f(ctx, req, w).
func (f AnswerCreatorFunc) CreateAnswer(ctx context.Context, req *api.CreateAnswerRequest, w AnswerWriter) error {
	return f(ctx, req, w)
}

// DocumentIngester handles document ingestion: chunking, optional
// enrichment, embedding, and persistence.
type DocumentIngester interface {
	IngestDocument(ctx context.Context, req *api.IngestDocumentRequest) (*api.Document, error)
}

// Searcher handles standalone retrieval queries against the stored corpus.
type Searcher interface {
	Search(ctx context.Context, req *api.SearchRequest) ([]api.Source, error)
}

// ModelLister reports the models available on the active backend.
type ModelLister interface {
	ListModels(ctx context.Context) ([]api.Model, error)
}

// Service is the full engine contract consumed by the HTTP adapter.
type Service interface {
	AnswerCreator
	DocumentIngester
	Searcher
	ModelLister
}

// AnswerWriter abstracts streaming and non-streaming output for the handler.
// The transport layer creates an AnswerWriter for each request and provides
// it to the handler. The handler uses WriteEvent for streaming answers or
// WriteAnswer for non-streaming answers.
//
// WriteEvent and WriteAnswer are mutually exclusive on a single writer
// instance. Calling WriteEvent after WriteAnswer (or vice versa) returns
// an error. Calling WriteEvent after a terminal event (answer.completed,
// answer.failed, or error) also returns an error.
type AnswerWriter interface {
	// WriteEvent sends a single streaming event. Returns an error if called
	// after a terminal event has been sent or after WriteAnswer was called.
	WriteEvent(ctx context.Context, event api.StreamEvent) error

	// WriteAnswer sends a complete non-streaming answer. Returns an error
	// if called after WriteEvent was called on this writer.
	WriteAnswer(ctx context.Context, ans *api.Answer) error

	// Flush ensures buffered data is sent to the client. Returns an error
	// if the client has disconnected.
	Flush() error
}
