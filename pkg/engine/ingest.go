package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/antwort-dev/auskunft/pkg/api"
	"github.com/antwort-dev/auskunft/pkg/debug"
	"github.com/antwort-dev/auskunft/pkg/observability"
	"github.com/antwort-dev/auskunft/pkg/provider"
	"github.com/antwort-dev/auskunft/pkg/storage"
)

// IngestDocument splits the document into overlapping chunks, optionally
// enriches each chunk with a contextual summary from the enrichment
// model, embeds the chunks, and persists document and chunks together.
// A backend without an embedding model fails the ingest with the
// provider's UnsupportedError.
func (e *Engine) IngestDocument(ctx context.Context, req *api.IngestDocumentRequest) (*api.Document, error) {
	if apiErr := api.ValidateIngestRequest(req, e.cfg.Validation); apiErr != nil {
		return nil, apiErr
	}
	if e.store == nil {
		return nil, api.NewInvalidRequestError("", "document ingestion is not available (no store configured)")
	}

	collection := req.Collection
	if collection == "" {
		collection = e.cfg.DefaultCollection
	}

	// Enrichment defaults to on when an enrichment model is configured;
	// the request can force it either way.
	enrich := e.cfg.EnrichmentModel != ""
	if req.Enrich != nil {
		enrich = *req.Enrich
	}

	pieces := SplitText(req.Text, e.cfg.ChunkSize, e.cfg.ChunkOverlap)
	if len(pieces) == 0 {
		return nil, api.NewInvalidRequestError("text", "text contains no content")
	}

	docID := uuid.NewString()
	chunks := make([]storage.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		var summary string
		if enrich {
			var err error
			summary, err = e.enrichChunk(ctx, req.Name, piece)
			if err != nil {
				return nil, fmt.Errorf("enriching chunk %d: %w", i, err)
			}
		}

		// The summary is embedded together with the chunk text so the
		// surrounding document context is searchable.
		embedText := piece
		if summary != "" {
			embedText = summary + "\n\n" + piece
		}
		emb, err := e.embed(ctx, embedText)
		if err != nil {
			return nil, err
		}

		chunks = append(chunks, storage.Chunk{
			ID:         api.NewChunkID(),
			DocumentID: docID,
			Collection: collection,
			Seq:        i,
			Text:       piece,
			Summary:    summary,
			Embedding:  emb,
		})
	}

	doc := &api.Document{
		ID:         docID,
		Object:     "document",
		CreatedAt:  time.Now().Unix(),
		Name:       req.Name,
		Collection: collection,
		ChunkCount: len(chunks),
		Enriched:   enrich,
		Metadata:   req.Metadata,
	}

	err := e.store.SaveDocument(ctx, doc, chunks)
	e.recordStoreOp("save_document", err)
	if err != nil {
		return nil, fmt.Errorf("persisting document: %w", err)
	}

	observability.IngestChunksTotal.WithLabelValues(collection).Add(float64(len(chunks)))
	debug.Log("ingest", "document ingested",
		"document_id", docID, "collection", collection,
		"chunks", len(chunks), "enriched", enrich)
	return doc, nil
}

// enrichChunk generates a short contextual summary for one chunk using
// the enrichment model.
func (e *Engine) enrichChunk(ctx context.Context, docName, chunk string) (string, error) {
	maxTokens := 120
	temperature := 0.0

	start := time.Now()
	resp, err := e.provider.Generate(ctx, &provider.Request{
		Model:  e.cfg.EnrichmentModel,
		Prompt: buildEnrichmentPrompt(docName, chunk),
		System: enrichmentSystemPrompt,
		Options: provider.Options{
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		},
	})
	e.recordLLMCall("enrich", e.cfg.EnrichmentModel, start, err)
	if err != nil {
		return "", err
	}
	e.recordTokens(e.cfg.EnrichmentModel, resp.Usage)
	return strings.TrimSpace(resp.Text), nil
}
