// Package engine implements the retrieval-augmented generation pipeline:
// embed the question, retrieve the most similar document chunks, assemble
// the prompt, and generate the answer through the active backend.
//
// The engine is handed exactly one Provider by the factory; every
// generation, enrichment, and embedding call in the process goes through
// it. Ingestion splits documents into overlapping chunks, optionally
// enriches each chunk with a short contextual summary from the
// enrichment model, and stores chunk embeddings for retrieval.
package engine
