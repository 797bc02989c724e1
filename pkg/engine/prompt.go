package engine

import (
	"fmt"
	"strings"

	"github.com/antwort-dev/auskunft/pkg/api"
)

// answerSystemPrompt frames the generation model as a grounded assistant.
const answerSystemPrompt = "You are a helpful assistant. Answer the question using the provided context. If the context does not contain the answer, say so instead of guessing."

// enrichmentSystemPrompt instructs the enrichment model at ingest time.
const enrichmentSystemPrompt = "You situate document excerpts. Reply with one or two plain sentences and nothing else."

// buildPrompt assembles the final prompt: numbered context blocks first,
// then the question. Without sources it is just the bare question.
func buildPrompt(sources []api.Source, question string) string {
	if len(sources) == 0 {
		return question
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	for i, src := range sources {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, strings.TrimSpace(src.Text))
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// buildEnrichmentPrompt asks the enrichment model to situate one chunk
// within its document, for embedding alongside the chunk text.
func buildEnrichmentPrompt(docName, chunk string) string {
	var b strings.Builder
	if docName != "" {
		fmt.Fprintf(&b, "Document: %s\n\n", docName)
	}
	b.WriteString("Excerpt:\n")
	b.WriteString(strings.TrimSpace(chunk))
	b.WriteString("\n\nDescribe in one or two sentences what this excerpt is about, so it can be found by search.")
	return b.String()
}
