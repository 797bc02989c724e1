package engine

import (
	"strings"
	"testing"

	"github.com/antwort-dev/auskunft/pkg/api"
)

func TestBuildPromptBareQuestion(t *testing.T) {
	got := buildPrompt(nil, "what time is it?")
	if got != "what time is it?" {
		t.Errorf("buildPrompt without sources = %q", got)
	}
}

func TestBuildPromptNumbersContext(t *testing.T) {
	sources := []api.Source{
		{Text: "first chunk"},
		{Text: "second chunk"},
	}
	got := buildPrompt(sources, "the question")

	if !strings.Contains(got, "[1] first chunk") {
		t.Errorf("missing first context block: %q", got)
	}
	if !strings.Contains(got, "[2] second chunk") {
		t.Errorf("missing second context block: %q", got)
	}
	if !strings.Contains(got, "Question: the question") {
		t.Errorf("missing question: %q", got)
	}
	if strings.Index(got, "[1]") > strings.Index(got, "Question:") {
		t.Error("context must precede the question")
	}
}

func TestBuildEnrichmentPromptIncludesDocumentName(t *testing.T) {
	got := buildEnrichmentPrompt("handbook", "the chunk")
	if !strings.Contains(got, "handbook") {
		t.Errorf("missing document name: %q", got)
	}
	if !strings.Contains(got, "the chunk") {
		t.Errorf("missing chunk text: %q", got)
	}

	anon := buildEnrichmentPrompt("", "the chunk")
	if strings.Contains(anon, "Document:") {
		t.Errorf("unnamed document must omit the Document line: %q", anon)
	}
}
