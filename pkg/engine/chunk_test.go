package engine

import (
	"strings"
	"testing"
)

func TestSplitTextShortInput(t *testing.T) {
	chunks := SplitText("a short text", 100, 20)
	if len(chunks) != 1 || chunks[0] != "a short text" {
		t.Errorf("unexpected chunks %q", chunks)
	}
}

func TestSplitTextEmpty(t *testing.T) {
	if chunks := SplitText("   \n  ", 100, 20); chunks != nil {
		t.Errorf("expected nil for blank input, got %q", chunks)
	}
}

func TestSplitTextChunkSizeBound(t *testing.T) {
	text := strings.Repeat("one sentence here. ", 200)
	chunks := SplitText(text, 300, 50)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 300 {
			t.Errorf("chunk %d exceeds size: %d bytes", i, len(c))
		}
		if c == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func TestSplitTextPrefersSentenceBoundaries(t *testing.T) {
	text := strings.Repeat("This is a sentence. ", 50)
	chunks := SplitText(text, 120, 0)

	for i, c := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(c, ".") {
			t.Errorf("chunk %d does not end at a sentence boundary: %q", i, c)
		}
	}
}

func TestSplitTextOverlapCarriesContext(t *testing.T) {
	text := strings.Repeat("word ", 400)
	chunks := SplitText(text, 200, 80)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// With overlap, the total chunk bytes exceed the input length.
	var total int
	for _, c := range chunks {
		total += len(c)
	}
	if total <= len(strings.TrimSpace(text)) {
		t.Errorf("expected overlap to duplicate content: total=%d input=%d", total, len(text))
	}
}

func TestSplitTextCoversWholeInput(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta. ", 100)
	chunks := SplitText(text, 250, 40)

	// Every trailing portion of the input must appear in some chunk;
	// spot-check the final characters.
	lastWords := "alpha beta gamma delta."
	found := false
	for _, c := range chunks {
		if strings.HasSuffix(c, lastWords) {
			found = true
		}
	}
	if !found {
		t.Error("final content missing from chunks")
	}
}

func TestSplitTextDegenerateOverlap(t *testing.T) {
	// Overlap >= size must not loop forever.
	text := strings.Repeat("x y z w v u t s r q. ", 100)
	chunks := SplitText(text, 50, 50)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
}
