package watsonx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/antwort-dev/auskunft/pkg/provider"
)

// fragmentReader delivers at most size bytes per Read call, simulating
// arbitrary network fragmentation of the SSE byte stream.
type fragmentReader struct {
	data []byte
	size int
	off  int
}

func (r *fragmentReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	n := r.size
	if n > len(p) {
		n = len(p)
	}
	if r.off+n > len(r.data) {
		n = len(r.data) - r.off
	}
	copy(p, r.data[r.off:r.off+n])
	r.off += n
	return n, nil
}

// buildSSE encodes text fragments as a generation_stream SSE payload,
// with the last fragment carrying the terminal stop reason.
func buildSSE(t *testing.T, fragments []string, stopReason string) []byte {
	t.Helper()
	var buf bytes.Buffer
	for i, frag := range fragments {
		reason := "not_finished"
		if i == len(fragments)-1 {
			reason = stopReason
		}
		payload, err := json.Marshal(generationResponse{
			ModelID: "m",
			Results: []generationResult{{
				GeneratedText:       frag,
				GeneratedTokenCount: i + 1,
				InputTokenCount:     3,
				StopReason:          reason,
			}},
		})
		if err != nil {
			t.Fatalf("marshaling event: %v", err)
		}
		buf.WriteString("data: ")
		buf.Write(payload)
		buf.WriteString("\n\n")
	}
	return buf.Bytes()
}

func TestProperty_StreamTextPreservation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	genFragments := gen.SliceOfN(20, gen.AnyString()).SuchThat(func(frags []string) bool {
		return len(frags) > 0
	})

	properties.Property("concatenated chunks equal the full text for any fragmentation", prop.ForAll(
		func(fragments []string, readSize int) bool {
			sse := buildSSE(t, fragments, "eos_token")
			reader := &fragmentReader{data: sse, size: readSize}

			ch := make(chan provider.Chunk, 64)
			go func() {
				defer close(ch)
				decodeStream(context.Background(), reader, ch)
			}()

			var text strings.Builder
			var terminals int
			for c := range ch {
				if c.Err != nil {
					return false
				}
				text.WriteString(c.Text)
				if c.Done {
					terminals++
				}
			}

			return text.String() == strings.Join(fragments, "") && terminals == 1
		},
		genFragments,
		gen.IntRange(1, 512),
	))

	properties.Property("the terminal chunk is always the last one", prop.ForAll(
		func(fragments []string) bool {
			sse := buildSSE(t, fragments, "max_tokens")

			ch := make(chan provider.Chunk, 64)
			go func() {
				defer close(ch)
				decodeStream(context.Background(), bytes.NewReader(sse), ch)
			}()

			var chunks []provider.Chunk
			for c := range ch {
				chunks = append(chunks, c)
			}

			if len(chunks) == 0 {
				return false
			}
			for _, c := range chunks[:len(chunks)-1] {
				if c.Done {
					return false
				}
			}
			return chunks[len(chunks)-1].Done
		},
		genFragments,
	))

	properties.TestingRun(t)
}
