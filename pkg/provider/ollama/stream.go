package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/antwort-dev/auskunft/pkg/provider"
)

// maxLineBytes bounds a single NDJSON line. The final line of a stream
// can carry the full context token array, which grows with prompt size.
const maxLineBytes = 1024 * 1024

// decodeStream reads NDJSON objects from the generate endpoint and
// sends them on ch as provider chunks. The channel is NOT closed by
// this function; the caller is responsible for closing it.
//
// Each line decodes into a generateResponse. Lines with done=false
// carry text deltas; the done=true line terminates the stream and
// carries token counts. Malformed lines are logged and skipped.
// Context cancellation stops reading without a terminal chunk.
func decodeStream(ctx context.Context, body io.Reader, ch chan<- provider.Chunk) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var gr generateResponse
		if err := json.Unmarshal(line, &gr); err != nil {
			slog.Warn("skipping malformed stream line",
				"error", err.Error(),
				"data", truncate(string(line), 200),
			)
			continue
		}

		if gr.Done {
			ch <- provider.Chunk{
				Text:         gr.Response,
				Done:         true,
				FinishReason: finishReason(gr.DoneReason),
				Usage: &provider.Usage{
					PromptTokens:     gr.PromptEvalCount,
					CompletionTokens: gr.EvalCount,
				},
			}
			return
		}

		// Thinking deltas arrive with an empty response field and are
		// not part of the answer text.
		if gr.Response != "" {
			ch <- provider.Chunk{Text: gr.Response}
		}
	}

	if ctx.Err() != nil {
		return
	}

	if err := scanner.Err(); err != nil {
		ch <- provider.Chunk{Err: &provider.ConnectionError{
			Backend: "ollama",
			Message: "stream interrupted",
			Cause:   err,
		}}
		return
	}

	// EOF without a done marker means the server closed mid-stream.
	ch <- provider.Chunk{Err: &provider.ConnectionError{
		Backend: "ollama",
		Message: "stream ended before completion",
	}}
}

// truncate limits a string to maxLen characters for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
