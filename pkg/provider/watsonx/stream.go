package watsonx

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/antwort-dev/auskunft/pkg/provider"
)

// maxLineBytes bounds a single SSE data line.
const maxLineBytes = 1024 * 1024

// decodeStream reads SSE events from the generation_stream endpoint
// and sends them on ch as provider chunks. The channel is NOT closed
// by this function; the caller is responsible for closing it.
//
// Each data payload decodes into a generationResponse whose first
// result carries the text delta. An event with a terminal stop_reason
// produces the terminal chunk. Malformed payloads are logged and
// skipped. Context cancellation stops reading without a terminal chunk.
func decodeStream(ctx context.Context, body io.Reader, ch chan<- provider.Chunk) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()

		// SSE id:, event:, comment, and blank lines carry no payload.
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")

		var ev generationResponse
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			slog.Warn("skipping malformed stream event",
				"error", err.Error(),
				"data", truncate(payload, 200),
			)
			continue
		}
		if len(ev.Results) == 0 {
			continue
		}

		result := ev.Results[0]
		if result.StopReason != "" && result.StopReason != "not_finished" {
			ch <- provider.Chunk{
				Text:         result.GeneratedText,
				Done:         true,
				FinishReason: mapStopReason(result.StopReason),
				Usage: &provider.Usage{
					PromptTokens:     result.InputTokenCount,
					CompletionTokens: result.GeneratedTokenCount,
				},
			}
			return
		}

		if result.GeneratedText != "" {
			ch <- provider.Chunk{Text: result.GeneratedText}
		}
	}

	if ctx.Err() != nil {
		return
	}

	if err := scanner.Err(); err != nil {
		ch <- provider.Chunk{Err: &provider.ConnectionError{
			Backend: "watsonx",
			Message: "stream interrupted",
			Cause:   err,
		}}
		return
	}

	// EOF without a terminal stop_reason means the server closed
	// mid-stream.
	ch <- provider.Chunk{Err: &provider.ConnectionError{
		Backend: "watsonx",
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
