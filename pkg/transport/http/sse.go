package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/antwort-dev/auskunft/pkg/api"
	"github.com/antwort-dev/auskunft/pkg/transport"
)

// writerState tracks the state of an SSE AnswerWriter.
type writerState int

const (
	writerIdle      writerState = iota // Initial state, no writes yet
	writerStreaming                    // WriteEvent has been called at least once
	writerCompleted                    // Terminal event sent or WriteAnswer called
)

// terminalEvents are the event types that end a streaming answer.
var terminalEvents = map[api.StreamEventType]bool{
	api.EventAnswerCompleted: true,
	api.EventAnswerFailed:    true,
	api.EventError:           true,
}

// sseAnswerWriter implements transport.AnswerWriter for HTTP/SSE responses.
// It handles both streaming (SSE) and non-streaming (JSON) output.
type sseAnswerWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState

	// onAnswerCreated is called when the first answer.created event is
	// written, providing the answer ID for in-flight registry registration.
	onAnswerCreated func(id string)
}

var _ transport.AnswerWriter = (*sseAnswerWriter)(nil)

// newSSEAnswerWriter creates a new AnswerWriter wrapping an http.ResponseWriter.
// The onCreated callback is called with the answer ID when the first
// answer.created event is written (may be nil if not needed).
func newSSEAnswerWriter(w http.ResponseWriter, onCreated func(id string)) *sseAnswerWriter {
	return &sseAnswerWriter{
		w:               w,
		rc:              http.NewResponseController(w),
		onAnswerCreated: onCreated,
	}
}

// WriteEvent sends a single SSE event. The event is formatted as:
//
//	event: {type}\n
//	data: {json}\n
//	\n
//
// After a terminal event, it also sends:
//
//	data: [DONE]\n
//	\n
func (s *sseAnswerWriter) WriteEvent(ctx context.Context, event api.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errors.New("cannot write event: writer is completed")
	}

	// First event: set SSE headers.
	if s.state == writerIdle {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.state = writerStreaming
	}

	// Intercept answer.created to extract the answer ID.
	if event.Type == api.EventAnswerCreated && event.Answer != nil && s.onAnswerCreated != nil {
		s.onAnswerCreated(event.Answer.ID)
		s.onAnswerCreated = nil // Only call once.
	}

	// Serialize the event as JSON.
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Write SSE format.
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	// Flush immediately.
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	// If this was a terminal event, send [DONE] and mark completed.
	if terminalEvents[event.Type] {
		if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
			return fmt.Errorf("failed to write [DONE]: %w", err)
		}
		if err := s.rc.Flush(); err != nil {
			return fmt.Errorf("failed to flush [DONE]: %w", err)
		}
		s.state = writerCompleted
	}

	return nil
}

// WriteAnswer sends a complete non-streaming JSON answer.
// This is mutually exclusive with WriteEvent.
func (s *sseAnswerWriter) WriteAnswer(ctx context.Context, ans *api.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerStreaming {
		return errors.New("cannot write answer: streaming has already started")
	}
	if s.state == writerCompleted {
		return errors.New("cannot write answer: writer is completed")
	}

	s.w.Header().Set("Content-Type", "application/json")
	s.state = writerCompleted

	if err := json.NewEncoder(s.w).Encode(ans); err != nil {
		return fmt.Errorf("failed to encode answer: %w", err)
	}

	return nil
}

// Flush ensures buffered data is sent to the client.
func (s *sseAnswerWriter) Flush() error {
	return s.rc.Flush()
}

// hasStartedStreaming returns true if at least one SSE event has been written.
func (s *sseAnswerWriter) hasStartedStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == writerStreaming || (s.state == writerCompleted && s.w.Header().Get("Content-Type") == "text/event-stream")
}
