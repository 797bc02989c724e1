package api

// StreamEventType identifies the type of a streaming event.
type StreamEventType string

// Delta events convey incremental content while an answer is generated.
const (
	EventAnswerDelta StreamEventType = "answer.delta"
)

// Lifecycle events track an answer from creation to its terminal state.
const (
	EventAnswerCreated   StreamEventType = "answer.created"
	EventAnswerSources   StreamEventType = "answer.sources"
	EventAnswerCompleted StreamEventType = "answer.completed"
	EventAnswerFailed    StreamEventType = "answer.failed"
)

// EventError reports a stream-terminating error.
const EventError StreamEventType = "error"

// StreamEvent represents a single server-sent event in a streaming answer.
type StreamEvent struct {
	Type           StreamEventType `json:"type"`
	SequenceNumber int             `json:"sequence_number"`

	// Answer is populated on lifecycle events (created, completed, failed).
	Answer *Answer `json:"answer,omitempty"`

	// Sources is populated on the answer.sources event.
	Sources []Source `json:"sources,omitempty"`

	// Delta carries the incremental text fragment on answer.delta events.
	Delta string `json:"delta,omitempty"`

	// Error is populated on error events.
	Error *APIError `json:"error,omitempty"`
}
