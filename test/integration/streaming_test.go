package integration

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/antwort-dev/auskunft/pkg/api"
)

func TestStreamingAnswer(t *testing.T) {
	reqBody := map[string]any{
		"question": "Please count from 1 to 5",
		"top_k":    0,
		"stream":   true,
	}

	resp := postJSON(t, testEnv.BaseURL()+"/v1/answers", reqBody)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	events, sawDone := parseSSEEvents(t, resp)
	if !sawDone {
		t.Error("stream did not end with [DONE]")
	}
	verifyEventSequence(t, events)

	// Concatenated deltas must equal the completed answer's text.
	var deltas strings.Builder
	var completed *api.Answer
	for i := range events {
		switch events[i].Type {
		case api.EventAnswerDelta:
			deltas.WriteString(events[i].Delta)
		case api.EventAnswerCompleted:
			completed = events[i].Answer
		}
	}
	if completed == nil {
		t.Fatal("no answer.completed event")
	}
	if deltas.String() != completed.Text {
		t.Errorf("deltas = %q, completed text = %q", deltas.String(), completed.Text)
	}
	if completed.Status != api.AnswerStatusCompleted {
		t.Errorf("status = %q, want %q", completed.Status, api.AnswerStatusCompleted)
	}
}

func TestStreamingSequenceNumbers(t *testing.T) {
	reqBody := map[string]any{
		"question": "Please count from 1 to 5",
		"top_k":    0,
		"stream":   true,
	}

	resp := postJSON(t, testEnv.BaseURL()+"/v1/answers", reqBody)
	defer resp.Body.Close()

	events, _ := parseSSEEvents(t, resp)
	if len(events) < 2 {
		t.Fatalf("got %d events, want at least 2", len(events))
	}

	for i := 1; i < len(events); i++ {
		if events[i].SequenceNumber <= events[i-1].SequenceNumber {
			t.Errorf("sequence number not increasing at %d: %d after %d",
				i, events[i].SequenceNumber, events[i-1].SequenceNumber)
		}
	}
}

func TestStreamingAnswerWithSources(t *testing.T) {
	ingest := map[string]any{
		"name":       "runbook",
		"text":       "Restart the ingest worker with systemctl restart auskunft-worker.",
		"collection": "streamdocs",
	}
	resp := postJSON(t, testEnv.BaseURL()+"/v1/documents", ingest)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("ingest: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	reqBody := map[string]any{
		"question":   "How do I restart the worker?",
		"collection": "streamdocs",
		"stream":     true,
	}
	resp = postJSON(t, testEnv.BaseURL()+"/v1/answers", reqBody)
	defer resp.Body.Close()

	events, _ := parseSSEEvents(t, resp)

	var sources []api.Source
	for i := range events {
		if events[i].Type == api.EventAnswerSources {
			sources = events[i].Sources
		}
	}
	if len(sources) == 0 {
		t.Fatal("no answer.sources event with sources")
	}
	if sources[0].DocumentName != "runbook" {
		t.Errorf("source document = %q, want %q", sources[0].DocumentName, "runbook")
	}
}

func TestStreamingPersistsAnswer(t *testing.T) {
	reqBody := map[string]any{
		"question": "Please count from 1 to 5",
		"top_k":    0,
		"stream":   true,
	}

	resp := postJSON(t, testEnv.BaseURL()+"/v1/answers", reqBody)
	defer resp.Body.Close()

	events, _ := parseSSEEvents(t, resp)

	var id string
	for i := range events {
		if events[i].Type == api.EventAnswerCreated && events[i].Answer != nil {
			id = events[i].Answer.ID
		}
	}
	if id == "" {
		t.Fatal("no answer.created event with an ID")
	}

	resp = getURL(t, testEnv.BaseURL()+"/v1/answers/"+id)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	var ans api.Answer
	decodeJSON(t, resp, &ans)
	if ans.Status != api.AnswerStatusCompleted {
		t.Errorf("persisted status = %q, want %q", ans.Status, api.AnswerStatusCompleted)
	}
	if ans.Text != "1, 2, 3, 4, 5" {
		t.Errorf("persisted text = %q, want %q", ans.Text, "1, 2, 3, 4, 5")
	}
}

// parseSSEEvents reads the SSE stream into decoded events and reports
// whether the [DONE] marker was seen.
func parseSSEEvents(t *testing.T, resp *http.Response) ([]api.StreamEvent, bool) {
	t.Helper()

	var events []api.StreamEvent
	sawDone := false

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			sawDone = true
			continue
		}

		var event api.StreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			t.Fatalf("parsing SSE event %q: %v", data, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("reading stream: %v", err)
	}

	return events, sawDone
}

// verifyEventSequence checks the answer stream lifecycle ordering.
func verifyEventSequence(t *testing.T, events []api.StreamEvent) {
	t.Helper()

	if len(events) == 0 {
		t.Fatal("no events to verify")
	}
	if events[0].Type != api.EventAnswerCreated {
		t.Errorf("first event = %q, want %q", events[0].Type, api.EventAnswerCreated)
	}
	last := events[len(events)-1]
	if last.Type != api.EventAnswerCompleted {
		t.Errorf("last event = %q, want %q", last.Type, api.EventAnswerCompleted)
	}

	seen := map[api.StreamEventType]bool{}
	for _, e := range events {
		seen[e.Type] = true
	}
	for _, required := range []api.StreamEventType{
		api.EventAnswerCreated,
		api.EventAnswerDelta,
		api.EventAnswerCompleted,
	} {
		if !seen[required] {
			t.Errorf("missing required event type: %s", required)
		}
	}
}
