package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/antwort-dev/auskunft/pkg/api"
	"github.com/antwort-dev/auskunft/pkg/storage"
	"github.com/antwort-dev/auskunft/pkg/storage/memory"
)

func TestSweepPurgesOldRecords(t *testing.T) {
	store := memory.New(0)
	ctx := context.Background()

	ans := &api.Answer{
		ID:        "ans_swept",
		Object:    "answer",
		Status:    api.AnswerStatusCompleted,
		Question:  "q",
		CreatedAt: time.Now().Unix(),
	}
	if err := store.SaveAnswer(ctx, ans); err != nil {
		t.Fatalf("SaveAnswer failed: %v", err)
	}
	if err := store.DeleteAnswer(ctx, "ans_swept"); err != nil {
		t.Fatalf("DeleteAnswer failed: %v", err)
	}

	// A day-long window keeps the freshly deleted record.
	sweeper, err := New(store, "@hourly", 24*time.Hour)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	purged, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if purged != 0 {
		t.Errorf("purged %d inside the window, want 0", purged)
	}

	// A negative window makes everything eligible immediately.
	sweeper, err = New(store, "@hourly", -time.Second)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	purged, err = sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged %d, want 1", purged)
	}

	if _, err := store.GetAnswer(ctx, "ans_swept"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after purge, got %v", err)
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	if _, err := New(memory.New(0), "not a schedule", time.Hour); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestStartStop(t *testing.T) {
	sweeper, err := New(memory.New(0), "@hourly", time.Hour)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	sweeper.Start()
	sweeper.Stop()
}
