package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentduel/agentduel/observe"
	auditstore "github.com/agentduel/agentduel/observe/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndListEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	events := []observe.Event{
		{RunID: "run-1", SessionID: "sess-1", Kind: observe.KindRun, Status: observe.StatusStarted, Timestamp: base},
		{RunID: "run-1", SessionID: "sess-1", Kind: observe.KindRawLog, Category: "agent", Message: "Step 1: open site", Timestamp: base.Add(time.Second)},
		{RunID: "run-1", SessionID: "sess-1", Kind: observe.KindStep, StepNumber: 1, ToolName: "click", Timestamp: base.Add(2 * time.Second)},
		{RunID: "run-2", SessionID: "sess-2", Kind: observe.KindRun, Status: observe.StatusStarted, Timestamp: base},
	}
	for _, ev := range events {
		if err := s.SaveEvent(ctx, ev); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	got, err := s.ListEventsByRun(ctx, "run-1", auditstore.ListQuery{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events for run-1, got %d", len(got))
	}
	if got[0].Kind != observe.KindRun || got[2].Kind != observe.KindStep {
		t.Fatalf("events out of order: %#v", got)
	}
	if got[2].StepNumber != 1 || got[2].ToolName != "click" {
		t.Fatalf("step fields lost in round trip: %#v", got[2])
	}

	bySess, err := s.ListEventsBySession(ctx, "sess-2", auditstore.ListQuery{})
	if err != nil {
		t.Fatalf("list by session failed: %v", err)
	}
	if len(bySess) != 1 || bySess[0].RunID != "run-2" {
		t.Fatalf("unexpected session events %#v", bySess)
	}
}

func TestListEventsFilterByKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, kind := range []observe.Kind{observe.KindRun, observe.KindRawLog, observe.KindRawLog, observe.KindStep} {
		ev := observe.Event{RunID: "run-1", Kind: kind, Timestamp: base.Add(time.Duration(i) * time.Second)}
		if err := s.SaveEvent(ctx, ev); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	got, err := s.ListEventsByRun(ctx, "run-1", auditstore.ListQuery{Kind: observe.KindRawLog})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rawlog events, got %d", len(got))
	}
}

func TestListEventsPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		ev := observe.Event{
			RunID:     "run-1",
			Kind:      observe.KindRawLog,
			Message:   string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.SaveEvent(ctx, ev); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	got, err := s.ListEventsByRun(ctx, "run-1", auditstore.ListQuery{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 || got[0].Message != "c" || got[1].Message != "d" {
		t.Fatalf("unexpected page: %#v", got)
	}
}

func TestDeleteEventsBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	old := observe.Event{RunID: "run-1", Kind: observe.KindRawLog, Timestamp: now.Add(-48 * time.Hour)}
	fresh := observe.Event{RunID: "run-1", Kind: observe.KindRawLog, Timestamp: now}
	if err := s.SaveEvent(ctx, old); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.SaveEvent(ctx, fresh); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	deleted, err := s.DeleteEventsBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted event, got %d", deleted)
	}

	remaining, err := s.ListEventsByRun(ctx, "run-1", auditstore.ListQuery{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 remaining event, got %d", len(remaining))
	}
}

func TestSweeper(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := observe.Event{RunID: "run-1", Kind: observe.KindRawLog, Timestamp: time.Now().UTC().Add(-2 * time.Hour)}
	if err := s.SaveEvent(ctx, old); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	sw, err := NewSweeper(s, "@hourly", time.Hour)
	if err != nil {
		t.Fatalf("failed to create sweeper: %v", err)
	}
	n, err := sw.SweepNow(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept event, got %d", n)
	}

	if _, err := NewSweeper(s, "not a schedule", time.Hour); err == nil {
		t.Fatalf("expected error for invalid schedule")
	}
	if _, err := NewSweeper(s, "@hourly", 0); err == nil {
		t.Fatalf("expected error for zero retention")
	}
}
