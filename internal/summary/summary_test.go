package summary

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/harunalabs/aituber/internal/state"
)

func TestWriter_WriteStreamSummary(t *testing.T) {
	w := NewWriter(t.TempDir())
	start := time.Date(2026, 8, 31, 20, 0, 0, 0, time.UTC)

	path, err := w.WriteStreamSummary("## Topics\n- games\n", start, 90*time.Minute, 12)
	if err != nil {
		t.Fatalf("WriteStreamSummary: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{"# Stream Summary 2026-08-31", "Duration: 1h30m0s", "Comments: 12", "## Topics"} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
	if !strings.Contains(path, "stream_summary_20260831_200000.md") {
		t.Errorf("path = %q", path)
	}
}

func TestWriter_WriteStreamSummaryCreatesDir(t *testing.T) {
	dir := t.TempDir() + "/nested/summaries"
	w := NewWriter(dir)
	if _, err := w.WriteStreamSummary("x", time.Now(), time.Minute, 0); err != nil {
		t.Fatalf("WriteStreamSummary: %v", err)
	}
}

func TestCountComments(t *testing.T) {
	entries := []state.Entry{
		{Speaker: "ai", Text: "hello"},
		{Speaker: "viewer:alice", Text: "hi"},
		{Speaker: "viewer:bob", Text: "yo"},
		{Speaker: "ai", Text: "welcome"},
	}
	if got := CountComments(entries); got != 2 {
		t.Errorf("CountComments = %d, want 2", got)
	}
}

func TestWriter_DailyDedup(t *testing.T) {
	w := NewWriter(t.TempDir())
	today := time.Now()

	if w.DailyDone(today) {
		t.Fatal("fresh dir should have no daily marker")
	}
	if err := w.MarkDailyDone(today); err != nil {
		t.Fatalf("MarkDailyDone: %v", err)
	}
	if !w.DailyDone(today) {
		t.Error("marker should be visible after MarkDailyDone")
	}
	if w.DailyDone(today.AddDate(0, 0, 1)) {
		t.Error("marker must be per-date")
	}
}

func TestScheduler_SkipsWhenDailyDone(t *testing.T) {
	w := NewWriter(t.TempDir())
	if err := w.MarkDailyDone(time.Now()); err != nil {
		t.Fatal(err)
	}

	fired := make(chan struct{}, 1)
	// Every-second expression so the test observes a firing decision fast.
	s := NewScheduler("* * * * * *", w, func() { fired <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	select {
	case <-fired:
		t.Error("scheduler fired despite daily marker")
	case <-time.After(1500 * time.Millisecond):
	}
}

func TestScheduler_FiresWhenNotDone(t *testing.T) {
	w := NewWriter(t.TempDir())
	fired := make(chan struct{}, 1)
	s := NewScheduler("* * * * * *", w, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler never fired")
	}
}

func TestScheduler_BadExpression(t *testing.T) {
	s := NewScheduler("not a cron", NewWriter(t.TempDir()), func() {})
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for bad expression")
	}
}
