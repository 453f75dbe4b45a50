package shutdown

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestSignal_RequestConsumedOnce(t *testing.T) {
	s := NewSignal()

	if _, ok := s.TryConsume(); ok {
		t.Fatal("fresh signal should have nothing pending")
	}

	s.Request("marker")
	s.Request("interrupt") // dropped, one already pending

	reason, ok := s.TryConsume()
	if !ok || reason != "marker" {
		t.Fatalf("TryConsume = (%q, %v), want (marker, true)", reason, ok)
	}
	if _, ok := s.TryConsume(); ok {
		t.Error("second consume must come up empty")
	}
}

func TestConsumeMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shutdown_request.txt")
	if err := RequestByMarker(path); err != nil {
		t.Fatalf("RequestByMarker: %v", err)
	}

	if !ConsumeMarker(path) {
		t.Fatal("first consume should win")
	}
	if ConsumeMarker(path) {
		t.Fatal("second consume must not re-fire")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("marker should be gone after consume")
	}
}

func TestNotifyOnInterrupt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewSignal()
	sigCh := make(chan os.Signal, 1)
	NotifyOnInterrupt(ctx, s, sigCh)

	sigCh <- syscall.SIGTERM

	deadline := time.After(2 * time.Second)
	for {
		if reason, ok := s.TryConsume(); ok {
			if reason != "interrupt" {
				t.Errorf("reason = %q, want interrupt", reason)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("interrupt never reached the signal")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestMarkerWatcher_FiresOnCreate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shutdown_request.txt")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewSignal()
	w := NewMarkerWatcher(path, s)
	w.poll = 20 * time.Millisecond
	w.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	if err := RequestByMarker(path); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		if reason, ok := s.TryConsume(); ok {
			if reason != "marker" {
				t.Errorf("reason = %q, want marker", reason)
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Error("watcher should consume the marker file")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("marker never observed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestMarkerWatcher_UnrelatedFileIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shutdown_request.txt")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewSignal()
	w := NewMarkerWatcher(path, s)
	w.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if _, ok := s.TryConsume(); ok {
		t.Error("unrelated file must not trigger shutdown")
	}
}
