package shutdown

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Signal is the one-shot shutdown flag shared between producers (OS
// signal handler, marker watcher, CLI) and the dispatch loop. A single
// slot guarantees the request is observed at most once no matter how
// many surfaces fire.
type Signal struct {
	ch chan string
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan string, 1)}
}

// Request flags a shutdown with a reason. Extra requests while one is
// pending are dropped; the sequence only runs once.
func (s *Signal) Request(reason string) {
	select {
	case s.ch <- reason:
	default:
	}
}

// TryConsume atomically takes a pending request, if any. Only the
// dispatch loop calls this.
func (s *Signal) TryConsume() (string, bool) {
	select {
	case reason := <-s.ch:
		return reason, true
	default:
		return "", false
	}
}

// ConsumeMarker removes the marker file and reports whether this caller
// got it. Remove succeeds for exactly one caller, so the check and the
// clear are a single atomic step.
func ConsumeMarker(path string) bool {
	err := os.Remove(path)
	if err == nil {
		return true
	}
	if !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[shutdown] remove marker %s: %v", path, err)
	}
	return false
}

// RequestByMarker creates the marker file an external controller uses to
// ask a running streamer to wind down.
func RequestByMarker(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)+"\n"), 0o644)
}

// NotifyOnInterrupt forwards SIGINT/SIGTERM into the signal. The handler
// does nothing but flag the request; all real shutdown work happens on
// the dispatch loop. sigCh may be injected for tests; pass nil for the
// real OS hookup.
func NotifyOnInterrupt(ctx context.Context, s *Signal, sigCh chan os.Signal) {
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	go func() {
		select {
		case <-sigCh:
			log.Printf("[shutdown] interrupt received")
			s.Request("interrupt")
		case <-ctx.Done():
		}
	}()
}

// MarkerWatcher turns the appearance of the marker file into a Signal
// request so the loop learns about it without waiting for an empty
// dequeue window.
type MarkerWatcher struct {
	path   string
	signal *Signal
	poll   time.Duration
}

func NewMarkerWatcher(path string, s *Signal) *MarkerWatcher {
	return &MarkerWatcher{path: path, signal: s, poll: time.Second}
}

// Start watches until ctx is done. Uses fsnotify on the marker's parent
// directory with a polling fallback when the watch cannot be set up.
func (w *MarkerWatcher) Start(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		err = watcher.Add(filepath.Dir(w.path))
	}
	if err != nil {
		log.Printf("[shutdown] fsnotify unavailable, polling instead: %v", err)
		if watcher != nil {
			watcher.Close()
		}
		go w.pollLoop(ctx)
		return
	}

	go func() {
		defer watcher.Close()
		ticker := time.NewTicker(w.poll * 5)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name == w.path && ev.Op.Has(fsnotify.Create|fsnotify.Write) {
					w.fire()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[shutdown] watch error: %v", err)
			case <-ticker.C:
				// Safety net for events missed during watcher hiccups.
				w.checkOnce()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (w *MarkerWatcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.checkOnce()
		case <-ctx.Done():
			return
		}
	}
}

func (w *MarkerWatcher) checkOnce() {
	if _, err := os.Stat(w.path); err == nil {
		w.fire()
	}
}

func (w *MarkerWatcher) fire() {
	if ConsumeMarker(w.path) {
		log.Printf("[shutdown] marker observed at %s", w.path)
		w.signal.Request("marker")
	}
}
