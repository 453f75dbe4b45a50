package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry is one utterance in the conversation, either the streamer's own
// speech or a viewer comment.
type Entry struct {
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// History is the append-only conversation record for the current session.
// Appends happen only on the dispatch goroutine; handlers read snapshots.
type History struct {
	entries []Entry
}

func NewHistory() *History {
	return &History{}
}

func (h *History) Append(speaker, text string) {
	h.entries = append(h.entries, Entry{Speaker: speaker, Text: text, At: time.Now()})
}

func (h *History) Len() int { return len(h.entries) }

// Snapshot returns a copy of all entries in order.
func (h *History) Snapshot() []Entry {
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Tail returns a copy of the last n entries, fewer if the history is
// shorter. Used for farewell prompts and filler context.
func (h *History) Tail(n int) []Entry {
	if n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]Entry, n)
	copy(out, h.entries[len(h.entries)-n:])
	return out
}

// ArchiveTo writes the full conversation log as JSON and clears the
// in-memory entries. Called once at session end.
func (h *History) ArchiveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	data, err := json.MarshalIndent(h.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	h.entries = nil
	return nil
}
