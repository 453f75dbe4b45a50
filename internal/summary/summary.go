package summary

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harunalabs/aituber/internal/state"
)

// Writer persists stream summaries and conversation logs under one
// directory per install.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Dir() string { return w.dir }

// WriteStreamSummary writes the generated markdown summary with a header
// of session facts and returns the file path.
func (w *Writer) WriteStreamSummary(body string, start time.Time, duration time.Duration, commentCount int) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create summary dir: %w", err)
	}

	name := fmt.Sprintf("stream_summary_%s.md", start.Format("20060102_150405"))
	path := filepath.Join(w.dir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "# Stream Summary %s\n\n", start.Format("2006-01-02"))
	fmt.Fprintf(&b, "- Started: %s\n", start.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n", duration.Round(time.Second))
	fmt.Fprintf(&b, "- Comments: %d\n\n", commentCount)
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}

// ConversationLogPath is where the session's raw history archive goes.
func (w *Writer) ConversationLogPath(start time.Time) string {
	return filepath.Join(w.dir, fmt.Sprintf("conversation_%s.json", start.Format("20060102_150405")))
}

// CountComments tallies viewer entries in a history snapshot.
func CountComments(entries []state.Entry) int {
	n := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Speaker, "viewer:") {
			n++
		}
	}
	return n
}

// dailyMarkerPath guards the scheduled backup summary against firing
// twice for the same date.
func (w *Writer) dailyMarkerPath(date time.Time) string {
	return filepath.Join(w.dir, fmt.Sprintf(".daily_%s", date.Format("2006-01-02")))
}

// DailyDone reports whether a backup summary already ran for date.
func (w *Writer) DailyDone(date time.Time) bool {
	_, err := os.Stat(w.dailyMarkerPath(date))
	return err == nil
}

// MarkDailyDone records that the backup summary ran for date.
func (w *Writer) MarkDailyDone(date time.Time) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(w.dailyMarkerPath(date), nil, 0o644)
}
