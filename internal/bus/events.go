package bus

import (
	"time"
)

// Kind discriminates queue items so the controller can route them
// without open-ended type inspection.
type Kind string

const (
	// Events: something happened.
	KindAppStarted           Kind = "app_started"
	KindMonologueTick        Kind = "monologue_tick"
	KindCommentsReceived     Kind = "comments_received"
	KindMonologueReady       Kind = "monologue_ready"
	KindCommentResponseReady Kind = "comment_response_ready"
	KindGreetingReady        Kind = "greeting_ready"
	KindSummaryReady         Kind = "summary_ready"
	KindStreamEnded          Kind = "stream_ended"

	// Commands: do something.
	KindPrepareMonologue       Kind = "prepare_monologue"
	KindPrepareCommentResponse Kind = "prepare_comment_response"
	KindPrepareGreeting        Kind = "prepare_greeting"
	KindPrepareStreamSummary   Kind = "prepare_stream_summary"
	KindPlaySpeech             Kind = "play_speech"
)

// Item is anything that can travel through the queue. Items are immutable
// once enqueued.
type Item interface {
	Kind() Kind
	CreatedAt() time.Time
}

// Meta carries the fields every item shares. Embed it and construct with
// NewMeta so the creation timestamp is always set.
type Meta struct {
	At time.Time
}

func NewMeta() Meta {
	return Meta{At: time.Now()}
}

func (m Meta) CreatedAt() time.Time { return m.At }

// Comment is a raw live-chat comment as delivered by the chat source,
// before any filtering.
type Comment struct {
	Author string
	Text   string
	At     time.Time
}

// --- Events ---

type AppStarted struct{ Meta }

func (AppStarted) Kind() Kind { return KindAppStarted }

// MonologueTick drives the self-sustaining generation cycle. The monologue
// handler re-arms exactly one follow-up tick after the cadence interval.
type MonologueTick struct{ Meta }

func (MonologueTick) Kind() Kind { return KindMonologueTick }

type CommentsReceived struct {
	Meta
	Comments []Comment
}

func (CommentsReceived) Kind() Kind { return KindCommentsReceived }

type MonologueReady struct {
	Meta
	TaskID    string
	Sentences []string
}

func (MonologueReady) Kind() Kind { return KindMonologueReady }

type CommentResponseReady struct {
	Meta
	TaskID    string
	Sentences []string
	Comments  []Comment
}

func (CommentResponseReady) Kind() Kind { return KindCommentResponseReady }

type GreetingReady struct {
	Meta
	TaskID    string
	Sentences []string
}

func (GreetingReady) Kind() Kind { return KindGreetingReady }

type SummaryReady struct {
	Meta
	TaskID string
	Path   string
	Err    string
}

func (SummaryReady) Kind() Kind { return KindSummaryReady }

type StreamEnded struct {
	Meta
	Duration time.Duration
	Reason   string // "normal", "timeout", "manual", "error"
}

func (StreamEnded) Kind() Kind { return KindStreamEnded }

// --- Commands ---

type PrepareMonologue struct {
	Meta
	TaskID string
	Theme  string // optional: theme content to continue
}

func (PrepareMonologue) Kind() Kind { return KindPrepareMonologue }

type PrepareCommentResponse struct {
	Meta
	TaskID   string
	Comments []Comment
}

func (PrepareCommentResponse) Kind() Kind { return KindPrepareCommentResponse }

type PrepareGreeting struct {
	Meta
	TaskID string
}

func (PrepareGreeting) Kind() Kind { return KindPrepareGreeting }

type PrepareStreamSummary struct {
	Meta
	TaskID string
	Reason string
}

func (PrepareStreamSummary) Kind() Kind { return KindPrepareStreamSummary }

type PlaySpeech struct {
	Meta
	TaskID    string
	Sentences []string
}

func (PlaySpeech) Kind() Kind { return KindPlaySpeech }

// Followup is an item a handler wants enqueued after it returns. After
// zero means immediately; a positive After is scheduled by the controller.
type Followup struct {
	Item  Item
	After time.Duration
}
