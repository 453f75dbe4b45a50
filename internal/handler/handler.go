package handler

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/harunalabs/aituber/internal/bus"
	"github.com/harunalabs/aituber/internal/caption"
	"github.com/harunalabs/aituber/internal/chat"
	"github.com/harunalabs/aituber/internal/config"
	"github.com/harunalabs/aituber/internal/llm"
	"github.com/harunalabs/aituber/internal/mode"
	"github.com/harunalabs/aituber/internal/prompt"
	"github.com/harunalabs/aituber/internal/state"
	"github.com/harunalabs/aituber/internal/summary"
	"github.com/harunalabs/aituber/internal/voice"
)

// Handler reacts to one queue item kind. Followups are enqueued by the
// controller after the handler returns; a handler never touches the
// queue directly.
type Handler interface {
	Handle(ctx context.Context, item bus.Item) ([]bus.Followup, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, item bus.Item) ([]bus.Followup, error)

func (f HandlerFunc) Handle(ctx context.Context, item bus.Item) ([]bus.Followup, error) {
	return f(ctx, item)
}

// Completer is the slice of the text-generation runtime handlers need.
type Completer interface {
	Complete(ctx context.Context, prompt string) ([]string, error)
}

// Deps are the collaborators shared by every handler. Process and
// History are only ever touched on the dispatch goroutine.
type Deps struct {
	Cfg       *config.Config
	Process   *state.Process
	History   *state.History
	Prompts   *prompt.Library
	Gen       Completer
	Modes     *mode.Manager
	Speaker   voice.Speaker
	Captions  caption.Captioner
	Summaries *summary.Writer
	Filter    *chat.Filter
}

// Registry routes items to their handler and tracks per-kind failure
// cool-downs: after failureLimit consecutive errors for a kind, that
// kind is skipped for cooldownTicks deliveries before retrying.
type Registry struct {
	handlers map[bus.Kind]Handler

	failureLimit  int
	cooldownTicks int
	failures      map[bus.Kind]int
	cooldown      map[bus.Kind]int
}

func NewRegistry(failureLimit, cooldownTicks int) *Registry {
	return &Registry{
		handlers:      make(map[bus.Kind]Handler),
		failureLimit:  failureLimit,
		cooldownTicks: cooldownTicks,
		failures:      make(map[bus.Kind]int),
		cooldown:      make(map[bus.Kind]int),
	}
}

func (r *Registry) Register(kind bus.Kind, h Handler) {
	r.handlers[kind] = h
}

// Dispatch routes item to its handler. Unknown kinds and cool-down skips
// are logged, not errors; only genuine handler failures come back.
func (r *Registry) Dispatch(ctx context.Context, item bus.Item) ([]bus.Followup, error) {
	kind := item.Kind()

	h, ok := r.handlers[kind]
	if !ok {
		log.Printf("[dispatch] no handler for %s, dropping", kind)
		return nil, nil
	}

	if r.cooldown[kind] > 0 {
		r.cooldown[kind]--
		log.Printf("[dispatch] %s in cool-down, skipping (%d left)", kind, r.cooldown[kind])
		return nil, nil
	}

	followups, err := h.Handle(ctx, item)
	if err != nil {
		// Only transient collaborator failures count toward the cool-down.
		// Anything else is surfaced to the loop without throttling the kind.
		if llm.IsTransient(err) {
			r.failures[kind]++
			if r.failures[kind] >= r.failureLimit {
				r.cooldown[kind] = r.cooldownTicks
				r.failures[kind] = 0
				log.Printf("[dispatch] %s failed %d times, cooling down for %d cycles",
					kind, r.failureLimit, r.cooldownTicks)
			}
		}
		return followups, err
	}

	r.failures[kind] = 0
	return followups, nil
}

// Build wires every handler the streamer needs into a registry.
func Build(deps *Deps) *Registry {
	r := NewRegistry(deps.Cfg.Stream.FailureLimit, deps.Cfg.Stream.CooldownTicks)

	r.Register(bus.KindAppStarted, appStartedHandler(deps))
	r.Register(bus.KindMonologueTick, NewTickHandler(deps))
	r.Register(bus.KindCommentsReceived, NewCommentHandler(deps))
	r.Register(bus.KindPrepareMonologue, NewMonologueHandler(deps))
	r.Register(bus.KindPrepareCommentResponse, NewCommentResponseHandler(deps))
	r.Register(bus.KindPrepareGreeting, NewGreetingHandler(deps))
	r.Register(bus.KindPrepareStreamSummary, NewSummaryHandler(deps))
	r.Register(bus.KindMonologueReady, NewSpeechHandler(deps))
	r.Register(bus.KindCommentResponseReady, NewSpeechHandler(deps))
	r.Register(bus.KindGreetingReady, NewSpeechHandler(deps))
	r.Register(bus.KindPlaySpeech, NewSpeechHandler(deps))
	r.Register(bus.KindSummaryReady, summaryReadyHandler(deps))
	r.Register(bus.KindStreamEnded, streamEndedHandler(deps))

	return r
}

// speak pushes sentences through caption and voice in order. Speech is
// sequential on purpose: utterances must never overlap.
func speak(ctx context.Context, deps *Deps, sentences []string) error {
	for _, s := range sentences {
		deps.Captions.Display(s)
		speakCtx, cancel := context.WithTimeout(ctx, deps.Cfg.SpeakTimeout())
		err := deps.Speaker.Speak(speakCtx, s)
		cancel()
		if err != nil {
			return fmt.Errorf("speak %q: %w", truncate(s, 40), err)
		}
	}
	return nil
}

// rearmTick schedules the next cadence tick unless one is already
// outstanding, so the cycle can never fork into parallel tick chains.
func rearmTick(deps *Deps) []bus.Followup {
	if deps.Process.TickArmed() {
		return nil
	}
	deps.Process.ArmTick()
	return []bus.Followup{{
		Item:  bus.MonologueTick{Meta: bus.NewMeta()},
		After: deps.Cfg.Cadence(),
	}}
}

func joinSentences(sentences []string) string {
	return strings.Join(sentences, " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
