package handler

import (
	"context"
	"fmt"

	"github.com/harunalabs/aituber/internal/bus"
)

// SpeechHandler delivers generated sentences: caption, synthesis,
// playback, history bookkeeping, then exactly one re-armed tick so the
// cycle sustains itself.
type SpeechHandler struct {
	deps *Deps
}

func NewSpeechHandler(deps *Deps) *SpeechHandler {
	return &SpeechHandler{deps: deps}
}

func (h *SpeechHandler) Handle(ctx context.Context, item bus.Item) ([]bus.Followup, error) {
	p := h.deps.Process

	var sentences []string
	rearm := true
	switch ev := item.(type) {
	case bus.MonologueReady:
		sentences = ev.Sentences
		p.AddModeUtterances(len(sentences))
	case bus.CommentResponseReady:
		sentences = ev.Sentences
		p.AddModeUtterances(len(sentences))
	case bus.GreetingReady:
		sentences = ev.Sentences
	case bus.PlaySpeech:
		// Verbatim playback (filler phrases); no history entry, no tick.
		sentences = ev.Sentences
		rearm = false
	default:
		return nil, fmt.Errorf("speech: unexpected item %T", item)
	}

	if rearm {
		h.deps.History.Append("ai", joinSentences(sentences))
	}

	p.BeginSpeaking()
	err := speak(ctx, h.deps, sentences)
	p.FinishTask()
	p.ResetSilentTicks()

	if _, isResponse := item.(bus.CommentResponseReady); isResponse {
		p.ResetCommentCounter()
	}

	if !rearm {
		return nil, err
	}
	// A response to a comment burst may arrive while the cadence tick is
	// still pending; rearmTick keeps the chain single.
	return rearmTick(h.deps), err
}
