package handler

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harunalabs/aituber/internal/bus"
	"github.com/harunalabs/aituber/internal/config"
	"github.com/harunalabs/aituber/internal/mode"
)

// TickHandler owns the cadence decision: every MonologueTick it either
// defers (a task is in flight), pivots to pending comments, or picks the
// next mode and commands a monologue.
type TickHandler struct {
	deps *Deps
}

func NewTickHandler(deps *Deps) *TickHandler {
	return &TickHandler{deps: deps}
}

func (h *TickHandler) Handle(ctx context.Context, item bus.Item) ([]bus.Followup, error) {
	p := h.deps.Process
	p.DisarmTick()

	if p.Busy() {
		// Try again shortly instead of stacking generation tasks.
		p.ArmTick()
		return []bus.Followup{{
			Item:  bus.MonologueTick{Meta: bus.NewMeta()},
			After: 2 * time.Second,
		}}, nil
	}

	if p.PendingCommentCount() >= h.deps.Cfg.Modes.CommentBurst {
		return []bus.Followup{{Item: bus.PrepareCommentResponse{
			Meta:     bus.NewMeta(),
			TaskID:   uuid.NewString(),
			Comments: p.TakePendingComments(),
		}}}, nil
	}

	theme := h.loadTheme()
	mctx := mode.Context{
		PendingComments: p.PendingCommentCount(),
		HistoryLen:      h.deps.History.Len(),
		HasTheme:        theme != "",
	}

	cur := p.CurrentMode()
	if cur == "" || h.deps.Modes.ShouldSwitch(p.ModeUtterances(),
		h.deps.Cfg.Modes.MinUtterances[cur], h.deps.Cfg.Modes.MaxUtterances[cur]) {
		selected, err := h.deps.Modes.SelectNext(p, mctx)
		if err != nil {
			// No eligible mode means the weight table is broken.
			// Fatal by contract, surfaced to the controller.
			return nil, err
		}
		log.Printf("[tick] mode -> %s", selected)
	}

	cmd := bus.PrepareMonologue{
		Meta:   bus.NewMeta(),
		TaskID: uuid.NewString(),
	}
	if p.CurrentMode() == mode.ThemeContinu {
		cmd.Theme = theme
	}
	return []bus.Followup{{Item: cmd}}, nil
}

func (h *TickHandler) loadTheme() string {
	path := h.deps.Cfg.Stream.ThemeFile
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// MonologueHandler turns a PrepareMonologue command into generated
// sentences. Speech happens later, when the Ready event is dispatched.
type MonologueHandler struct {
	deps *Deps
}

func NewMonologueHandler(deps *Deps) *MonologueHandler {
	return &MonologueHandler{deps: deps}
}

func (h *MonologueHandler) Handle(ctx context.Context, item bus.Item) ([]bus.Followup, error) {
	cmd := item.(bus.PrepareMonologue)
	p := h.deps.Process

	p.BeginTask(cmd.TaskID, cmd.Kind())

	genCtx, cancel := context.WithTimeout(ctx, h.deps.Cfg.LLMTimeout())
	defer cancel()

	promptText := h.deps.Prompts.Monologue(p.CurrentMode(), cmd.Theme, h.deps.History.Tail(20))
	sentences, err := h.deps.Gen.Complete(genCtx, promptText)
	if err != nil {
		p.FinishTask()
		// Re-arm the cycle so one bad generation does not end the talk.
		return rearmTick(h.deps), err
	}

	sentences = clampUtterances(sentences, h.deps.Cfg.Modes, p.CurrentMode())
	return []bus.Followup{{Item: bus.MonologueReady{
		Meta:      bus.NewMeta(),
		TaskID:    cmd.TaskID,
		Sentences: sentences,
	}}}, nil
}

// CommentResponseHandler generates an integrated reply to a batch of
// pending comments.
type CommentResponseHandler struct {
	deps *Deps
}

func NewCommentResponseHandler(deps *Deps) *CommentResponseHandler {
	return &CommentResponseHandler{deps: deps}
}

func (h *CommentResponseHandler) Handle(ctx context.Context, item bus.Item) ([]bus.Followup, error) {
	cmd := item.(bus.PrepareCommentResponse)
	p := h.deps.Process

	if len(cmd.Comments) == 0 {
		return nil, nil
	}

	p.BeginTask(cmd.TaskID, cmd.Kind())

	genCtx, cancel := context.WithTimeout(ctx, h.deps.Cfg.LLMTimeout())
	defer cancel()

	promptText := h.deps.Prompts.CommentResponse(cmd.Comments, h.deps.History.Tail(20))
	sentences, err := h.deps.Gen.Complete(genCtx, promptText)
	if err != nil {
		p.FinishTask()
		return rearmTick(h.deps), err
	}

	return []bus.Followup{{Item: bus.CommentResponseReady{
		Meta:      bus.NewMeta(),
		TaskID:    cmd.TaskID,
		Sentences: sentences,
		Comments:  cmd.Comments,
	}}}, nil
}

// clampUtterances trims generated output to the configured per-mode
// ceiling. Short output is left alone.
func clampUtterances(sentences []string, modes config.ModesConfig, modeName string) []string {
	max := modes.MaxUtterances[modeName]
	if max > 0 && len(sentences) > max {
		return sentences[:max]
	}
	return sentences
}
