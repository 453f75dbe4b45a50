package handler

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/harunalabs/aituber/internal/bus"
)

// appStartedHandler kicks off the session: one greeting command, nothing
// else. The first MonologueTick is armed after the greeting is spoken.
func appStartedHandler(deps *Deps) Handler {
	return HandlerFunc(func(ctx context.Context, item bus.Item) ([]bus.Followup, error) {
		log.Printf("[session] stream starting")
		return []bus.Followup{{Item: bus.PrepareGreeting{
			Meta:   bus.NewMeta(),
			TaskID: uuid.NewString(),
		}}}, nil
	})
}

// GreetingHandler generates the opening remark. Idempotent: once the
// session has greeted, re-invocation is a no-op.
type GreetingHandler struct {
	deps *Deps
}

func NewGreetingHandler(deps *Deps) *GreetingHandler {
	return &GreetingHandler{deps: deps}
}

func (h *GreetingHandler) Handle(ctx context.Context, item bus.Item) ([]bus.Followup, error) {
	cmd := item.(bus.PrepareGreeting)
	p := h.deps.Process

	if p.Greeted() {
		log.Printf("[greeting] already greeted, ignoring")
		return nil, nil
	}
	p.MarkGreeted()
	p.BeginTask(cmd.TaskID, cmd.Kind())

	genCtx, cancel := context.WithTimeout(ctx, h.deps.Cfg.LLMTimeout())
	defer cancel()

	sentences, err := h.deps.Gen.Complete(genCtx, h.deps.Prompts.Greeting())
	if err != nil {
		p.FinishTask()
		// Skip the greeting but still start the monologue cycle.
		return rearmTick(h.deps), err
	}

	return []bus.Followup{{Item: bus.GreetingReady{
		Meta:      bus.NewMeta(),
		TaskID:    cmd.TaskID,
		Sentences: sentences,
	}}}, nil
}
