package handler

import (
	"context"
	"log"
	"time"

	"github.com/harunalabs/aituber/internal/bus"
	"github.com/harunalabs/aituber/internal/summary"
)

// SummaryHandler generates and persists a stream summary. It runs as an
// asynchronous task correlated by TaskID so both the shutdown sequence
// and the scheduled daily backup can request one.
type SummaryHandler struct {
	deps *Deps
}

func NewSummaryHandler(deps *Deps) *SummaryHandler {
	return &SummaryHandler{deps: deps}
}

func (h *SummaryHandler) Handle(ctx context.Context, item bus.Item) ([]bus.Followup, error) {
	cmd := item.(bus.PrepareStreamSummary)

	snapshot := h.deps.History.Snapshot()
	if len(snapshot) == 0 {
		log.Printf("[summary] nothing to summarize")
		return []bus.Followup{{Item: bus.SummaryReady{
			Meta:   bus.NewMeta(),
			TaskID: cmd.TaskID,
		}}}, nil
	}

	genCtx, cancel := context.WithTimeout(ctx, h.deps.Cfg.SummaryTimeout())
	defer cancel()

	ready := bus.SummaryReady{Meta: bus.NewMeta(), TaskID: cmd.TaskID}

	sentences, err := h.deps.Gen.Complete(genCtx, h.deps.Prompts.Summary(snapshot))
	if err != nil {
		ready.Err = err.Error()
		return []bus.Followup{{Item: ready}}, err
	}

	body := ""
	for _, s := range sentences {
		body += s + "\n"
	}
	path, err := h.deps.Summaries.WriteStreamSummary(
		body,
		h.deps.Process.StartedAt(),
		h.deps.Process.Uptime(),
		summary.CountComments(snapshot),
	)
	if err != nil {
		ready.Err = err.Error()
		return []bus.Followup{{Item: ready}}, err
	}

	ready.Path = path
	if cmd.Reason == "daily" {
		if err := h.deps.Summaries.MarkDailyDone(time.Now()); err != nil {
			log.Printf("[summary] mark daily done: %v", err)
		}
	}
	log.Printf("[summary] written to %s (reason: %s)", path, cmd.Reason)
	return []bus.Followup{{Item: ready}}, nil
}

// summaryReadyHandler just records the outcome; correlation by TaskID is
// for log forensics, nothing blocks on it.
func summaryReadyHandler(deps *Deps) Handler {
	return HandlerFunc(func(ctx context.Context, item bus.Item) ([]bus.Followup, error) {
		ev := item.(bus.SummaryReady)
		if ev.Err != "" {
			log.Printf("[summary] task %s failed: %s", ev.TaskID, ev.Err)
		} else if ev.Path != "" {
			log.Printf("[summary] task %s complete: %s", ev.TaskID, ev.Path)
		}
		return nil, nil
	})
}

func streamEndedHandler(deps *Deps) Handler {
	return HandlerFunc(func(ctx context.Context, item bus.Item) ([]bus.Followup, error) {
		ev := item.(bus.StreamEnded)
		log.Printf("[session] stream ended after %s (%s)", ev.Duration.Round(time.Second), ev.Reason)
		return nil, nil
	})
}
