package handler

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/harunalabs/aituber/internal/bus"
)

// CommentHandler screens incoming raw comments and stages the survivors
// for the next integrated response. A burst of pending comments raises
// priority by commanding a response immediately.
type CommentHandler struct {
	deps *Deps
}

func NewCommentHandler(deps *Deps) *CommentHandler {
	return &CommentHandler{deps: deps}
}

func (h *CommentHandler) Handle(ctx context.Context, item bus.Item) ([]bus.Followup, error) {
	ev := item.(bus.CommentsReceived)
	p := h.deps.Process

	accepted := h.deps.Filter.Apply(ev.Comments)
	if len(accepted) == 0 {
		return nil, nil
	}

	for _, c := range accepted {
		h.deps.History.Append(fmt.Sprintf("viewer:%s", c.Author), c.Text)
	}
	p.AddPendingComments(accepted)
	log.Printf("[comment] %d accepted, %d pending", len(accepted), p.PendingCommentCount())

	if !p.Busy() && p.PendingCommentCount() >= h.deps.Cfg.Modes.CommentBurst {
		return []bus.Followup{{Item: bus.PrepareCommentResponse{
			Meta:     bus.NewMeta(),
			TaskID:   uuid.NewString(),
			Comments: p.TakePendingComments(),
		}}}, nil
	}
	return nil, nil
}
