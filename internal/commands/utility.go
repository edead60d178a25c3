package commands

import (
	"context"
	"fmt"

	"gavel/internal/render"
)

func (h *Handler) ping(ctx context.Context, inv *Invocation) error {
	l, err := h.platform.Latency(ctx)
	if err != nil {
		return h.fail(ctx, inv, "measure latency", err)
	}
	inv.setOutcome("success")
	return inv.Reply.Reply(ctx, render.Info("Pong!", "",
		render.Field{Name: "Gateway", Value: fmt.Sprintf("%dms", l.Gateway.Milliseconds()), Inline: true},
		render.Field{Name: "REST", Value: fmt.Sprintf("%dms", l.REST.Milliseconds()), Inline: true},
	), nil)
}
