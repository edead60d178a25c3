package commands

import (
	"context"
	"errors"
	"fmt"

	"gavel/internal/auditlog"
	"gavel/internal/moderation"
	"gavel/internal/render"
)

// logchannel sets or clears the log channel of a category. Without a
// category it lists the current configuration.
func (h *Handler) logchannel(ctx context.Context, inv *Invocation) error {
	if h.logConfig == nil {
		return h.fail(ctx, inv, "configure logging", errors.New("log channel store not configured"))
	}

	name := inv.Options.String("category")
	if name == "" {
		channels, err := h.logConfig.ListLogChannels(ctx, inv.GuildID)
		if err != nil {
			return h.fail(ctx, inv, "load the logging configuration", err)
		}
		var fields []render.Field
		for _, c := range auditlog.AllCategories() {
			value := "not logged"
			if id, ok := channels[c]; ok {
				value = fmt.Sprintf("<#%s>", id)
			}
			fields = append(fields, render.Field{Name: string(c), Value: value, Inline: true})
		}
		inv.setOutcome("success")
		return inv.Reply.Reply(ctx, render.Info("Log channels", "", fields...), nil)
	}

	category, err := auditlog.ParseCategory(name)
	if err != nil {
		return h.invalid(ctx, inv, invalidf("category", "Unknown category %q.", name))
	}

	channelID := inv.Options.String("channel")
	var msg render.Message
	if channelID == "" {
		if err := h.logConfig.ClearLogChannel(ctx, inv.GuildID, category); err != nil {
			return h.fail(ctx, inv, "configure logging", err)
		}
		msg = render.Success("Logging disabled", fmt.Sprintf("%s events are no longer logged.", category))
	} else {
		if err := h.logConfig.SetLogChannel(ctx, inv.GuildID, category, channelID); err != nil {
			return h.fail(ctx, inv, "configure logging", err)
		}
		msg = render.Success("Logging enabled", fmt.Sprintf("%s events will be logged to <#%s>.", category, channelID))
	}
	msg.Ephemeral = true

	// The configuration change itself already took effect
	_ = h.record(ctx, inv, moderation.AuditEntry{
		Action:   moderation.AuditActionConfigureLog,
		TargetID: channelID,
		Details:  map[string]string{"category": string(category)},
	})
	inv.setOutcome("success")
	return inv.Reply.Reply(ctx, msg, nil)
}

// modlog lists the most recent moderation actions in the guild
func (h *Handler) modlog(ctx context.Context, inv *Invocation) error {
	if h.audit == nil {
		return h.fail(ctx, inv, "load the moderation log", errors.New("audit store not configured"))
	}
	limit, err := inv.Options.IntInRange("limit", 1, MaxModLog, DefaultModLog)
	if err != nil {
		return h.invalid(ctx, inv, err)
	}

	entries, err := h.audit.ListAuditLog(ctx, inv.GuildID, int(limit))
	if err != nil {
		return h.fail(ctx, inv, "load the moderation log", err)
	}
	inv.setOutcome("success")
	return inv.Reply.Reply(ctx, render.AuditLog(entries), nil)
}
