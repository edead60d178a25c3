package commands

import (
	"context"
	"fmt"
	"strconv"

	"gavel/internal/moderation"
	"gavel/internal/purge"
	"gavel/internal/render"
)

var denyManageMessages = moderation.Verdict{
	Reason:  moderation.DenySelfIncapable,
	Message: "I don't have permission to manage messages here.",
}

// clear deletes recent messages in the invoking channel
func (h *Handler) clear(ctx context.Context, inv *Invocation) error {
	if _, ok := inv.Options.Int("amount"); !ok {
		return h.invalid(ctx, inv, invalidf("amount", "amount is required."))
	}
	amount, err := inv.Options.IntInRange("amount", 1, purge.MaxBatch, 0)
	if err != nil {
		return h.invalid(ctx, inv, err)
	}
	userID := inv.Options.String("user")
	botsOnly := inv.Options.Bool("bots_only")

	capable, err := h.platform.SelfCan(ctx, inv.GuildID, CapManageMessages)
	if err != nil {
		return h.fail(ctx, inv, "check permissions", err)
	}
	if !capable {
		return h.deny(ctx, inv, denyManageMessages)
	}

	preds := []purge.Predicate{purge.All()}
	fields := []render.Field{
		{Name: "Channel", Value: fmt.Sprintf("<#%s>", inv.ChannelID), Inline: true},
		{Name: "Amount", Value: strconv.FormatInt(amount, 10), Inline: true},
	}
	details := map[string]string{"channel": inv.ChannelID}
	if userID != "" {
		preds = append(preds, purge.ByAuthor(userID))
		fields = append(fields, render.Field{Name: "From", Value: fmt.Sprintf("<@%s>", userID), Inline: true})
		details["user"] = userID
	}
	if botsOnly {
		preds = append(preds, purge.Bots())
		fields = append(fields, render.Field{Name: "Bots only", Value: "yes", Inline: true})
	}

	preview := render.Message{
		Title:     "Delete messages?",
		Body:      fmt.Sprintf("Up to %s in <#%s> will be permanently deleted. Messages older than 14 days are skipped.", plural(int(amount), "message"), inv.ChannelID),
		Tone:      render.ToneWarning,
		Fields:    fields,
		Ephemeral: true,
	}

	return h.confirmThen(ctx, inv, preview, "Delete", func(ctx context.Context) render.Message {
		return h.runPurge(ctx, inv, moderation.AuditActionClear, []string{inv.ChannelID}, purge.And(preds...), int(amount), details)
	})
}

// purge deletes a user's recent messages in every channel the system can
// moderate
func (h *Handler) purge(ctx context.Context, inv *Invocation) error {
	userID := inv.Options.String("user")
	if userID == "" {
		return h.invalid(ctx, inv, invalidf("user", "user is required."))
	}
	limit, err := inv.Options.IntInRange("limit", 1, purge.MaxBatch, purge.MaxBatch)
	if err != nil {
		return h.invalid(ctx, inv, err)
	}

	channels, err := h.platform.ModeratableChannels(ctx, inv.GuildID)
	if err != nil {
		return h.fail(ctx, inv, "list channels", err)
	}
	if len(channels) == 0 {
		return h.deny(ctx, inv, moderation.Verdict{
			Reason:  moderation.DenySelfIncapable,
			Message: "I don't have permission to manage messages in any text channel.",
		})
	}

	target, err := h.platform.ResolveMember(ctx, inv.GuildID, userID)
	if err != nil {
		return h.fail(ctx, inv, "look up that member", err)
	}
	// Members get the hierarchy check; departed users can always be purged
	if target != nil {
		verdict, err := h.validate(ctx, inv, target, moderation.Action{Name: "purge", Verb: "purge messages from"}, 0)
		if err != nil {
			return h.fail(ctx, inv, "check permissions", err)
		}
		if !verdict.Authorized() {
			return h.deny(ctx, inv, verdict)
		}
	}

	t := targetOf(userID, target)
	preview := render.Message{
		Title: "Purge messages?",
		Body: fmt.Sprintf("Up to %s per channel from %s will be permanently deleted across %s. Messages older than 14 days are skipped.",
			plural(int(limit), "message"), t, plural(len(channels), "channel")),
		Tone: render.ToneWarning,
		Fields: []render.Field{
			{Name: "Target", Value: t.String(), Inline: true},
			{Name: "Channels", Value: strconv.Itoa(len(channels)), Inline: true},
		},
		Ephemeral: true,
	}

	return h.confirmThen(ctx, inv, preview, "Purge", func(ctx context.Context) render.Message {
		details := map[string]string{"channels": strconv.Itoa(len(channels)), "user": userID}
		return h.runPurge(ctx, inv, moderation.AuditActionPurge, channels, purge.ByAuthor(userID), int(limit), details)
	})
}

func (h *Handler) runPurge(ctx context.Context, inv *Invocation, action moderation.AuditAction, scope []string, pred purge.Predicate, limit int, details map[string]string) render.Message {
	out, err := h.engine.Purge(ctx, scope, pred, purge.Options{PerChannelLimit: limit})
	if err != nil {
		inv.setOutcome("failed")
		h.logError(inv, err).Msg("commands: purge rejected")
		return render.Failure("delete messages")
	}
	for channelID, cerr := range out.Errors {
		h.logError(inv, cerr).Str("target_channel", channelID).Msg("commands: purge failed in channel")
	}

	summary := render.PurgeSummary(out)
	if out.Deleted == 0 {
		if len(out.Errors) > 0 {
			inv.setOutcome("failed")
		} else {
			inv.setOutcome("success")
		}
		return summary
	}

	details["deleted"] = strconv.Itoa(out.Deleted)
	details["skipped"] = strconv.Itoa(out.Skipped)
	entry := moderation.AuditEntry{
		Action:   action,
		TargetID: details["user"],
		Details:  details,
	}
	return h.recordOrPartial(ctx, inv, entry, fmt.Sprintf("%s were deleted", plural(out.Deleted, "message")), summary)
}
