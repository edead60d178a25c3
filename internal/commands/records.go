package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gavel/internal/metrics"
	"gavel/internal/moderation"
	"gavel/internal/render"
)

var errRecordsDisabled = errors.New("record store not configured")

func (h *Handler) storeFailed(inv *Invocation, op, verb string, err error) render.Message {
	inv.setOutcome("failed")
	metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	h.logError(inv, err).Str("operation", op).Msg("commands: record store call failed")
	return render.Failure(verb)
}

// lookup resolves a user for display. Lookup failures fall back to the bare ID.
func (h *Handler) lookup(ctx context.Context, inv *Invocation, userID string) render.Target {
	member, err := h.platform.ResolveMember(ctx, inv.GuildID, userID)
	if err != nil {
		h.logError(inv, err).Str("target", userID).Msg("commands: member lookup failed")
		return render.Target{ID: userID}
	}
	return targetOf(userID, member)
}

func (h *Handler) warn(ctx context.Context, inv *Invocation) error {
	if h.records == nil {
		return h.fail(ctx, inv, "record the warning", errRecordsDisabled)
	}
	userID := inv.Options.String("user")
	if userID == "" {
		return h.invalid(ctx, inv, invalidf("user", "user is required."))
	}
	reason, err := inv.Options.RequireString("reason", MaxReasonLength)
	if err != nil {
		return h.invalid(ctx, inv, err)
	}

	target, err := h.platform.ResolveMember(ctx, inv.GuildID, userID)
	if err != nil {
		return h.fail(ctx, inv, "look up that member", err)
	}
	if target == nil {
		return h.invalid(ctx, inv, invalidf("user", "<@%s> is not a member of this server.", userID))
	}
	if target.Bot {
		return h.invalid(ctx, inv, invalidf("user", "You cannot warn a bot."))
	}
	verdict, err := h.validate(ctx, inv, target, moderation.ActionWarn, 0)
	if err != nil {
		return h.fail(ctx, inv, "check permissions", err)
	}
	if !verdict.Authorized() {
		return h.deny(ctx, inv, verdict)
	}

	t := targetOf(userID, target)
	preview := render.Preview("Warn member?", t, reason)
	preview.Body = "Please confirm this action. The member will be notified by direct message if possible."

	return h.confirmThen(ctx, inv, preview, "Warn", func(ctx context.Context) render.Message {
		id, err := h.records.CreateWarning(ctx, moderation.Warning{
			GuildID:     inv.GuildID,
			UserID:      userID,
			ModeratorID: inv.Actor.ID,
			Reason:      reason,
			CreatedAt:   h.now().UTC(),
		})
		if err != nil {
			return h.storeFailed(inv, "create_warning", "record the warning", err)
		}

		fields := []render.Field{
			{Name: "Reason", Value: reason},
			{Name: "Warning ID", Value: "#" + strconv.FormatInt(id, 10), Inline: true},
		}
		if all, err := h.records.ListWarnings(ctx, inv.GuildID, userID); err == nil {
			fields = append(fields, render.Field{Name: "Total warnings", Value: strconv.Itoa(len(all)), Inline: true})
		}

		notice := render.Message{
			Title: "You have been warned",
			Body:  "You received a warning from the moderators of this server.",
			Tone:  render.ToneWarning,
			Fields: []render.Field{
				{Name: "Reason", Value: reason},
				{Name: "Warning ID", Value: "#" + strconv.FormatInt(id, 10)},
			},
		}
		notified := "yes"
		if err := h.platform.DirectMessage(ctx, userID, notice); err != nil {
			// Closed DMs are common and not a failure of the warning
			notified = "no"
		}
		fields = append(fields, render.Field{Name: "Notified", Value: notified, Inline: true})

		done := fmt.Sprintf("%s was warned", t)
		return h.recordOrPartial(ctx, inv, moderation.AuditEntry{
			Action:   moderation.AuditActionWarn,
			TargetID: userID,
			Reason:   reason,
			Details:  map[string]string{"warning_id": strconv.FormatInt(id, 10)},
		}, done, render.Success("Warning issued", done+".", fields...))
	})
}

func (h *Handler) warnings(ctx context.Context, inv *Invocation) error {
	if h.records == nil {
		return h.fail(ctx, inv, "load warnings", errRecordsDisabled)
	}
	userID := inv.Options.String("user")
	if userID == "" {
		return h.invalid(ctx, inv, invalidf("user", "user is required."))
	}
	page, err := inv.Options.IntInRange("page", 1, MaxPage, 1)
	if err != nil {
		return h.invalid(ctx, inv, err)
	}

	list, err := h.records.ListWarnings(ctx, inv.GuildID, userID)
	if err != nil {
		return inv.Reply.Reply(ctx, h.storeFailed(inv, "list_warnings", "load warnings", err), nil)
	}
	t := h.lookup(ctx, inv, userID)
	inv.setOutcome("success")
	return inv.Reply.Reply(ctx, render.Warnings(t, list, int(page)), nil)
}

func (h *Handler) delwarn(ctx context.Context, inv *Invocation) error {
	if h.records == nil {
		return h.fail(ctx, inv, "delete the warning", errRecordsDisabled)
	}
	id, err := inv.Options.ID("id")
	if err != nil {
		return h.invalid(ctx, inv, err)
	}

	preview := render.Message{
		Title:     "Delete warning?",
		Body:      fmt.Sprintf("Warning #%d will be permanently removed.", id),
		Tone:      render.ToneWarning,
		Ephemeral: true,
	}
	return h.confirmThen(ctx, inv, preview, "Delete", func(ctx context.Context) render.Message {
		n, err := h.records.DeleteWarning(ctx, inv.GuildID, id)
		if err != nil {
			return h.storeFailed(inv, "delete_warning", "delete the warning", err)
		}
		if n == 0 {
			inv.setOutcome("not_found")
			return render.Invalid(fmt.Sprintf("Warning #%d was not found.", id))
		}
		done := fmt.Sprintf("Warning #%d was deleted", id)
		return h.recordOrPartial(ctx, inv, moderation.AuditEntry{
			Action:  moderation.AuditActionDeleteWarn,
			Details: map[string]string{"warning_id": strconv.FormatInt(id, 10)},
		}, done, render.Success("Warning deleted", done+"."))
	})
}

func (h *Handler) clearwarns(ctx context.Context, inv *Invocation) error {
	if h.records == nil {
		return h.fail(ctx, inv, "clear warnings", errRecordsDisabled)
	}
	userID := inv.Options.String("user")
	if userID == "" {
		return h.invalid(ctx, inv, invalidf("user", "user is required."))
	}
	reason, err := inv.Options.OptionalString("reason", MaxReasonLength)
	if err != nil {
		return h.invalid(ctx, inv, err)
	}

	t := h.lookup(ctx, inv, userID)
	preview := render.Preview("Clear all warnings?", t, reason)
	return h.confirmThen(ctx, inv, preview, "Clear", func(ctx context.Context) render.Message {
		n, err := h.records.ClearWarnings(ctx, inv.GuildID, userID)
		if err != nil {
			return h.storeFailed(inv, "clear_warnings", "clear warnings", err)
		}
		if n == 0 {
			inv.setOutcome("success")
			return render.Info("Warnings", fmt.Sprintf("%s had no warnings.", t))
		}
		done := fmt.Sprintf("%s cleared for %s", plural(int(n), "warning"), t)
		return h.recordOrPartial(ctx, inv, moderation.AuditEntry{
			Action:   moderation.AuditActionClearWarns,
			TargetID: userID,
			Reason:   reason,
			Details:  map[string]string{"cleared": strconv.FormatInt(n, 10)},
		}, done, render.Success("Warnings cleared", done+"."))
	})
}

func (h *Handler) note(ctx context.Context, inv *Invocation) error {
	if h.records == nil {
		return h.fail(ctx, inv, "save the note", errRecordsDisabled)
	}
	userID := inv.Options.String("user")
	if userID == "" {
		return h.invalid(ctx, inv, invalidf("user", "user is required."))
	}
	content, err := inv.Options.RequireString("content", MaxNoteLength)
	if err != nil {
		return h.invalid(ctx, inv, err)
	}

	target, err := h.platform.ResolveMember(ctx, inv.GuildID, userID)
	if err != nil {
		return h.fail(ctx, inv, "look up that member", err)
	}
	verdict, err := h.validate(ctx, inv, target, moderation.ActionNote, 0)
	if err != nil {
		return h.fail(ctx, inv, "check permissions", err)
	}
	if !verdict.Authorized() {
		return h.deny(ctx, inv, verdict)
	}

	t := targetOf(userID, target)
	preview := render.Message{
		Title: "Add note?",
		Body:  "Notes are only visible to staff.",
		Tone:  render.ToneWarning,
		Fields: []render.Field{
			{Name: "Target", Value: t.String(), Inline: true},
			{Name: "Note", Value: render.Truncate(content, 1000)},
		},
		Ephemeral: true,
	}
	return h.confirmThen(ctx, inv, preview, "Add note", func(ctx context.Context) render.Message {
		id, err := h.records.CreateNote(ctx, moderation.Note{
			GuildID:   inv.GuildID,
			UserID:    userID,
			AuthorID:  inv.Actor.ID,
			Content:   content,
			CreatedAt: h.now().UTC(),
		})
		if err != nil {
			return h.storeFailed(inv, "create_note", "save the note", err)
		}
		done := fmt.Sprintf("Note #%d was added to %s", id, t)
		return h.recordOrPartial(ctx, inv, moderation.AuditEntry{
			Action:   moderation.AuditActionNote,
			TargetID: userID,
			Details:  map[string]string{"note_id": strconv.FormatInt(id, 10)},
		}, done, render.Success("Note added", done+"."))
	})
}

func (h *Handler) notes(ctx context.Context, inv *Invocation) error {
	if h.records == nil {
		return h.fail(ctx, inv, "load notes", errRecordsDisabled)
	}
	userID := inv.Options.String("user")
	if userID == "" {
		return h.invalid(ctx, inv, invalidf("user", "user is required."))
	}
	page, err := inv.Options.IntInRange("page", 1, MaxPage, 1)
	if err != nil {
		return h.invalid(ctx, inv, err)
	}

	list, err := h.records.ListNotes(ctx, inv.GuildID, userID)
	if err != nil {
		return inv.Reply.Reply(ctx, h.storeFailed(inv, "list_notes", "load notes", err), nil)
	}
	t := h.lookup(ctx, inv, userID)
	inv.setOutcome("success")
	return inv.Reply.Reply(ctx, render.Notes(t, list, int(page)), nil)
}

func (h *Handler) delnote(ctx context.Context, inv *Invocation) error {
	if h.records == nil {
		return h.fail(ctx, inv, "delete the note", errRecordsDisabled)
	}
	id, err := inv.Options.ID("id")
	if err != nil {
		return h.invalid(ctx, inv, err)
	}

	preview := render.Message{
		Title:     "Delete note?",
		Body:      fmt.Sprintf("Note #%d will be permanently removed.", id),
		Tone:      render.ToneWarning,
		Ephemeral: true,
	}
	return h.confirmThen(ctx, inv, preview, "Delete", func(ctx context.Context) render.Message {
		n, err := h.records.DeleteNote(ctx, inv.GuildID, id)
		if err != nil {
			return h.storeFailed(inv, "delete_note", "delete the note", err)
		}
		if n == 0 {
			inv.setOutcome("not_found")
			return render.Invalid(fmt.Sprintf("Note #%d was not found.", id))
		}
		done := fmt.Sprintf("Note #%d was deleted", id)
		return h.recordOrPartial(ctx, inv, moderation.AuditEntry{
			Action:  moderation.AuditActionDeleteNote,
			Details: map[string]string{"note_id": strconv.FormatInt(id, 10)},
		}, done, render.Success("Note deleted", done+"."))
	})
}

func (h *Handler) clearnotes(ctx context.Context, inv *Invocation) error {
	if h.records == nil {
		return h.fail(ctx, inv, "clear notes", errRecordsDisabled)
	}
	userID := inv.Options.String("user")
	if userID == "" {
		return h.invalid(ctx, inv, invalidf("user", "user is required."))
	}

	t := h.lookup(ctx, inv, userID)
	preview := render.Message{
		Title:     "Clear all notes?",
		Body:      fmt.Sprintf("Every staff note on %s will be permanently removed.", t),
		Tone:      render.ToneWarning,
		Ephemeral: true,
	}
	return h.confirmThen(ctx, inv, preview, "Clear", func(ctx context.Context) render.Message {
		n, err := h.records.ClearNotes(ctx, inv.GuildID, userID)
		if err != nil {
			return h.storeFailed(inv, "clear_notes", "clear notes", err)
		}
		if n == 0 {
			inv.setOutcome("success")
			return render.Info("Notes", fmt.Sprintf("%s had no notes.", t))
		}
		done := fmt.Sprintf("%s cleared for %s", plural(int(n), "note"), t)
		return h.recordOrPartial(ctx, inv, moderation.AuditEntry{
			Action:   moderation.AuditActionClearNotes,
			TargetID: userID,
			Details:  map[string]string{"cleared": strconv.FormatInt(n, 10)},
		}, done, render.Success("Notes cleared", done+"."))
	})
}
