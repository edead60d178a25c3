package commands

import (
	"context"
	"errors"

	"gavel/internal/auditlog"
	"gavel/internal/confirm"
	"gavel/internal/metrics"
	"gavel/internal/moderation"
	"gavel/internal/render"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// invalid renders a rejected input and stops the command
func (h *Handler) invalid(ctx context.Context, inv *Invocation, err error) error {
	inv.setOutcome("invalid")
	msg := err.Error()
	var verr *ValidationError
	if errors.As(err, &verr) {
		msg = verr.Message
	}
	return inv.Reply.Reply(ctx, render.Invalid(msg), nil)
}

// deny renders a hierarchy refusal. No confirmation is shown.
func (h *Handler) deny(ctx context.Context, inv *Invocation, verdict moderation.Verdict) error {
	inv.setOutcome("denied")
	metrics.DenialsTotal.WithLabelValues(metrics.NormalizeCommand(inv.Command), verdict.Reason.String()).Inc()
	return inv.Reply.Reply(ctx, render.Denied(verdict.Message), nil)
}

// fail renders the generic failure for an error that happened before any
// confirmation was shown
func (h *Handler) fail(ctx context.Context, inv *Invocation, verb string, err error) error {
	inv.setOutcome("failed")
	h.logError(inv, err).Str("verb", verb).Msg("commands: collaborator call failed")
	return inv.Reply.Reply(ctx, render.Failure(verb), nil)
}

func (h *Handler) logError(inv *Invocation, err error) *zerolog.Event {
	return log.Error().Err(err).
		Str("command", inv.Command).
		Str("guild", inv.GuildID).
		Str("channel", inv.ChannelID).
		Str("actor", inv.Actor.ID)
}

// validate runs the hierarchy validator for a member-targeted action.
// target may be nil when the user is not a member of the guild.
func (h *Handler) validate(ctx context.Context, inv *Invocation, target *moderation.Member, action moderation.Action, capability Capability) (moderation.Verdict, error) {
	self, err := h.platform.Self(ctx, inv.GuildID)
	if err != nil {
		return moderation.Verdict{}, err
	}
	capable := true
	if capability != 0 {
		capable, err = h.platform.SelfCan(ctx, inv.GuildID, capability)
		if err != nil {
			return moderation.Verdict{}, err
		}
	}
	return moderation.Validate(moderation.ActionContext{
		Actor:       inv.Actor,
		Target:      target,
		Self:        self,
		RequestedAt: h.now(),
	}, action, capable), nil
}

// confirmThen drives the confirmation prompt. run is the guarded action
// and renders its own result.
func (h *Handler) confirmThen(ctx context.Context, inv *Invocation, preview render.Message, label string, run func(ctx context.Context) render.Message) error {
	state, err := h.prompt.Present(ctx, inv.Reply, confirm.Request{
		Owner:        inv.Actor.ID,
		Preview:      preview,
		ConfirmLabel: label,
		CancelLabel:  "Cancel",
		OnConfirm:    run,
	})
	inv.setOutcome(state.String())
	if err != nil && state == confirm.StatePreviewing {
		return err
	}
	if err != nil {
		log.Debug().Err(err).Str("command", inv.Command).Msg("commands: invocation ended before the prompt was answered")
	}
	return nil
}

// record appends to the audit trail and forwards the entry to the guild's
// moderation log. It returns the audit trail error, if any.
func (h *Handler) record(ctx context.Context, inv *Invocation, entry moderation.AuditEntry) error {
	entry.GuildID = inv.GuildID
	entry.ActorID = inv.Actor.ID
	if entry.Timestamp.IsZero() {
		entry.Timestamp = h.now()
	}

	var err error
	if h.audit != nil {
		if err = h.audit.LogAction(ctx, entry); err != nil {
			metrics.StoreErrorsTotal.WithLabelValues("log_action").Inc()
			h.logError(inv, err).Str("action", string(entry.Action)).Msg("commands: failed to write audit entry")
		}
	}
	if h.activity != nil {
		h.activity.Dispatch(ctx, inv.GuildID, auditlog.CategoryModeration, render.ModerationEntry(entry))
	}
	return err
}

// recordOrPartial records a completed platform action and turns a failed
// write into a partial failure notice
func (h *Handler) recordOrPartial(ctx context.Context, inv *Invocation, entry moderation.AuditEntry, done string, success render.Message) render.Message {
	if err := h.record(ctx, inv, entry); err != nil {
		inv.setOutcome("partial")
		return render.PartialFailure(done, "recording it in the moderation log")
	}
	inv.setOutcome("success")
	return success
}

func targetOf(userID string, m *moderation.Member) render.Target {
	if m == nil {
		return render.Target{ID: userID}
	}
	return render.Target{ID: m.ID, Name: m.Username}
}
