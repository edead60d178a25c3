package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gavel/internal/moderation"
	"gavel/internal/render"
)

// memberAction describes a single-target platform action
type memberAction struct {
	action     moderation.Action
	capability Capability
	audit      moderation.AuditAction
	// requireMember rejects users that are not in the guild
	requireMember bool

	title   string
	label   string
	past    string
	fields  []render.Field
	details map[string]string

	apply func(ctx context.Context, userID, reason string) error
}

func (h *Handler) runMemberAction(ctx context.Context, inv *Invocation, userID, reason string, ma memberAction) error {
	target, err := h.platform.ResolveMember(ctx, inv.GuildID, userID)
	if err != nil {
		return h.fail(ctx, inv, "look up that member", err)
	}
	if target == nil && ma.requireMember {
		return h.invalid(ctx, inv, invalidf("user", "<@%s> is not a member of this server.", userID))
	}

	verdict, err := h.validate(ctx, inv, target, ma.action, ma.capability)
	if err != nil {
		return h.fail(ctx, inv, "check permissions", err)
	}
	if !verdict.Authorized() {
		return h.deny(ctx, inv, verdict)
	}

	t := targetOf(userID, target)
	preview := render.Preview(ma.title, t, reason, ma.fields...)

	return h.confirmThen(ctx, inv, preview, ma.label, func(ctx context.Context) render.Message {
		if err := ma.apply(ctx, userID, render.Reason(reason)); err != nil {
			inv.setOutcome("failed")
			h.logError(inv, err).Str("target", userID).Msg("commands: platform action failed")
			return render.Failure(ma.action.Verb + " " + t.String())
		}

		done := fmt.Sprintf("%s was %s", t, ma.past)
		fields := append([]render.Field{{Name: "Reason", Value: render.Reason(reason)}}, ma.fields...)
		success := render.Success(strings.ToUpper(ma.past[:1])+ma.past[1:], done+".", fields...)
		return h.recordOrPartial(ctx, inv, moderation.AuditEntry{
			Action:   ma.audit,
			TargetID: userID,
			Reason:   reason,
			Details:  ma.details,
		}, done, success)
	})
}

func userAndReason(inv *Invocation) (userID, reason string, err error) {
	userID = inv.Options.String("user")
	if userID == "" {
		return "", "", invalidf("user", "user is required.")
	}
	reason, err = inv.Options.OptionalString("reason", MaxReasonLength)
	return userID, reason, err
}

func (h *Handler) ban(ctx context.Context, inv *Invocation) error {
	userID, reason, err := userAndReason(inv)
	if err != nil {
		return h.invalid(ctx, inv, err)
	}
	days, err := inv.Options.IntInRange("delete_days", 0, MaxDeleteDays, 0)
	if err != nil {
		return h.invalid(ctx, inv, err)
	}

	return h.runMemberAction(ctx, inv, userID, reason, memberAction{
		action:     moderation.ActionBan,
		capability: CapBan,
		audit:      moderation.AuditActionBan,
		title:      "Ban member?",
		label:      "Ban",
		past:       "banned",
		fields:     []render.Field{{Name: "Delete message history", Value: plural(int(days), "day"), Inline: true}},
		details:    map[string]string{"delete_days": strconv.FormatInt(days, 10)},
		apply: func(ctx context.Context, userID, reason string) error {
			return h.platform.Ban(ctx, inv.GuildID, userID, reason, int(days))
		},
	})
}

func (h *Handler) unban(ctx context.Context, inv *Invocation) error {
	userID, reason, err := userAndReason(inv)
	if err != nil {
		return h.invalid(ctx, inv, err)
	}

	return h.runMemberAction(ctx, inv, userID, reason, memberAction{
		action:     moderation.Action{Name: "unban", Verb: "unban"},
		capability: CapBan,
		audit:      moderation.AuditActionUnban,
		title:      "Unban user?",
		label:      "Unban",
		past:       "unbanned",
		apply: func(ctx context.Context, userID, reason string) error {
			return h.platform.Unban(ctx, inv.GuildID, userID, reason)
		},
	})
}

func (h *Handler) kick(ctx context.Context, inv *Invocation) error {
	userID, reason, err := userAndReason(inv)
	if err != nil {
		return h.invalid(ctx, inv, err)
	}

	return h.runMemberAction(ctx, inv, userID, reason, memberAction{
		action:        moderation.ActionKick,
		capability:    CapKick,
		audit:         moderation.AuditActionKick,
		requireMember: true,
		title:         "Kick member?",
		label:         "Kick",
		past:          "kicked",
		apply: func(ctx context.Context, userID, reason string) error {
			return h.platform.Kick(ctx, inv.GuildID, userID, reason)
		},
	})
}

func (h *Handler) mute(ctx context.Context, inv *Invocation) error {
	userID, reason, err := userAndReason(inv)
	if err != nil {
		return h.invalid(ctx, inv, err)
	}
	d, err := ParseDuration(inv.Options.String("duration"))
	if err != nil {
		return h.invalid(ctx, inv, err)
	}
	until := h.now().Add(d)

	return h.runMemberAction(ctx, inv, userID, reason, memberAction{
		action:        moderation.ActionMute,
		capability:    CapModerate,
		audit:         moderation.AuditActionMute,
		requireMember: true,
		title:         "Mute member?",
		label:         "Mute",
		past:          "muted",
		fields: []render.Field{
			{Name: "Duration", Value: FormatDuration(d), Inline: true},
			{Name: "Until", Value: render.Timestamp(until), Inline: true},
		},
		details: map[string]string{"duration": d.String()},
		apply: func(ctx context.Context, userID, reason string) error {
			// The window starts when the mute is confirmed, not when it was requested
			return h.platform.Timeout(ctx, inv.GuildID, userID, h.now().Add(d), reason)
		},
	})
}

func (h *Handler) unmute(ctx context.Context, inv *Invocation) error {
	userID, reason, err := userAndReason(inv)
	if err != nil {
		return h.invalid(ctx, inv, err)
	}

	return h.runMemberAction(ctx, inv, userID, reason, memberAction{
		action:        moderation.ActionUnmute,
		capability:    CapModerate,
		audit:         moderation.AuditActionUnmute,
		requireMember: true,
		title:         "Unmute member?",
		label:         "Unmute",
		past:          "unmuted",
		apply: func(ctx context.Context, userID, reason string) error {
			return h.platform.RemoveTimeout(ctx, inv.GuildID, userID, reason)
		},
	})
}

// massban bans a list of users behind one confirmation. Members that the
// actor may not ban are dropped before the preview; failures while banning
// are isolated per user.
func (h *Handler) massban(ctx context.Context, inv *Invocation) error {
	ids := ParseUserIDs(inv.Options.String("users"))
	if len(ids) == 0 {
		return h.invalid(ctx, inv, invalidf("users", "No valid user IDs found."))
	}
	if len(ids) > MaxMassBan {
		return h.invalid(ctx, inv, invalidf("users", "You can ban at most %d users at once.", MaxMassBan))
	}
	reason, err := inv.Options.OptionalString("reason", MaxReasonLength)
	if err != nil {
		return h.invalid(ctx, inv, err)
	}
	days, err := inv.Options.IntInRange("delete_days", 0, MaxDeleteDays, 0)
	if err != nil {
		return h.invalid(ctx, inv, err)
	}

	// Capability first, so a bot without ban rights fails once rather than per user
	verdict, err := h.validate(ctx, inv, nil, moderation.ActionBan, CapBan)
	if err != nil {
		return h.fail(ctx, inv, "check permissions", err)
	}
	if !verdict.Authorized() {
		return h.deny(ctx, inv, verdict)
	}

	var targets []string
	var refused int
	for _, id := range ids {
		member, err := h.platform.ResolveMember(ctx, inv.GuildID, id)
		if err != nil {
			h.logError(inv, err).Str("target", id).Msg("commands: massban lookup failed, skipping user")
			refused++
			continue
		}
		v, err := h.validate(ctx, inv, member, moderation.ActionBan, CapBan)
		if err != nil {
			return h.fail(ctx, inv, "check permissions", err)
		}
		if !v.Authorized() {
			refused++
			continue
		}
		targets = append(targets, id)
	}
	if len(targets) == 0 {
		return h.invalid(ctx, inv, invalidf("users", "None of those users can be banned by you."))
	}

	fields := []render.Field{
		{Name: "Users", Value: mentionList(targets, 10)},
		{Name: "Reason", Value: render.Reason(reason), Inline: true},
	}
	if refused > 0 {
		fields = append(fields, render.Field{Name: "Excluded", Value: strconv.Itoa(refused), Inline: true})
	}
	preview := render.Message{
		Title:     fmt.Sprintf("Ban %s?", plural(len(targets), "user")),
		Body:      "Please confirm this action. It cannot be undone easily.",
		Tone:      render.ToneWarning,
		Fields:    fields,
		Ephemeral: true,
	}

	return h.confirmThen(ctx, inv, preview, "Ban all", func(ctx context.Context) render.Message {
		var banned int
		var failed []string
		for _, id := range targets {
			if err := h.platform.Ban(ctx, inv.GuildID, id, render.Reason(reason), int(days)); err != nil {
				h.logError(inv, err).Str("target", id).Msg("commands: massban ban failed")
				failed = append(failed, id)
				continue
			}
			banned++
		}

		if banned == 0 {
			inv.setOutcome("failed")
			return render.Failure("ban those users")
		}

		result := render.Success("Mass ban complete",
			fmt.Sprintf("Banned %d of %s.", banned, plural(len(targets), "user")),
			render.Field{Name: "Reason", Value: render.Reason(reason)})
		if len(failed) > 0 {
			result.Tone = render.ToneWarning
			result.Fields = append(result.Fields, render.Field{Name: "Failed", Value: mentionList(failed, 5)})
		}

		return h.recordOrPartial(ctx, inv, moderation.AuditEntry{
			Action:   moderation.AuditActionMassBan,
			TargetID: strings.Join(targets, ","),
			Reason:   reason,
			Details: map[string]string{
				"banned": strconv.Itoa(banned),
				"failed": strconv.Itoa(len(failed)),
			},
		}, fmt.Sprintf("%d users were banned", banned), result)
	})
}

func mentionList(ids []string, max int) string {
	var b strings.Builder
	for i, id := range ids {
		if i == max {
			fmt.Fprintf(&b, "…and %d more", len(ids)-max)
			break
		}
		fmt.Fprintf(&b, "<@%s>\n", id)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// nickname renames a member without a confirmation step. Members may
// rename themselves; an empty nickname resets to the username.
func (h *Handler) nickname(ctx context.Context, inv *Invocation) error {
	userID := inv.Options.String("user")
	if userID == "" {
		return h.invalid(ctx, inv, invalidf("user", "user is required."))
	}
	nick, err := inv.Options.OptionalString("nickname", MaxNickLength)
	if err != nil {
		return h.invalid(ctx, inv, err)
	}
	nick = strings.TrimSpace(nick)

	target, err := h.platform.ResolveMember(ctx, inv.GuildID, userID)
	if err != nil {
		return h.fail(ctx, inv, "look up that member", err)
	}
	if target == nil {
		return h.invalid(ctx, inv, invalidf("user", "<@%s> is not a member of this server.", userID))
	}

	self, err := h.platform.Self(ctx, inv.GuildID)
	if err != nil {
		return h.fail(ctx, inv, "check permissions", err)
	}
	capable, err := h.platform.SelfCan(ctx, inv.GuildID, CapManageNicknames)
	if err != nil {
		return h.fail(ctx, inv, "check permissions", err)
	}
	verdict := moderation.ValidateRename(moderation.ActionContext{
		Actor:       inv.Actor,
		Target:      target,
		Self:        self,
		RequestedAt: h.now(),
	}, capable)
	if !verdict.Authorized() {
		return h.deny(ctx, inv, verdict)
	}

	t := targetOf(userID, target)
	if nick == target.Nick {
		inv.setOutcome("unchanged")
		return inv.Reply.Reply(ctx, render.Info("No change", fmt.Sprintf("%s already has that nickname.", t)), nil)
	}

	reason := "Changed by " + inv.Actor.Username
	if err := h.platform.SetNickname(ctx, inv.GuildID, userID, nick, reason); err != nil {
		inv.setOutcome("failed")
		h.logError(inv, err).Str("target", userID).Msg("commands: platform action failed")
		return inv.Reply.Reply(ctx, render.Failure("rename "+t.String()), nil)
	}

	before, after := displayNick(target.Nick, target.Username), displayNick(nick, target.Username)
	title, done := "Nickname changed", fmt.Sprintf("%s was renamed", t)
	if nick == "" {
		title, done = "Nickname reset", fmt.Sprintf("%s's nickname was reset", t)
	}
	success := render.Success(title, done+".",
		render.Field{Name: "Before", Value: before, Inline: true},
		render.Field{Name: "After", Value: after, Inline: true},
	)
	msg := h.recordOrPartial(ctx, inv, moderation.AuditEntry{
		Action:   moderation.AuditActionNickname,
		TargetID: userID,
		Reason:   reason,
		Details:  map[string]string{"before": before, "after": after},
	}, done, success)
	return inv.Reply.Reply(ctx, msg, nil)
}

func displayNick(nick, username string) string {
	if nick != "" {
		return nick
	}
	return username
}
