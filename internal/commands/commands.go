// Package commands implements the moderation command handlers.
//
// Every destructive command follows the same shape: resolve the target, run
// the hierarchy validator, show a preview through the confirmation prompt,
// and on confirmation perform the platform mutation followed by any durable
// write. A durable write that fails after the platform mutation succeeded
// is reported as a partial failure; the platform action is never rolled
// back.
package commands

import (
	"context"
	"errors"
	"time"

	"gavel/internal/auditlog"
	"gavel/internal/confirm"
	"gavel/internal/metrics"
	"gavel/internal/moderation"
	"gavel/internal/purge"
	"gavel/internal/render"
	"gavel/internal/tracing"

	"github.com/rs/zerolog/log"
)

// ErrUnknownCommand is returned for invocations of unregistered commands
var ErrUnknownCommand = errors.New("commands: unknown command")

// Capability is a set of platform permission bits relevant to moderation
type Capability uint32

const (
	CapBan Capability = 1 << iota
	CapKick
	CapModerate
	CapManageMessages
	CapManageGuild
	CapManageNicknames
)

// Has reports whether every bit of want is present
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// Platform is the chat platform as seen by the handlers
type Platform interface {
	// Self returns the system's own member in a guild
	Self(ctx context.Context, guildID string) (moderation.Member, error)

	// SelfCan reports whether the system holds a capability in a guild
	SelfCan(ctx context.Context, guildID string, capability Capability) (bool, error)

	// ResolveMember returns nil and no error when the user is not in the guild
	ResolveMember(ctx context.Context, guildID, userID string) (*moderation.Member, error)

	Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error
	Unban(ctx context.Context, guildID, userID, reason string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error
	RemoveTimeout(ctx context.Context, guildID, userID, reason string) error

	// ModeratableChannels lists the text channels where the system may
	// delete messages
	ModeratableChannels(ctx context.Context, guildID string) ([]string, error)

	// SetNickname changes a member's guild nickname; empty resets it
	SetNickname(ctx context.Context, guildID, userID, nick, reason string) error

	// DirectMessage notifies a user privately. Closed DMs are an error.
	DirectMessage(ctx context.Context, userID string, msg render.Message) error

	// Latency measures the gateway heartbeat and a REST round trip
	Latency(ctx context.Context) (Latency, error)
}

// Latency is the platform round trip as measured by the ping command
type Latency struct {
	Gateway time.Duration
	REST    time.Duration
}

// ActivityLog forwards rendered activity to a guild's log channel
type ActivityLog interface {
	Dispatch(ctx context.Context, guildID string, category auditlog.Category, msg render.Message)
}

// Invocation is one command call
type Invocation struct {
	Command   string
	GuildID   string
	ChannelID string
	Actor     moderation.Member
	// ActorCaps are the platform permissions the actor holds in the channel
	ActorCaps Capability
	Options   Options
	Reply     confirm.Gateway

	outcome string
}

func (inv *Invocation) setOutcome(outcome string) {
	if inv.outcome == "" {
		inv.outcome = outcome
	}
}

// Command is an entry of the command table
type Command struct {
	Name        string
	Description string
	// Capability or Permission grants access; either one is enough.
	// A command with neither is open to everyone.
	Capability Capability
	Permission moderation.Permission

	run func(ctx context.Context, inv *Invocation) error
}

// Handler runs moderation commands
type Handler struct {
	platform Platform
	prompt   *confirm.Prompt
	engine   *purge.Engine
	now      func() time.Time

	// Durable state (optional)
	records moderation.RecordStore
	audit   moderation.AuditStore

	// Activity logging (optional)
	activity  ActivityLog
	logConfig auditlog.ConfigStore

	// Staff roles (optional)
	staff *moderation.Service

	table map[string]Command
	order []string
}

// NewHandler creates a Handler with its command table.
func NewHandler(platform Platform, prompt *confirm.Prompt, engine *purge.Engine) *Handler {
	h := &Handler{
		platform: platform,
		prompt:   prompt,
		engine:   engine,
		now:      time.Now,
	}
	h.register()
	return h
}

// SetRecords configures the warning/note store and the audit trail
func (h *Handler) SetRecords(records moderation.RecordStore, audit moderation.AuditStore) {
	h.records = records
	h.audit = audit
}

// SetActivityLog configures log channel routing and its configuration store
func (h *Handler) SetActivityLog(activity ActivityLog, cfg auditlog.ConfigStore) {
	h.activity = activity
	h.logConfig = cfg
}

// SetStaff configures the staff role service
func (h *Handler) SetStaff(svc *moderation.Service) {
	h.staff = svc
}

// SetClock replaces the time source
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

// Commands returns the command table in registration order
func (h *Handler) Commands() []Command {
	cmds := make([]Command, 0, len(h.order))
	for _, name := range h.order {
		cmds = append(cmds, h.table[name])
	}
	return cmds
}

func (h *Handler) register() {
	h.table = make(map[string]Command)
	add := func(c Command) {
		h.table[c.Name] = c
		h.order = append(h.order, c.Name)
	}

	add(Command{Name: "ban", Description: "Ban a member from the server.", Capability: CapBan, Permission: moderation.PermissionBanMembers, run: h.ban})
	add(Command{Name: "unban", Description: "Lift a ban.", Capability: CapBan, Permission: moderation.PermissionBanMembers, run: h.unban})
	add(Command{Name: "kick", Description: "Remove a member from the server.", Capability: CapKick, Permission: moderation.PermissionKickMembers, run: h.kick})
	add(Command{Name: "mute", Description: "Time out a member.", Capability: CapModerate, Permission: moderation.PermissionTimeoutMembers, run: h.mute})
	add(Command{Name: "unmute", Description: "Remove a member's timeout.", Capability: CapModerate, Permission: moderation.PermissionTimeoutMembers, run: h.unmute})
	add(Command{Name: "clear", Description: "Delete recent messages in this channel.", Capability: CapManageMessages, Permission: moderation.PermissionManageMessages, run: h.clear})
	add(Command{Name: "purge", Description: "Delete a user's recent messages in every channel.", Capability: CapManageMessages, Permission: moderation.PermissionManageMessages, run: h.purge})
	add(Command{Name: "massban", Description: "Ban several users by ID.", Capability: CapBan, Permission: moderation.PermissionMassBan, run: h.massban})
	add(Command{Name: "warn", Description: "Warn a member.", Capability: CapModerate, Permission: moderation.PermissionWarnMembers, run: h.warn})
	add(Command{Name: "warnings", Description: "List a member's warnings.", Capability: CapModerate, Permission: moderation.PermissionViewRecords, run: h.warnings})
	add(Command{Name: "delwarn", Description: "Delete a warning by ID.", Capability: CapModerate, Permission: moderation.PermissionWarnMembers, run: h.delwarn})
	add(Command{Name: "clearwarns", Description: "Delete all of a member's warnings.", Capability: CapModerate, Permission: moderation.PermissionWarnMembers, run: h.clearwarns})
	add(Command{Name: "note", Description: "Add a staff note to a member.", Capability: CapModerate, Permission: moderation.PermissionManageNotes, run: h.note})
	add(Command{Name: "notes", Description: "List the staff notes on a member.", Capability: CapModerate, Permission: moderation.PermissionViewRecords, run: h.notes})
	add(Command{Name: "delnote", Description: "Delete a staff note by ID.", Capability: CapModerate, Permission: moderation.PermissionManageNotes, run: h.delnote})
	add(Command{Name: "clearnotes", Description: "Delete all staff notes on a member.", Capability: CapModerate, Permission: moderation.PermissionManageNotes, run: h.clearnotes})
	add(Command{Name: "nickname", Description: "Change or reset a member's nickname.", Capability: CapManageNicknames, Permission: moderation.PermissionManageNicks, run: h.nickname})
	add(Command{Name: "logchannel", Description: "Configure where activity is logged.", Capability: CapManageGuild, Permission: moderation.PermissionConfigureLogs, run: h.logchannel})
	add(Command{Name: "modlog", Description: "Show recent moderation actions.", Capability: CapModerate, Permission: moderation.PermissionViewAuditLog, run: h.modlog})
	add(Command{Name: "ping", Description: "Check the bot's latency.", run: h.ping})
}

// Handle runs one invocation. A non-nil error means the invocation could
// not be answered at all; every other outcome has been rendered.
func (h *Handler) Handle(ctx context.Context, inv *Invocation) error {
	cmd, ok := h.table[inv.Command]
	if !ok {
		return ErrUnknownCommand
	}

	ctx, span := tracing.CommandSpan(ctx, cmd.Name, inv.GuildID, inv.Actor.ID)
	defer span.End()

	start := time.Now()
	label := metrics.NormalizeCommand(cmd.Name)

	var err error
	if h.allowed(inv, cmd) {
		err = cmd.run(ctx, inv)
	} else {
		metrics.DenialsTotal.WithLabelValues(label, "actor_permission").Inc()
		inv.setOutcome("forbidden")
		err = inv.Reply.Reply(ctx, render.Denied("You don't have permission to use this command."), nil)
	}

	if err != nil {
		inv.setOutcome("error")
		tracing.EndWithError(span, err)
		log.Error().Err(err).
			Str("command", cmd.Name).
			Str("guild", inv.GuildID).
			Str("channel", inv.ChannelID).
			Str("actor", inv.Actor.ID).
			Msg("commands: could not respond to invocation")
	}
	inv.setOutcome("done")

	metrics.CommandsTotal.WithLabelValues(label, inv.outcome).Inc()
	metrics.CommandDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	return err
}

// allowed checks that the actor may use the command at all: either the
// platform grants the capability or a staff role grants the permission.
func (h *Handler) allowed(inv *Invocation, cmd Command) bool {
	if inv.ActorCaps.Has(cmd.Capability) {
		return true
	}
	if h.staff != nil && h.staff.IsEnabled() {
		return h.staff.HasPermission(inv.Actor.ID, inv.Actor.RoleIDs, cmd.Permission)
	}
	return false
}
