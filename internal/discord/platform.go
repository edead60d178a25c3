package discord

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"gavel/internal/commands"
	"gavel/internal/moderation"
	"gavel/internal/purge"
	"gavel/internal/render"
	"gavel/internal/tracing"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// ownerPosition ranks the guild owner above every role
const ownerPosition = math.MaxInt32

// purgeChannelPerms are needed in a channel before it is in purge scope
const purgeChannelPerms = discordgo.PermissionViewChannel |
	discordgo.PermissionReadMessageHistory |
	discordgo.PermissionManageMessages

// Platform implements commands.Platform and purge.History over a session
type Platform struct {
	session *discordgo.Session
}

var (
	_ commands.Platform = (*Platform)(nil)
	_ purge.History     = (*Platform)(nil)
)

// NewPlatform creates a Platform
func NewPlatform(s *discordgo.Session) *Platform {
	return &Platform{session: s}
}

func (p *Platform) selfID() (string, error) {
	if p.session.State.User == nil {
		return "", errors.New("discord: session is not ready")
	}
	return p.session.State.User.ID, nil
}

// guild prefers the state cache and falls back to REST
func (p *Platform) guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if g, err := p.session.State.Guild(guildID); err == nil {
		return g, nil
	}
	g, err := p.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch guild %s: %w", guildID, err)
	}
	return g, nil
}

// member prefers the state cache and falls back to REST
func (p *Platform) member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if m, err := p.session.State.Member(guildID, userID); err == nil {
		return m, nil
	}
	return p.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
}

// Self returns the bot's own member in a guild
func (p *Platform) Self(ctx context.Context, guildID string) (moderation.Member, error) {
	id, err := p.selfID()
	if err != nil {
		return moderation.Member{}, err
	}
	m, err := p.ResolveMember(ctx, guildID, id)
	if err != nil {
		return moderation.Member{}, err
	}
	if m == nil {
		return moderation.Member{}, fmt.Errorf("discord: not a member of guild %s", guildID)
	}
	return *m, nil
}

// SelfCan checks the bot's guild-level permissions
func (p *Platform) SelfCan(ctx context.Context, guildID string, capability commands.Capability) (bool, error) {
	id, err := p.selfID()
	if err != nil {
		return false, err
	}
	g, err := p.guild(ctx, guildID)
	if err != nil {
		return false, err
	}
	m, err := p.member(ctx, guildID, id)
	if err != nil {
		return false, fmt.Errorf("fetch own member: %w", err)
	}
	return capabilities(guildPermissions(g, id, m.Roles)).Has(capability), nil
}

// ResolveMember returns nil when the user is not in the guild
func (p *Platform) ResolveMember(ctx context.Context, guildID, userID string) (*moderation.Member, error) {
	ctx, span := tracing.PlatformSpan(ctx, "discord.resolve_member", "")
	defer span.End()

	g, err := p.guild(ctx, guildID)
	if err != nil {
		tracing.EndWithError(span, err)
		return nil, err
	}
	m, err := p.member(ctx, guildID, userID)
	if isCode(err, discordgo.ErrCodeUnknownMember) || isStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		tracing.EndWithError(span, err)
		return nil, fmt.Errorf("fetch member %s: %w", userID, err)
	}
	member := toMember(g, m)
	return &member, nil
}

// Ban bans a user, deleting deleteDays of their messages
func (p *Platform) Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	ctx, span := tracing.PlatformSpan(ctx, "discord.ban", "")
	defer span.End()

	err := p.session.GuildBanCreateWithReason(guildID, userID, reason, deleteDays, discordgo.WithContext(ctx))
	tracing.EndWithError(span, err)
	return err
}

// Unban lifts a ban
func (p *Platform) Unban(ctx context.Context, guildID, userID, reason string) error {
	ctx, span := tracing.PlatformSpan(ctx, "discord.unban", "")
	defer span.End()

	err := p.session.GuildBanDelete(guildID, userID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if isCode(err, discordgo.ErrCodeUnknownBan) {
		err = fmt.Errorf("user %s is not banned: %w", userID, err)
	}
	tracing.EndWithError(span, err)
	return err
}

// Kick removes a member from the guild
func (p *Platform) Kick(ctx context.Context, guildID, userID, reason string) error {
	ctx, span := tracing.PlatformSpan(ctx, "discord.kick", "")
	defer span.End()

	err := p.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
	tracing.EndWithError(span, err)
	return err
}

// Timeout applies a communication timeout until the given time
func (p *Platform) Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	ctx, span := tracing.PlatformSpan(ctx, "discord.timeout", "")
	defer span.End()

	err := p.session.GuildMemberTimeout(guildID, userID, &until, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	tracing.EndWithError(span, err)
	return err
}

// RemoveTimeout clears a member's timeout
func (p *Platform) RemoveTimeout(ctx context.Context, guildID, userID, reason string) error {
	ctx, span := tracing.PlatformSpan(ctx, "discord.remove_timeout", "")
	defer span.End()

	err := p.session.GuildMemberTimeout(guildID, userID, nil, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	tracing.EndWithError(span, err)
	return err
}

// SetNickname changes or, with an empty nick, resets a member's nickname
func (p *Platform) SetNickname(ctx context.Context, guildID, userID, nick, reason string) error {
	ctx, span := tracing.PlatformSpan(ctx, "discord.set_nickname", "")
	defer span.End()

	err := p.session.GuildMemberNickname(guildID, userID, nick, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	tracing.EndWithError(span, err)
	return err
}

// Latency reports the last heartbeat round trip and times a REST call
func (p *Platform) Latency(ctx context.Context) (commands.Latency, error) {
	ctx, span := tracing.PlatformSpan(ctx, "discord.ping", "")
	defer span.End()

	start := time.Now()
	if _, err := p.session.User("@me", discordgo.WithContext(ctx)); err != nil {
		tracing.EndWithError(span, err)
		return commands.Latency{}, fmt.Errorf("fetch current user: %w", err)
	}
	return commands.Latency{
		Gateway: p.session.HeartbeatLatency(),
		REST:    time.Since(start),
	}, nil
}

// ModeratableChannels lists text channels where the bot can read history
// and delete messages.
func (p *Platform) ModeratableChannels(ctx context.Context, guildID string) ([]string, error) {
	id, err := p.selfID()
	if err != nil {
		return nil, err
	}
	channels, err := p.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	var ids []string
	for _, ch := range channels {
		if !isTextChannel(ch) {
			continue
		}
		perms, err := p.session.UserChannelPermissions(id, ch.ID, discordgo.WithContext(ctx))
		if err != nil {
			log.Debug().Err(err).Str("guild", guildID).Str("channel", ch.ID).Msg("discord: could not compute channel permissions")
			continue
		}
		if perms&purgeChannelPerms == purgeChannelPerms {
			ids = append(ids, ch.ID)
		}
	}
	return ids, nil
}

// DirectMessage sends msg to a user's DM channel
func (p *Platform) DirectMessage(ctx context.Context, userID string, msg render.Message) error {
	ctx, span := tracing.PlatformSpan(ctx, "discord.direct_message", "")
	defer span.End()

	ch, err := p.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		tracing.EndWithError(span, err)
		return fmt.Errorf("open dm channel: %w", err)
	}
	_, err = p.session.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{toEmbed(msg)},
	}, discordgo.WithContext(ctx))
	if isCode(err, discordgo.ErrCodeCannotSendMessagesToThisUser) {
		err = fmt.Errorf("user %s does not accept direct messages: %w", userID, err)
	}
	tracing.EndWithError(span, err)
	return err
}

// FetchPage returns up to limit messages older than before, newest first
func (p *Platform) FetchPage(ctx context.Context, channelID, before string, limit int) ([]purge.Message, error) {
	ctx, span := tracing.PlatformSpan(ctx, "discord.fetch_messages", channelID)
	defer span.End()

	msgs, err := p.session.ChannelMessages(channelID, limit, before, "", "", discordgo.WithContext(ctx))
	if err != nil {
		tracing.EndWithError(span, err)
		return nil, err
	}
	page := make([]purge.Message, 0, len(msgs))
	for _, m := range msgs {
		page = append(page, toPurgeMessage(m))
	}
	return page, nil
}

// BatchDelete removes up to purge.MaxBatch messages in one call
func (p *Platform) BatchDelete(ctx context.Context, channelID string, ids []string) (int, error) {
	ctx, span := tracing.PlatformSpan(ctx, "discord.bulk_delete", channelID)
	defer span.End()

	if len(ids) == 0 {
		return 0, nil
	}
	if len(ids) > purge.MaxBatch {
		ids = ids[:purge.MaxBatch]
	}
	if err := p.session.ChannelMessagesBulkDelete(channelID, ids, discordgo.WithContext(ctx)); err != nil {
		tracing.EndWithError(span, err)
		return 0, err
	}
	return len(ids), nil
}

func toPurgeMessage(m *discordgo.Message) purge.Message {
	msg := purge.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Pinned:    m.Pinned,
		CreatedAt: m.Timestamp,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorBot = m.Author.Bot
	}
	if msg.CreatedAt.IsZero() {
		if ts, err := discordgo.SnowflakeTimestamp(m.ID); err == nil {
			msg.CreatedAt = ts
		}
	}
	return msg
}

func toMember(g *discordgo.Guild, m *discordgo.Member) moderation.Member {
	member := moderation.Member{RoleIDs: m.Roles, Nick: m.Nick}
	if m.User != nil {
		member.ID = m.User.ID
		member.Username = m.User.Username
		member.Bot = m.User.Bot
	}
	member.Position = effectivePosition(g, member.ID, m.Roles)
	return member
}

// effectivePosition is the highest position among the member's roles. The
// owner outranks everyone; a member with no roles sits at 0.
func effectivePosition(g *discordgo.Guild, userID string, roleIDs []string) int {
	if userID != "" && userID == g.OwnerID {
		return ownerPosition
	}
	held := make(map[string]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		held[id] = struct{}{}
	}
	pos := 0
	for _, r := range g.Roles {
		if _, ok := held[r.ID]; ok && r.Position > pos {
			pos = r.Position
		}
	}
	return pos
}

// allPermissions sets every permission bit, including ones newer than
// discordgo.PermissionAll.
const allPermissions int64 = 1<<63 - 1

// guildPermissions combines @everyone with the member's roles, ignoring
// channel overwrites.
func guildPermissions(g *discordgo.Guild, userID string, roleIDs []string) int64 {
	if userID == g.OwnerID {
		return allPermissions
	}
	held := make(map[string]struct{}, len(roleIDs)+1)
	held[g.ID] = struct{}{}
	for _, id := range roleIDs {
		held[id] = struct{}{}
	}
	var perms int64
	for _, r := range g.Roles {
		if _, ok := held[r.ID]; ok {
			perms |= r.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return allPermissions
	}
	return perms
}

var capabilityBits = []struct {
	perm int64
	cap  commands.Capability
}{
	{discordgo.PermissionBanMembers, commands.CapBan},
	{discordgo.PermissionKickMembers, commands.CapKick},
	{discordgo.PermissionModerateMembers, commands.CapModerate},
	{discordgo.PermissionManageMessages, commands.CapManageMessages},
	{discordgo.PermissionManageServer, commands.CapManageGuild},
	{discordgo.PermissionManageNicknames, commands.CapManageNicknames},
}

// capabilities maps platform permission bits to moderation capabilities
func capabilities(perms int64) commands.Capability {
	admin := perms&discordgo.PermissionAdministrator != 0
	var c commands.Capability
	for _, b := range capabilityBits {
		if admin || perms&b.perm != 0 {
			c |= b.cap
		}
	}
	return c
}

func isTextChannel(ch *discordgo.Channel) bool {
	return ch.Type == discordgo.ChannelTypeGuildText || ch.Type == discordgo.ChannelTypeGuildNews
}

// isCode reports whether err is a REST error carrying the given JSON code
func isCode(err error, code int) bool {
	var rest *discordgo.RESTError
	return errors.As(err, &rest) && rest.Message != nil && rest.Message.Code == code
}

func isStatus(err error, status int) bool {
	var rest *discordgo.RESTError
	return errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == status
}
