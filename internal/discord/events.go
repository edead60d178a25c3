package discord

import (
	"context"
	"fmt"
	"time"

	"gavel/internal/auditlog"
	"gavel/internal/render"
	"gavel/internal/tracing"

	"github.com/bwmarrin/discordgo"
)

// eventTimeout bounds delivery of one activity log entry
const eventTimeout = 15 * time.Second

// Sender posts rendered messages to channels
type Sender struct {
	session *discordgo.Session
}

var _ auditlog.Sender = (*Sender)(nil)

// Send posts msg as an embed in channelID
func (s *Sender) Send(ctx context.Context, channelID string, msg render.Message) error {
	ctx, span := tracing.PlatformSpan(ctx, "discord.send_message", channelID)
	defer span.End()

	_, err := s.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{toEmbed(msg)},
	}, discordgo.WithContext(ctx))
	if err != nil {
		tracing.EndWithError(span, err)
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (c *Client) dispatch(guildID string, category auditlog.Category, msg render.Message) {
	if c.activity == nil || guildID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, eventTimeout)
	defer cancel()
	c.activity.Dispatch(ctx, guildID, category, msg)
}

func (c *Client) onMessageDelete(_ *discordgo.Session, m *discordgo.MessageDelete) {
	c.dispatch(m.GuildID, auditlog.CategoryMessageDelete, deletedEvent(m).Render())
}

func (c *Client) onMessageUpdate(_ *discordgo.Session, m *discordgo.MessageUpdate) {
	ev, ok := editedEvent(m)
	if !ok {
		return
	}
	c.dispatch(m.GuildID, auditlog.CategoryMessageEdit, ev.Render())
}

func (c *Client) onMessageDeleteBulk(_ *discordgo.Session, m *discordgo.MessageDeleteBulk) {
	ev := auditlog.BulkDeleted{ChannelID: m.ChannelID, Count: len(m.Messages)}
	c.dispatch(m.GuildID, auditlog.CategoryBulkDelete, ev.Render())
}

func (c *Client) onMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil {
		return
	}
	c.dispatch(m.GuildID, auditlog.CategoryMemberJoin, memberEvent(auditlog.CategoryMemberJoin, m.User).Render())
}

func (c *Client) onMemberRemove(_ *discordgo.Session, m *discordgo.GuildMemberRemove) {
	if m.Member == nil {
		return
	}
	c.dispatch(m.GuildID, auditlog.CategoryMemberLeave, memberEvent(auditlog.CategoryMemberLeave, m.User).Render())
}

func (c *Client) onBanAdd(_ *discordgo.Session, b *discordgo.GuildBanAdd) {
	c.dispatch(b.GuildID, auditlog.CategoryBan, memberEvent(auditlog.CategoryBan, b.User).Render())
}

func (c *Client) onBanRemove(_ *discordgo.Session, b *discordgo.GuildBanRemove) {
	c.dispatch(b.GuildID, auditlog.CategoryUnban, memberEvent(auditlog.CategoryUnban, b.User).Render())
}

func (c *Client) onChannelCreate(_ *discordgo.Session, ch *discordgo.ChannelCreate) {
	if ch.Channel == nil {
		return
	}
	c.dispatch(ch.GuildID, auditlog.CategoryChannel, channelEvent(auditlog.Created, ch.Channel).Render())
}

func (c *Client) onChannelUpdate(_ *discordgo.Session, ch *discordgo.ChannelUpdate) {
	if ch.Channel == nil {
		return
	}
	c.dispatch(ch.GuildID, auditlog.CategoryChannel, channelEvent(auditlog.Updated, ch.Channel).Render())
}

func (c *Client) onChannelDelete(_ *discordgo.Session, ch *discordgo.ChannelDelete) {
	if ch.Channel == nil {
		return
	}
	c.dispatch(ch.GuildID, auditlog.CategoryChannel, channelEvent(auditlog.Deleted, ch.Channel).Render())
}

func (c *Client) onRoleCreate(_ *discordgo.Session, r *discordgo.GuildRoleCreate) {
	if r.GuildRole == nil {
		return
	}
	c.dispatch(r.GuildID, auditlog.CategoryRole, roleEvent(auditlog.Created, r.GuildRole).Render())
}

func (c *Client) onRoleUpdate(_ *discordgo.Session, r *discordgo.GuildRoleUpdate) {
	if r.GuildRole == nil {
		return
	}
	c.dispatch(r.GuildID, auditlog.CategoryRole, roleEvent(auditlog.Updated, r.GuildRole).Render())
}

func (c *Client) onRoleDelete(_ *discordgo.Session, r *discordgo.GuildRoleDelete) {
	ev := auditlog.StructureEvent{Category: auditlog.CategoryRole, Change: auditlog.Deleted, ID: r.RoleID}
	c.dispatch(r.GuildID, auditlog.CategoryRole, ev.Render())
}

// deletedEvent uses the cached copy of the message when the state had one
func deletedEvent(m *discordgo.MessageDelete) auditlog.MessageDeleted {
	ev := auditlog.MessageDeleted{ChannelID: m.ChannelID, MessageID: m.ID}
	if before := m.BeforeDelete; before != nil {
		ev.Content = before.Content
		if before.Author != nil {
			ev.AuthorID = before.Author.ID
			ev.Author = before.Author.Username
		}
	}
	return ev
}

// editedEvent reports false for updates that did not change the text, such
// as embed unfurls, and for messages without an author.
func editedEvent(m *discordgo.MessageUpdate) (auditlog.MessageEdited, bool) {
	if m.Message == nil || m.Author == nil || m.Author.Bot {
		return auditlog.MessageEdited{}, false
	}
	var before string
	if m.BeforeUpdate != nil {
		before = m.BeforeUpdate.Content
		if before == m.Content {
			return auditlog.MessageEdited{}, false
		}
	}
	return auditlog.MessageEdited{
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		AuthorID:  m.Author.ID,
		Author:    m.Author.Username,
		Before:    before,
		After:     m.Content,
	}, true
}

func memberEvent(category auditlog.Category, u *discordgo.User) auditlog.MemberEvent {
	ev := auditlog.MemberEvent{Category: category}
	if u == nil {
		return ev
	}
	ev.UserID = u.ID
	ev.Username = u.Username
	ev.Bot = u.Bot
	if ts, err := discordgo.SnowflakeTimestamp(u.ID); err == nil {
		ev.CreatedAt = ts
	}
	return ev
}

func channelEvent(change auditlog.StructureChange, ch *discordgo.Channel) auditlog.StructureEvent {
	ev := auditlog.StructureEvent{Category: auditlog.CategoryChannel, Change: change}
	if ch != nil {
		ev.ID = ch.ID
		ev.Name = ch.Name
	}
	return ev
}

func roleEvent(change auditlog.StructureChange, gr *discordgo.GuildRole) auditlog.StructureEvent {
	ev := auditlog.StructureEvent{Category: auditlog.CategoryRole, Change: change}
	if gr != nil && gr.Role != nil {
		ev.ID = gr.Role.ID
		ev.Name = gr.Role.Name
	}
	return ev
}
