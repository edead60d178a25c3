package discord

import (
	"testing"
	"time"

	"gavel/internal/commands"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func testGuild() *discordgo.Guild {
	return &discordgo.Guild{
		ID:      "g1",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "g1", Position: 0, Permissions: discordgo.PermissionViewChannel},
			{ID: "mods", Position: 5, Permissions: discordgo.PermissionKickMembers | discordgo.PermissionModerateMembers},
			{ID: "helpers", Position: 2, Permissions: discordgo.PermissionManageMessages},
			{ID: "admins", Position: 8, Permissions: discordgo.PermissionAdministrator},
		},
	}
}

func TestEffectivePosition(t *testing.T) {
	g := testGuild()

	tests := []struct {
		name  string
		user  string
		roles []string
		want  int
	}{
		{"no roles", "u1", nil, 0},
		{"single role", "u1", []string{"helpers"}, 2},
		{"highest role wins", "u1", []string{"helpers", "mods"}, 5},
		{"unknown role ignored", "u1", []string{"gone"}, 0},
		{"owner outranks everyone", "owner", nil, ownerPosition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, effectivePosition(g, tt.user, tt.roles))
		})
	}
}

func TestGuildPermissions(t *testing.T) {
	g := testGuild()

	perms := guildPermissions(g, "u1", []string{"mods"})
	assert.NotZero(t, perms&discordgo.PermissionViewChannel, "@everyone permissions apply")
	assert.NotZero(t, perms&discordgo.PermissionKickMembers)
	assert.Zero(t, perms&discordgo.PermissionBanMembers)

	assert.Equal(t, allPermissions, guildPermissions(g, "u1", []string{"admins"}))
	assert.Equal(t, allPermissions, guildPermissions(g, "owner", nil))

	every := commands.CapBan | commands.CapKick | commands.CapModerate | commands.CapManageMessages | commands.CapManageGuild | commands.CapManageNicknames
	assert.True(t, capabilities(guildPermissions(g, "u1", []string{"admins"})).Has(every))
	assert.True(t, capabilities(guildPermissions(g, "owner", nil)).Has(every))
}

func TestCapabilities(t *testing.T) {
	c := capabilities(discordgo.PermissionKickMembers | discordgo.PermissionManageMessages)
	assert.True(t, c.Has(commands.CapKick|commands.CapManageMessages))
	assert.False(t, c.Has(commands.CapBan))

	all := capabilities(discordgo.PermissionAdministrator)
	assert.True(t, all.Has(commands.CapBan|commands.CapKick|commands.CapModerate|commands.CapManageMessages|commands.CapManageGuild|commands.CapManageNicknames))
	assert.True(t, capabilities(discordgo.PermissionAdministrator|discordgo.PermissionModerateMembers).Has(commands.CapModerate))

	assert.Equal(t, commands.Capability(0), capabilities(0))
}

func TestCapabilityPermsRoundTrip(t *testing.T) {
	for _, b := range capabilityBits {
		assert.Equal(t, b.cap, capabilities(capabilityPerms(b.cap)))
	}
}

func TestToMember(t *testing.T) {
	g := testGuild()
	m := toMember(g, &discordgo.Member{
		User:  &discordgo.User{ID: "u1", Username: "alice", Bot: true},
		Nick:  "Al",
		Roles: []string{"mods"},
	})
	assert.Equal(t, "u1", m.ID)
	assert.Equal(t, "alice", m.Username)
	assert.True(t, m.Bot)
	assert.Equal(t, 5, m.Position)
	assert.Equal(t, []string{"mods"}, m.RoleIDs)
	assert.Equal(t, "Al", m.Nick)
}

func TestToPurgeMessage(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := toPurgeMessage(&discordgo.Message{
		ID:        "m1",
		ChannelID: "c1",
		Pinned:    true,
		Timestamp: ts,
		Author:    &discordgo.User{ID: "u1", Bot: true},
	})
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "c1", msg.ChannelID)
	assert.Equal(t, "u1", msg.AuthorID)
	assert.True(t, msg.AuthorBot)
	assert.True(t, msg.Pinned)
	assert.Equal(t, ts, msg.CreatedAt)
}

func TestToPurgeMessageFallsBackToSnowflakeTime(t *testing.T) {
	// 175928847299117063 is the snowflake from the platform's documentation
	msg := toPurgeMessage(&discordgo.Message{ID: "175928847299117063"})
	want, err := discordgo.SnowflakeTimestamp("175928847299117063")
	assert.NoError(t, err)
	assert.Equal(t, want, msg.CreatedAt)
	assert.Empty(t, msg.AuthorID)
}

func TestIsTextChannel(t *testing.T) {
	assert.True(t, isTextChannel(&discordgo.Channel{Type: discordgo.ChannelTypeGuildText}))
	assert.True(t, isTextChannel(&discordgo.Channel{Type: discordgo.ChannelTypeGuildNews}))
	assert.False(t, isTextChannel(&discordgo.Channel{Type: discordgo.ChannelTypeGuildVoice}))
	assert.False(t, isTextChannel(&discordgo.Channel{Type: discordgo.ChannelTypeGuildCategory}))
}

func TestIsCode(t *testing.T) {
	err := &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMember}}
	assert.True(t, isCode(err, discordgo.ErrCodeUnknownMember))
	assert.False(t, isCode(err, discordgo.ErrCodeUnknownBan))
	assert.False(t, isCode(nil, discordgo.ErrCodeUnknownMember))
	assert.False(t, isCode(&discordgo.RESTError{}, discordgo.ErrCodeUnknownMember))
}
