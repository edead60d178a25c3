package discord

import (
	"gavel/internal/auditlog"
	"gavel/internal/commands"

	"github.com/bwmarrin/discordgo"
)

func userOption(description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "user",
		Description: description,
		Required:    required,
	}
}

func reasonOption(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Why this action is being taken",
		Required:    required,
		MaxLength:   commands.MaxReasonLength,
	}
}

func intOption(name, description string, required bool, lo, hi float64) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: description,
		Required:    required,
		MinValue:    &lo,
		MaxValue:    hi,
	}
}

func deleteDaysOption() *discordgo.ApplicationCommandOption {
	return intOption("delete_days", "Days of their messages to delete (0-7)", false, 0, commands.MaxDeleteDays)
}

func idOption(description string) *discordgo.ApplicationCommandOption {
	return intOption("id", description, true, 1, 1<<53)
}

func pageOption() *discordgo.ApplicationCommandOption {
	return intOption("page", "Page to show", false, 1, commands.MaxPage)
}

var nickMin = 1

func categoryOption() *discordgo.ApplicationCommandOption {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(auditlog.AllCategories()))
	for _, c := range auditlog.AllCategories() {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: string(c), Value: string(c)})
	}
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "category",
		Description: "Activity category; omit to list the current configuration",
		Choices:     choices,
	}
}

// commandOptions declares the options each command reads
var commandOptions = map[string][]*discordgo.ApplicationCommandOption{
	"ban":    {userOption("User to ban", true), reasonOption(false), deleteDaysOption()},
	"unban":  {userOption("User to unban", true), reasonOption(false)},
	"kick":   {userOption("Member to kick", true), reasonOption(false)},
	"mute": {
		userOption("Member to time out", true),
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "duration",
			Description: "How long, e.g. 10m, 2h, 1d12h (max 28d)",
			Required:    true,
		},
		reasonOption(false),
	},
	"unmute": {userOption("Member whose timeout to remove", true), reasonOption(false)},
	"clear": {
		intOption("amount", "Number of recent messages to scan (1-100)", true, 1, 100),
		userOption("Only delete messages from this user", false),
		{
			Type:        discordgo.ApplicationCommandOptionBoolean,
			Name:        "bots_only",
			Description: "Only delete messages from bots",
		},
	},
	"purge": {
		userOption("User whose messages to delete", true),
		intOption("limit", "Messages to delete per channel (1-100)", false, 1, 100),
	},
	"massban": {
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "users",
			Description: "User IDs or mentions separated by spaces",
			Required:    true,
		},
		reasonOption(false),
		deleteDaysOption(),
	},
	"warn":       {userOption("Member to warn", true), reasonOption(true)},
	"warnings":   {userOption("Member whose warnings to list", true), pageOption()},
	"delwarn":    {idOption("Warning ID")},
	"clearwarns": {userOption("Member whose warnings to delete", true), reasonOption(false)},
	"note": {
		userOption("User to add a note to", true),
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "content",
			Description: "Note text",
			Required:    true,
			MaxLength:   commands.MaxNoteLength,
		},
	},
	"notes":      {userOption("User whose notes to list", true), pageOption()},
	"delnote":    {idOption("Note ID")},
	"clearnotes": {userOption("User whose notes to delete", true)},
	"nickname": {
		userOption("Member to rename", true),
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "nickname",
			Description: "New nickname; omit to reset to their username",
			MinLength:   &nickMin,
			MaxLength:   commands.MaxNickLength,
		},
	},
	"logchannel": {
		categoryOption(),
		{
			Type:         discordgo.ApplicationCommandOptionChannel,
			Name:         "channel",
			Description:  "Channel to log to; omit to stop logging the category",
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews},
		},
	},
	"modlog": {intOption("limit", "Entries to show (1-25)", false, 1, commands.MaxModLog)},
	"ping":   nil,
}

// capabilityPerms is the inverse of capabilityBits
func capabilityPerms(c commands.Capability) int64 {
	var perms int64
	for _, b := range capabilityBits {
		if c.Has(b.cap) {
			perms |= b.perm
		}
	}
	return perms
}

// ApplicationCommands builds the slash command schema for the command
// table. With restrict set, each command is hidden from members lacking
// its platform permission; leave it unset when staff roles grant access.
func ApplicationCommands(cmds []commands.Command, restrict bool) []*discordgo.ApplicationCommand {
	dm := false
	schema := make([]*discordgo.ApplicationCommand, 0, len(cmds))
	for _, c := range cmds {
		ac := &discordgo.ApplicationCommand{
			Name:         c.Name,
			Description:  c.Description,
			DMPermission: &dm,
			Options:      commandOptions[c.Name],
		}
		if restrict && c.Capability != 0 {
			perms := capabilityPerms(c.Capability)
			ac.DefaultMemberPermissions = &perms
		}
		schema = append(schema, ac)
	}
	return schema
}
