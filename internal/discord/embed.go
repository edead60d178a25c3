package discord

import (
	"gavel/internal/render"

	"github.com/bwmarrin/discordgo"
)

// Embed limits enforced by the platform
const (
	maxTitle       = 256
	maxDescription = 4096
	maxFields      = 25
	maxFieldName   = 256
	maxFieldValue  = 1024
	maxFooter      = 2048
)

var toneColors = map[render.Tone]int{
	render.ToneNeutral: 0x95a5a6,
	render.ToneInfo:    0x3498db,
	render.ToneSuccess: 0x2ecc71,
	render.ToneWarning: 0xf1c40f,
	render.ToneDanger:  0xe74c3c,
}

var buttonStyles = map[render.ActionStyle]discordgo.ButtonStyle{
	render.StylePrimary:   discordgo.PrimaryButton,
	render.StyleSecondary: discordgo.SecondaryButton,
	render.StyleSuccess:   discordgo.SuccessButton,
	render.StyleDanger:    discordgo.DangerButton,
}

// toEmbed converts a rendered message into an embed, truncating every part
// to the platform limits
func toEmbed(msg render.Message) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       render.Truncate(msg.Title, maxTitle),
		Description: render.Truncate(msg.Body, maxDescription),
		Color:       toneColors[msg.Tone],
	}
	for i, f := range msg.Fields {
		if i == maxFields {
			break
		}
		value := f.Value
		if value == "" {
			// Empty field values are rejected
			value = "\u200b"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   render.Truncate(f.Name, maxFieldName),
			Value:  render.Truncate(value, maxFieldValue),
			Inline: f.Inline,
		})
	}
	if msg.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: render.Truncate(msg.Footer, maxFooter)}
	}
	return embed
}

// toComponents lays the actions out in a single row. No actions yields an
// empty, non-nil slice so edits clear any existing buttons.
func toComponents(actions []render.Action) []discordgo.MessageComponent {
	if len(actions) == 0 {
		return []discordgo.MessageComponent{}
	}
	buttons := make([]discordgo.MessageComponent, 0, len(actions))
	for _, a := range actions {
		buttons = append(buttons, discordgo.Button{
			Label:    a.Label,
			Style:    buttonStyles[a.Style],
			CustomID: a.ID,
			Disabled: a.Disabled,
		})
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

func responseFlags(msg render.Message) discordgo.MessageFlags {
	if msg.Ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}
