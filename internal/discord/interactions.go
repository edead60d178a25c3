package discord

import (
	"context"
	"errors"
	"time"

	"gavel/internal/commands"
	"gavel/internal/render"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// deferredCommands scan channels or resolve many members before their
// first reply, which can outlast the platform's acknowledgement window.
// Every first reply they send is ephemeral.
var deferredCommands = map[string]bool{
	"clear":   true,
	"purge":   true,
	"massban": true,
}

// invocationTimeout bounds one command run. Interaction tokens stay valid
// for 15 minutes.
const invocationTimeout = 10 * time.Minute

func (c *Client) onInteraction(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	switch ic.Type {
	case discordgo.InteractionApplicationCommand:
		c.handleCommand(ic.Interaction)
	case discordgo.InteractionMessageComponent:
		c.handleComponent(ic.Interaction)
	}
}

func (c *Client) handleCommand(i *discordgo.Interaction) {
	ctx, cancel := context.WithTimeout(c.ctx, invocationTimeout)
	defer cancel()

	if c.handler == nil || i.GuildID == "" || i.Member == nil {
		c.respondEphemeral(i, "Commands can only be used in a server.")
		return
	}

	data := i.ApplicationCommandData()
	gw := &interactionGateway{session: c.session, interaction: i, registry: c.registry}
	if deferredCommands[data.Name] {
		if err := gw.deferReply(ctx); err != nil {
			log.Warn().Err(err).Str("command", data.Name).Msg("discord: could not defer response")
			return
		}
	}

	g, err := c.platform.guild(ctx, i.GuildID)
	if err != nil {
		log.Error().Err(err).Str("guild", i.GuildID).Msg("discord: could not load guild for invocation")
		c.notice(ctx, gw, "Something went wrong. Please try again.")
		return
	}

	inv := &commands.Invocation{
		Command:   data.Name,
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Actor:     toMember(g, i.Member),
		ActorCaps: capabilities(i.Member.Permissions),
		Options:   optionValues(data.Options),
		Reply:     gw,
	}

	if err := c.handler.Handle(ctx, inv); err != nil {
		if errors.Is(err, commands.ErrUnknownCommand) {
			log.Warn().Str("command", data.Name).Msg("discord: invocation of unregistered command")
			c.notice(ctx, gw, "This command is no longer available.")
		}
		// Handle has already logged everything else
	}
}

func (c *Client) handleComponent(i *discordgo.Interaction) {
	actorID := interactionUserID(i)
	data := i.MessageComponentData()

	switch c.registry.click(actorID, data.CustomID) {
	case clickUnknown:
		c.respondEphemeral(i, "This prompt is no longer active.")
	case clickForeign:
		c.respondEphemeral(i, "Only the moderator who ran this command can respond.")
	case clickAccepted:
		// The prompt edits the original response; just acknowledge the click
		err := c.session.InteractionRespond(i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		}, discordgo.WithContext(c.ctx))
		if err != nil {
			log.Debug().Err(err).Str("custom_id", data.CustomID).Msg("discord: could not acknowledge click")
		}
	}
}

// notice sends a plain ephemeral message through gw, or as the first
// response when nothing has been sent yet
func (c *Client) notice(ctx context.Context, gw *interactionGateway, content string) {
	gw.mu.Lock()
	responded := gw.responded
	gw.mu.Unlock()
	if !responded {
		c.respondEphemeral(gw.interaction, content)
		return
	}
	if err := gw.Reply(ctx, render.Message{Body: content, Tone: render.ToneNeutral, Ephemeral: true}, nil); err != nil {
		log.Debug().Err(err).Str("interaction", gw.interaction.ID).Msg("discord: could not send notice")
	}
}

func (c *Client) respondEphemeral(i *discordgo.Interaction, content string) {
	err := c.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(c.ctx))
	if err != nil {
		log.Debug().Err(err).Str("interaction", i.ID).Msg("discord: could not send ephemeral response")
	}
}

func interactionUserID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// optionValues flattens slash command options into name/value pairs.
// User and channel options carry their snowflake as a string.
func optionValues(opts []*discordgo.ApplicationCommandInteractionDataOption) commands.Options {
	values := make(commands.Options, len(opts))
	for _, o := range opts {
		if o == nil || o.Value == nil {
			continue
		}
		values[o.Name] = o.Value
	}
	return values
}
