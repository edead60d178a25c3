package discord

import (
	"context"
	"fmt"
	"sync"

	"gavel/internal/confirm"
	"gavel/internal/render"

	"github.com/bwmarrin/discordgo"
)

// listener receives clicks on a set of component IDs
type listener struct {
	actorID   string
	ids       []string
	ch        chan confirm.Event
	remaining int // 0 means unlimited
	closed    bool
}

// registry maps component custom IDs to the prompt waiting on them
type registry struct {
	mu        sync.Mutex
	listeners map[string]*listener
}

func newRegistry() *registry {
	return &registry{listeners: make(map[string]*listener)}
}

// clickResult says how a component click was handled
type clickResult int

const (
	clickUnknown clickResult = iota // no prompt is waiting on this component
	clickForeign                    // someone other than the owner clicked
	clickAccepted
)

func (r *registry) subscribe(sub confirm.Subscription) (<-chan confirm.Event, func()) {
	size := sub.Max
	if size <= 0 {
		size = len(sub.ActionIDs)
	}
	l := &listener{
		actorID:   sub.ActorID,
		ids:       sub.ActionIDs,
		ch:        make(chan confirm.Event, size),
		remaining: sub.Max,
	}

	r.mu.Lock()
	for _, id := range sub.ActionIDs {
		r.listeners[id] = l
	}
	r.mu.Unlock()

	stop := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.detach(l)
		if !l.closed {
			l.closed = true
			close(l.ch)
		}
	}
	return l.ch, stop
}

// detach removes l's IDs. Callers hold r.mu.
func (r *registry) detach(l *listener) {
	for _, id := range l.ids {
		if r.listeners[id] == l {
			delete(r.listeners, id)
		}
	}
}

// click delivers a component click to its listener
func (r *registry) click(actorID, customID string) clickResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.listeners[customID]
	if !ok || l.closed {
		return clickUnknown
	}
	if l.actorID != "" && l.actorID != actorID {
		return clickForeign
	}

	select {
	case l.ch <- confirm.Event{ActorID: actorID, ActionID: customID}:
	default:
		// Buffer full: the prompt already has a pending event to settle on
		return clickAccepted
	}
	if l.remaining > 0 {
		l.remaining--
		if l.remaining == 0 {
			r.detach(l)
		}
	}
	return clickAccepted
}

// interactionGateway is the confirm.Gateway for one slash command
// interaction. The first Reply answers the interaction; later replies are
// sent as followups.
type interactionGateway struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
	registry    *registry

	mu        sync.Mutex
	responded bool
	// deferred is set while a deferred acknowledgement awaits its first reply
	deferred bool
}

var _ confirm.Gateway = (*interactionGateway)(nil)

func (g *interactionGateway) Reply(ctx context.Context, msg render.Message, actions []render.Action) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	embeds := []*discordgo.MessageEmbed{toEmbed(msg)}
	components := toComponents(actions)

	if g.deferred {
		_, err := g.session.InteractionResponseEdit(g.interaction, &discordgo.WebhookEdit{
			Embeds:     &embeds,
			Components: &components,
		}, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("fill deferred response: %w", err)
		}
		g.deferred = false
		return nil
	}

	if g.responded {
		_, err := g.session.FollowupMessageCreate(g.interaction, true, &discordgo.WebhookParams{
			Embeds:     embeds,
			Components: components,
			Flags:      responseFlags(msg),
		}, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("send followup: %w", err)
		}
		return nil
	}

	err := g.session.InteractionRespond(g.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     embeds,
			Components: components,
			Flags:      responseFlags(msg),
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("respond to interaction: %w", err)
	}
	g.responded = true
	return nil
}

// deferReply acknowledges the interaction with an ephemeral placeholder.
// The next Reply fills it in, so that reply is ephemeral whatever it asks for.
func (g *interactionGateway) deferReply(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	err := g.session.InteractionRespond(g.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("defer interaction response: %w", err)
	}
	g.responded = true
	g.deferred = true
	return nil
}

func (g *interactionGateway) EditReply(ctx context.Context, msg render.Message, actions []render.Action) error {
	embeds := []*discordgo.MessageEmbed{toEmbed(msg)}
	components := toComponents(actions)
	_, err := g.session.InteractionResponseEdit(g.interaction, &discordgo.WebhookEdit{
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("edit interaction response: %w", err)
	}
	return nil
}

func (g *interactionGateway) OnUserAction(_ context.Context, sub confirm.Subscription) (<-chan confirm.Event, func(), error) {
	if len(sub.ActionIDs) == 0 {
		return nil, nil, fmt.Errorf("subscribe: no action IDs")
	}
	events, stop := g.registry.subscribe(sub)
	return events, stop, nil
}
