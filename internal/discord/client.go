// Package discord adapts the moderation core to the Discord gateway and
// REST API through discordgo.
package discord

import (
	"context"
	"fmt"
	"sync/atomic"

	"gavel/internal/auditlog"
	"gavel/internal/commands"
	"gavel/internal/metrics"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// Intents requested on identify. Message content is needed for the
// delete/edit activity logs.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentGuildModeration |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent

// messageCacheSize is how many messages per channel the state keeps so
// deleted and edited messages can still be logged with their content.
const messageCacheSize = 200

// Client owns the gateway session and wires platform events to the core
type Client struct {
	session   *discordgo.Session
	platform  *Platform
	registry  *registry
	handler   *commands.Handler
	activity  *auditlog.Router
	connected atomic.Bool

	// ctx is the lifetime of the connection; event handlers derive from it
	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a session for the bot token. Nothing connects until Open.
func NewClient(token string) (*Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.Identify.Intents = Intents
	s.State.MaxMessageCount = messageCacheSize
	s.State.TrackMembers = true
	s.State.TrackRoles = true
	s.State.TrackChannels = true

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		session:  s,
		platform: NewPlatform(s),
		registry: newRegistry(),
		ctx:      ctx,
		cancel:   cancel,
	}

	s.AddHandler(c.onConnect)
	s.AddHandler(c.onDisconnect)
	s.AddHandler(c.onReady)
	s.AddHandler(c.onGuildCreate)
	s.AddHandler(c.onGuildDelete)
	s.AddHandler(c.onInteraction)
	return c, nil
}

// Platform returns the platform adapter used by the command handlers
func (c *Client) Platform() *Platform {
	return c.platform
}

// SetHandler routes slash commands to h
func (c *Client) SetHandler(h *commands.Handler) {
	c.handler = h
}

// SetActivityLog enables activity logging through router
func (c *Client) SetActivityLog(router *auditlog.Router) {
	if c.activity == nil {
		c.session.AddHandler(c.onMessageDelete)
		c.session.AddHandler(c.onMessageUpdate)
		c.session.AddHandler(c.onMessageDeleteBulk)
		c.session.AddHandler(c.onMemberAdd)
		c.session.AddHandler(c.onMemberRemove)
		c.session.AddHandler(c.onBanAdd)
		c.session.AddHandler(c.onBanRemove)
		c.session.AddHandler(c.onChannelCreate)
		c.session.AddHandler(c.onChannelUpdate)
		c.session.AddHandler(c.onChannelDelete)
		c.session.AddHandler(c.onRoleCreate)
		c.session.AddHandler(c.onRoleUpdate)
		c.session.AddHandler(c.onRoleDelete)
	}
	c.activity = router
}

// Sender returns a Sender posting to channels through this session
func (c *Client) Sender() *Sender {
	return &Sender{session: c.session}
}

// Open connects to the gateway
func (c *Client) Open() error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	return nil
}

// Close disconnects and cancels in-flight event handlers
func (c *Client) Close() error {
	c.cancel()
	return c.session.Close()
}

// RegisterCommands overwrites the application's global slash commands with
// the handler's command table. See ApplicationCommands for restrict.
func (c *Client) RegisterCommands(ctx context.Context, restrict bool) error {
	if c.handler == nil {
		return fmt.Errorf("register commands: no handler configured")
	}
	if c.session.State.User == nil {
		return fmt.Errorf("register commands: session is not ready")
	}
	schema := ApplicationCommands(c.handler.Commands(), restrict)
	registered, err := c.session.ApplicationCommandBulkOverwrite(c.session.State.User.ID, "", schema, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	log.Info().Int("count", len(registered)).Msg("discord: registered application commands")
	return nil
}

// Stats exposes connection state to the metrics collector
func (c *Client) Stats() metrics.StatsSource {
	return metrics.StatsSource{
		GuildCount:       c.guildCount,
		GatewayConnected: c.connected.Load,
	}
}

// Connected reports whether the gateway connection is up
func (c *Client) Connected() bool {
	return c.connected.Load()
}

func (c *Client) onConnect(_ *discordgo.Session, _ *discordgo.Connect) {
	c.connected.Store(true)
	metrics.GatewayConnectionState.Set(1)
	log.Info().Msg("discord: gateway connected")
}

func (c *Client) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	c.connected.Store(false)
	metrics.GatewayConnectionState.Set(0)
	log.Warn().Msg("discord: gateway disconnected")
}

func (c *Client) guildCount() int {
	c.session.State.RLock()
	defer c.session.State.RUnlock()
	return len(c.session.State.Guilds)
}

func (c *Client) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	log.Info().
		Str("user", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("discord: session ready")
}

func (c *Client) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Unavailable {
		return
	}
	metrics.GuildsTotal.Set(float64(c.guildCount()))
	log.Debug().Str("guild", g.ID).Str("name", g.Name).Msg("discord: guild available")
}

func (c *Client) onGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	metrics.GuildsTotal.Set(float64(c.guildCount()))
	log.Debug().Str("guild", g.ID).Msg("discord: guild removed")
}
