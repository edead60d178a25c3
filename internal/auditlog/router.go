package auditlog

import (
	"context"
	"fmt"

	"gavel/internal/metrics"
	"gavel/internal/render"

	"github.com/rs/zerolog/log"
)

// Sender posts a rendered message to a channel
type Sender interface {
	Send(ctx context.Context, channelID string, msg render.Message) error
}

// Router delivers activity to the log channel configured for its category
type Router struct {
	store  ConfigStore
	sender Sender
}

// NewRouter creates a Router
func NewRouter(store ConfigStore, sender Sender) *Router {
	return &Router{store: store, sender: sender}
}

// Route sends msg to the guild's channel for category. Unconfigured
// categories are dropped and reported as not delivered.
func (r *Router) Route(ctx context.Context, guildID string, category Category, msg render.Message) (bool, error) {
	channelID, err := r.store.GetLogChannel(ctx, guildID, category)
	if err != nil {
		metrics.ActivityLogsTotal.WithLabelValues(string(category), "error").Inc()
		return false, fmt.Errorf("lookup log channel: %w", err)
	}
	if channelID == "" {
		metrics.ActivityLogsTotal.WithLabelValues(string(category), "unconfigured").Inc()
		return false, nil
	}

	// Log messages are posted publicly in the log channel
	msg.Ephemeral = false
	if err := r.sender.Send(ctx, channelID, msg); err != nil {
		metrics.ActivityLogsTotal.WithLabelValues(string(category), "error").Inc()
		return false, fmt.Errorf("send to log channel %s: %w", channelID, err)
	}

	metrics.ActivityLogsTotal.WithLabelValues(string(category), "sent").Inc()
	return true, nil
}

// Dispatch is Route for event handlers: failures are logged, not returned.
func (r *Router) Dispatch(ctx context.Context, guildID string, category Category, msg render.Message) {
	if _, err := r.Route(ctx, guildID, category, msg); err != nil {
		log.Warn().Err(err).
			Str("guild", guildID).
			Str("category", string(category)).
			Msg("auditlog: failed to deliver activity log")
	}
}
