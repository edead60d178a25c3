// Package auditlog routes platform activity to per-guild log channels.
package auditlog

import (
	"context"
	"errors"
	"strings"
)

// Category is a kind of activity that can be logged to its own channel
type Category string

const (
	CategoryModeration    Category = "moderation"
	CategoryMessageDelete Category = "message_delete"
	CategoryMessageEdit   Category = "message_edit"
	CategoryMemberJoin    Category = "member_join"
	CategoryMemberLeave   Category = "member_leave"
	CategoryBan           Category = "ban"
	CategoryUnban         Category = "unban"
	CategoryBulkDelete    Category = "bulk_delete"
	CategoryChannel       Category = "channel"
	CategoryRole          Category = "role"
)

// AllCategories returns every category in display order
func AllCategories() []Category {
	return []Category{
		CategoryModeration,
		CategoryMessageDelete,
		CategoryMessageEdit,
		CategoryMemberJoin,
		CategoryMemberLeave,
		CategoryBan,
		CategoryUnban,
		CategoryBulkDelete,
		CategoryChannel,
		CategoryRole,
	}
}

// ErrUnknownCategory is returned when parsing an unrecognised category name
var ErrUnknownCategory = errors.New("auditlog: unknown category")

// ParseCategory resolves a category name
func ParseCategory(name string) (Category, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range AllCategories() {
		if string(c) == name {
			return c, nil
		}
	}
	return "", ErrUnknownCategory
}

// ConfigStore maps (guild, category) to a log channel.
// Implementations must be safe for concurrent use.
type ConfigStore interface {
	SetLogChannel(ctx context.Context, guildID string, category Category, channelID string) error
	ClearLogChannel(ctx context.Context, guildID string, category Category) error
	// GetLogChannel returns "" when the category is not configured
	GetLogChannel(ctx context.Context, guildID string, category Category) (string, error)
	ListLogChannels(ctx context.Context, guildID string) (map[Category]string, error)
}
