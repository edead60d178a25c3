package moderation

import (
	"context"
)

// RecordStore persists the durable side effects of moderation commands.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	// Warnings
	CreateWarning(ctx context.Context, w Warning) (int64, error)
	ListWarnings(ctx context.Context, guildID, userID string) ([]Warning, error)
	DeleteWarning(ctx context.Context, guildID string, id int64) (int64, error)
	ClearWarnings(ctx context.Context, guildID, userID string) (int64, error)

	// Notes
	CreateNote(ctx context.Context, n Note) (int64, error)
	ListNotes(ctx context.Context, guildID, userID string) ([]Note, error)
	DeleteNote(ctx context.Context, guildID string, id int64) (int64, error)
	ClearNotes(ctx context.Context, guildID, userID string) (int64, error)
}

// AuditStore keeps the trail of completed moderation actions.
type AuditStore interface {
	LogAction(ctx context.Context, entry AuditEntry) error
	ListAuditLog(ctx context.Context, guildID string, limit int) ([]AuditEntry, error)
}
