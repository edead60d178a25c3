package boltstore

import (
	"context"
	"encoding/json"
	"fmt"

	"gavel/internal/moderation"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// AuditStore keeps the moderation audit trail, partitioned by guild.
type AuditStore struct {
	db *bolt.DB
}

var _ moderation.AuditStore = (*AuditStore)(nil)

// LogAction stores a moderation action in the audit log. An empty ID is
// replaced with a random one.
func (s *AuditStore) LogAction(ctx context.Context, entry moderation.AuditEntry) error {
	if entry.GuildID == "" {
		return fmt.Errorf("audit entry has no guild")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketAuditLog)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketAuditLog)
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal audit entry: %w", err)
		}

		// Zero-padded timestamp keeps keys in chronological order within a guild
		key := fmt.Sprintf("%s/%020d:%s", entry.GuildID, entry.Timestamp.UnixNano(), entry.ID)
		return bucket.Put([]byte(key), data)
	})
}

// ListAuditLog returns up to limit entries for a guild, newest first.
func (s *AuditStore) ListAuditLog(ctx context.Context, guildID string, limit int) ([]moderation.AuditEntry, error) {
	if limit <= 0 {
		return nil, nil
	}

	var entries []moderation.AuditEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketAuditLog)
		if bucket == nil {
			return nil
		}

		prefix := guildPrefix(guildID)
		// '0' sorts directly after '/', so this seeks just past the guild's keys
		end := append([]byte(guildID), '0')

		c := bucket.Cursor()
		k, v := c.Seek(end)
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}

		for ; k != nil && hasPrefix(k, prefix) && len(entries) < limit; k, v = c.Prev() {
			var entry moderation.AuditEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue // Skip malformed entries
			}
			entries = append(entries, entry)
		}
		return nil
	})

	return entries, err
}
