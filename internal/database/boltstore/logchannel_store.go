package boltstore

import (
	"context"
	"fmt"

	"gavel/internal/auditlog"

	bolt "go.etcd.io/bbolt"
)

// LogChannelStore maps a guild's activity categories to log channels.
type LogChannelStore struct {
	db *bolt.DB
}

var _ auditlog.ConfigStore = (*LogChannelStore)(nil)

func logChannelKey(guildID string, category auditlog.Category) []byte {
	return []byte(guildID + "/" + string(category))
}

// SetLogChannel points a category at a channel, replacing any previous one.
func (s *LogChannelStore) SetLogChannel(ctx context.Context, guildID string, category auditlog.Category, channelID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketLogChannels)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketLogChannels)
		}
		return bucket.Put(logChannelKey(guildID, category), []byte(channelID))
	})
}

// ClearLogChannel stops logging a category.
func (s *LogChannelStore) ClearLogChannel(ctx context.Context, guildID string, category auditlog.Category) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketLogChannels)
		if bucket == nil {
			return nil
		}
		return bucket.Delete(logChannelKey(guildID, category))
	})
}

// GetLogChannel returns the configured channel, or "" when there is none.
func (s *LogChannelStore) GetLogChannel(ctx context.Context, guildID string, category auditlog.Category) (string, error) {
	var channelID string
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketLogChannels)
		if bucket == nil {
			return nil
		}
		channelID = string(bucket.Get(logChannelKey(guildID, category)))
		return nil
	})
	return channelID, err
}

// ListLogChannels returns every configured category for a guild.
func (s *LogChannelStore) ListLogChannels(ctx context.Context, guildID string) (map[auditlog.Category]string, error) {
	channels := make(map[auditlog.Category]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketLogChannels)
		if bucket == nil {
			return nil
		}

		prefix := guildPrefix(guildID)
		c := bucket.Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			category := auditlog.Category(k[len(prefix):])
			channels[category] = string(v)
		}
		return nil
	})
	return channels, err
}
