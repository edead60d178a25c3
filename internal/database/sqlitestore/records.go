package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gavel/internal/moderation"
)

// RecordStore implements moderation.RecordStore using SQLite.
type RecordStore struct {
	db *sql.DB
}

// Ensure RecordStore implements the interface at compile time.
var _ moderation.RecordStore = (*RecordStore)(nil)

// ========== Warnings ==========

func (s *RecordStore) CreateWarning(ctx context.Context, w moderation.Warning) (int64, error) {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO warnings (guild_id, user_id, moderator_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, w.GuildID, w.UserID, w.ModeratorID, w.Reason, w.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("create warning: %w", err)
	}
	return res.LastInsertId()
}

func (s *RecordStore) ListWarnings(ctx context.Context, guildID, userID string) ([]moderation.Warning, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, moderator_id, reason, created_at
		FROM warnings WHERE guild_id = ? AND user_id = ?
		ORDER BY created_at DESC, id DESC
	`, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("list warnings: %w", err)
	}
	defer rows.Close()

	var warnings []moderation.Warning
	for rows.Next() {
		var w moderation.Warning
		var createdAtStr string
		if err := rows.Scan(&w.ID, &w.GuildID, &w.UserID, &w.ModeratorID, &w.Reason, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan warning: %w", err)
		}
		w.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

func (s *RecordStore) DeleteWarning(ctx context.Context, guildID string, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM warnings WHERE guild_id = ? AND id = ?`, guildID, id)
	if err != nil {
		return 0, fmt.Errorf("delete warning: %w", err)
	}
	return res.RowsAffected()
}

func (s *RecordStore) ClearWarnings(ctx context.Context, guildID, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM warnings WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	if err != nil {
		return 0, fmt.Errorf("clear warnings: %w", err)
	}
	return res.RowsAffected()
}

// ========== Notes ==========

func (s *RecordStore) CreateNote(ctx context.Context, n moderation.Note) (int64, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (guild_id, user_id, author_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, n.GuildID, n.UserID, n.AuthorID, n.Content, n.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("create note: %w", err)
	}
	return res.LastInsertId()
}

func (s *RecordStore) ListNotes(ctx context.Context, guildID, userID string) ([]moderation.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, author_id, content, created_at
		FROM notes WHERE guild_id = ? AND user_id = ?
		ORDER BY created_at DESC, id DESC
	`, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []moderation.Note
	for rows.Next() {
		var n moderation.Note
		var createdAtStr string
		if err := rows.Scan(&n.ID, &n.GuildID, &n.UserID, &n.AuthorID, &n.Content, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *RecordStore) DeleteNote(ctx context.Context, guildID string, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE guild_id = ? AND id = ?`, guildID, id)
	if err != nil {
		return 0, fmt.Errorf("delete note: %w", err)
	}
	return res.RowsAffected()
}

func (s *RecordStore) ClearNotes(ctx context.Context, guildID, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	if err != nil {
		return 0, fmt.Errorf("clear notes: %w", err)
	}
	return res.RowsAffected()
}

// CountRecords returns the number of warnings and notes stored across
// every guild
func (s *RecordStore) CountRecords(ctx context.Context) (warnings, notes int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM warnings), (SELECT COUNT(*) FROM notes)
	`).Scan(&warnings, &notes)
	if err != nil {
		return 0, 0, fmt.Errorf("count records: %w", err)
	}
	return warnings, notes, nil
}
