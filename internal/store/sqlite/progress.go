package sqlite

import (
	"context"
	"database/sql"

	"github.com/soundleaf/soundleaf/internal/domain"
	"github.com/soundleaf/soundleaf/internal/store"
)

// UpsertProgress creates or replaces the resume point for a book.
func (s *Store) UpsertProgress(ctx context.Context, p *domain.Progress) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO progress (book_id, current_chapter_id, position_ms, last_played_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(book_id) DO UPDATE SET
			current_chapter_id = excluded.current_chapter_id,
			position_ms = excluded.position_ms,
			last_played_at = excluded.last_played_at`,
		p.BookID,
		p.CurrentChapterID,
		p.PositionMs,
		formatTime(p.LastPlayedAt),
	)
	return err
}

// GetProgress retrieves the resume point for a book.
// Returns store.ErrNotFound if the book has never been played.
func (s *Store) GetProgress(ctx context.Context, bookID string) (*domain.Progress, error) {
	var p domain.Progress
	var lastPlayed string

	err := s.db.QueryRowContext(ctx, `
		SELECT book_id, current_chapter_id, position_ms, last_played_at
		FROM progress WHERE book_id = ?`, bookID).Scan(
		&p.BookID,
		&p.CurrentChapterID,
		&p.PositionMs,
		&lastPlayed,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.LastPlayedAt, err = parseTime(lastPlayed)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProgress removes the resume point for a book.
// Deleting a nonexistent row is a no-op.
func (s *Store) DeleteProgress(ctx context.Context, bookID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM progress WHERE book_id = ?`, bookID)
	return err
}
