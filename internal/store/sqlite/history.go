package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/soundleaf/soundleaf/internal/domain"
	"github.com/soundleaf/soundleaf/internal/store"
)

// historyColumns is the ordered list of columns selected in history queries.
// Must match the scan order in scanBookHistory.
const historyColumns = `id, book_id, title, author, cover_path,
	total_duration_ms, started_at, completed_at, is_in_library`

// scanBookHistory scans a sql.Row (or sql.Rows via its Scan method) into a
// domain.BookHistory.
func scanBookHistory(scanner interface{ Scan(dest ...any) error }) (*domain.BookHistory, error) {
	var h domain.BookHistory

	var (
		bookID      sql.NullString
		author      sql.NullString
		coverPath   sql.NullString
		startedAt   string
		completedAt sql.NullString
		inLibrary   int
	)

	err := scanner.Scan(
		&h.ID,
		&bookID,
		&h.Title,
		&author,
		&coverPath,
		&h.TotalDurationMs,
		&startedAt,
		&completedAt,
		&inLibrary,
	)
	if err != nil {
		return nil, err
	}

	h.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, err
	}
	h.CompletedAt, err = parseNullableTime(completedAt)
	if err != nil {
		return nil, err
	}

	if bookID.Valid {
		h.BookID = &bookID.String
	}
	if author.Valid {
		h.Author = author.String
	}
	if coverPath.Valid {
		h.CoverPath = coverPath.String
	}
	h.IsInLibrary = inLibrary != 0

	return &h, nil
}

// CreateBookHistory inserts a history row for a book's first playback.
func (s *Store) CreateBookHistory(ctx context.Context, h *domain.BookHistory) error {
	var bookID sql.NullString
	if h.BookID != nil {
		bookID = sql.NullString{String: *h.BookID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO book_history (
			id, book_id, title, author, cover_path,
			total_duration_ms, started_at, completed_at, is_in_library
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID,
		bookID,
		h.Title,
		nullString(h.Author),
		nullString(h.CoverPath),
		h.TotalDurationMs,
		formatTime(h.StartedAt),
		nullTimeString(h.CompletedAt),
		boolToInt(h.IsInLibrary),
	)
	return err
}

// GetBookHistory retrieves a history row by id.
// Returns store.ErrNotFound if it does not exist.
func (s *Store) GetBookHistory(ctx context.Context, id string) (*domain.BookHistory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM book_history WHERE id = ?`, id)

	h, err := scanBookHistory(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// GetHistoryForBook retrieves the history row for a live book.
// Returns store.ErrNotFound if the book has never been played.
func (s *Store) GetHistoryForBook(ctx context.Context, bookID string) (*domain.BookHistory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM book_history WHERE book_id = ?`, bookID)

	h, err := scanBookHistory(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// ListBookHistory retrieves all history rows, most recently started first,
// including entries whose book has been deleted.
func (s *Store) ListBookHistory(ctx context.Context) ([]*domain.BookHistory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM book_history ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.BookHistory
	for rows.Next() {
		h, err := scanBookHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// MarkHistoryCompleted sets completed_at if and only if it is not already
// set, so replayed finish events cannot move the completion time.
func (s *Store) MarkHistoryCompleted(ctx context.Context, historyID string, completedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE book_history SET completed_at = ?
		WHERE id = ? AND completed_at IS NULL`,
		formatTime(completedAt), historyID)
	return err
}

// UpdateHistoryDuration mirrors a discovered book total into history.
func (s *Store) UpdateHistoryDuration(ctx context.Context, historyID string, totalDurationMs int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE book_history SET total_duration_ms = ? WHERE id = ?`,
		totalDurationMs, historyID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AddListeningTime accumulates listening time into the day bucket for
// (historyID, sessionDate). The first write for a day inserts a row with the
// given session id; later writes increment the existing bucket and ignore
// the id.
func (s *Store) AddListeningTime(ctx context.Context, sessionID, historyID, sessionDate string, deltaMs int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO listening_sessions (id, book_history_id, session_date, duration_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(book_history_id, session_date) DO UPDATE SET
			duration_ms = duration_ms + excluded.duration_ms`,
		sessionID, historyID, sessionDate, deltaMs)
	return err
}

// GetListeningSessions retrieves day buckets for a history entry, oldest first.
func (s *Store) GetListeningSessions(ctx context.Context, historyID string) ([]*domain.ListeningSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_history_id, session_date, duration_ms
		FROM listening_sessions WHERE book_history_id = ?
		ORDER BY session_date ASC`, historyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.ListeningSession
	for rows.Next() {
		var ls domain.ListeningSession
		if err := rows.Scan(&ls.ID, &ls.BookHistoryID, &ls.SessionDate, &ls.DurationMs); err != nil {
			return nil, err
		}
		sessions = append(sessions, &ls)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// boolToInt converts a bool to a storage int.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
