package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/soundleaf/soundleaf/internal/domain"
)

// GetOverviewStats returns all-time started/completed counts and total
// listening time across the history ledger, including entries whose book has
// been deleted.
func (s *Store) GetOverviewStats(ctx context.Context) (*domain.OverviewStats, error) {
	var stats domain.OverviewStats

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(completed_at)
		FROM book_history`).Scan(&stats.BooksStarted, &stats.BooksCompleted)
	if err != nil {
		return nil, err
	}

	var total sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT SUM(duration_ms) FROM listening_sessions`).Scan(&total)
	if err != nil {
		return nil, err
	}
	if total.Valid {
		stats.TotalListenTimeMs = total.Int64
	}

	return &stats, nil
}

// GetBookStats returns listening detail for one history entry.
func (s *Store) GetBookStats(ctx context.Context, historyID string) (*domain.BookStats, error) {
	history, err := s.GetBookHistory(ctx, historyID)
	if err != nil {
		return nil, err
	}

	var (
		total sql.NullInt64
		days  int
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT SUM(duration_ms), COUNT(DISTINCT session_date)
		FROM listening_sessions WHERE book_history_id = ?`, historyID).Scan(&total, &days)
	if err != nil {
		return nil, err
	}

	stats := &domain.BookStats{
		History:      history,
		DaysListened: days,
	}
	if total.Valid {
		stats.ListenTimeMs = total.Int64
	}
	return stats, nil
}

// GetMonthlyCompletions buckets completed books by calendar month.
// A zero year returns all months. Months with no completions are omitted.
func (s *Store) GetMonthlyCompletions(ctx context.Context, year int) ([]*domain.MonthlyCompletions, error) {
	// completed_at is stored as RFC3339; the YYYY-MM prefix is the month.
	query := `
		SELECT substr(completed_at, 1, 7) AS month, COUNT(*)
		FROM book_history
		WHERE completed_at IS NOT NULL`
	args := []any{}
	if year > 0 {
		query += ` AND substr(completed_at, 1, 4) = ?`
		args = append(args, fmt.Sprintf("%04d", year))
	}
	query += ` GROUP BY month ORDER BY month ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []*domain.MonthlyCompletions
	for rows.Next() {
		var mc domain.MonthlyCompletions
		if err := rows.Scan(&mc.Month, &mc.Count); err != nil {
			return nil, err
		}
		buckets = append(buckets, &mc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return buckets, nil
}

// GetDailyListening buckets listening time by calendar day. A zero year
// returns everything; a zero month with a year returns the whole year.
// Days with no listening are omitted.
func (s *Store) GetDailyListening(ctx context.Context, year int, month time.Month) ([]*domain.DailyListening, error) {
	query := `
		SELECT session_date, SUM(duration_ms)
		FROM listening_sessions`
	args := []any{}
	switch {
	case year > 0 && month > 0:
		query += ` WHERE session_date LIKE ?`
		args = append(args, fmt.Sprintf("%04d-%02d-%%", year, int(month)))
	case year > 0:
		query += ` WHERE session_date LIKE ?`
		args = append(args, fmt.Sprintf("%04d-%%", year))
	}
	query += ` GROUP BY session_date ORDER BY session_date ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []*domain.DailyListening
	for rows.Next() {
		var dl domain.DailyListening
		if err := rows.Scan(&dl.Date, &dl.ListenTimeMs); err != nil {
			return nil, err
		}
		buckets = append(buckets, &dl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return buckets, nil
}
