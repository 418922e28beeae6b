package domain

import "time"

// BookHistory is the permanent record of a book having been listened to.
// It is created lazily on first playback (not on import) and survives
// deletion of the underlying book: on delete, BookID is cleared and
// IsInLibrary is set false, but the row itself is retained for analytics.
type BookHistory struct {
	ID string `json:"id"`
	// BookID is nil once the underlying book has been removed.
	BookID *string `json:"book_id,omitempty"`

	// Snapshot of the book at history-creation time, so analytics keep
	// working after the book is gone.
	Title           string `json:"title"`
	Author          string `json:"author,omitempty"`
	CoverPath       string `json:"cover_path,omitempty"`
	TotalDurationMs int64  `json:"total_duration_ms"`

	StartedAt time.Time `json:"started_at"`
	// CompletedAt is set at most once; a finished book never becomes
	// unfinished again.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	IsInLibrary bool       `json:"is_in_library"`
}

// Completed reports whether the book has been finished.
func (h *BookHistory) Completed() bool {
	return h.CompletedAt != nil
}

// ListeningSession accumulates wall-clock time spent actually playing,
// bucketed by calendar day. Keyed uniquely by (BookHistoryID, SessionDate);
// repeated accumulation for the same day increments rather than duplicates.
// This is "time listened", distinct from "position reached".
type ListeningSession struct {
	ID            string `json:"id"`
	BookHistoryID string `json:"book_history_id"`
	// SessionDate is the calendar day in YYYY-MM-DD form.
	SessionDate string `json:"session_date"`
	DurationMs  int64  `json:"duration_ms"`
}

// SessionDateFormat is the layout for ListeningSession.SessionDate.
const SessionDateFormat = "2006-01-02"

// SessionDateOf returns the day bucket for a point in time, in local time.
func SessionDateOf(t time.Time) string {
	return t.Local().Format(SessionDateFormat)
}
