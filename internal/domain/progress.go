package domain

import "time"

// Progress is the resume point for a book: at most one row per book.
// PositionMs is always an offset within CurrentChapterID's own timeline,
// never a cumulative offset across the book.
type Progress struct {
	BookID           string    `json:"book_id"`
	CurrentChapterID string    `json:"current_chapter_id"`
	PositionMs       int64     `json:"position_ms"`
	LastPlayedAt     time.Time `json:"last_played_at"`
}
