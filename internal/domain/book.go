// Package domain contains the core business entities and domain logic for the
// Soundleaf audiobook library.
package domain

import "time"

// Book represents an audiobook in the library. Books are imported from a
// folder on disk; the folder path is the natural key preventing duplicate
// import of the same directory.
type Book struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author,omitempty"`
	CoverPath     string    `json:"cover_path,omitempty"`
	CoverBlurHash string    `json:"cover_blurhash,omitempty"`
	FolderPath    string    `json:"folder_path"`
	// TotalDurationMs is 0 until chapter durations have been discovered.
	// Import may seed a provisional value from container metadata hints;
	// runtime discovery overwrites it once every chapter has reported.
	TotalDurationMs int64     `json:"total_duration_ms"`
	CreatedAt       time.Time `json:"created_at"`

	Chapters []Chapter `json:"chapters,omitempty"`
}

// Chapter is one playable audio file within a book. Position is a 0-based
// ordinal, unique within the book, and defines playback order. Chapters are
// immutable once imported except for DurationMs.
type Chapter struct {
	ID     string `json:"id"`
	BookID string `json:"book_id"`
	Title  string `json:"title"`
	// FilePath references the chapter's audio file on disk.
	FilePath string `json:"file_path"`
	// DurationMs is 0 until discovered, either from a container metadata
	// hint at import time or from the audio unit at playback time.
	DurationMs int64 `json:"duration_ms"`
	Position   int   `json:"position"`
}

// ChapterAt returns the chapter at the given position, or nil if out of range.
func (b *Book) ChapterAt(position int) *Chapter {
	if position < 0 || position >= len(b.Chapters) {
		return nil
	}
	return &b.Chapters[position]
}

// ChapterIndexByID returns the position of the chapter with the given id,
// or -1 if the book has no such chapter.
func (b *Book) ChapterIndexByID(chapterID string) int {
	for i := range b.Chapters {
		if b.Chapters[i].ID == chapterID {
			return i
		}
	}
	return -1
}

// CumulativePositionMs converts a (chapter index, intra-chapter offset) pair
// into a book-wide offset by summing the durations of all prior chapters.
// This is a derived display value; Progress always stores the intra-chapter
// offset.
func (b *Book) CumulativePositionMs(chapterIndex int, offsetMs int64) int64 {
	total := offsetMs
	for i := 0; i < chapterIndex && i < len(b.Chapters); i++ {
		total += b.Chapters[i].DurationMs
	}
	return total
}

// FolderSource is a user-registered import root that can be rescanned.
type FolderSource struct {
	ID          string    `json:"id"`
	URI         string    `json:"uri"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}
