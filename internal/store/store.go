// Package store defines the persistence contract for the Soundleaf library.
// The SQLite implementation lives in store/sqlite; services and the playback
// engine depend only on the Store interface so tests can substitute fakes.
package store

import (
	"context"
	"time"

	"github.com/soundleaf/soundleaf/internal/domain"
	"github.com/soundleaf/soundleaf/internal/errors"
)

// Sentinel errors returned by Store implementations.
var (
	ErrNotFound      = errors.NotFound("record not found")
	ErrAlreadyExists = errors.Conflict("record already exists")
)

// Store is the persistence interface for books, chapters, progress, folder
// sources, and the history ledger.
type Store interface {
	BookStore
	ProgressStore
	SourceStore
	HistoryStore
	StatsStore

	Close() error
}

// BookStore covers the book and chapter tables.
type BookStore interface {
	// CreateBook inserts a book. Returns ErrAlreadyExists if another book
	// already claims the same folder path.
	CreateBook(ctx context.Context, book *domain.Book) error
	// CreateChapter inserts a chapter for an existing book.
	CreateChapter(ctx context.Context, chapter *domain.Chapter) error
	// GetBook retrieves a book with its chapters ordered by position.
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	// ListBooks retrieves all books (without chapters), newest first.
	ListBooks(ctx context.Context) ([]*domain.Book, error)
	// BookExistsAtPath reports whether a book is already registered for
	// the given folder path.
	BookExistsAtPath(ctx context.Context, folderPath string) (bool, error)
	// DeleteBook removes a book. Chapters and progress cascade; any
	// history row is detached (book_id nulled, is_in_library cleared)
	// but retained.
	DeleteBook(ctx context.Context, id string) error
	// UpdateBookDuration sets a book's total duration.
	UpdateBookDuration(ctx context.Context, bookID string, totalDurationMs int64) error
	// UpdateChapterDuration sets a chapter's discovered duration.
	UpdateChapterDuration(ctx context.Context, chapterID string, durationMs int64) error
	// SetBookCover records the stored cover file and its BlurHash.
	SetBookCover(ctx context.Context, bookID, coverPath, blurHash string) error
}

// ProgressStore covers resume points. One row per book.
type ProgressStore interface {
	// UpsertProgress creates or replaces the resume point for a book.
	UpsertProgress(ctx context.Context, p *domain.Progress) error
	// GetProgress retrieves the resume point for a book.
	// Returns ErrNotFound if the book has never been played.
	GetProgress(ctx context.Context, bookID string) (*domain.Progress, error)
	// DeleteProgress removes the resume point for a book (explicit reset).
	DeleteProgress(ctx context.Context, bookID string) error
}

// SourceStore covers registered import roots.
type SourceStore interface {
	// CreateFolderSource registers an import root. Returns
	// ErrAlreadyExists if the URI is already registered.
	CreateFolderSource(ctx context.Context, src *domain.FolderSource) error
	// ListFolderSources retrieves all registered import roots.
	ListFolderSources(ctx context.Context) ([]*domain.FolderSource, error)
	// DeleteFolderSource removes an import root registration.
	DeleteFolderSource(ctx context.Context, id string) error
}

// HistoryStore covers the permanent history ledger.
type HistoryStore interface {
	// CreateBookHistory inserts a history row for a book's first playback.
	CreateBookHistory(ctx context.Context, h *domain.BookHistory) error
	// GetBookHistory retrieves a history row by id.
	GetBookHistory(ctx context.Context, id string) (*domain.BookHistory, error)
	// GetHistoryForBook retrieves the history row for a live book.
	// Returns ErrNotFound if the book has never been played.
	GetHistoryForBook(ctx context.Context, bookID string) (*domain.BookHistory, error)
	// ListBookHistory retrieves all history rows, most recently started
	// first, including entries whose book has been deleted.
	ListBookHistory(ctx context.Context) ([]*domain.BookHistory, error)
	// MarkHistoryCompleted sets completed_at if and only if it is not
	// already set. Replayed finish events are no-ops.
	MarkHistoryCompleted(ctx context.Context, historyID string, completedAt time.Time) error
	// UpdateHistoryDuration mirrors a discovered book total into history.
	UpdateHistoryDuration(ctx context.Context, historyID string, totalDurationMs int64) error
	// AddListeningTime accumulates listening time into the day bucket for
	// (historyID, sessionDate), inserting the bucket with the given id on
	// first use and incrementing on subsequent calls.
	AddListeningTime(ctx context.Context, sessionID, historyID, sessionDate string, deltaMs int64) error
	// GetListeningSessions retrieves day buckets for a history entry,
	// oldest first.
	GetListeningSessions(ctx context.Context, historyID string) ([]*domain.ListeningSession, error)
}

// StatsStore covers the read-side analytics queries. All queries include
// history rows whose book has been deleted.
type StatsStore interface {
	// GetOverviewStats returns all-time started/completed counts and
	// total listening time.
	GetOverviewStats(ctx context.Context) (*domain.OverviewStats, error)
	// GetBookStats returns listening detail for one history entry.
	GetBookStats(ctx context.Context, historyID string) (*domain.BookStats, error)
	// GetMonthlyCompletions buckets completions by calendar month.
	// A zero year returns all months.
	GetMonthlyCompletions(ctx context.Context, year int) ([]*domain.MonthlyCompletions, error)
	// GetDailyListening buckets listening time by calendar day. Zero year
	// returns everything; zero month with a year returns the whole year.
	GetDailyListening(ctx context.Context, year int, month time.Month) ([]*domain.DailyListening, error)
}
