package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/soundleaf/soundleaf/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// insertTestBook creates a book with the given number of chapters, each one
// minute long unless chapterMs is overridden per test.
func insertTestBook(t *testing.T, s *Store, bookID, title, folderPath string, chapters int) *domain.Book {
	t.Helper()
	ctx := context.Background()

	book := &domain.Book{
		ID:         bookID,
		Title:      title,
		Author:     "Test Author",
		FolderPath: folderPath,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	for i := 0; i < chapters; i++ {
		ch := &domain.Chapter{
			ID:       bookID + "-ch-" + string(rune('a'+i)),
			BookID:   bookID,
			Title:    "Chapter " + string(rune('1'+i)),
			FilePath: folderPath + "/ch" + string(rune('1'+i)) + ".mp3",
			Position: i,
		}
		if err := s.CreateChapter(ctx, ch); err != nil {
			t.Fatalf("CreateChapter %d: %v", i, err)
		}
		book.Chapters = append(book.Chapters, *ch)
	}
	return book
}

// insertableBook builds a book struct without persisting it.
func insertableBook(bookID, title, folderPath string) *domain.Book {
	return &domain.Book{
		ID:         bookID,
		Title:      title,
		FolderPath: folderPath,
		CreatedAt:  time.Now().UTC(),
	}
}

// testProgress builds a resume point for upsert tests.
func testProgress(bookID, chapterID string, positionMs int64) *domain.Progress {
	return &domain.Progress{
		BookID:           bookID,
		CurrentChapterID: chapterID,
		PositionMs:       positionMs,
		LastPlayedAt:     time.Now().UTC(),
	}
}

// insertTestHistory creates a history row for a live book.
func insertTestHistory(t *testing.T, s *Store, historyID, bookID string) *domain.BookHistory {
	t.Helper()
	h := &domain.BookHistory{
		ID:          historyID,
		BookID:      &bookID,
		Title:       "Test Book",
		StartedAt:   time.Now().UTC(),
		IsInLibrary: true,
	}
	if err := s.CreateBookHistory(context.Background(), h); err != nil {
		t.Fatalf("CreateBookHistory: %v", err)
	}
	return h
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	// Verify WAL mode is set.
	var journalMode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	// Verify foreign keys are enabled.
	var fk int
	err = s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	// Verify tables exist.
	tables := []string{
		"books", "chapters", "progress", "folder_sources",
		"book_history", "listening_sessions",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpenClose(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	// Re-open should work (schema is idempotent).
	s2, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("re-open store: %v", err)
	}
	s2.Close()
}
