package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/soundleaf/soundleaf/internal/store"
)

func TestUpsertAndGetProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := insertTestBook(t, s, "book-prog", "Progressing", "/books/prog", 2)

	if err := s.UpsertProgress(ctx, testProgress("book-prog", book.Chapters[0].ID, 5000)); err != nil {
		t.Fatalf("UpsertProgress: %v", err)
	}

	got, err := s.GetProgress(ctx, "book-prog")
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if got.CurrentChapterID != book.Chapters[0].ID {
		t.Errorf("CurrentChapterID: got %q, want %q", got.CurrentChapterID, book.Chapters[0].ID)
	}
	if got.PositionMs != 5000 {
		t.Errorf("PositionMs: got %d, want 5000", got.PositionMs)
	}

	// Upsert replaces rather than duplicates.
	if err := s.UpsertProgress(ctx, testProgress("book-prog", book.Chapters[1].ID, 42)); err != nil {
		t.Fatalf("second UpsertProgress: %v", err)
	}

	got, err = s.GetProgress(ctx, "book-prog")
	if err != nil {
		t.Fatalf("GetProgress after upsert: %v", err)
	}
	if got.CurrentChapterID != book.Chapters[1].ID {
		t.Errorf("CurrentChapterID after upsert: got %q, want %q", got.CurrentChapterID, book.Chapters[1].ID)
	}
	if got.PositionMs != 42 {
		t.Errorf("PositionMs after upsert: got %d, want 42", got.PositionMs)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM progress WHERE book_id = ?`, "book-prog").Scan(&count); err != nil {
		t.Fatalf("count progress rows: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one progress row, got %d", count)
	}
}

func TestGetProgress_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetProgress(context.Background(), "never-played")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := insertTestBook(t, s, "book-reset", "Resettable", "/books/reset", 1)
	if err := s.UpsertProgress(ctx, testProgress("book-reset", book.Chapters[0].ID, 777)); err != nil {
		t.Fatalf("UpsertProgress: %v", err)
	}

	if err := s.DeleteProgress(ctx, "book-reset"); err != nil {
		t.Fatalf("DeleteProgress: %v", err)
	}
	if _, err := s.GetProgress(ctx, "book-reset"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after reset, got %v", err)
	}

	// Resetting twice is harmless.
	if err := s.DeleteProgress(ctx, "book-reset"); err != nil {
		t.Fatalf("second DeleteProgress: %v", err)
	}
}
