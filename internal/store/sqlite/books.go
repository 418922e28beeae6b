package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/soundleaf/soundleaf/internal/domain"
	"github.com/soundleaf/soundleaf/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, title, author, cover_path, cover_blurhash,
	folder_path, total_duration_ms, created_at`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book

	var (
		author    sql.NullString
		coverPath sql.NullString
		blurHash  sql.NullString
		createdAt string
	)

	err := scanner.Scan(
		&b.ID,
		&b.Title,
		&author,
		&coverPath,
		&blurHash,
		&b.FolderPath,
		&b.TotalDurationMs,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	if author.Valid {
		b.Author = author.String
	}
	if coverPath.Valid {
		b.CoverPath = coverPath.String
	}
	if blurHash.Valid {
		b.CoverBlurHash = blurHash.String
	}

	return &b, nil
}

// CreateBook inserts a new book.
// Returns store.ErrAlreadyExists if the folder path is already registered.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (
			id, title, author, cover_path, cover_blurhash,
			folder_path, total_duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID,
		book.Title,
		nullString(book.Author),
		nullString(book.CoverPath),
		nullString(book.CoverBlurHash),
		book.FolderPath,
		book.TotalDurationMs,
		formatTime(book.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// CreateChapter inserts a chapter for an existing book.
// Returns store.ErrAlreadyExists if the (book, position) pair is taken.
func (s *Store) CreateChapter(ctx context.Context, chapter *domain.Chapter) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapters (id, book_id, title, file_path, duration_ms, position)
		VALUES (?, ?, ?, ?, ?, ?)`,
		chapter.ID,
		chapter.BookID,
		chapter.Title,
		chapter.FilePath,
		chapter.DurationMs,
		chapter.Position,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetBook retrieves a book with its chapters ordered by position.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id)

	book, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_id, title, file_path, duration_ms, position
		FROM chapters WHERE book_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ch domain.Chapter
		if err := rows.Scan(&ch.ID, &ch.BookID, &ch.Title, &ch.FilePath, &ch.DurationMs, &ch.Position); err != nil {
			return nil, err
		}
		book.Chapters = append(book.Chapters, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return book, nil
}

// ListBooks retrieves all books without chapters, newest first.
func (s *Store) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}

// BookExistsAtPath reports whether a book is registered for the folder path.
func (s *Store) BookExistsAtPath(ctx context.Context, folderPath string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM books WHERE folder_path = ?`, folderPath).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteBook removes a book. Chapters and progress cascade via foreign keys;
// the history row's book_id is nulled by the schema's ON DELETE SET NULL, and
// is_in_library is cleared here in the same transaction.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE book_history SET is_in_library = 0 WHERE book_id = ?`, id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
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

	return tx.Commit()
}

// UpdateBookDuration sets a book's total duration.
func (s *Store) UpdateBookDuration(ctx context.Context, bookID string, totalDurationMs int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE books SET total_duration_ms = ? WHERE id = ?`, totalDurationMs, bookID)
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

// UpdateChapterDuration sets a chapter's discovered duration.
func (s *Store) UpdateChapterDuration(ctx context.Context, chapterID string, durationMs int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chapters SET duration_ms = ? WHERE id = ?`, durationMs, chapterID)
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

// SetBookCover records the stored cover file and its BlurHash.
func (s *Store) SetBookCover(ctx context.Context, bookID, coverPath, blurHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE books SET cover_path = ?, cover_blurhash = ? WHERE id = ?`,
		nullString(coverPath), nullString(blurHash), bookID)
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
