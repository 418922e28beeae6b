package sqlite

import (
	"context"
	"strings"

	"github.com/soundleaf/soundleaf/internal/domain"
	"github.com/soundleaf/soundleaf/internal/store"
)

// CreateFolderSource registers an import root.
// Returns store.ErrAlreadyExists if the URI is already registered.
func (s *Store) CreateFolderSource(ctx context.Context, src *domain.FolderSource) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO folder_sources (id, uri, display_name, created_at)
		VALUES (?, ?, ?, ?)`,
		src.ID,
		src.URI,
		src.DisplayName,
		formatTime(src.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// ListFolderSources retrieves all registered import roots, oldest first.
func (s *Store) ListFolderSources(ctx context.Context) ([]*domain.FolderSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, uri, display_name, created_at
		FROM folder_sources ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*domain.FolderSource
	for rows.Next() {
		var src domain.FolderSource
		var createdAt string
		if err := rows.Scan(&src.ID, &src.URI, &src.DisplayName, &createdAt); err != nil {
			return nil, err
		}
		src.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		sources = append(sources, &src)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sources, nil
}

// DeleteFolderSource removes an import root registration.
func (s *Store) DeleteFolderSource(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM folder_sources WHERE id = ?`, id)
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
