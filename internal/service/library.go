// Package service provides the business logic layer between the HTTP API
// and the store, scanner, and playback engine.
package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/soundleaf/soundleaf/internal/domain"
	"github.com/soundleaf/soundleaf/internal/errors"
	"github.com/soundleaf/soundleaf/internal/id"
	"github.com/soundleaf/soundleaf/internal/scanner"
	"github.com/soundleaf/soundleaf/internal/store"
)

// Rescanner re-imports a folder source. Implemented by *scanner.Scanner.
type Rescanner interface {
	ScanSource(ctx context.Context, source *domain.FolderSource) (*scanner.Result, error)
}

// SourceWatcher registers roots for change monitoring. Implemented by
// *watcher.Watcher; nil disables watching.
type SourceWatcher interface {
	AddRoot(root string) error
}

// Unloader releases the playback session's hold on a book. Implemented by
// *playback.Session.
type Unloader interface {
	StopAndUnload(ctx context.Context) error
}

// LibraryService orchestrates folder sources, imports, and book lifecycle.
type LibraryService struct {
	store   store.Store
	scanner Rescanner
	watcher SourceWatcher
	logger  *slog.Logger
}

// NewLibraryService creates a library service. watcher may be nil.
func NewLibraryService(st store.Store, sc Rescanner, w SourceWatcher, logger *slog.Logger) *LibraryService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LibraryService{
		store:   st,
		scanner: sc,
		watcher: w,
		logger:  logger,
	}
}

// AddFolderSource registers an import root, runs an initial scan, and puts
// the root under watch.
func (s *LibraryService) AddFolderSource(ctx context.Context, uri, displayName string) (*domain.FolderSource, error) {
	info, err := os.Stat(uri)
	if err != nil {
		return nil, errors.Validationf("folder %s is not accessible", uri)
	}
	if !info.IsDir() {
		return nil, errors.Validationf("%s is not a directory", uri)
	}
	if displayName == "" {
		displayName = uri
	}

	sourceID, err := id.Generate("src")
	if err != nil {
		return nil, err
	}
	source := &domain.FolderSource{
		ID:          sourceID,
		URI:         uri,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateFolderSource(ctx, source); err != nil {
		return nil, err
	}
	s.logger.Info("folder source registered", "source_id", sourceID, "uri", uri)

	if _, err := s.scanner.ScanSource(ctx, source); err != nil {
		s.logger.Error("initial scan failed", "source_id", sourceID, "error", err)
	}
	if s.watcher != nil {
		if err := s.watcher.AddRoot(uri); err != nil {
			s.logger.Warn("failed to watch source", "uri", uri, "error", err)
		}
	}
	return source, nil
}

// ListFolderSources returns all registered import roots.
func (s *LibraryService) ListFolderSources(ctx context.Context) ([]*domain.FolderSource, error) {
	return s.store.ListFolderSources(ctx)
}

// RemoveFolderSource unregisters an import root. Books already imported
// from it stay in the library.
func (s *LibraryService) RemoveFolderSource(ctx context.Context, sourceID string) error {
	return s.store.DeleteFolderSource(ctx, sourceID)
}

// ScanAll rescans every registered source.
func (s *LibraryService) ScanAll(ctx context.Context) ([]*scanner.Result, error) {
	sources, err := s.store.ListFolderSources(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*scanner.Result, 0, len(sources))
	for _, source := range sources {
		result, err := s.scanner.ScanSource(ctx, source)
		if err != nil {
			s.logger.Error("scan failed", "source_id", source.ID, "error", err)
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// ScanSource rescans one registered source by id.
func (s *LibraryService) ScanSource(ctx context.Context, sourceID string) (*scanner.Result, error) {
	sources, err := s.store.ListFolderSources(ctx)
	if err != nil {
		return nil, err
	}
	for _, source := range sources {
		if source.ID == sourceID {
			return s.scanner.ScanSource(ctx, source)
		}
	}
	return nil, errors.NotFoundf("folder source %s not found", sourceID)
}

// RescanRoot rescans whichever registered source claims the given root
// path. Wired to the filesystem watcher's debounced notifications.
func (s *LibraryService) RescanRoot(root string) {
	ctx := context.Background()
	sources, err := s.store.ListFolderSources(ctx)
	if err != nil {
		s.logger.Error("failed to list sources for rescan", "error", err)
		return
	}
	for _, source := range sources {
		if source.URI == root {
			if _, err := s.scanner.ScanSource(ctx, source); err != nil {
				s.logger.Error("watch-triggered scan failed", "source_id", source.ID, "error", err)
			}
			return
		}
	}
}

// ListBooks returns all books, newest first, without chapters.
func (s *LibraryService) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	return s.store.ListBooks(ctx)
}

// GetBook returns one book with its chapters.
func (s *LibraryService) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	return s.store.GetBook(ctx, bookID)
}

// DeleteBook removes a book from the library. If the book is currently
// loaded in the session, the session is unloaded first so no audio unit
// outlives its rows. History survives with its book reference detached.
func (s *LibraryService) DeleteBook(ctx context.Context, bookID string, session Unloader, activeBookID string) error {
	if session != nil && activeBookID == bookID {
		if err := session.StopAndUnload(ctx); err != nil {
			return err
		}
	}
	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		return err
	}
	s.logger.Info("book deleted", "book_id", bookID)
	return nil
}
