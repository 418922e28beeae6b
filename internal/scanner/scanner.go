// Package scanner imports audiobooks from folder sources into the library.
//
// A folder source is a directory whose immediate subdirectories each hold one
// book: the audio files inside a book folder become its chapters, ordered by
// track tag when present and file name otherwise. Audio files sitting
// directly in the source root are treated as a single book rooted there.
package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/soundleaf/soundleaf/internal/domain"
	"github.com/soundleaf/soundleaf/internal/errors"
	"github.com/soundleaf/soundleaf/internal/id"
	"github.com/soundleaf/soundleaf/internal/media/images"
	"github.com/soundleaf/soundleaf/internal/store"
)

// audioExts are the container formats accepted as chapters.
var audioExts = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".m4b":  true,
	".ogg":  true,
	".opus": true,
	".flac": true,
	".wav":  true,
	".aac":  true,
}

// coverNames are preferred cover file base names, in priority order.
var coverNames = []string{"cover", "folder", "front"}

// Result summarizes one scan pass over a folder source.
type Result struct {
	SourceID  string
	StartedAt time.Time
	Duration  time.Duration
	Added     int
	Skipped   int
	Errors    int
}

// Scanner discovers book folders and imports them into the store.
type Scanner struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a scanner.
func New(st store.Store, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{store: st, logger: logger}
}

// ScanSource walks one folder source and imports every book folder that is
// not already in the library. Folder paths are the dedupe key: a folder that
// already backs a book is skipped untouched.
func (s *Scanner) ScanSource(ctx context.Context, source *domain.FolderSource) (*Result, error) {
	started := time.Now()
	result := &Result{SourceID: source.ID, StartedAt: started}

	root := source.URI
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeValidation, "read folder source %s", root)
	}

	var candidates []string
	rootHasAudio := false
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if entry.IsDir() {
			candidates = append(candidates, filepath.Join(root, entry.Name()))
			continue
		}
		if isAudioFile(filepath.Join(root, entry.Name())) {
			rootHasAudio = true
		}
	}
	if rootHasAudio {
		candidates = append(candidates, root)
	}
	sort.Strings(candidates)

	for _, folder := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		exists, err := s.store.BookExistsAtPath(ctx, folder)
		if err != nil {
			s.logger.Error("failed to check folder", "path", folder, "error", err)
			result.Errors++
			continue
		}
		if exists {
			result.Skipped++
			continue
		}

		book, err := s.ImportFolder(ctx, folder)
		if err != nil {
			if errors.Is(err, errNoAudio) {
				result.Skipped++
				continue
			}
			s.logger.Error("failed to import folder", "path", folder, "error", err)
			result.Errors++
			continue
		}
		s.logger.Info("imported book",
			"book_id", book.ID, "title", book.Title, "chapters", len(book.Chapters))
		result.Added++
	}

	result.Duration = time.Since(started)
	s.logger.Info("scan complete",
		"source_id", source.ID,
		"added", result.Added,
		"skipped", result.Skipped,
		"errors", result.Errors,
		"duration", result.Duration)
	return result, nil
}

var errNoAudio = errors.Validation("folder contains no audio files")

// ImportFolder imports a single book folder: its audio files become
// chapters, its cover image is attached, and any duration hints readable
// from the files are seeded as provisional values.
func (s *Scanner) ImportFolder(ctx context.Context, folderPath string) (*domain.Book, error) {
	files, err := collectAudioFiles(folderPath)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errNoAudio
	}

	probes := make([]probeResult, len(files))
	for i, f := range files {
		probes[i] = probeFile(f)
	}
	orderByTrack(files, probes)

	title, author := bookIdentity(folderPath, probes)

	bookID, err := id.Generate("book")
	if err != nil {
		return nil, err
	}
	book := &domain.Book{
		ID:         bookID,
		Title:      title,
		Author:     author,
		FolderPath: folderPath,
		CreatedAt:  time.Now().UTC(),
	}

	if cover := findCover(folderPath); cover != "" {
		book.CoverPath = cover
		if hash, err := images.ComputeBlurHash(cover); err == nil {
			book.CoverBlurHash = hash
		} else {
			s.logger.Debug("failed to compute cover blurhash", "path", cover, "error", err)
		}
	}

	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, err
	}

	var provisionalTotal int64
	allHinted := true
	for i, f := range files {
		chapterID, err := id.Generate("ch")
		if err != nil {
			return nil, err
		}
		ch := &domain.Chapter{
			ID:         chapterID,
			BookID:     bookID,
			Title:      chapterTitle(f, probes[i]),
			FilePath:   f,
			DurationMs: probes[i].durationMs,
			Position:   i,
		}
		if err := s.store.CreateChapter(ctx, ch); err != nil {
			return nil, err
		}
		book.Chapters = append(book.Chapters, *ch)

		if probes[i].durationMs > 0 {
			provisionalTotal += probes[i].durationMs
		} else {
			allHinted = false
		}
	}

	// Only a complete set of hints makes a meaningful provisional total.
	// Playback-time discovery overwrites this with the exact value.
	if allHinted && provisionalTotal > 0 {
		if err := s.store.UpdateBookDuration(ctx, bookID, provisionalTotal); err != nil {
			s.logger.Warn("failed to seed provisional duration", "book_id", bookID, "error", err)
		} else {
			book.TotalDurationMs = provisionalTotal
		}
	}

	return book, nil
}

// collectAudioFiles lists the audio files directly inside a book folder,
// sorted by name.
func collectAudioFiles(folderPath string) ([]string, error) {
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeValidation, "read book folder %s", folderPath)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(folderPath, entry.Name())
		if isAudioFile(path) {
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files, nil
}

// orderByTrack reorders files by their track tags when every file carries
// one. Mixed or missing track numbers keep the name sort.
func orderByTrack(files []string, probes []probeResult) {
	for _, p := range probes {
		if p.track <= 0 {
			return
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		return probes[i].track < probes[j].track
	})
	sort.SliceStable(probes, func(i, j int) bool {
		return probes[i].track < probes[j].track
	})
}

// bookIdentity derives the book's title and author from the first tagged
// file, falling back to the folder name.
func bookIdentity(folderPath string, probes []probeResult) (title, author string) {
	for _, p := range probes {
		if title == "" && p.album != "" {
			title = p.album
		}
		if author == "" {
			if p.albumArtist != "" {
				author = p.albumArtist
			} else if p.artist != "" {
				author = p.artist
			}
		}
		if title != "" && author != "" {
			break
		}
	}
	if title == "" {
		title = filepath.Base(folderPath)
	}
	return title, author
}

// chapterTitle prefers the embedded track title, else the file name.
func chapterTitle(path string, p probeResult) string {
	if p.title != "" {
		return p.title
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// isAudioFile accepts known audio extensions, and falls back to content
// sniffing for files without one.
func isAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if audioExts[ext] {
		return true
	}
	if ext != "" {
		return false
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt.String(), "audio/")
}

// findCover locates a cover image in a book folder. Preferred base names
// win; otherwise the first image file is used.
func findCover(folderPath string) string {
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return ""
	}

	var fallback string
	for _, name := range coverNames {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(folderPath, entry.Name())
			if !isImageFile(path) {
				continue
			}
			base := strings.ToLower(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
			if base == name {
				return path
			}
			if fallback == "" {
				fallback = path
			}
		}
	}
	return fallback
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return true
	}
	return false
}
