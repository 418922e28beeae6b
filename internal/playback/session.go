// Package playback implements the audio session engine: a single process-wide
// session that owns at most one loaded audio unit, drives chapter navigation,
// discovers true chapter durations, and feeds the progress reconciler.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soundleaf/soundleaf/internal/audio"
	"github.com/soundleaf/soundleaf/internal/domain"
	"github.com/soundleaf/soundleaf/internal/errors"
	"github.com/soundleaf/soundleaf/internal/id"
	"github.com/soundleaf/soundleaf/internal/store"
)

// State is the session's lifecycle state.
type State string

// Session states.
const (
	StateEmpty     State = "empty"
	StateLoading   State = "loading"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateError     State = "error"
)

// Config holds playback engine tunables.
type Config struct {
	// SaveInterval is how often the reconciler persists progress.
	SaveInterval time.Duration
	// MaxTickGap caps the listening time credited for a single tick gap,
	// absorbing device sleep and app suspension.
	MaxTickGap time.Duration
}

// DefaultConfig returns the standard 5s/10s tunables.
func DefaultConfig() Config {
	return Config{
		SaveInterval: 5 * time.Second,
		MaxTickGap:   10 * time.Second,
	}
}

// Snapshot is the UI-visible session state.
type Snapshot struct {
	State        State   `json:"state"`
	BookID       string  `json:"book_id,omitempty"`
	BookTitle    string  `json:"book_title,omitempty"`
	ChapterIndex int     `json:"chapter_index"`
	ChapterCount int     `json:"chapter_count"`
	ChapterTitle string  `json:"chapter_title,omitempty"`
	PositionMs   int64   `json:"position_ms"`
	DurationMs   int64   `json:"duration_ms"`
	IsPlaying    bool    `json:"is_playing"`
	Rate         float64 `json:"rate"`
	Error        string  `json:"error,omitempty"`
	// RateWarning is a one-shot notice that a requested playback speed was
	// rejected by the audio backend. It is cleared by the read.
	RateWarning string `json:"rate_warning,omitempty"`
}

// Session is the single active playback session. All state is guarded by mu;
// audio-unit status callbacks and reconciler ticks serialize on the same
// lock, and stale callbacks are discarded by generation.
type Session struct {
	store  store.Store
	driver audio.Driver
	logger *slog.Logger
	cfg    Config

	// now is the clock source; replaced in tests.
	now func() time.Time

	mu sync.Mutex
	// generation increments on every load/chapter-change/unload. Status
	// callbacks carry the generation they were registered under and are
	// dropped when it no longer matches, so a unit mid-teardown can never
	// corrupt the state of its successor.
	generation uint64

	state        State
	book         *domain.Book
	history      *domain.BookHistory
	chapterIndex int
	unit         audio.Unit

	positionMs  int64
	durationMs  int64
	playing     bool
	rate        float64
	errMsg      string
	rateWarning string

	// discovered maps chapter id to the duration reported by the audio
	// unit. Once every chapter has reported, the exact sum is written as
	// the book total and the map stops accepting entries.
	discovered     map[string]int64
	durationsFinal bool

	// accumulatedMs is listening time observed but not yet flushed to the
	// day ledger. lastPlayingTick is the previous tick at which the
	// session was playing; zero after a pause or a fresh load.
	accumulatedMs   int64
	lastPlayingTick time.Time

	stop chan struct{}
	done chan struct{}
}

// NewSession creates the playback session. The reconciler loop is not
// started; call Start.
func NewSession(st store.Store, driver audio.Driver, cfg Config, logger *slog.Logger) *Session {
	if cfg.SaveInterval <= 0 {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		store:  st,
		driver: driver,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
		state:  StateEmpty,
		rate:   1.0,
	}
}

// Start launches the reconciler loop. It runs until Stop is called.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
}

// Stop flushes final progress, unloads the audio unit, and stops the
// reconciler loop.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return s.StopAndUnload(ctx)
}

// run is the reconciler loop.
func (s *Session) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.SaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.reconcileLocked(context.Background(), s.now())
			s.mu.Unlock()
		}
	}
}

// Snapshot returns the UI-visible state. Reading clears the one-shot rate
// warning.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:        s.state,
		ChapterIndex: s.chapterIndex,
		PositionMs:   s.positionMs,
		DurationMs:   s.durationMs,
		IsPlaying:    s.playing,
		Rate:         s.rate,
		Error:        s.errMsg,
		RateWarning:  s.rateWarning,
	}
	if s.book != nil {
		snap.BookID = s.book.ID
		snap.BookTitle = s.book.Title
		snap.ChapterCount = len(s.book.Chapters)
		if ch := s.book.ChapterAt(s.chapterIndex); ch != nil {
			snap.ChapterTitle = ch.Title
		}
	}
	s.rateWarning = ""
	return snap
}

// LoadBook makes the given book the session's subject, resuming at its saved
// position or at chapter 0/offset 0. Re-loading the already-active book while
// a unit is live is a no-op. The previous book's pending progress is flushed
// synchronously before the switch.
func (s *Session) LoadBook(ctx context.Context, bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Idempotent re-entry guard.
	if s.book != nil && s.book.ID == bookID && s.unit != nil {
		return nil
	}

	s.beginTransitionLocked()
	s.state = StateLoading

	// Flush and tear down the outgoing book before touching the new one.
	if s.book != nil {
		s.saveProgressLocked(ctx)
		s.flushListeningLocked(ctx, s.now())
	}
	s.teardownUnitLocked()

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		s.resetSubjectLocked()
		s.state = StateError
		s.errMsg = fmt.Sprintf("book %s not found", bookID)
		if errors.Is(err, store.ErrNotFound) {
			return errors.NotFoundf("book %s not found", bookID)
		}
		return errors.Wrap(err, errors.CodeInternal, "load book")
	}
	if len(book.Chapters) == 0 {
		s.resetSubjectLocked()
		s.state = StateError
		s.errMsg = "book has no chapters"
		return errors.Validationf("book %s has no chapters", bookID)
	}

	// Resolve the resume point.
	chapterIndex, offsetMs := 0, int64(0)
	if prog, err := s.store.GetProgress(ctx, bookID); err == nil {
		if idx := book.ChapterIndexByID(prog.CurrentChapterID); idx >= 0 {
			chapterIndex = idx
			offsetMs = prog.PositionMs
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("failed to read progress, starting from the top",
			"book_id", bookID, "error", err)
	}

	history, err := s.obtainHistory(ctx, book)
	if err != nil {
		// History is analytics-only; playback proceeds without it.
		s.logger.Error("failed to obtain book history", "book_id", bookID, "error", err)
	}

	// Reset per-session accumulators for the new subject.
	s.book = book
	s.history = history
	s.chapterIndex = chapterIndex
	s.discovered = make(map[string]int64)
	s.durationsFinal = false
	s.accumulatedMs = 0
	s.lastPlayingTick = time.Time{}
	s.errMsg = ""

	if err := s.openUnitLocked(ctx, chapterIndex, offsetMs, false); err != nil {
		return err
	}
	return nil
}

// Play starts playback. No-op when no unit is loaded or already playing.
func (s *Session) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setPlayingLocked(true)
}

// Pause suspends playback. No-op when no unit is loaded or already paused.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setPlayingLocked(false)
}

// TogglePlayback inverts the current transport state. No-op when no unit is
// loaded.
func (s *Session) TogglePlayback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unit == nil {
		return nil
	}
	playing, err := s.unit.IsPlaying()
	if err != nil {
		s.logger.Debug("toggle: query transport state", "error", err)
		return nil
	}
	return s.setPlayingLocked(!playing)
}

// setPlayingLocked queries the unit's actual state before acting so that
// double-invocations never reach the backend as redundant transport calls.
func (s *Session) setPlayingLocked(play bool) error {
	if s.unit == nil {
		return nil
	}
	playing, err := s.unit.IsPlaying()
	if err != nil {
		s.logger.Debug("query transport state", "error", err)
		return nil
	}
	if playing == play {
		return nil
	}
	if play {
		err = s.unit.Play()
	} else {
		err = s.unit.Pause()
	}
	if err != nil {
		s.logger.Warn("transport change failed", "play", play, "error", err)
		return nil
	}
	s.playing = play
	if play {
		s.state = StatePlaying
	} else {
		s.state = StatePaused
		s.lastPlayingTick = time.Time{}
	}
	return nil
}

// SeekTo repositions within the current chapter, clamping silently to
// [0, duration], and persists the new resume point immediately: seeks are
// explicit user intent and too valuable to leave to the periodic tick.
func (s *Session) SeekTo(ctx context.Context, positionMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unit == nil {
		return nil
	}

	positionMs = clamp(positionMs, 0, s.currentDurationLocked())
	if err := s.unit.SeekTo(positionMs); err != nil {
		s.logger.Warn("seek failed", "position_ms", positionMs, "error", err)
		return nil
	}
	s.positionMs = positionMs
	s.saveProgressLocked(ctx)
	return nil
}

// SeekRelative seeks by a signed delta from the current position.
func (s *Session) SeekRelative(ctx context.Context, deltaMs int64) error {
	s.mu.Lock()
	target := s.positionMs + deltaMs
	s.mu.Unlock()
	return s.SeekTo(ctx, target)
}

// GoToChapter switches to the chapter at the given index, starting at
// startOffsetMs. Out-of-range indexes are silently ignored. The caller's
// play/pause intent is preserved: if the session was playing, the new
// chapter auto-starts.
func (s *Session) GoToChapter(ctx context.Context, index int, startOffsetMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToChapterLocked(ctx, index, startOffsetMs, s.playing)
}

// NextChapter advances to the next chapter. No-op on the last chapter.
func (s *Session) NextChapter(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToChapterLocked(ctx, s.chapterIndex+1, 0, s.playing)
}

// PreviousChapter goes back one chapter. No-op on the first chapter.
func (s *Session) PreviousChapter(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToChapterLocked(ctx, s.chapterIndex-1, 0, s.playing)
}

// SetPlaybackSpeed applies a rate to the live unit. The session-visible rate
// always updates; if the backend rejects the rate, the visible rate reverts
// to the unit's true rate and a one-shot warning is raised for the UI.
func (s *Session) SetPlaybackSpeed(rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rate <= 0 {
		return errors.Validationf("playback speed must be positive, got %v", rate)
	}
	s.rate = rate

	if s.unit == nil {
		return nil
	}
	if err := s.unit.SetRate(rate); err != nil {
		s.logger.Warn("set rate failed", "rate", rate, "error", err)
	}
	actual, err := s.unit.Rate()
	if err != nil {
		s.logger.Debug("query rate", "error", err)
		return nil
	}
	if actual != rate {
		s.rate = actual
		s.rateWarning = fmt.Sprintf("playback speed %gx is not supported; staying at %gx", rate, actual)
	}
	return nil
}

// StopAndUnload flushes final progress synchronously, tears down the audio
// unit, and resets the session to Empty.
func (s *Session) StopAndUnload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.book == nil && s.unit == nil {
		return nil
	}

	s.beginTransitionLocked()
	s.saveProgressLocked(ctx)
	s.flushListeningLocked(ctx, s.now())
	s.teardownUnitLocked()
	s.resetSubjectLocked()
	s.state = StateEmpty
	s.errMsg = ""
	return nil
}

// ResetProgress deletes the saved resume point for a book. If the book is the
// active subject, the session keeps playing; only the stored state is reset.
func (s *Session) ResetProgress(ctx context.Context, bookID string) error {
	return s.store.DeleteProgress(ctx, bookID)
}

// goToChapterLocked is the shared chapter-switch path. Caller holds s.mu.
func (s *Session) goToChapterLocked(ctx context.Context, index int, startOffsetMs int64, autoPlay bool) error {
	if s.book == nil {
		return nil
	}
	if index < 0 || index >= len(s.book.Chapters) {
		return nil
	}

	s.beginTransitionLocked()
	s.teardownUnitLocked()
	s.chapterIndex = index

	if err := s.openUnitLocked(ctx, index, startOffsetMs, autoPlay); err != nil {
		return err
	}
	// A chapter switch is explicit user intent; persist it like a seek.
	s.saveProgressLocked(ctx)
	return nil
}

// openUnitLocked instantiates the audio unit for the chapter at index.
// Caller holds s.mu and has already torn down the previous unit.
func (s *Session) openUnitLocked(ctx context.Context, index int, offsetMs int64, autoPlay bool) error {
	ch := s.book.ChapterAt(index)
	gen := s.generation

	unit, err := s.driver.Open(ctx, ch.FilePath, audio.Options{
		InitialPositionMs: offsetMs,
		Rate:              s.rate,
		AutoPlay:          autoPlay,
	}, func(status audio.Status) {
		s.handleStatus(gen, status)
	})
	if err != nil {
		s.state = StateError
		s.errMsg = fmt.Sprintf("failed to load %q; check the file and try again", ch.Title)
		s.playing = false
		s.logger.Error("audio unit load failed",
			"book_id", s.book.ID, "chapter", ch.Title, "error", err)
		return errors.AudioLoadFailedf("load chapter %q", ch.Title).WithCause(err)
	}

	s.unit = unit
	s.positionMs = offsetMs
	s.durationMs = ch.DurationMs
	s.playing = autoPlay
	if autoPlay {
		s.state = StatePlaying
	} else {
		s.state = StatePaused
	}
	return nil
}

// handleStatus processes a status callback from the audio unit. Callbacks
// from a superseded generation are dropped outright: a unit mid-teardown
// must not touch the state of the unit replacing it.
func (s *Session) handleStatus(gen uint64, status audio.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.unit == nil || s.book == nil {
		return
	}

	if status.Err != nil {
		s.logger.Warn("audio unit reported error", "error", status.Err)
	}

	// Mirror transport state.
	s.positionMs = status.PositionMs
	if status.DurationMs > 0 {
		s.durationMs = status.DurationMs
	}
	s.playing = status.IsPlaying
	if s.state == StatePlaying || s.state == StatePaused {
		if status.IsPlaying {
			s.state = StatePlaying
		} else {
			s.state = StatePaused
		}
	}

	s.discoverDurationLocked(status)

	if status.DidJustFinish && !status.IsLooping {
		s.handleChapterFinishedLocked()
	}
}

// discoverDurationLocked records the first non-zero duration the unit reports
// for the current chapter. When every chapter of the book has reported, the
// exact sum is persisted as the book total, once. Partial sums are never
// written as if final.
func (s *Session) discoverDurationLocked(status audio.Status) {
	if s.durationsFinal || status.DurationMs <= 0 {
		return
	}
	ch := s.book.ChapterAt(s.chapterIndex)
	if ch == nil {
		return
	}
	if _, seen := s.discovered[ch.ID]; seen {
		return
	}

	s.discovered[ch.ID] = status.DurationMs
	ch.DurationMs = status.DurationMs

	ctx := context.Background()
	if err := s.store.UpdateChapterDuration(ctx, ch.ID, status.DurationMs); err != nil {
		s.logger.Warn("failed to persist chapter duration",
			"chapter_id", ch.ID, "error", err)
	}

	if len(s.discovered) < len(s.book.Chapters) {
		return
	}

	var total int64
	for _, ms := range s.discovered {
		total += ms
	}
	s.durationsFinal = true
	s.book.TotalDurationMs = total

	if err := s.store.UpdateBookDuration(ctx, s.book.ID, total); err != nil {
		s.logger.Warn("failed to persist book duration",
			"book_id", s.book.ID, "error", err)
	}
	if s.history != nil {
		if err := s.store.UpdateHistoryDuration(ctx, s.history.ID, total); err != nil {
			s.logger.Warn("failed to mirror duration into history",
				"history_id", s.history.ID, "error", err)
		}
	}
	s.logger.Info("book duration discovered",
		"book_id", s.book.ID, "total_duration_ms", total)
}

// handleChapterFinishedLocked advances past a finished chapter, or marks the
// book completed when the last chapter ends. Finishing implies the user was
// playing, so the next chapter auto-starts.
func (s *Session) handleChapterFinishedLocked() {
	ctx := context.Background()
	next := s.chapterIndex + 1

	if next < len(s.book.Chapters) {
		if err := s.goToChapterLocked(ctx, next, 0, true); err != nil {
			s.logger.Error("failed to advance to next chapter",
				"book_id", s.book.ID, "chapter_index", next, "error", err)
		}
		return
	}

	s.playing = false
	s.state = StateCompleted
	s.saveProgressLocked(ctx)
	s.flushListeningLocked(ctx, s.now())

	if s.history == nil {
		return
	}
	// MarkHistoryCompleted only writes when completed_at is still null, so
	// a duplicate finish callback cannot move the completion time.
	if err := s.store.MarkHistoryCompleted(ctx, s.history.ID, s.now()); err != nil {
		s.logger.Warn("failed to mark history completed",
			"history_id", s.history.ID, "error", err)
		return
	}
	if s.history.CompletedAt == nil {
		now := s.now()
		s.history.CompletedAt = &now
		s.logger.Info("book completed", "book_id", s.book.ID)
	}
}

// obtainHistory finds the history ledger row for a book, creating it on
// first playback.
func (s *Session) obtainHistory(ctx context.Context, book *domain.Book) (*domain.BookHistory, error) {
	history, err := s.store.GetHistoryForBook(ctx, book.ID)
	if err == nil {
		return history, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	historyID, err := id.Generate("hist")
	if err != nil {
		return nil, err
	}
	bookID := book.ID
	history = &domain.BookHistory{
		ID:              historyID,
		BookID:          &bookID,
		Title:           book.Title,
		Author:          book.Author,
		CoverPath:       book.CoverPath,
		TotalDurationMs: book.TotalDurationMs,
		StartedAt:       s.now(),
		IsInLibrary:     true,
	}
	if err := s.store.CreateBookHistory(ctx, history); err != nil {
		return nil, err
	}
	return history, nil
}

// beginTransitionLocked invalidates all in-flight callbacks and ticks by
// bumping the generation. Caller holds s.mu.
func (s *Session) beginTransitionLocked() {
	s.generation++
}

// teardownUnitLocked unloads the current unit if any. Unload errors are
// expected during rapid navigation and never fatal. Caller holds s.mu.
func (s *Session) teardownUnitLocked() {
	if s.unit == nil {
		return
	}
	if err := s.unit.Unload(); err != nil {
		s.logger.Debug("unit unload", "error", err)
	}
	s.unit = nil
	s.playing = false
}

// resetSubjectLocked clears all per-book state. Caller holds s.mu.
func (s *Session) resetSubjectLocked() {
	s.book = nil
	s.history = nil
	s.chapterIndex = 0
	s.positionMs = 0
	s.durationMs = 0
	s.playing = false
	s.discovered = nil
	s.durationsFinal = false
	s.accumulatedMs = 0
	s.lastPlayingTick = time.Time{}
}

// currentDurationLocked returns the best-known duration for the current
// chapter: the unit's reported duration, or the import hint. Caller holds s.mu.
func (s *Session) currentDurationLocked() int64 {
	if s.durationMs > 0 {
		return s.durationMs
	}
	if s.book != nil {
		if ch := s.book.ChapterAt(s.chapterIndex); ch != nil {
			return ch.DurationMs
		}
	}
	return 0
}

// clamp bounds v to [lo, hi]. A hi of 0 means the duration is unknown; only
// the lower bound applies then.
func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}
