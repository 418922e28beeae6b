package playback

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundleaf/soundleaf/internal/audio"
	"github.com/soundleaf/soundleaf/internal/domain"
	"github.com/soundleaf/soundleaf/internal/errors"
	"github.com/soundleaf/soundleaf/internal/store"
	"github.com/soundleaf/soundleaf/internal/store/sqlite"
)

func newHarness(t *testing.T) (*Session, *audio.FakeDriver, store.Store) {
	t.Helper()

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	driver := audio.NewFakeDriver()
	sess := NewSession(st, driver, Config{
		SaveInterval: 5 * time.Second,
		MaxTickGap:   10 * time.Second,
	}, slog.New(slog.DiscardHandler))
	return sess, driver, st
}

// seedBook inserts a book with the given chapter file names (durations stay 0
// until discovery).
func seedBook(t *testing.T, st store.Store, bookID string, files ...string) *domain.Book {
	t.Helper()
	ctx := context.Background()

	book := &domain.Book{
		ID:         bookID,
		Title:      "Test Book " + bookID,
		Author:     "Tester",
		FolderPath: "/books/" + bookID,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, st.CreateBook(ctx, book))

	for i, f := range files {
		ch := &domain.Chapter{
			ID:       bookID + "-ch" + string(rune('0'+i)),
			BookID:   bookID,
			Title:    "Chapter " + string(rune('1'+i)),
			FilePath: book.FolderPath + "/" + f,
			Position: i,
		}
		require.NoError(t, st.CreateChapter(ctx, ch))
		book.Chapters = append(book.Chapters, *ch)
	}
	return book
}

// tickAt runs one reconciler pass at a synthetic time.
func (s *Session) tickAt(now time.Time) {
	s.mu.Lock()
	s.reconcileLocked(context.Background(), now)
	s.mu.Unlock()
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestLoadBook_StartsAtChapterZeroWithoutProgress(t *testing.T) {
	sess, driver, st := newHarness(t)
	book := seedBook(t, st, "book-1", "ch1.mp3", "ch2.mp3")

	require.NoError(t, sess.LoadBook(context.Background(), "book-1"))

	snap := sess.Snapshot()
	assert.Equal(t, StatePaused, snap.State)
	assert.Equal(t, "book-1", snap.BookID)
	assert.Equal(t, 0, snap.ChapterIndex)
	assert.Equal(t, int64(0), snap.PositionMs)
	assert.False(t, snap.IsPlaying)
	assert.Equal(t, book.Chapters[0].FilePath, driver.LastUnit().FilePath())
}

func TestLoadBook_ResumesFromSavedProgress(t *testing.T) {
	sess, driver, st := newHarness(t)
	book := seedBook(t, st, "book-1", "ch1.mp3", "ch2.mp3")
	ctx := context.Background()

	require.NoError(t, st.UpsertProgress(ctx, &domain.Progress{
		BookID:           "book-1",
		CurrentChapterID: book.Chapters[1].ID,
		PositionMs:       30000,
		LastPlayedAt:     time.Now().UTC(),
	}))

	require.NoError(t, sess.LoadBook(ctx, "book-1"))

	snap := sess.Snapshot()
	assert.Equal(t, 1, snap.ChapterIndex)
	assert.Equal(t, int64(30000), snap.PositionMs)
	assert.Equal(t, book.Chapters[1].FilePath, driver.LastUnit().FilePath())
}

func TestLoadBook_StaleProgressFallsBackToStart(t *testing.T) {
	sess, _, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3")
	ctx := context.Background()

	// Progress referencing a chapter the book no longer has.
	require.NoError(t, st.UpsertProgress(ctx, &domain.Progress{
		BookID:           "book-1",
		CurrentChapterID: "book-1-ch-gone",
		PositionMs:       5000,
		LastPlayedAt:     time.Now().UTC(),
	}))

	require.NoError(t, sess.LoadBook(ctx, "book-1"))

	snap := sess.Snapshot()
	assert.Equal(t, 0, snap.ChapterIndex)
	assert.Equal(t, int64(0), snap.PositionMs)
}

func TestLoadBook_Idempotent(t *testing.T) {
	sess, driver, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3")
	ctx := context.Background()

	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	require.NoError(t, sess.Play())

	// A second load of the active book must not restart playback.
	require.NoError(t, sess.LoadBook(ctx, "book-1"))

	assert.Equal(t, 1, driver.OpenCount())
	assert.True(t, sess.Snapshot().IsPlaying)
}

func TestLoadBook_NotFound(t *testing.T) {
	sess, _, _ := newHarness(t)

	err := sess.LoadBook(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	snap := sess.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.NotEmpty(t, snap.Error)
}

func TestLoadBook_OpenFailure(t *testing.T) {
	sess, driver, st := newHarness(t)
	seedBook(t, st, "book-1", "broken.mp3")
	driver.FailOpen["broken.mp3"] = assert.AnError

	err := sess.LoadBook(context.Background(), "book-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAudioLoadFailed))

	snap := sess.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.NotEmpty(t, snap.Error)
	assert.False(t, snap.IsPlaying)
}

func TestLoadBook_CreatesHistoryOnFirstPlay(t *testing.T) {
	sess, _, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3")
	ctx := context.Background()

	require.NoError(t, sess.LoadBook(ctx, "book-1"))

	h, err := st.GetHistoryForBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, "Test Book book-1", h.Title)
	assert.True(t, h.IsInLibrary)
	assert.Nil(t, h.CompletedAt)

	// A later load reuses the same ledger row.
	require.NoError(t, sess.StopAndUnload(ctx))
	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	again, err := st.GetHistoryForBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, h.ID, again.ID)
}

func TestLoadBook_SwitchFlushesPreviousBook(t *testing.T) {
	sess, driver, st := newHarness(t)
	seedBook(t, st, "book-a", "a1.mp3")
	bookB := seedBook(t, st, "book-b", "b1.mp3")
	ctx := context.Background()

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	sess.now = fixedClock(base)

	require.NoError(t, sess.LoadBook(ctx, "book-a"))
	require.NoError(t, sess.Play())
	driver.LastUnit().Tick(12000)

	histA, err := st.GetHistoryForBook(ctx, "book-a")
	require.NoError(t, err)

	// Pending listening time that has not hit a reconciler tick yet.
	sess.mu.Lock()
	sess.accumulatedMs = 7000
	sess.mu.Unlock()

	require.NoError(t, sess.LoadBook(ctx, "book-b"))

	// Book A's resume point and pending listening time were flushed before
	// the switch.
	prog, err := st.GetProgress(ctx, "book-a")
	require.NoError(t, err)
	assert.Equal(t, int64(12000), prog.PositionMs)

	sessions, err := st.GetListeningSessions(ctx, histA.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "2026-08-24", sessions[0].SessionDate)
	assert.Equal(t, int64(7000), sessions[0].DurationMs)

	assert.Equal(t, 2, driver.OpenCount())
	snap := sess.Snapshot()
	assert.Equal(t, "book-b", snap.BookID)
	assert.Equal(t, bookB.Chapters[0].FilePath, driver.LastUnit().FilePath())
}

func TestPlayPause_QueriesBeforeActing(t *testing.T) {
	sess, driver, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3")
	ctx := context.Background()

	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	unit := driver.LastUnit()

	// Pause while already paused never reaches the backend.
	require.NoError(t, sess.Pause())
	assert.Equal(t, 0, unit.PauseCalls)

	require.NoError(t, sess.Play())
	require.NoError(t, sess.Play())
	assert.Equal(t, 1, unit.PlayCalls)
	assert.True(t, sess.Snapshot().IsPlaying)

	require.NoError(t, sess.Pause())
	assert.Equal(t, 1, unit.PauseCalls)
	assert.False(t, sess.Snapshot().IsPlaying)
}

func TestTogglePlayback(t *testing.T) {
	sess, _, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3")
	ctx := context.Background()

	// No unit loaded: benign no-op.
	require.NoError(t, sess.TogglePlayback())

	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	require.NoError(t, sess.TogglePlayback())
	assert.True(t, sess.Snapshot().IsPlaying)
	require.NoError(t, sess.TogglePlayback())
	assert.False(t, sess.Snapshot().IsPlaying)
}

func TestSeekTo_ClampsAndPersistsImmediately(t *testing.T) {
	sess, driver, st := newHarness(t)
	book := seedBook(t, st, "book-1", "ch1.mp3")
	driver.Durations["ch1.mp3"] = 60000
	ctx := context.Background()

	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	driver.LastUnit().EmitStatus() // deliver the duration

	// Past-the-end seeks clamp to the duration.
	require.NoError(t, sess.SeekTo(ctx, 90000))
	assert.Equal(t, int64(60000), sess.Snapshot().PositionMs)

	// The resume point is persisted synchronously, without waiting for a
	// reconciler tick.
	prog, err := st.GetProgress(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, int64(60000), prog.PositionMs)
	assert.Equal(t, book.Chapters[0].ID, prog.CurrentChapterID)

	// Negative seeks clamp to zero.
	require.NoError(t, sess.SeekTo(ctx, -500))
	assert.Equal(t, int64(0), sess.Snapshot().PositionMs)
}

func TestSeekRelative(t *testing.T) {
	sess, driver, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3")
	driver.Durations["ch1.mp3"] = 60000
	ctx := context.Background()

	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	driver.LastUnit().EmitStatus()

	require.NoError(t, sess.SeekTo(ctx, 30000))
	require.NoError(t, sess.SeekRelative(ctx, -10000))
	assert.Equal(t, int64(20000), sess.Snapshot().PositionMs)

	require.NoError(t, sess.SeekRelative(ctx, -45000))
	assert.Equal(t, int64(0), sess.Snapshot().PositionMs)
}

func TestGoToChapter_PreservesPlayIntent(t *testing.T) {
	sess, driver, st := newHarness(t)
	book := seedBook(t, st, "book-1", "ch1.mp3", "ch2.mp3")
	ctx := context.Background()

	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	require.NoError(t, sess.Play())
	first := driver.LastUnit()

	require.NoError(t, sess.GoToChapter(ctx, 1, 2500))

	assert.True(t, first.Unloaded())
	snap := sess.Snapshot()
	assert.Equal(t, 1, snap.ChapterIndex)
	assert.Equal(t, int64(2500), snap.PositionMs)
	assert.True(t, snap.IsPlaying, "play intent must survive the chapter switch")
	assert.Equal(t, book.Chapters[1].FilePath, driver.LastUnit().FilePath())

	// The switch persists the new resume point like a seek.
	prog, err := st.GetProgress(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, book.Chapters[1].ID, prog.CurrentChapterID)
	assert.Equal(t, int64(2500), prog.PositionMs)
}

func TestGoToChapter_PausedStaysPaused(t *testing.T) {
	sess, _, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3", "ch2.mp3")
	ctx := context.Background()

	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	require.NoError(t, sess.GoToChapter(ctx, 1, 0))

	snap := sess.Snapshot()
	assert.Equal(t, StatePaused, snap.State)
	assert.False(t, snap.IsPlaying)
}

func TestChapterNavigation_BoundsAreNoOps(t *testing.T) {
	sess, driver, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3", "ch2.mp3")
	ctx := context.Background()

	require.NoError(t, sess.LoadBook(ctx, "book-1"))

	require.NoError(t, sess.PreviousChapter(ctx))
	assert.Equal(t, 0, sess.Snapshot().ChapterIndex)

	require.NoError(t, sess.GoToChapter(ctx, 5, 0))
	assert.Equal(t, 0, sess.Snapshot().ChapterIndex)

	require.NoError(t, sess.NextChapter(ctx))
	require.NoError(t, sess.NextChapter(ctx))
	assert.Equal(t, 1, sess.Snapshot().ChapterIndex)

	// Only the initial load and the one successful switch opened units.
	assert.Equal(t, 2, driver.OpenCount())
}

func TestSetPlaybackSpeed(t *testing.T) {
	sess, driver, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3", "ch2.mp3")
	driver.SupportedRates = []float64{1.0, 1.5, 2.0}
	ctx := context.Background()

	require.NoError(t, sess.LoadBook(ctx, "book-1"))

	require.NoError(t, sess.SetPlaybackSpeed(1.5))
	snap := sess.Snapshot()
	assert.Equal(t, 1.5, snap.Rate)
	assert.Empty(t, snap.RateWarning)

	// Rejected rate: visible rate reverts and a one-shot warning is raised.
	require.NoError(t, sess.SetPlaybackSpeed(3.0))
	snap = sess.Snapshot()
	assert.Equal(t, 1.5, snap.Rate)
	assert.NotEmpty(t, snap.RateWarning)
	assert.Empty(t, sess.Snapshot().RateWarning, "warning must clear after one read")

	// The accepted rate carries into the next chapter's unit.
	require.NoError(t, sess.NextChapter(ctx))
	rate, err := driver.LastUnit().Rate()
	require.NoError(t, err)
	assert.Equal(t, 1.5, rate)

	err = sess.SetPlaybackSpeed(-1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestDurationDiscovery_ExactSumOnce(t *testing.T) {
	sess, driver, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3", "ch2.mp3")
	driver.Durations["ch1.mp3"] = 100000
	driver.Durations["ch2.mp3"] = 200000
	ctx := context.Background()

	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	driver.LastUnit().EmitStatus()

	// One chapter reported: its duration is saved, but the book total must
	// stay unknown rather than reflect a partial sum.
	book, err := st.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), book.Chapters[0].DurationMs)
	assert.Equal(t, int64(0), book.TotalDurationMs)

	require.NoError(t, sess.NextChapter(ctx))
	driver.LastUnit().EmitStatus()

	book, err = st.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, int64(200000), book.Chapters[1].DurationMs)
	assert.Equal(t, int64(300000), book.TotalDurationMs)

	// The total mirrors into the history ledger.
	h, err := st.GetHistoryForBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, int64(300000), h.TotalDurationMs)

	// Discovery is one-shot: a later unit reporting a different duration
	// must not move the converged total.
	driver.Durations["ch1.mp3"] = 999
	require.NoError(t, sess.GoToChapter(ctx, 0, 0))
	driver.LastUnit().EmitStatus()

	book, err = st.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, int64(300000), book.TotalDurationMs)
	assert.Equal(t, int64(100000), book.Chapters[0].DurationMs)
}

func TestChapterFinish_AdvancesAndAutoPlays(t *testing.T) {
	sess, driver, st := newHarness(t)
	book := seedBook(t, st, "book-1", "ch1.mp3", "ch2.mp3")
	driver.Durations["ch1.mp3"] = 1000
	driver.Durations["ch2.mp3"] = 1000
	ctx := context.Background()

	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	require.NoError(t, sess.Play())

	driver.LastUnit().EmitFinished()

	snap := sess.Snapshot()
	assert.Equal(t, 1, snap.ChapterIndex)
	assert.Equal(t, int64(0), snap.PositionMs)
	assert.True(t, snap.IsPlaying, "finishing a chapter implies the user was listening")
	assert.Equal(t, book.Chapters[1].FilePath, driver.LastUnit().FilePath())
}

func TestBookFinish_CompletesIdempotently(t *testing.T) {
	sess, driver, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3")
	driver.Durations["ch1.mp3"] = 1000
	ctx := context.Background()

	finishedAt := time.Date(2026, 8, 24, 21, 0, 0, 0, time.UTC)
	sess.now = fixedClock(finishedAt)

	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	require.NoError(t, sess.Play())

	driver.LastUnit().EmitFinished()

	snap := sess.Snapshot()
	assert.Equal(t, StateCompleted, snap.State)
	assert.False(t, snap.IsPlaying)

	h, err := st.GetHistoryForBook(ctx, "book-1")
	require.NoError(t, err)
	require.NotNil(t, h.CompletedAt)
	assert.True(t, h.CompletedAt.Equal(finishedAt))

	// A replayed finish callback must not move the completion time.
	sess.now = fixedClock(finishedAt.Add(48 * time.Hour))
	driver.LastUnit().EmitFinished()

	h, err = st.GetHistoryForBook(ctx, "book-1")
	require.NoError(t, err)
	require.NotNil(t, h.CompletedAt)
	assert.True(t, h.CompletedAt.Equal(finishedAt))
}

func TestReconciler_AccumulatesBetweenPlayingTicks(t *testing.T) {
	sess, driver, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3")
	ctx := context.Background()

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	require.NoError(t, sess.Play())
	driver.LastUnit().Tick(500)

	// N ticks Δt apart while playing credit (N-1)·Δt.
	for i := 0; i < 4; i++ {
		sess.tickAt(base.Add(time.Duration(i) * 5 * time.Second))
	}

	h, err := st.GetHistoryForBook(ctx, "book-1")
	require.NoError(t, err)
	sessions, err := st.GetListeningSessions(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "2026-08-24", sessions[0].SessionDate)
	assert.Equal(t, int64(15000), sessions[0].DurationMs)
}

func TestReconciler_ClampsLongGaps(t *testing.T) {
	sess, driver, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3")
	ctx := context.Background()

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	require.NoError(t, sess.Play())
	driver.LastUnit().Tick(500)

	sess.tickAt(base)
	// Device slept for a minute between ticks: only MaxTickGap is credited.
	sess.tickAt(base.Add(time.Minute))

	h, err := st.GetHistoryForBook(ctx, "book-1")
	require.NoError(t, err)
	sessions, err := st.GetListeningSessions(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(10000), sessions[0].DurationMs)
}

func TestReconciler_PausedTicksBreakTheChain(t *testing.T) {
	sess, driver, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3")
	ctx := context.Background()

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	require.NoError(t, sess.Play())
	driver.LastUnit().Tick(500)

	sess.tickAt(base)
	require.NoError(t, sess.Pause())
	sess.tickAt(base.Add(5 * time.Second))
	require.NoError(t, sess.Play())
	// First playing tick after the pause only restarts the chain.
	sess.tickAt(base.Add(10 * time.Second))
	sess.tickAt(base.Add(15 * time.Second))

	h, err := st.GetHistoryForBook(ctx, "book-1")
	require.NoError(t, err)
	sessions, err := st.GetListeningSessions(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(5000), sessions[0].DurationMs)
}

func TestReconciler_PersistsProgress(t *testing.T) {
	sess, driver, st := newHarness(t)
	book := seedBook(t, st, "book-1", "ch1.mp3")
	ctx := context.Background()

	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	require.NoError(t, sess.Play())
	driver.LastUnit().Tick(4200)

	sess.tickAt(time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC))

	prog, err := st.GetProgress(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, book.Chapters[0].ID, prog.CurrentChapterID)
	assert.Equal(t, int64(4200), prog.PositionMs)
}

func TestStopAndUnload(t *testing.T) {
	sess, driver, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3")
	ctx := context.Background()

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	sess.now = fixedClock(base)

	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	require.NoError(t, sess.Play())
	unit := driver.LastUnit()
	unit.Tick(9000)

	h, err := st.GetHistoryForBook(ctx, "book-1")
	require.NoError(t, err)

	sess.mu.Lock()
	sess.accumulatedMs = 3000
	sess.mu.Unlock()

	require.NoError(t, sess.StopAndUnload(ctx))

	assert.True(t, unit.Unloaded())
	snap := sess.Snapshot()
	assert.Equal(t, StateEmpty, snap.State)
	assert.Empty(t, snap.BookID)
	assert.Equal(t, int64(0), snap.PositionMs)

	prog, err := st.GetProgress(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, int64(9000), prog.PositionMs)

	sessions, err := st.GetListeningSessions(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(3000), sessions[0].DurationMs)

	// Unloading an empty session is harmless.
	require.NoError(t, sess.StopAndUnload(ctx))
}

func TestResetProgress(t *testing.T) {
	sess, _, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3")
	ctx := context.Background()

	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	require.NoError(t, sess.SeekTo(ctx, 1234))
	require.NoError(t, sess.Play())

	require.NoError(t, sess.ResetProgress(ctx, "book-1"))

	_, err := st.GetProgress(ctx, "book-1")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	// Resetting stored progress does not interrupt the live session.
	snap := sess.Snapshot()
	assert.True(t, snap.IsPlaying)
	assert.Equal(t, int64(1234), snap.PositionMs)
}

func TestStaleStatusCallbacksAreDiscarded(t *testing.T) {
	sess, _, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3", "ch2.mp3")
	ctx := context.Background()

	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	staleGen := sess.generation
	require.NoError(t, sess.NextChapter(ctx))

	// A callback from the superseded unit arrives after the switch.
	sess.handleStatus(staleGen, audio.Status{PositionMs: 999999, IsPlaying: true})

	snap := sess.Snapshot()
	assert.Equal(t, 1, snap.ChapterIndex)
	assert.Equal(t, int64(0), snap.PositionMs)
	assert.False(t, snap.IsPlaying)
}

func TestStartStop(t *testing.T) {
	sess, _, st := newHarness(t)
	seedBook(t, st, "book-1", "ch1.mp3")
	ctx := context.Background()

	sess.Start()
	sess.Start() // second Start is a no-op

	require.NoError(t, sess.LoadBook(ctx, "book-1"))
	require.NoError(t, sess.Stop(ctx))

	assert.Equal(t, StateEmpty, sess.Snapshot().State)
	_, err := st.GetProgress(ctx, "book-1")
	require.NoError(t, err, "final progress must be flushed on shutdown")
}
