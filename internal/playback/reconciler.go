package playback

import (
	"context"
	"time"

	"github.com/soundleaf/soundleaf/internal/domain"
	"github.com/soundleaf/soundleaf/internal/id"
)

// reconcileLocked is one reconciler tick: credit listening time observed
// since the previous playing tick, flush the accumulator into the day
// ledger, and persist the resume point. Persistence failures are logged and
// retried on the next tick; playback is never interrupted for them.
// Caller holds s.mu.
func (s *Session) reconcileLocked(ctx context.Context, now time.Time) {
	if s.book == nil || s.unit == nil || s.state == StateLoading {
		return
	}

	s.accumulateLocked(now)
	s.flushListeningLocked(ctx, now)

	if s.positionMs > 0 {
		s.saveProgressLocked(ctx)
	}
}

// accumulateLocked credits wall-clock time between consecutive playing
// ticks. The gap is clamped to MaxTickGap so that device sleep or process
// suspension between ticks cannot inflate listening stats. A paused tick
// breaks the chain: time spent paused is never credited. Caller holds s.mu.
func (s *Session) accumulateLocked(now time.Time) {
	if !s.playing {
		s.lastPlayingTick = time.Time{}
		return
	}
	if !s.lastPlayingTick.IsZero() {
		gap := now.Sub(s.lastPlayingTick)
		if gap > s.cfg.MaxTickGap {
			gap = s.cfg.MaxTickGap
		}
		if gap > 0 {
			s.accumulatedMs += gap.Milliseconds()
		}
	}
	s.lastPlayingTick = now
}

// flushListeningLocked moves the accumulator into the listening_sessions day
// bucket for now's date. The accumulator is reset only after a successful
// write, so a failed flush carries the time forward instead of dropping it.
// Caller holds s.mu.
func (s *Session) flushListeningLocked(ctx context.Context, now time.Time) {
	if s.accumulatedMs <= 0 || s.history == nil {
		return
	}

	sessionID, err := id.Generate("ls")
	if err != nil {
		s.logger.Error("failed to generate listening session id", "error", err)
		return
	}
	date := domain.SessionDateOf(now)
	if err := s.store.AddListeningTime(ctx, sessionID, s.history.ID, date, s.accumulatedMs); err != nil {
		s.logger.Warn("failed to flush listening time, will retry",
			"history_id", s.history.ID, "session_date", date, "error", err)
		return
	}
	s.accumulatedMs = 0
}

// saveProgressLocked upserts the resume point for the active book. Caller
// holds s.mu.
func (s *Session) saveProgressLocked(ctx context.Context) {
	if s.book == nil {
		return
	}
	ch := s.book.ChapterAt(s.chapterIndex)
	if ch == nil {
		return
	}

	prog := &domain.Progress{
		BookID:           s.book.ID,
		CurrentChapterID: ch.ID,
		PositionMs:       s.positionMs,
		LastPlayedAt:     s.now().UTC(),
	}
	if err := s.store.UpsertProgress(ctx, prog); err != nil {
		s.logger.Warn("failed to save progress, will retry",
			"book_id", s.book.ID, "error", err)
	}
}
