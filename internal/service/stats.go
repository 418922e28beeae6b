package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundleaf/soundleaf/internal/domain"
	"github.com/soundleaf/soundleaf/internal/store"
)

// StatsService exposes the read side of the history ledger.
type StatsService struct {
	store  store.Store
	logger *slog.Logger
}

// NewStatsService creates a stats service.
func NewStatsService(st store.Store, logger *slog.Logger) *StatsService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StatsService{store: st, logger: logger}
}

// Overview returns the all-time headline numbers.
func (s *StatsService) Overview(ctx context.Context) (*domain.OverviewStats, error) {
	return s.store.GetOverviewStats(ctx)
}

// History lists every book ever played, most recently started first.
// Entries whose book was deleted keep their denormalized title and author.
func (s *StatsService) History(ctx context.Context) ([]*domain.BookHistory, error) {
	return s.store.ListBookHistory(ctx)
}

// BookStats returns per-book listening detail for one history entry.
func (s *StatsService) BookStats(ctx context.Context, historyID string) (*domain.BookStats, error) {
	return s.store.GetBookStats(ctx, historyID)
}

// ListeningSessions returns the raw day buckets for one history entry,
// oldest first.
func (s *StatsService) ListeningSessions(ctx context.Context, historyID string) ([]*domain.ListeningSession, error) {
	if _, err := s.store.GetBookHistory(ctx, historyID); err != nil {
		return nil, err
	}
	return s.store.GetListeningSessions(ctx, historyID)
}

// MonthlyCompletions buckets finished books by month, optionally filtered
// to one year. Zero means all years.
func (s *StatsService) MonthlyCompletions(ctx context.Context, year int) ([]*domain.MonthlyCompletions, error) {
	return s.store.GetMonthlyCompletions(ctx, year)
}

// DailyListening buckets listening time by day, optionally filtered by
// year and month. Zero values widen the range.
func (s *StatsService) DailyListening(ctx context.Context, year int, month time.Month) ([]*domain.DailyListening, error) {
	return s.store.GetDailyListening(ctx, year, month)
}
