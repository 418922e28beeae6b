package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soundleaf/soundleaf/internal/http/response"
)

// handleStatsOverview returns the all-time headline stats.
func (s *Server) handleStatsOverview(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Overview(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, stats, s.logger)
}

// handleListHistory returns every book ever played, including entries whose
// book has since been deleted.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.stats.History(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, entries, s.logger)
}

// handleBookStats returns listening detail for one history entry.
func (s *Server) handleBookStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.BookStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, stats, s.logger)
}

// handleListeningSessions returns the day buckets for one history entry.
func (s *Server) handleListeningSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.stats.ListeningSessions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, sessions, s.logger)
}

// handleMonthlyCompletions buckets finished books by month. Accepts an
// optional year query parameter.
func (s *Server) handleMonthlyCompletions(w http.ResponseWriter, r *http.Request) {
	months, err := s.stats.MonthlyCompletions(r.Context(), queryInt(r, "year"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, months, s.logger)
}

// handleDailyListening buckets listening time by day. Accepts optional year
// and month query parameters.
func (s *Server) handleDailyListening(w http.ResponseWriter, r *http.Request) {
	days, err := s.stats.DailyListening(r.Context(), queryInt(r, "year"), queryMonth(r, "month"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, days, s.logger)
}
