package api

import (
	"net/http"

	"github.com/soundleaf/soundleaf/internal/http/response"
)

type loadBookRequest struct {
	BookID string `json:"book_id" validate:"required"`
}

type seekRequest struct {
	// Exactly one of the two should be set; PositionMs wins when both are.
	PositionMs *int64 `json:"position_ms,omitempty"`
	DeltaMs    *int64 `json:"delta_ms,omitempty"`
}

type goToChapterRequest struct {
	Index         int   `json:"index" validate:"gte=0"`
	StartOffsetMs int64 `json:"start_offset_ms" validate:"gte=0"`
}

type setRateRequest struct {
	Rate float64 `json:"rate" validate:"gt=0"`
}

// handleGetPlayback returns the current session snapshot.
func (s *Server) handleGetPlayback(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, s.session.Snapshot(), s.logger)
}

// handleLoadBook makes a book the session's subject.
func (s *Server) handleLoadBook(w http.ResponseWriter, r *http.Request) {
	var req loadBookRequest
	if err := s.decodeBody(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if err := s.session.LoadBook(r.Context(), req.BookID); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, s.session.Snapshot(), s.logger)
}

func (s *Server) handlePlay(w http.ResponseWriter, _ *http.Request) {
	if err := s.session.Play(); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, s.session.Snapshot(), s.logger)
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	if err := s.session.Pause(); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, s.session.Snapshot(), s.logger)
}

func (s *Server) handleToggle(w http.ResponseWriter, _ *http.Request) {
	if err := s.session.TogglePlayback(); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, s.session.Snapshot(), s.logger)
}

// handleSeek repositions within the current chapter, absolutely or
// relatively.
func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := s.decodeBody(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	var err error
	switch {
	case req.PositionMs != nil:
		err = s.session.SeekTo(r.Context(), *req.PositionMs)
	case req.DeltaMs != nil:
		err = s.session.SeekRelative(r.Context(), *req.DeltaMs)
	default:
		response.BadRequest(w, "position_ms or delta_ms is required", s.logger)
		return
	}
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, s.session.Snapshot(), s.logger)
}

func (s *Server) handleGoToChapter(w http.ResponseWriter, r *http.Request) {
	var req goToChapterRequest
	if err := s.decodeBody(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if err := s.session.GoToChapter(r.Context(), req.Index, req.StartOffsetMs); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, s.session.Snapshot(), s.logger)
}

func (s *Server) handleNextChapter(w http.ResponseWriter, r *http.Request) {
	if err := s.session.NextChapter(r.Context()); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, s.session.Snapshot(), s.logger)
}

func (s *Server) handlePreviousChapter(w http.ResponseWriter, r *http.Request) {
	if err := s.session.PreviousChapter(r.Context()); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, s.session.Snapshot(), s.logger)
}

func (s *Server) handleSetRate(w http.ResponseWriter, r *http.Request) {
	var req setRateRequest
	if err := s.decodeBody(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if err := s.session.SetPlaybackSpeed(req.Rate); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, s.session.Snapshot(), s.logger)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.session.StopAndUnload(r.Context()); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, s.session.Snapshot(), s.logger)
}
