package api

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/soundleaf/soundleaf/internal/http/response"
)

type addSourceRequest struct {
	URI         string `json:"uri" validate:"required"`
	DisplayName string `json:"display_name"`
}

// handleListBooks returns all books in the library, newest first.
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.library.ListBooks(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, books, s.logger)
}

// handleGetBook returns a single book with its chapters.
func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.library.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

// handleDeleteBook removes a book from the library. The playback session is
// unloaded first when it holds this book.
func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")
	active := s.session.Snapshot().BookID

	if err := s.library.DeleteBook(r.Context(), bookID, s.session, active); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleGetBookCover streams the book's cover image from disk.
func (s *Server) handleGetBookCover(w http.ResponseWriter, r *http.Request) {
	book, err := s.library.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if book.CoverPath == "" {
		response.NotFound(w, "book has no cover", s.logger)
		return
	}
	if _, err := os.Stat(book.CoverPath); err != nil {
		response.NotFound(w, "cover file is missing", s.logger)
		return
	}
	http.ServeFile(w, r, book.CoverPath)
}

// handleResetProgress deletes the saved resume point for a book.
func (s *Server) handleResetProgress(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ResetProgress(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleAddSource registers a folder source and runs its initial import.
func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req addSourceRequest
	if err := s.decodeBody(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	source, err := s.library.AddFolderSource(r.Context(), req.URI, req.DisplayName)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, source, s.logger)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.library.ListFolderSources(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, sources, s.logger)
}

func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	if err := s.library.RemoveFolderSource(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleScanSource rescans one registered source.
func (s *Server) handleScanSource(w http.ResponseWriter, r *http.Request) {
	result, err := s.library.ScanSource(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, result, s.logger)
}

// handleScanAll rescans every registered source.
func (s *Server) handleScanAll(w http.ResponseWriter, r *http.Request) {
	results, err := s.library.ScanAll(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, results, s.logger)
}
