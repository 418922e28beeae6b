// Package api provides the HTTP surface of the Soundleaf daemon, consumed by
// the local UI client.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/soundleaf/soundleaf/internal/http/response"
	"github.com/soundleaf/soundleaf/internal/playback"
	"github.com/soundleaf/soundleaf/internal/service"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	session  *playback.Session
	library  *service.LibraryService
	stats    *service.StatsService
	router   *chi.Mux
	validate *validator.Validate
	logger   *slog.Logger
}

// NewServer creates the HTTP server with all routes configured.
func NewServer(session *playback.Session, library *service.LibraryService, stats *service.StatsService, logger *slog.Logger) *Server {
	s := &Server{
		session:  session,
		library:  library,
		stats:    stats,
		router:   chi.NewRouter(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	// The daemon serves a local UI; origins are not restricted.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/books", func(r chi.Router) {
			r.Get("/", s.handleListBooks)
			r.Get("/{id}", s.handleGetBook)
			r.Delete("/{id}", s.handleDeleteBook)
			r.Get("/{id}/cover", s.handleGetBookCover)
			r.Delete("/{id}/progress", s.handleResetProgress)
		})

		r.Route("/sources", func(r chi.Router) {
			r.Post("/", s.handleAddSource)
			r.Get("/", s.handleListSources)
			r.Delete("/{id}", s.handleRemoveSource)
			r.Post("/{id}/scan", s.handleScanSource)
		})
		r.Post("/scan", s.handleScanAll)

		r.Route("/playback", func(r chi.Router) {
			r.Get("/", s.handleGetPlayback)
			r.Post("/load", s.handleLoadBook)
			r.Post("/play", s.handlePlay)
			r.Post("/pause", s.handlePause)
			r.Post("/toggle", s.handleToggle)
			r.Post("/seek", s.handleSeek)
			r.Post("/chapter", s.handleGoToChapter)
			r.Post("/chapter/next", s.handleNextChapter)
			r.Post("/chapter/previous", s.handlePreviousChapter)
			r.Post("/rate", s.handleSetRate)
			r.Post("/stop", s.handleStop)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/overview", s.handleStatsOverview)
			r.Get("/monthly", s.handleMonthlyCompletions)
			r.Get("/daily", s.handleDailyListening)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.handleListHistory)
			r.Get("/{id}/stats", s.handleBookStats)
			r.Get("/{id}/sessions", s.handleListeningSessions)
		})
	})
}

// handleHealthCheck returns server health status.
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{"status": "healthy"}, s.logger)
}
