// Package api serves the dashboard's read-only HTTP surface: the latest
// shared state record and a health check. It never writes the record.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"airwatch/internal/state"
	"airwatch/internal/types"
)

// Server holds the dashboard dependencies.
type Server struct {
	Reader       state.Reader
	Clock        types.Clock
	Logger       *slog.Logger
	HealthProbes []HealthProbe

	router *chi.Mux
}

// NewServer creates a Server reading from reader. The state slot is always
// registered as a health probe.
func NewServer(reader state.Reader, logger *slog.Logger) (*Server, error) {
	if reader == nil {
		return nil, fmt.Errorf("state reader must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Reader:       reader,
		Clock:        types.RealClock{},
		Logger:       logger,
		HealthProbes: []HealthProbe{StateProbe{Reader: reader}},
		router:       chi.NewRouter(),
	}, nil
}

// MountRoutes registers middleware and routes.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(RequestLogger(s.Logger))

	s.router.Get("/api/current", s.HandleCurrent)
	s.router.Get("/health", s.HandleHealth)
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
