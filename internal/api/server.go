// Package api exposes the portal's HTTP surface: run lifecycle, batch
// dispatch, audit review, and mapping administration. Every data route is
// scoped by organization; auth guards the whole /api tree.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cratecrew/boxops/internal/auth"
	"github.com/cratecrew/boxops/internal/config"
)

// Server is the portal HTTP server.
type Server struct {
	config      config.ServerConfig
	handler     http.Handler
	handlers    *Handlers
	server      *http.Server
	authManager *auth.Manager
	router      *chi.Mux
}

// NewServer creates the API server. authManager may be nil, which leaves the
// /api tree unauthenticated (local development only).
func NewServer(cfg config.ServerConfig, handlers *Handlers, authManager *auth.Manager) *Server {
	router := SetupRoutes(handlers, authManager)
	return &Server{
		config:      cfg,
		handler:     router,
		handlers:    handlers,
		authManager: authManager,
		router:      router,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// Batch dispatch is synchronous and paced by the rate limiter, so a
		// full batch of ten can take a little while to answer.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
