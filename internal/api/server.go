// Package api exposes the editing session over HTTP for server mode.
// Both transports drive the same session, so the tree and audit trail
// stay consistent no matter which side mutates them.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/smarttoc/smarttoc/internal/config"
	"github.com/smarttoc/smarttoc/internal/session"
)

// Server is the HTTP API server for smarttoc.
type Server struct {
	router  chi.Router
	session *session.Session
	log     *slog.Logger
	cfg     *config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(sess *session.Session, log *slog.Logger, cfg *config.Config) *Server {
	s := &Server{
		session: sess,
		log:     log,
		cfg:     cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints. An empty key disables auth for local use.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/documents", s.handleOpenDocument)
		r.Post("/api/documents/{docID}/generate", s.handleGenerate)
		r.Post("/api/documents/{docID}/refine", s.handleRefine)
		r.Post("/api/documents/{docID}/save", s.handleSave)

		r.Get("/api/toc", s.handleTree)
		r.Post("/api/toc", s.handleAddEntry)
		r.Put("/api/toc/reorder", s.handleReorder)
		r.Patch("/api/toc/{nodeID}", s.handleEditLabel)
		r.Delete("/api/toc/{nodeID}", s.handleDeleteEntry)
		r.Post("/api/toc/{nodeID}/confirm", s.handleConfirmEntry)

		r.Get("/api/audit", s.handleAuditTrail)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
