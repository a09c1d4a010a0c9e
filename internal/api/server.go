package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/docmark/internal/config"
	"github.com/dgallion1/docmark/internal/fetch"
	"github.com/dgallion1/docmark/internal/highlight"
	"github.com/dgallion1/docmark/internal/pipeline"
	"github.com/dgallion1/docmark/internal/sessions"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
)

// Server is the HTTP API server for docmark.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	sessions     *sessions.Store
	fetcher      *fetch.Client // nil when page fetching is disabled
	stats        *highlight.Stats
	log          *slog.Logger
	cfg          config.Config
	upgrader     websocket.Upgrader
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, store *sessions.Store, fetcher *fetch.Client, stats *highlight.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		sessions:     store,
		fetcher:      fetcher,
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
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
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/highlight", s.handleHighlight)
		r.Post("/api/highlight/batch", s.handleBatchHighlight)
		r.Get("/api/jobs/{jobID}/status", s.handleJobStatus)
		r.Get("/api/jobs/{jobID}/result", s.handleJobResult)

		r.Route("/api/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Put("/query", s.handleSetQuery)
				r.Delete("/query", s.handleClearQuery)
				r.Post("/next", s.handleFocusNext)
				r.Post("/prev", s.handleFocusPrev)
				r.Get("/document", s.handleDocument)
				r.Get("/ws", s.handleSessionWS)
			})
		})

		r.Get("/api/stats/scans", s.handleScanStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
