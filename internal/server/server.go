// Package server exposes the retention engine over a local HTTP API: frame
// ingest for the capture producer, search and frame listing for browsing
// clients, and the control signals (policy, prune pause, clear) the host
// application pushes in.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lazypower/backscroll/internal/buffer"
	"github.com/lazypower/backscroll/internal/framestore"
	"github.com/lazypower/backscroll/internal/textcache"
)

// Server is the backscroll HTTP API server.
type Server struct {
	buf     *buffer.Buffer
	store   *framestore.Store
	texts   *textcache.Cache
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over the orchestrator and its stores.
func New(buf *buffer.Buffer, store *framestore.Store, texts *textcache.Cache, version string) *Server {
	s := &Server{
		buf:     buf,
		store:   store,
		texts:   texts,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/frames", s.handleIngestFrame)
		r.Get("/frames", s.handleListFrames)
		r.Get("/frames/{frameID}/image", s.handleFrameImage)
		r.Get("/frames/{frameID}/thumbnail", s.handleFrameThumbnail)
		r.Get("/frames/{frameID}/text", s.handleFrameText)

		r.Get("/search", s.handleSearch)
		r.Get("/stats", s.handleStats)

		r.Post("/policy", s.handleSetPolicy)
		r.Post("/prune/pause", s.handlePrunePause)
		r.Post("/prune/resume", s.handlePruneResume)
		r.Post("/capture/black-check", s.handleBlackCheck)
		r.Post("/clear", s.handleClear)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.texts.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"frames":  s.buf.FrameCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
