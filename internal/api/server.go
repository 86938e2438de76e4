package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"storyforge/internal/generate"
	"storyforge/internal/pipeline"
)

// Server wires the HTTP routes to the expansion pipeline.
type Server struct {
	orch         *pipeline.Orchestrator
	stats        *generate.LLMStats
	sectionLabel string
	log          *slog.Logger
}

func NewServer(orch *pipeline.Orchestrator, stats *generate.LLMStats, sectionLabel string, log *slog.Logger) *Server {
	return &Server{orch: orch, stats: stats, sectionLabel: sectionLabel, log: log}
}

// Routes builds the router. The health endpoint is unauthenticated; everything
// under /api requires the bearer token.
func (s *Server) Routes(apiKey string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(apiKey, s.log))
		r.Post("/epics/{epicKey}/expand", s.handleExpand)
		r.Get("/expand/{jobID}/status", s.handleJobStatus)
		r.Get("/epics/{epicKey}/stories", s.handleStories)
		r.Delete("/epics/{epicKey}/artifacts", s.handlePurgeArtifacts)
		r.Get("/stats/llm", s.handleLLMStats)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orch.QueueDepth(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
