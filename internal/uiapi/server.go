// Package uiapi exposes a read-only chi HTTP surface over the orchestrator:
// current health (§6 status()), recent optimization outcomes, and lookup of
// one outcome by ID. Grounded on the teacher's server.go chi router shape
// (middleware stack, CORS-for-local-dev, JSON envelope helpers), trimmed to
// the read-only surface this domain calls for.
package uiapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mkallio/heatopt/internal/orchestrator"
)

// Server wraps one Orchestrator with an HTTP view over its status and
// outcome history.
type Server struct {
	orch *orchestrator.Orchestrator
}

// NewServer builds a Server over orch.
func NewServer(orch *orchestrator.Orchestrator) *Server {
	return &Server{orch: orch}
}

// Handler builds the chi router this server serves.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/history", s.handleHistory)
		r.Get("/outcome/{id}", s.handleOutcome)
	})

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.orch.Status())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	n := 50
	if raw := r.URL.Query().Get("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}

	history, err := s.orch.History(n)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	outcome, found, err := s.orch.Outcome(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "outcome not found")
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
