// Package api exposes simulation sessions over HTTP: create a
// session, step it with a human choice, read its metrics, delete it.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pickwise/pickwise/config"
	"github.com/pickwise/pickwise/session"
	"github.com/pickwise/pickwise/storage"
)

const simulationsPrefix = "/api/v1/simulations"

// maxStepsPerRequest caps the steps query parameter of the step
// endpoint.
const maxStepsPerRequest = 1000

// Server is the HTTP API server. Sessions live in the registry; the
// store, when present, receives every session's episode documents.
type Server struct {
	defaults config.Simulation
	registry *session.Registry
	store    storage.Store
	log      *slog.Logger
	metrics  *metrics
}

// NewServer creates an API server over the given registry. Sessions
// created without a configuration body use defaults. The store may be
// nil to disable persistence; a nil logger falls back to slog.Default.
func NewServer(defaults config.Simulation, registry *session.Registry,
	store storage.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		defaults: defaults,
		registry: registry,
		store:    store,
		log:      logger,
		metrics:  newMetrics(),
	}
}

// Handler returns the server's routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc(simulationsPrefix, s.handleSimulations)
	mux.HandleFunc(simulationsPrefix+"/", s.handleSimulation)
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry,
		promhttp.HandlerOpts{}))

	return s.loggingMiddleware(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSimulations handles POST /api/v1/simulations
func (s *Server) handleSimulations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.createSession(w, r, false)
}

// handleSimulation dispatches the per-session routes:
//
//	POST   /api/v1/simulations/init
//	POST   /api/v1/simulations/{id}/step
//	GET    /api/v1/simulations/{id}/state
//	DELETE /api/v1/simulations/{id}
func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, simulationsPrefix),
		"/")

	if rest == "init" {
		if r.Method != http.MethodPost {
			s.respondError(w, http.StatusMethodNotAllowed,
				"method not allowed")
			return
		}
		s.createSession(w, r, true)
		return
	}

	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.deleteSession(w, parts[0])
	case len(parts) == 2 && parts[1] == "step" && r.Method == http.MethodPost:
		s.stepSession(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "state" && r.Method == http.MethodGet:
		s.getState(w, parts[0])
	default:
		s.respondError(w, http.StatusNotFound, "not found")
	}
}

// parseSteps reads the steps query parameter, defaulting to 1.
func parseSteps(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("steps")
	if raw == "" {
		return 1, nil
	}
	steps, err := strconv.Atoi(raw)
	if err != nil || steps < 1 || steps > maxStepsPerRequest {
		return 0, fmt.Errorf("steps must be an integer in [1, %v]",
			maxStepsPerRequest)
	}
	return steps, nil
}

// Response helpers

func (s *Server) respondJSON(w http.ResponseWriter, status int,
	data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("could not encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int,
	message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) parseJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// Middleware

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs every request and counts it in the request
// metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		s.metrics.requestsTotal.WithLabelValues(r.Method,
			strconv.Itoa(recorder.status)).Inc()
		s.log.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration", time.Since(start),
		)
	})
}
