package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/pickwise/pickwise/recommender"
	"github.com/pickwise/pickwise/sessionlog"
)

// createSession builds a session from the optional configuration body
// and starts its first episode. With withInit the response also
// carries the initial state for a frontend to render.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request,
	withInit bool) {
	cfg := s.defaults
	if r.ContentLength != 0 {
		if err := s.parseJSON(r, &cfg); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	participant := r.URL.Query().Get("participant")
	sessLog := sessionlog.New("", participant, cfg, s.store, s.log)

	sys, err := recommender.New(cfg, sessLog, s.log)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	recommendations := sys.Reset()

	sess := s.registry.Create(sessLog.SessionID(), sys, sessLog)
	s.metrics.sessionsCreated.Inc()
	s.log.Info("session created", "session_id", sess.ID)

	if !withInit {
		s.respondJSON(w, http.StatusCreated, map[string]string{
			"session_id": sess.ID,
			"message":    "session created successfully",
		})
		return
	}

	obs := sys.Observation()
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": sess.ID,
		"state": map[string]interface{}{
			"current_p":               obs.AtVec(0),
			"current_t":               int(obs.AtVec(1)),
			"recommendations":         recommendations,
			"episode":                 0,
			"step":                    0,
			"game_over":               false,
			"cumulative_human_reward": 0.0,
		},
	})
}

// stepSession runs one or more simulation steps with the same human
// choice and returns the final step's result.
func (s *Server) stepSession(w http.ResponseWriter, r *http.Request,
	id string) {
	sess, ok := s.registry.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}

	var req struct {
		HumanChoice int `json:"human_choice_idx"`
	}
	if r.ContentLength != 0 {
		if err := s.parseJSON(r, &req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	steps, err := parseSteps(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess.Lock()
	defer sess.Unlock()

	if req.HumanChoice < 0 || req.HumanChoice >= sess.System.NumAgents() {
		s.respondError(w, http.StatusBadRequest,
			"human_choice_idx out of range")
		return
	}

	var last *recommender.StepResult
	for i := 0; i < steps; i++ {
		start := time.Now()
		last, err = sess.System.Step(req.HumanChoice)
		if errors.Is(err, recommender.ErrNotActive) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		if err != nil {
			s.log.Error("step failed", "session_id", id, "error", err)
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.metrics.stepsTotal.Inc()
		s.metrics.stepDuration.Observe(time.Since(start).Seconds())
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"steps_executed": steps,
		"final_result":   last,
	})
}

// getState returns the session's metrics snapshot.
func (s *Server) getState(w http.ResponseWriter, id string) {
	sess, ok := s.registry.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}

	sess.Lock()
	snapshot := sess.System.Metrics()
	sess.Unlock()

	s.respondJSON(w, http.StatusOK, snapshot)
}

// deleteSession removes the session from the registry.
func (s *Server) deleteSession(w http.ResponseWriter, id string) {
	if !s.registry.Delete(id) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.metrics.sessionsDeleted.Inc()
	s.log.Info("session deleted", "session_id", id)

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message":    "session deleted successfully",
		"session_id": id,
	})
}
