// Package session tracks the live simulation sessions of a server
// process.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pickwise/pickwise/recommender"
	"github.com/pickwise/pickwise/sessionlog"
)

// Session is one live simulation with its orchestrator and its session
// document. The orchestrator is not safe for concurrent use, so every
// caller wraps its work in Lock/Unlock.
type Session struct {
	ID        string
	System    *recommender.System
	Log       *sessionlog.Logger
	CreatedAt time.Time

	mu sync.Mutex
}

// Lock serializes access to the session's orchestrator.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// Registry is the concurrent map of live sessions, keyed by session
// id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create registers a new session and returns it. An empty id is
// replaced with a fresh UUID.
func (r *Registry) Create(id string, sys *recommender.System,
	log *sessionlog.Logger) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		ID:        id,
		System:    sys,
		Log:       log,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get returns the session with the given id, if it exists.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete removes the session with the given id, reporting whether it
// existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
