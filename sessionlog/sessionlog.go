// Package sessionlog maintains the growing document of one experiment
// session and lands it in a storage backend after every completed
// episode.
package sessionlog

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pickwise/pickwise/config"
	"github.com/pickwise/pickwise/recommender"
	"github.com/pickwise/pickwise/storage"
)

// saveTimeout bounds how long one episode save may block the
// simulation loop.
const saveTimeout = 5 * time.Second

// Logger accumulates one session's document and saves the whole
// document through its Store after each episode. Storage failures are
// logged and swallowed: losing persistence never aborts a session in
// progress.
//
// A Logger belongs to a single session and is driven by that session's
// orchestrator, so it needs no locking of its own.
type Logger struct {
	store storage.Store
	log   *slog.Logger
	doc   storage.Document
}

// New creates a Logger for a fresh session. A nil store disables
// persistence but keeps the in-memory document growing; a nil logger
// falls back to slog.Default.
func New(sessionID, participant string, cfg config.Simulation,
	store storage.Store, logger *slog.Logger) *Logger {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now().UTC()
	return &Logger{
		store: store,
		log:   logger.With("session_id", sessionID),
		doc: storage.Document{
			SessionID:   sessionID,
			Participant: participant,
			StartedAt:   now,
			UpdatedAt:   now,
			Config:      cfg,
			Episodes:    make(map[string][]recommender.StepRecord),
		},
	}
}

// SessionID returns the id under which the document is stored.
func (l *Logger) SessionID() string {
	return l.doc.SessionID
}

// WriteEpisode adds one completed episode to the document and saves
// the document. It never returns an error: a failed save leaves the
// episode in memory for the next attempt.
func (l *Logger) WriteEpisode(episode int,
	records []recommender.StepRecord) error {
	l.doc.Episodes[strconv.Itoa(episode)] = records
	l.doc.UpdatedAt = time.Now().UTC()

	if l.store == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := l.store.SaveSession(ctx, &l.doc); err != nil {
		l.log.Error("could not save session document",
			"episode", episode,
			"error", err,
		)
	}
	return nil
}

// Document returns a copy of the session document as it stands. The
// episode slices are shared; callers must not mutate them.
func (l *Logger) Document() storage.Document {
	doc := l.doc
	doc.Episodes = make(map[string][]recommender.StepRecord,
		len(l.doc.Episodes))
	for k, v := range l.doc.Episodes {
		doc.Episodes[k] = v
	}
	return doc
}
