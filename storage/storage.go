// Package storage persists session documents. A session document is
// the growing record of one experiment session: its metadata, its
// configuration, and the step records of every completed episode. The
// whole document is rewritten on each save, so a reader always sees a
// complete session, never a partial episode.
package storage

import (
	"context"
	"time"

	"github.com/pickwise/pickwise/config"
	"github.com/pickwise/pickwise/recommender"
)

// Document is one session's full persisted state. Episodes are keyed
// by the episode index as a string so the document round-trips through
// JSON object keys unchanged.
type Document struct {
	SessionID   string            `json:"session_id"`
	Participant string            `json:"participant"`
	StartedAt   time.Time         `json:"started_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Config      config.Simulation `json:"config"`

	Episodes map[string][]recommender.StepRecord `json:"episodes"`
}

// Store saves session documents, replacing any previous version of the
// same session.
type Store interface {
	SaveSession(ctx context.Context, doc *Document) error
	Close() error
}
