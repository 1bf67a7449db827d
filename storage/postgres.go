package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const postgresUpsert = `
INSERT INTO sessions (id, doc, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`

// Postgres stores session documents as JSONB rows, one per session.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection to the given DSN and ensures the
// sessions table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("newpostgres: could not open database: %w",
			err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("newpostgres: could not reach database: %w",
			err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("newpostgres: could not create schema: %w",
			err)
	}
	return &Postgres{db: db}, nil
}

// SaveSession upserts the whole document under its session id.
func (p *Postgres) SaveSession(ctx context.Context, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("savesession: could not encode document: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, postgresUpsert, doc.SessionID,
		data); err != nil {
		return fmt.Errorf("savesession: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
