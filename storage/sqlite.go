package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

const sqliteUpsert = `
INSERT INTO sessions (id, doc, updated_at)
VALUES (?, ?, datetime('now'))
ON CONFLICT (id) DO UPDATE SET doc = excluded.doc,
	updated_at = datetime('now')`

// SQLite stores session documents in a single-file database, the
// zero-setup alternative to Postgres for local runs. Pass ":memory:"
// for an ephemeral store.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at path and ensures the
// sessions table exists.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("newsqlite: could not open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("newsqlite: could not create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// SaveSession upserts the whole document under its session id.
func (s *SQLite) SaveSession(ctx context.Context, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("savesession: could not encode document: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqliteUpsert, doc.SessionID,
		string(data)); err != nil {
		return fmt.Errorf("savesession: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
