package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickwise/pickwise/config"
	"github.com/pickwise/pickwise/recommender"
)

func testDocument(id string) *Document {
	return &Document{
		SessionID:   id,
		Participant: "p-01",
		StartedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
		Config:      config.Default(),
		Episodes: map[string][]recommender.StepRecord{
			"0": {
				{
					T:               0,
					P:               0.5,
					Recommendations: []int{1, 0},
					HumanChoice:     0,
					AgentPayoffs:    []float64{1, -1},
					Outcome:         "Heads",
					HumanPayoff:     1,
					TNext:           1,
				},
			},
		},
	}
}

func TestSQLiteSaveIsAnUpsert(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	doc := testDocument("session-1")
	require.NoError(t, store.SaveSession(ctx, doc))

	// Saving again with a second episode must replace, not duplicate
	doc.Episodes["1"] = doc.Episodes["0"]
	require.NoError(t, store.SaveSession(ctx, doc))

	var count int
	require.NoError(t, store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions").Scan(&count))
	assert.Equal(t, 1, count)

	var raw string
	require.NoError(t, store.db.QueryRowContext(ctx,
		"SELECT doc FROM sessions WHERE id = ?", "session-1").Scan(&raw))

	var stored Document
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "p-01", stored.Participant)
	assert.Len(t, stored.Episodes, 2)
}

func TestSQLiteKeepsSessionsApart(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveSession(ctx, testDocument("a")))
	require.NoError(t, store.SaveSession(ctx, testDocument("b")))

	var count int
	require.NoError(t, store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestSummaryWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")

	w, err := NewSummaryWriter(path, "session-1")
	require.NoError(t, err)

	records := testDocument("session-1").Episodes["0"]
	require.NoError(t, w.Append(0, records))
	require.NoError(t, w.Close())

	// Reopening must not rewrite the header
	w, err = NewSummaryWriter(path, "session-1")
	require.NoError(t, err)
	require.NoError(t, w.Append(1, records))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(summaryHeader, ","), lines[0])
	assert.Contains(t, lines[1], "session-1,0,1,1")
	assert.Contains(t, lines[2], "session-1,1,1,1")
}
