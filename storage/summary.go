package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pickwise/pickwise/recommender"
)

var summaryHeader = []string{
	"timestamp", "session_id", "episode", "steps", "human_return",
}

// SummaryWriter appends one row per completed episode to a CSV file,
// the quick-look companion to the full session document. Rows are
// flushed on every append so a crash loses at most the current
// episode.
type SummaryWriter struct {
	file      *os.File
	writer    *csv.Writer
	sessionID string
}

// NewSummaryWriter opens or creates the CSV file at path, writing the
// header only when the file is new.
func NewSummaryWriter(path, sessionID string) (*SummaryWriter, error) {
	info, err := os.Stat(path)
	fresh := err != nil || info.Size() == 0

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY,
		0o644)
	if err != nil {
		return nil, fmt.Errorf("newsummarywriter: could not open %v: %w",
			path, err)
	}

	w := &SummaryWriter{
		file:      file,
		writer:    csv.NewWriter(file),
		sessionID: sessionID,
	}
	if fresh {
		if err := w.writer.Write(summaryHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("newsummarywriter: could not write "+
				"header: %w", err)
		}
		w.writer.Flush()
	}
	return w, nil
}

// Append writes one episode's summary row.
func (w *SummaryWriter) Append(episode int,
	records []recommender.StepRecord) error {
	humanReturn := 0.0
	for _, record := range records {
		humanReturn += record.HumanPayoff
	}

	row := []string{
		time.Now().UTC().Format(time.RFC3339),
		w.sessionID,
		strconv.Itoa(episode),
		strconv.Itoa(len(records)),
		strconv.FormatFloat(humanReturn, 'g', -1, 64),
	}
	if err := w.writer.Write(row); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	w.writer.Flush()
	return w.writer.Error()
}

// Close flushes and closes the file.
func (w *SummaryWriter) Close() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
