package trackers

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/pickwise/pickwise/recommender"
)

// Epsilon tracks every agent's exploration rate at each episode
// boundary, giving the decay curve of the whole session.
type Epsilon struct {
	episodeEpsilons [][]float64
	filename        string
}

// NewEpsilon creates and returns a new *Epsilon Tracker saving to the
// given file.
func NewEpsilon(filename string) *Epsilon {
	return &Epsilon{filename: filename}
}

// Track caches the agents' exploration rates on episode-ending steps
// and ignores all others.
func (e *Epsilon) Track(result *recommender.StepResult) {
	if !result.Done {
		return
	}
	e.episodeEpsilons = append(e.episodeEpsilons,
		append([]float64(nil), result.AgentEpsilons...))
}

// Save writes the cached exploration rates to disk, gob-encoded.
func (e *Epsilon) Save() error {
	file, err := os.Create(e.filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(e.episodeEpsilons); err != nil {
		return fmt.Errorf("save: could not encode epsilon data: %v", err)
	}
	return nil
}
