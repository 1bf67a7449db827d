package trackers

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/pickwise/pickwise/recommender"
)

// Return tracks the episodic return of the simulated human: the sum of
// human payoffs over each episode. One value is cached per completed
// episode; an unfinished final episode is not saved.
type Return struct {
	lastT          int
	currentReturn  float64
	episodeReturns []float64
	filename       string
}

// NewReturn creates and returns a new *Return Tracker saving to the
// given file.
func NewReturn(filename string) *Return {
	return &Return{lastT: -1, filename: filename}
}

// Track accumulates the human payoff of one step. Track panics when
// called on non-sequential steps.
func (r *Return) Track(result *recommender.StepResult) {
	if r.lastT+1 != result.T {
		panic(fmt.Sprintf("track: non-sequential steps tracked: "+
			"t %v --> t %v", r.lastT, result.T))
	}

	r.currentReturn += result.HumanPayoff
	if !result.Done {
		r.lastT = result.T
		return
	}

	// Episode over, cache its return and start accumulating the next
	r.episodeReturns = append(r.episodeReturns, r.currentReturn)
	r.currentReturn = 0
	r.lastT = -1
}

// Returns exposes the episodic returns cached so far.
func (r *Return) Returns() []float64 {
	return append([]float64(nil), r.episodeReturns...)
}

// Save writes the cached episodic returns to disk, gob-encoded.
func (r *Return) Save() error {
	file, err := os.Create(r.filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(r.episodeReturns); err != nil {
		return fmt.Errorf("save: could not encode return data: %v", err)
	}
	return nil
}
