// Package trackers provides Trackers, which cache data generated
// during an experiment and save it to disk once the experiment ends.
package trackers

import "github.com/pickwise/pickwise/recommender"

// Tracker caches data from every simulation step of an experiment.
// Track is called once per step in order; Save persists whatever the
// Tracker accumulated.
type Tracker interface {
	Track(result *recommender.StepResult)
	Save() error
}
