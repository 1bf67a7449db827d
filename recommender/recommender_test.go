package recommender

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/pickwise/pickwise/config"
	"github.com/pickwise/pickwise/environment"
	"github.com/pickwise/pickwise/timestep"
)

const testSteps = 3

// testConfig returns a configuration small enough to keep network
// construction and learning steps fast.
func testConfig() config.Simulation {
	cfg := config.Default()
	cfg.NumAgents = 2
	cfg.HiddenSizes = []int{4}
	cfg.BufferCapacity = 16
	cfg.BatchSize = 2
	cfg.StepsPerEpisode = testSteps
	return cfg
}

// capturingWriter records every episode it receives and can be set to
// fail, which the system must tolerate.
type capturingWriter struct {
	episodes map[int][]StepRecord
	err      error
}

func (w *capturingWriter) WriteEpisode(episode int,
	records []StepRecord) error {
	if w.err != nil {
		return w.err
	}
	if w.episodes == nil {
		w.episodes = make(map[int][]StepRecord)
	}
	w.episodes[episode] = records
	return nil
}

func TestStepRequiresActiveEpisode(t *testing.T) {
	sys, err := New(testConfig(), nil, nil)
	if err != nil {
		t.Fatalf("could not create system: %v", err)
	}

	before := sys.Metrics()
	if _, err := sys.Step(0); !errors.Is(err, ErrNotActive) {
		t.Fatalf("wrong error \n\twant(%v)\n\thave(%v)", ErrNotActive, err)
	}
	after := sys.Metrics()

	// A rejected step must leave every counter untouched
	if !reflect.DeepEqual(before, after) {
		t.Errorf("rejected step mutated statistics \n\twant(%+v)"+
			"\n\thave(%+v)", before, after)
	}
}

func TestResetReturnsOneRecommendationPerAgent(t *testing.T) {
	cfg := testConfig()
	sys, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("could not create system: %v", err)
	}

	recs := sys.Reset()
	if len(recs) != cfg.NumAgents {
		t.Fatalf("wrong number of recommendations \n\twant(%v)\n\thave(%v)",
			cfg.NumAgents, len(recs))
	}
	for i, rec := range recs {
		if rec < 0 || rec >= cfg.ActionDim {
			t.Errorf("agent %v recommendation out of range: %v", i, rec)
		}
	}
	if !sys.Active() {
		t.Error("system not active after reset")
	}
}

func TestStepRejectsOutOfRangeChoice(t *testing.T) {
	sys, err := New(testConfig(), nil, nil)
	if err != nil {
		t.Fatalf("could not create system: %v", err)
	}
	sys.Reset()

	if _, err := sys.Step(-1); err == nil {
		t.Error("expected error for negative choice")
	}
	if _, err := sys.Step(sys.NumAgents()); err == nil {
		t.Error("expected error for choice >= NumAgents")
	}
	if sys.Metrics().StepCount != 0 {
		t.Error("rejected step incremented the step count")
	}
}

func TestEpisodeBoundary(t *testing.T) {
	cfg := testConfig()
	writer := &capturingWriter{}
	sys, err := New(cfg, writer, nil)
	if err != nil {
		t.Fatalf("could not create system: %v", err)
	}
	sys.Reset()

	var last *StepResult
	for i := 0; i < testSteps; i++ {
		last, err = sys.Step(i % cfg.NumAgents)
		if err != nil {
			t.Fatalf("step %v failed: %v", i, err)
		}
		if i < testSteps-1 && last.Done {
			t.Fatalf("done on step %v of %v", i+1, testSteps)
		}
	}

	if !last.Done {
		t.Fatalf("not done after %v steps", testSteps)
	}
	if last.EpisodeCount != 1 {
		t.Errorf("wrong episode count \n\twant(1)\n\thave(%v)",
			last.EpisodeCount)
	}
	if len(last.FinishedEpisode) != cfg.NumAgents {
		t.Fatalf("wrong number of transition logs \n\twant(%v)\n\thave(%v)",
			cfg.NumAgents, len(last.FinishedEpisode))
	}
	for i, transitions := range last.FinishedEpisode {
		if len(transitions) != testSteps {
			t.Errorf("agent %v logged %v transitions, want %v", i,
				len(transitions), testSteps)
		}
	}
	if len(last.NextRecommendations) != cfg.NumAgents {
		t.Errorf("no recommendations for the new episode: %v",
			last.NextRecommendations)
	}

	// The boundary hands the records to the writer and resets the
	// per-episode counters
	records, ok := writer.episodes[0]
	if !ok {
		t.Fatal("writer never received episode 0")
	}
	if len(records) != testSteps {
		t.Fatalf("wrong record count \n\twant(%v)\n\thave(%v)", testSteps,
			len(records))
	}
	for i, record := range records {
		if record.T != i {
			t.Errorf("record %v carries time index %v", i, record.T)
		}
	}
	if !records[testSteps-1].Done {
		t.Error("final record not marked done")
	}
	if sys.Metrics().EpisodeReward != 0 {
		t.Error("episode reward not reset at the boundary")
	}
}

func TestWriterFailureDoesNotAbortTheSession(t *testing.T) {
	writer := &capturingWriter{err: errors.New("disk full")}
	sys, err := New(testConfig(), writer, nil)
	if err != nil {
		t.Fatalf("could not create system: %v", err)
	}
	sys.Reset()

	for i := 0; i < testSteps; i++ {
		if _, err := sys.Step(0); err != nil {
			t.Fatalf("step %v failed: %v", i, err)
		}
	}
	if sys.Metrics().EpisodeCount != 1 {
		t.Error("episode boundary not crossed despite writer failure")
	}
}

func TestStatisticsBookkeeping(t *testing.T) {
	cfg := testConfig()
	sys, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("could not create system: %v", err)
	}
	sys.Reset()

	const rounds = 2 * testSteps
	for i := 0; i < rounds; i++ {
		if _, err := sys.Step(i % cfg.NumAgents); err != nil {
			t.Fatalf("step %v failed: %v", i, err)
		}
	}

	snap := sys.Metrics()
	if snap.StepCount != rounds {
		t.Fatalf("wrong step count \n\twant(%v)\n\thave(%v)", rounds,
			snap.StepCount)
	}

	selections := 0
	for _, count := range snap.SelectionCounts {
		selections += count
	}
	if selections != rounds {
		t.Errorf("selection counts sum to %v, want %v", selections, rounds)
	}

	for i, acc := range snap.AgentAccuracy {
		if acc.Recommendations+acc.NonRecommendations != rounds {
			t.Errorf("agent %v decision counts do not cover every round: "+
				"%+v", i, acc)
		}
		if acc.TruePositives > acc.Recommendations ||
			acc.TrueNegatives > acc.NonRecommendations {
			t.Errorf("agent %v correctness exceeds decision counts: %+v",
				i, acc)
		}
		if snap.RecommendationCounts[i] != acc.Recommendations {
			t.Errorf("agent %v recommendation counters disagree: %v vs %v",
				i, snap.RecommendationCounts[i], acc.Recommendations)
		}
	}

	if snap.CumulativeHumanReward < 0 ||
		snap.CumulativeHumanReward > float64(rounds) {
		t.Errorf("cumulative human reward out of range: %v",
			snap.CumulativeHumanReward)
	}
}

// The step result is consumed by external frontends, so the per-agent
// outcome fields must both be present in the JSON encoding and agree
// with the realized round.
func TestStepResultCarriesAgentOutcomes(t *testing.T) {
	cfg := testConfig()
	sys, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("could not create system: %v", err)
	}
	sys.Reset()

	var last *StepResult
	for i := 0; i < testSteps; i++ {
		last, err = sys.Step(0)
		if err != nil {
			t.Fatalf("step %v failed: %v", i, err)
		}
		if i < testSteps-1 && last.NewEpisode {
			t.Fatalf("new episode flagged mid-episode on step %v", i+1)
		}

		success := last.Outcome == environment.Success.String()
		for j, correct := range last.AgentCorrectness {
			want := (last.Recommendations[j] == timestep.Recommend) ==
				success
			if correct != want {
				t.Errorf("step %v agent %v correctness \n\twant(%v)"+
					"\n\thave(%v)", i+1, j, want, correct)
			}
		}

		// One agent earns +1 and every other -1 per round, so the
		// per-episode returns always sum to 2 - numAgents per step
		total := 0.0
		for _, r := range last.CumulativeAgentRewards {
			total += r
		}
		want := float64((i + 1) * (2 - cfg.NumAgents))
		if total != want {
			t.Errorf("step %v cumulative agent rewards sum \n\twant(%v)"+
				"\n\thave(%v)", i+1, want, total)
		}
	}

	if !last.NewEpisode {
		t.Error("episode-ending step did not flag a new episode")
	}

	encoded, err := json.Marshal(last)
	if err != nil {
		t.Fatalf("could not encode step result: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("could not decode step result: %v", err)
	}
	for _, key := range []string{
		"cumulative_agent_rewards", "agent_correctness", "new_episode",
	} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("result record missing %q", key)
		}
	}
}

// With the coin pinned to certain Success and every agent forced to
// recommend, each recommendation is correct, so the true positive rate
// is exactly 1.
func TestAccuracyWithForcedOutcomes(t *testing.T) {
	cfg := testConfig()
	sys, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("could not create system: %v", err)
	}
	sys.Reset()

	for i := 0; i < testSteps; i++ {
		sys.env.SetProbability(1.0)
		for j := range sys.currentRecs {
			sys.currentRecs[j] = 1
		}
		if _, err := sys.Step(0); err != nil {
			t.Fatalf("step %v failed: %v", i, err)
		}
	}

	snap := sys.Metrics()
	for i, acc := range snap.AgentAccuracy {
		if acc.Recommendations != testSteps {
			t.Errorf("agent %v recommendation count \n\twant(%v)"+
				"\n\thave(%v)", i, testSteps, acc.Recommendations)
		}
		if acc.TruePositiveRate != 1.0 {
			t.Errorf("agent %v true positive rate \n\twant(1)\n\thave(%v)",
				i, acc.TruePositiveRate)
		}
		if acc.NonRecommendations != 0 || acc.TrueNegativeRate != 0 {
			t.Errorf("agent %v unexpected non-recommendation stats: %+v",
				i, acc)
		}
	}
}

func TestSnapshotIsRepeatable(t *testing.T) {
	sys, err := New(testConfig(), nil, nil)
	if err != nil {
		t.Fatalf("could not create system: %v", err)
	}
	sys.Reset()
	if _, err := sys.Step(0); err != nil {
		t.Fatalf("step failed: %v", err)
	}

	first := sys.Metrics()
	second := sys.Metrics()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("back-to-back snapshots differ \n\twant(%+v)\n\thave(%+v)",
			first, second)
	}
}

func TestNewRejectsWrongObservationDimension(t *testing.T) {
	cfg := testConfig()
	cfg.InputDim = 3
	if _, err := New(cfg, nil, nil); err == nil {
		t.Error("expected error for input dimension != 2")
	}
}
