package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cases := map[string]func(*Simulation){
		"negative alpha":             func(c *Simulation) { c.Alpha = -0.1 },
		"beta above one":             func(c *Simulation) { c.Beta = 1.1 },
		"negative epsilon":           func(c *Simulation) { c.Epsilon = -1 },
		"decay above one":            func(c *Simulation) { c.EpsilonDecay = 2 },
		"zero agents":                func(c *Simulation) { c.NumAgents = 0 },
		"zero input dim":             func(c *Simulation) { c.InputDim = 0 },
		"zero action dim":            func(c *Simulation) { c.ActionDim = 0 },
		"zero buffer":                func(c *Simulation) { c.BufferCapacity = 0 },
		"zero batch":                 func(c *Simulation) { c.BatchSize = 0 },
		"zero steps":                 func(c *Simulation) { c.StepsPerEpisode = 0 },
		"zero hidden layer":          func(c *Simulation) { c.HiddenSizes = []int{64, 0} },
		"batch larger than capacity": func(c *Simulation) { c.BufferCapacity = 8; c.BatchSize = 16 },
		"unknown weight init":        func(c *Simulation) { c.WeightInit = "xavier" },
		"unknown optimizer":          func(c *Simulation) { c.Optimizer = "sgd" },
	}

	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			corrupt(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	content := "num_agents: 3\nsteps_per_episode: 5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.NumAgents)
	assert.Equal(t, 5, cfg.StepsPerEpisode)
	assert.Equal(t, Default().Alpha, cfg.Alpha)
	assert.Equal(t, Default().BatchSize, cfg.BatchSize)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("epsilon: 3.0\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
