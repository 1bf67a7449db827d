// Package config defines the validated simulation configuration shared
// by the HTTP layer, the CLI, and the orchestrator.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pickwise/pickwise/agent"
	"github.com/pickwise/pickwise/network"
)

// Simulation holds every hyperparameter of one experiment session. A
// Simulation is constructed once, validated eagerly, and never mutated
// afterwards.
type Simulation struct {
	// Agent hyperparameters
	Alpha        float64 `json:"alpha" yaml:"alpha"`                 // learning rate
	Beta         float64 `json:"beta" yaml:"beta"`                   // discount factor
	Epsilon      float64 `json:"epsilon" yaml:"epsilon"`             // initial exploration rate
	EpsilonDecay float64 `json:"epsilon_decay" yaml:"epsilon_decay"` // decay per update
	EpsilonMin   float64 `json:"epsilon_min" yaml:"epsilon_min"`

	// Architecture
	NumAgents   int    `json:"num_agents" yaml:"num_agents"`
	InputDim    int    `json:"input_dim" yaml:"input_dim"` // observation dimension [p, t]
	ActionDim   int    `json:"action_dim" yaml:"action_dim"`
	HiddenSizes []int  `json:"hidden_sizes" yaml:"hidden_sizes"`
	WeightInit  string `json:"weight_init" yaml:"weight_init"`
	Optimizer   string `json:"optimizer" yaml:"optimizer"`

	// Training
	BufferCapacity int `json:"buffer_capacity" yaml:"buffer_capacity"`
	BatchSize      int `json:"batch_size" yaml:"batch_size"`

	// Environment
	StepsPerEpisode int `json:"steps_per_episode" yaml:"steps_per_episode"`
}

// Default returns the reference configuration of the experiment.
func Default() Simulation {
	return Simulation{
		Alpha:           1e-3,
		Beta:            0.99,
		Epsilon:         1.0,
		EpsilonDecay:    0.995,
		EpsilonMin:      0.01,
		NumAgents:       2,
		InputDim:        2,
		ActionDim:       2,
		HiddenSizes:     []int{64, 64},
		WeightInit:      network.GlorotUniform,
		Optimizer:       agent.Adam,
		BufferCapacity:  10000,
		BatchSize:       64,
		StepsPerEpisode: 20,
	}
}

// Validate rejects out-of-range hyperparameters. Construction-time
// validation keeps range errors out of the simulation core entirely.
func (c Simulation) Validate() error {
	if c.Alpha < 0 {
		return fmt.Errorf("validate: alpha must be >= 0 \n\thave(%v)",
			c.Alpha)
	}
	for name, value := range map[string]float64{
		"beta":          c.Beta,
		"epsilon":       c.Epsilon,
		"epsilon_decay": c.EpsilonDecay,
		"epsilon_min":   c.EpsilonMin,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("validate: %v must be in [0, 1] \n\thave(%v)",
				name, value)
		}
	}
	for name, value := range map[string]int{
		"num_agents":        c.NumAgents,
		"input_dim":         c.InputDim,
		"action_dim":        c.ActionDim,
		"buffer_capacity":   c.BufferCapacity,
		"batch_size":        c.BatchSize,
		"steps_per_episode": c.StepsPerEpisode,
	} {
		if value < 1 {
			return fmt.Errorf("validate: %v must be >= 1 \n\thave(%v)",
				name, value)
		}
	}
	for _, size := range c.HiddenSizes {
		if size < 1 {
			return fmt.Errorf("validate: hidden layer sizes must be >= 1 "+
				"\n\thave(%v)", c.HiddenSizes)
		}
	}
	if c.BatchSize > c.BufferCapacity {
		return fmt.Errorf("validate: batch_size (%v) cannot exceed "+
			"buffer_capacity (%v)", c.BatchSize, c.BufferCapacity)
	}
	if _, err := network.InitFromName(c.WeightInit); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	switch c.Optimizer {
	case "", agent.Adam, agent.Vanilla:
	default:
		return fmt.Errorf("validate: unknown optimizer %q", c.Optimizer)
	}
	return nil
}

// Hyperparameters maps the configuration onto the hyperparameter set
// of one recommender agent.
func (c Simulation) Hyperparameters() agent.Hyperparameters {
	return agent.Hyperparameters{
		LearningRate:   c.Alpha,
		Gamma:          c.Beta,
		Epsilon:        c.Epsilon,
		EpsilonDecay:   c.EpsilonDecay,
		EpsilonMin:     c.EpsilonMin,
		InputDim:       c.InputDim,
		ActionDim:      c.ActionDim,
		BufferCapacity: c.BufferCapacity,
		BatchSize:      c.BatchSize,
		HiddenSizes:    c.HiddenSizes,
		WeightInit:     c.WeightInit,
		Optimizer:      c.Optimizer,
	}
}

// Load reads a Simulation from a YAML file, filling unset fields from
// Default and validating the result.
func Load(path string) (Simulation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Simulation{}, fmt.Errorf("load: could not read %v: %w", path,
			err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Simulation{}, fmt.Errorf("load: could not parse %v: %w", path,
			err)
	}
	if err := cfg.Validate(); err != nil {
		return Simulation{}, fmt.Errorf("load: %v: %v", path, err)
	}
	return cfg, nil
}
