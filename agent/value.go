package agent

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/pickwise/pickwise/expreplay"
	"github.com/pickwise/pickwise/network"
	"github.com/pickwise/pickwise/timestep"
)

// ValueAgent learns action values online with experience replay and a
// target network, selecting actions epsilon-greedily.
//
// Three networks of identical architecture are kept: a batch-1 policy
// network for action selection, a batch-B train network whose weights
// the solver adapts (the policy network mirrors it after every update),
// and a batch-B target network that provides stable update targets.
// The target network changes only on an explicit UpdateTargetNetwork
// call, never during Update.
type ValueAgent struct {
	id int

	policyNet network.ValueNet
	policyVM  G.VM

	trainNet network.ValueNet
	trainVM  G.VM
	solver   G.Solver

	targetNet network.ValueNet
	targetVM  G.VM

	// Input nodes of the train graph fed before each learning step
	selectedActions       *G.Node
	nextStateActionValues *G.Node
	rewards               *G.Node
	discounts             *G.Node

	replay  *expreplay.Buffer
	epsilon float64
	hp      Hyperparameters

	rng *rand.Rand
}

// NewValue creates and returns a new ValueAgent. Initial network
// weights and action selection draw fresh randomness; reproducibility
// across runs is not guaranteed.
func NewValue(id int, hp Hyperparameters) (*ValueAgent, error) {
	if err := hp.Validate(); err != nil {
		return nil, fmt.Errorf("newvalue: %v", err)
	}

	batchSize := hp.BatchSize
	numActions := hp.ActionDim

	init, err := network.InitFromName(hp.WeightInit)
	if err != nil {
		return nil, fmt.Errorf("newvalue: %v", err)
	}

	// Policy network for selecting single actions
	g := G.NewGraph()
	policyNet, err := network.NewQMLP(hp.InputDim, 1, numActions, g,
		hp.HiddenSizes, init)
	if err != nil {
		return nil, fmt.Errorf("newvalue: could not create policy "+
			"network: %v", err)
	}
	policyVM := G.NewTapeMachine(g)

	// Train network learns the weights on batches of transitions
	trainNet, err := policyNet.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("newvalue: could not create train "+
			"network: %v", err)
	}
	gTrain := trainNet.Graph()

	// Nodes to compute the update target: r + γ * max[Q(s', a')].
	// The discount node carries γ*(1-done) per sample so that terminal
	// transitions use the reward alone.
	nextStateActionValues := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("targetActionVals"))
	rewards := G.NewVector(gTrain, tensor.Float64, G.WithShape(batchSize),
		G.WithName("reward"))
	discounts := G.NewVector(gTrain, tensor.Float64, G.WithShape(batchSize),
		G.WithName("discount"))

	updateTarget := G.Must(G.Max(nextStateActionValues, 1))
	updateTarget = G.Must(G.HadamardProd(updateTarget, discounts))
	updateTarget = G.Must(G.Add(updateTarget, rewards))

	// One-hot mask selecting the value of the action actually taken
	selectedActions := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("actionSelected"))
	selectedActionsValue := G.Must(G.HadamardProd(trainNet.Prediction(),
		selectedActions))
	selectedActionsValue = G.Must(G.Sum(selectedActionsValue, 1))

	// Mean squared TD error
	losses := G.Must(G.Sub(updateTarget, selectedActionsValue))
	losses = G.Must(G.Square(losses))
	cost := G.Must(G.Mean(losses))

	if _, err = G.Grad(cost, trainNet.Learnables()...); err != nil {
		return nil, fmt.Errorf("newvalue: could not compute gradient: %v",
			err)
	}

	trainVM := G.NewTapeMachine(gTrain,
		G.BindDualValues(trainNet.Learnables()...))
	solver := hp.newSolver()

	// Target network provides the update target
	targetNet, err := policyNet.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("newvalue: could not create target "+
			"network: %v", err)
	}
	targetVM := G.NewTapeMachine(targetNet.Graph())

	replay, err := expreplay.New(hp.BufferCapacity, batchSize, hp.InputDim,
		numActions)
	if err != nil {
		return nil, fmt.Errorf("newvalue: could not create replay "+
			"buffer: %v", err)
	}

	return &ValueAgent{
		id: id,

		policyNet: policyNet,
		policyVM:  policyVM,

		trainNet: trainNet,
		trainVM:  trainVM,
		solver:   solver,

		targetNet: targetNet,
		targetVM:  targetVM,

		selectedActions:       selectedActions,
		nextStateActionValues: nextStateActionValues,
		rewards:               rewards,
		discounts:             discounts,

		replay:  replay,
		epsilon: hp.Epsilon,
		hp:      hp,

		rng: rand.New(rand.NewSource(rand.Int63())),
	}, nil
}

// ID returns the agent's identifier
func (a *ValueAgent) ID() int {
	return a.id
}

// Epsilon returns the current exploration rate
func (a *ValueAgent) Epsilon() float64 {
	return a.epsilon
}

// BatchSize returns the number of transitions sampled per Update
func (a *ValueAgent) BatchSize() int {
	return a.hp.BatchSize
}

// SelectAction returns an action for the given observation: a uniformly
// random action with probability epsilon, otherwise the action with the
// largest predicted value, ties broken toward the lowest index. The
// call reads agent state but never mutates it.
func (a *ValueAgent) SelectAction(state mat.Vector) int {
	if a.rng.Float64() < a.epsilon {
		return a.rng.Intn(a.hp.ActionDim)
	}
	return greedyAction(a.QValues(state))
}

// QValues returns the policy network's action scores for a single
// observation.
func (a *ValueAgent) QValues(state mat.Vector) []float64 {
	if state.Len() != a.hp.InputDim {
		panic(fmt.Sprintf("qvalues: invalid observation length "+
			"\n\twant(%v)\n\thave(%v)", a.hp.InputDim, state.Len()))
	}

	if err := a.policyNet.SetInput(timestep.RawObs(state)); err != nil {
		panic(fmt.Sprintf("qvalues: could not set policy input: %v", err))
	}
	if err := a.policyVM.RunAll(); err != nil {
		panic(fmt.Sprintf("qvalues: could not run policy network: %v", err))
	}

	out := a.policyNet.Output().Data().([]float64)
	values := make([]float64, len(out))
	copy(values, out)

	a.policyVM.Reset()
	return values
}

// StoreTransition pushes one transition into the replay buffer. Once
// the buffer is full the oldest transition is evicted.
func (a *ValueAgent) StoreTransition(t timestep.Transition) error {
	if err := a.replay.Add(t); err != nil {
		return fmt.Errorf("storetransition: %v", err)
	}
	return nil
}

// Update performs one gradient step on a batch sampled from the replay
// buffer and then decays epsilon. If the buffer holds fewer than
// BatchSize transitions the call is a no-op: not enough data yet is not
// a fault.
func (a *ValueAgent) Update() error {
	states, actions, rewards, dones, nextStates, err := a.replay.Sample()
	if expreplay.IsEmptyBuffer(err) || expreplay.IsInsufficientSamples(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("update: could not sample: %v", err)
	}

	batchSize := a.hp.BatchSize

	// One-hot vectors of the actions taken at the sampled states
	prevActions := tensor.New(
		tensor.WithShape(batchSize, a.hp.ActionDim),
		tensor.WithBacking(actions),
	)
	if err := G.Let(a.selectedActions, prevActions); err != nil {
		return fmt.Errorf("update: could not set selected actions: %v", err)
	}

	if err := a.trainNet.SetInput(states); err != nil {
		return fmt.Errorf("update: could not set train net input: %v", err)
	}
	if err := a.targetNet.SetInput(nextStates); err != nil {
		return fmt.Errorf("update: could not set target net input: %v", err)
	}

	// Compute the next state-action values with the target network
	if err := a.targetVM.RunAll(); err != nil {
		return fmt.Errorf("update: could not run target network: %v", err)
	}
	if err := G.Let(a.nextStateActionValues, a.targetNet.Output()); err != nil {
		return fmt.Errorf("update: could not set next state-action "+
			"values: %v", err)
	}

	rewardTensor := tensor.New(tensor.WithBacking(rewards),
		tensor.WithShape(batchSize))
	if err := G.Let(a.rewards, rewardTensor); err != nil {
		return fmt.Errorf("update: could not set rewards: %v", err)
	}

	// Terminal transitions learn from the reward alone
	discounts := make([]float64, batchSize)
	for i := range discounts {
		discounts[i] = a.hp.Gamma * (1 - dones[i])
	}
	discountTensor := tensor.New(tensor.WithBacking(discounts),
		tensor.WithShape(batchSize))
	if err := G.Let(a.discounts, discountTensor); err != nil {
		return fmt.Errorf("update: could not set discounts: %v", err)
	}

	a.targetVM.Reset()

	// Run the learning step
	if err := a.trainVM.RunAll(); err != nil {
		return fmt.Errorf("update: could not run train network: %v", err)
	}
	if err := a.solver.Step(a.trainNet.Model()); err != nil {
		return fmt.Errorf("update: could not step solver: %v", err)
	}
	a.trainVM.Reset()

	// The policy network mirrors the newly learned weights
	if err := a.policyNet.Set(a.trainNet); err != nil {
		return fmt.Errorf("update: could not sync policy network: %v", err)
	}

	// Decay exploration on every successful update
	a.epsilon = math.Max(a.hp.EpsilonMin, a.epsilon*a.hp.EpsilonDecay)

	return nil
}

// UpdateTargetNetwork copies every parameter of the learned network
// into the target network. Hard sync, no Polyak averaging.
func (a *ValueAgent) UpdateTargetNetwork() error {
	if err := a.targetNet.Set(a.trainNet); err != nil {
		return fmt.Errorf("updatetargetnetwork: %v", err)
	}
	return nil
}
