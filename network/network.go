// Package network implements the Q-value function approximators used
// by the learning agents, built on Gorgonia computational graphs.
package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ValueNet is a feedforward network mapping a batch of observation
// vectors to one real-valued score per action.
//
// A ValueNet only populates a gorgonia.ExprGraph; it has no virtual
// machine of its own. Callers set the input with SetInput, run a VM
// over Graph(), and then read the scores from Output().
type ValueNet interface {
	Graph() *G.ExprGraph
	BatchSize() int
	Features() int
	Outputs() int

	// SetInput sets the network input before the graph is run. The
	// input is the row-major flattening of BatchSize() observation
	// vectors.
	SetInput([]float64) error

	// Output returns the value produced by the last run of the graph
	Output() G.Value

	// Prediction returns the graph node holding the network output
	Prediction() *G.Node

	Learnables() G.Nodes
	Model() []G.ValueGrad

	// Set copies every parameter of source into the receiver. The two
	// networks must share an architecture.
	Set(source ValueNet) error

	// CloneWithBatch returns a network of identical architecture and
	// parameters on a fresh graph, accepting a different batch size.
	CloneWithBatch(batchSize int) (ValueNet, error)
}

// qMLP implements ValueNet as a multilayer perceptron with ReLU hidden
// layers and a linear output head.
type qMLP struct {
	g      *G.ExprGraph
	layers []*fcLayer
	input  *G.Node

	numInputs   int
	numOutputs  int
	batchSize   int
	hiddenSizes []int
	init        G.InitWFn

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewQMLP creates a new MLP with len(hiddenSizes) ReLU hidden layers
// and a final linear layer of outputs units, so that any input of
// features features produces outputs action scores. The init parameter
// determines the weight initialization scheme.
func NewQMLP(features, batch, outputs int, g *G.ExprGraph,
	hiddenSizes []int, init G.InitWFn) (ValueNet, error) {
	if features < 1 {
		return nil, fmt.Errorf("newqmlp: features must be >= 1")
	}
	if outputs < 1 {
		return nil, fmt.Errorf("newqmlp: outputs must be >= 1")
	}
	if batch < 1 {
		return nil, fmt.Errorf("newqmlp: batch must be >= 1")
	}

	input := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, features),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)

	layers := make([]*fcLayer, 0, len(hiddenSizes)+1)
	prev := features
	for i, size := range hiddenSizes {
		name := fmt.Sprintf("hidden%d", i)
		layers = append(layers, newFCLayer(g, prev, size, init, ReLU(), name))
		prev = size
	}
	layers = append(layers, newFCLayer(g, prev, outputs, init, nil, "output"))

	net := &qMLP{
		g:           g,
		layers:      layers,
		input:       input,
		numInputs:   features,
		numOutputs:  outputs,
		batchSize:   batch,
		hiddenSizes: hiddenSizes,
		init:        init,
	}
	if err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("newqmlp: could not compute forward pass: %v",
			err)
	}

	return net, nil
}

// fwd performs the forward pass of the network on the input node
func (q *qMLP) fwd(input *G.Node) error {
	pred := input
	var err error
	for i, l := range q.layers {
		if pred, err = l.fwd(pred); err != nil {
			return fmt.Errorf("fwd: could not compute forward pass of "+
				"layer %v: %v", i, err)
		}
	}

	q.prediction = pred
	G.Read(q.prediction, &q.predVal)
	return nil
}

// Graph returns the computational graph of the network
func (q *qMLP) Graph() *G.ExprGraph {
	return q.g
}

// BatchSize returns the number of observations per input batch
func (q *qMLP) BatchSize() int {
	return q.batchSize
}

// Features returns the number of features in a single observation
func (q *qMLP) Features() int {
	return q.numInputs
}

// Outputs returns the number of action scores the network predicts
func (q *qMLP) Outputs() int {
	return q.numOutputs
}

// SetInput sets the value of the input node before running the forward
// pass.
func (q *qMLP) SetInput(input []float64) error {
	if len(input) != q.numInputs*q.batchSize {
		return fmt.Errorf("setinput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", q.numInputs*q.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(q.input.Shape()...),
	)
	return G.Let(q.input, inputTensor)
}

// Output returns the output of the last run of the network
func (q *qMLP) Output() G.Value {
	return q.predVal
}

// Prediction returns the node of the computational graph that stores
// the network output
func (q *qMLP) Prediction() *G.Node {
	return q.prediction
}

// Set sets the parameters of the network to be equal to those of
// another network of the same architecture
func (q *qMLP) Set(source ValueNet) error {
	sourceNodes := source.Learnables()
	nodes := q.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: architecture mismatch \n\twant(%v "+
			"learnables)\n\thave(%v)", len(nodes), len(sourceNodes))
	}
	for i, destLearnable := range nodes {
		sourceLearnable := sourceNodes[i].Clone()
		err := G.Let(destLearnable, sourceLearnable.(*G.Node).Value())
		if err != nil {
			return err
		}
	}
	return nil
}

// CloneWithBatch clones the network onto a fresh graph with a new
// input batch size, copying the current parameters.
func (q *qMLP) CloneWithBatch(batchSize int) (ValueNet, error) {
	graph := G.NewGraph()
	clone, err := NewQMLP(q.numInputs, batchSize, q.numOutputs, graph,
		q.hiddenSizes, q.init)
	if err != nil {
		return nil, fmt.Errorf("clonewithbatch: could not clone: %v", err)
	}
	if err := clone.Set(q); err != nil {
		return nil, fmt.Errorf("clonewithbatch: could not copy "+
			"parameters: %v", err)
	}
	return clone, nil
}

// Learnables returns the learnable nodes of the network
func (q *qMLP) Learnables() G.Nodes {
	// Lazy instantiation
	if q.learnables == nil {
		q.learnables = make(G.Nodes, 0, 2*len(q.layers))
		for i := range q.layers {
			q.learnables = append(q.learnables, q.layers[i].weights)
			q.learnables = append(q.learnables, q.layers[i].bias)
		}
	}
	return q.learnables
}

// Model returns the learnable nodes with their gradients
func (q *qMLP) Model() []G.ValueGrad {
	// Lazy instantiation
	if q.model == nil {
		q.model = make([]G.ValueGrad, 0, 2*len(q.layers))
		for _, node := range q.Learnables() {
			q.model = append(q.model, node)
		}
	}
	return q.model
}
