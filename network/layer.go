package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Activation is an activation function applied to a layer's output.
type Activation func(x *G.Node) (*G.Node, error)

// ReLU returns a rectified linear Activation
func ReLU() Activation {
	return G.Rectify
}

// fcLayer implements a fully connected layer of a feedforward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     Activation
}

// newFCLayer adds the weight and bias nodes of a fully connected layer
// to the graph g. The act parameter may be nil for a linear layer.
func newFCLayer(g *G.ExprGraph, in, out int, init G.InitWFn,
	act Activation, name string) *fcLayer {
	weights := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(in, out),
		G.WithInit(init),
		G.WithName(name+"W"),
	)
	bias := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(1, out),
		G.WithInit(G.Zeroes()),
		G.WithName(name+"B"),
	)

	return &fcLayer{weights: weights, bias: bias, act: act}
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x = G.Must(G.Mul(x, f.weights))

	// Broadcast the bias weights to all samples along the batch
	// dimension
	x = G.Must(G.BroadcastAdd(x, f.bias, nil, []byte{0}))

	if f.act == nil {
		return x, nil
	}
	out, err := f.act(x)
	if err != nil {
		return nil, fmt.Errorf("fwd: could not apply activation: %v", err)
	}
	return out, nil
}
