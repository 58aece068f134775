// Package network implements feed forward neural networks as Gorgonia
// computational graphs
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet implements a neural network whose forward pass has been
// added to a Gorgonia computational graph
type NeuralNet interface {
	Graph() *G.ExprGraph

	// BatchSize returns the number of rows in the input to the network
	BatchSize() int

	// Features returns the number of columns in the input to the
	// network
	Features() int

	// Outputs returns the number of columns of each output of the
	// network, one per entry of Prediction()
	Outputs() []int

	// SetInput sets the value of the network's input node. It returns
	// an error if the network was built on top of an existing node that
	// is not an input node.
	SetInput([]float64) error

	Learnables() G.Nodes
	Model() []G.ValueGrad

	// Output returns the values of the network's output nodes after the
	// graph has been run
	Output() []G.Value
	Prediction() []*G.Node
}
