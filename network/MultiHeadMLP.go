package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// multiHeadMLP implements a multi-layered perceptron with a single
// output layer of numOutputs units
type multiHeadMLP struct {
	g          *G.ExprGraph
	layers     []*fcLayer
	input      *G.Node
	numOutputs int
	numInputs  int
	batchSize  int

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// validateMLP ensures there is one bias and one activation per hidden
// layer
func validateMLP(hiddenSizes []int, biases []bool,
	activations []*Activation) error {
	if len(hiddenSizes) != len(activations) {
		msg := "invalid number of activations\n\twant(%d)\n\thave(%d)"
		return fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}

	if len(hiddenSizes) != len(biases) {
		msg := "invalid number of biases\n\twant(%d)\n\thave(%d)"
		return fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}
	return nil
}

// NewMultiHeadMLP creates and returns a new multi-layered perceptron
// with outputs output units. The graph g is populated with the MLP,
// whose input node has shape (batch, features).
//
// The MLP has len(hiddenSizes) + 1 layers. For index i, hiddenSizes[i]
// is the number of units in hidden layer i, biases[i] determines
// whether hidden layer i has a bias unit, and activations[i] is the
// activation of hidden layer i. A final linear layer with a bias is
// always added so that the network predicts outputs values per row.
// The parameter init determines the weight initialization scheme and
// name prefixes each node the MLP adds to g. Names must be unique
// within a graph.
func NewMultiHeadMLP(features, batch, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation, name string) (NeuralNet, error) {
	if err := validateMLP(hiddenSizes, biases, activations); err != nil {
		return nil, fmt.Errorf("newMultiHeadMLP: %v", err)
	}

	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName(name+"Input"), G.WithInit(G.Zeroes()))

	return NewMultiHeadMLPFromInput([]*G.Node{input}, outputs, g,
		hiddenSizes, biases, init, activations, name, true)
}

// NewMultiHeadMLPFromInput returns a new MLP that uses existing nodes
// of g as its input. If multiple input nodes are given, they are first
// concatenated along the feature (column) dimension. This is used to
// build networks on top of other networks, for example a critic which
// evaluates the actions predicted by a policy in the same graph.
//
// If addFinalLayer is false, the last hidden layer is used as the
// output layer and must have outputs units.
func NewMultiHeadMLPFromInput(inputs []*G.Node, outputs int,
	g *G.ExprGraph, hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation, name string,
	addFinalLayer bool) (NeuralNet, error) {
	if err := validateMLP(hiddenSizes, biases, activations); err != nil {
		return nil, fmt.Errorf("newMultiHeadMLPFromInput: %v", err)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("newMultiHeadMLPFromInput: no input nodes")
	}

	// Concatenate inputs if necessary
	var input *G.Node
	if len(inputs) > 1 {
		var err error
		input, err = G.Concat(1, inputs...)
		if err != nil {
			return nil, fmt.Errorf("newMultiHeadMLPFromInput: could not "+
				"concatenate inputs: %v", err)
		}
	} else {
		input = inputs[0]
	}

	if !input.IsMatrix() {
		return nil, fmt.Errorf("newMultiHeadMLPFromInput: input must be a " +
			"matrix")
	}

	batch := input.Shape()[0]
	features := input.Shape()[1]

	// Copy so that appending the final layer does not modify the
	// caller's slices
	sizes := append([]int(nil), hiddenSizes...)
	bs := append([]bool(nil), biases...)
	acts := append([]*Activation(nil), activations...)

	// If required, add a final linear layer with no activation to ensure
	// the outputs are predicted by the network
	if addFinalLayer {
		sizes = append(sizes, outputs)
		bs = append(bs, true)
		acts = append(acts, Identity())
	} else if len(sizes) == 0 || outputs != sizes[len(sizes)-1] {
		msg := "newMultiHeadMLPFromInput: claimed output is of size %v " +
			"but the final network layer has a different size"
		return nil, fmt.Errorf(msg, outputs)
	}

	layers := make([]*fcLayer, len(sizes))
	in := features
	for i := range sizes {
		layers[i] = newFCLayer(g, in, sizes[i], bs[i], acts[i], init,
			fmt.Sprintf("%vL%v", name, i))
		in = sizes[i]
	}

	network := &multiHeadMLP{
		g:          g,
		layers:     layers,
		input:      input,
		numOutputs: outputs,
		numInputs:  features,
		batchSize:  batch,
	}

	if _, err := network.fwd(input); err != nil {
		msg := "newMultiHeadMLPFromInput: could not compute forward pass: %v"
		return nil, fmt.Errorf(msg, err)
	}

	return network, nil
}

// Graph returns the computational graph of the multiHeadMLP.
func (e *multiHeadMLP) Graph() *G.ExprGraph {
	return e.g
}

// BatchSize returns the batch size of inputs to the network
func (e *multiHeadMLP) BatchSize() int {
	return e.batchSize
}

// Features returns the number of features in a single input row
func (e *multiHeadMLP) Features() int {
	return e.numInputs
}

// Outputs returns the number of outputs from the network
func (e *multiHeadMLP) Outputs() []int {
	return []int{e.numOutputs}
}

// SetInput sets the value of the input node before running the forward
// pass.
func (e *multiHeadMLP) SetInput(input []float64) error {
	if e.input.Op() != nil {
		return fmt.Errorf("setInput: network input is computed by the graph")
	}

	if len(input) != e.numInputs*e.batchSize {
		return fmt.Errorf("setInput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", e.numInputs*e.batchSize, len(input))
	}

	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(e.input.Shape()...),
	)
	return G.Let(e.input, inputTensor)
}

// Learnables returns the learnable nodes in a multiHeadMLP
func (e *multiHeadMLP) Learnables() G.Nodes {
	// Lazy instantiation
	if e.learnables == nil {
		learnables := make(G.Nodes, 0, 2*len(e.layers))
		for _, l := range e.layers {
			learnables = append(learnables, l.learnables()...)
		}
		e.learnables = learnables
	}
	return e.learnables
}

// Model returns the learnables nodes with their gradients.
func (e *multiHeadMLP) Model() []G.ValueGrad {
	// Lazy instantiation
	if e.model == nil {
		learnables := e.Learnables()
		model := make([]G.ValueGrad, len(learnables))
		for i, node := range learnables {
			model[i] = node
		}
		e.model = model
	}
	return e.model
}

// fwd performs the forward pass of the multiHeadMLP on the input
// node
func (e *multiHeadMLP) fwd(input *G.Node) (*G.Node, error) {
	pred := input
	var err error
	for i, l := range e.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}

	e.prediction = pred
	G.Read(e.prediction, &e.predVal)

	return pred, nil
}

// Output returns the output of the multiHeadMLP.
func (e *multiHeadMLP) Output() []G.Value {
	return []G.Value{e.predVal}
}

// Prediction returns the node of the computational graph the stores
// the output of the multiHeadMLP
func (e *multiHeadMLP) Prediction() []*G.Node {
	return []*G.Node{e.prediction}
}
