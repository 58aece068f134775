package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// TreeMLP implements a multi-layered perceptron with a root network
// and multiple leaf networks that use the output of the root network
// as their own inputs. A diagram of a tree MLP:
//
// 					  ╭─→ Leaf Network 1 	   ─→ Output
//					  ├─→ Leaf Network 2	   ─→ Output
// Input ─→ Root Net ─┼─→ ...				   ─→  ...
//					  ╰─→ Leaf Network N	   ─→ Output
//
// Policies use a TreeMLP to predict the parameters of a distribution
// from a shared representation, for example the mean and log standard
// deviation of a Gaussian.
type TreeMLP struct {
	g            *G.ExprGraph
	rootNetwork  NeuralNet
	leafNetworks []NeuralNet
	input        *G.Node

	numOutputs []int
	numInputs  int
	batchSize  int

	learnables G.Nodes
	model      []G.ValueGrad
}

// LeafConfig describes the hidden layers of a single leaf network. A
// final linear layer with a bias is always added to each leaf.
type LeafConfig struct {
	HiddenSizes []int
	Biases      []bool
	Activations []*Activation
}

// NewTreeMLP returns a new TreeMLP with an input node of shape
// (batch, features). The root network must have at least one hidden
// layer. Each leaf network predicts outputs values per row. The name
// prefixes every node the TreeMLP adds to g.
func NewTreeMLP(features, batch, outputs int, g *G.ExprGraph,
	rootHiddenSizes []int, rootBiases []bool,
	rootActivations []*Activation, leaves []LeafConfig, init G.InitWFn,
	name string) (*TreeMLP, error) {
	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName(name+"Input"), G.WithInit(G.Zeroes()))

	return NewTreeMLPFromInput(input, outputs, g, rootHiddenSizes,
		rootBiases, rootActivations, leaves, init, name)
}

// NewTreeMLPFromInput is like NewTreeMLP, but uses an existing node of
// g as the input to the root network
func NewTreeMLPFromInput(input *G.Node, outputs int, g *G.ExprGraph,
	rootHiddenSizes []int, rootBiases []bool,
	rootActivations []*Activation, leaves []LeafConfig, init G.InitWFn,
	name string) (*TreeMLP, error) {
	if len(rootHiddenSizes) == 0 {
		return nil, fmt.Errorf("newTreeMLP: root network must have at " +
			"least one hidden layer")
	}
	if len(leaves) == 0 {
		return nil, fmt.Errorf("newTreeMLP: there must be at least one " +
			"leaf network")
	}
	if outputs <= 0 {
		return nil, fmt.Errorf("newTreeMLP: there must be more than 0 " +
			"outputs per leaf network")
	}

	rootOutputs := rootHiddenSizes[len(rootHiddenSizes)-1]
	root, err := NewMultiHeadMLPFromInput([]*G.Node{input}, rootOutputs, g,
		rootHiddenSizes, rootBiases, init, rootActivations, name+"Root",
		false)
	if err != nil {
		return nil, fmt.Errorf("newTreeMLP: could not create root "+
			"network: %v", err)
	}

	leafNetworks := make([]NeuralNet, len(leaves))
	numOutputs := make([]int, len(leaves))
	for i, leaf := range leaves {
		leafNetworks[i], err = NewMultiHeadMLPFromInput(root.Prediction(),
			outputs, g, leaf.HiddenSizes, leaf.Biases, init,
			leaf.Activations, fmt.Sprintf("%vLeaf%v", name, i), true)
		if err != nil {
			return nil, fmt.Errorf("newTreeMLP: could not create leaf "+
				"network %v: %v", i, err)
		}
		numOutputs[i] = outputs
	}

	return &TreeMLP{
		g:            g,
		rootNetwork:  root,
		leafNetworks: leafNetworks,
		input:        input,
		numOutputs:   numOutputs,
		numInputs:    root.Features(),
		batchSize:    root.BatchSize(),
	}, nil
}

// Graph returns the computational graph of the network
func (t *TreeMLP) Graph() *G.ExprGraph {
	return t.g
}

// BatchSize returns the batch size of inputs to the network
func (t *TreeMLP) BatchSize() int {
	return t.batchSize
}

// Features returns the number of features in a single input row
func (t *TreeMLP) Features() int {
	return t.numInputs
}

// Outputs returns the number of outputs of each leaf network
func (t *TreeMLP) Outputs() []int {
	return t.numOutputs
}

// Input returns the input node of the root network
func (t *TreeMLP) Input() *G.Node {
	return t.input
}

// SetInput sets the value of the input node of the root network
func (t *TreeMLP) SetInput(input []float64) error {
	return t.rootNetwork.SetInput(input)
}

// Learnables returns the learnable nodes of the root network followed
// by those of each leaf network
func (t *TreeMLP) Learnables() G.Nodes {
	if t.learnables == nil {
		learnables := append(G.Nodes(nil), t.rootNetwork.Learnables()...)
		for _, leaf := range t.leafNetworks {
			learnables = append(learnables, leaf.Learnables()...)
		}
		t.learnables = learnables
	}
	return t.learnables
}

// Model returns the learnables nodes with their gradients.
func (t *TreeMLP) Model() []G.ValueGrad {
	if t.model == nil {
		learnables := t.Learnables()
		model := make([]G.ValueGrad, len(learnables))
		for i, node := range learnables {
			model[i] = node
		}
		t.model = model
	}
	return t.model
}

// Output returns the values predicted by each leaf network
func (t *TreeMLP) Output() []G.Value {
	out := make([]G.Value, len(t.leafNetworks))
	for i, leaf := range t.leafNetworks {
		out[i] = leaf.Output()[0]
	}
	return out
}

// Prediction returns the output node of each leaf network
func (t *TreeMLP) Prediction() []*G.Node {
	pred := make([]*G.Node, len(t.leafNetworks))
	for i, leaf := range t.leafNetworks {
		pred[i] = leaf.Prediction()[0]
	}
	return pred
}
