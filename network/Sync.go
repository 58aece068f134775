package network

import (
	"encoding/gob"
	"fmt"
	"io"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// checkCompatible ensures two networks have learnables of the same
// shapes in the same order
func checkCompatible(dest, source NeuralNet) error {
	destNodes := dest.Learnables()
	sourceNodes := source.Learnables()
	if len(destNodes) != len(sourceNodes) {
		return fmt.Errorf("networks have different numbers of learnables "+
			"\n\twant(%v) \n\thave(%v)", len(destNodes), len(sourceNodes))
	}

	for i := range destNodes {
		if !destNodes[i].Shape().Eq(sourceNodes[i].Shape()) {
			return fmt.Errorf("learnable %v has a different shape "+
				"\n\twant(%v) \n\thave(%v)", i, destNodes[i].Shape(),
				sourceNodes[i].Shape())
		}
	}
	return nil
}

// Set sets the weights of dest to be equal to the weights of source.
// The weights are copied, so later updates to source do not affect
// dest.
func Set(dest, source NeuralNet) error {
	if err := checkCompatible(dest, source); err != nil {
		return fmt.Errorf("set: %v", err)
	}

	sourceNodes := source.Learnables()
	for i, destLearnable := range dest.Learnables() {
		weights, ok := sourceNodes[i].Value().(*tensor.Dense)
		if !ok {
			return fmt.Errorf("set: learnable %v is not a dense tensor", i)
		}

		if err := G.Let(destLearnable, weights.Clone()); err != nil {
			return fmt.Errorf("set: could not set learnable %v: %v", i, err)
		}
	}
	return nil
}

// Polyak sets the weights of dest to a polyak average between its
// existing weights and the weights of source:
//
//		dest ← (1 - tau) * dest + tau * source
func Polyak(dest, source NeuralNet, tau float64) error {
	if err := checkCompatible(dest, source); err != nil {
		return fmt.Errorf("polyak: %v", err)
	}

	sourceNodes := source.Learnables()
	for i, destLearnable := range dest.Learnables() {
		weights := destLearnable.Value().(*tensor.Dense)
		sourceWeights := sourceNodes[i].Value().(*tensor.Dense)

		weights, err := weights.MulScalar(1-tau, true)
		if err != nil {
			return fmt.Errorf("polyak: %v", err)
		}

		sourceWeights, err = sourceWeights.MulScalar(tau, true)
		if err != nil {
			return fmt.Errorf("polyak: %v", err)
		}

		newWeights, err := weights.Add(sourceWeights)
		if err != nil {
			return fmt.Errorf("polyak: %v", err)
		}

		if err := G.Let(destLearnable, newWeights); err != nil {
			return fmt.Errorf("polyak: could not set learnable %v: %v", i,
				err)
		}
	}
	return nil
}

// learnableSnapshot is the gob representation of a single learnable
type learnableSnapshot struct {
	Shape []int
	Data  []float64
}

// Save writes the weights of a network to w
func Save(w io.Writer, net NeuralNet) error {
	learnables := net.Learnables()
	ws := make([]learnableSnapshot, len(learnables))
	for i, node := range learnables {
		data, ok := node.Value().Data().([]float64)
		if !ok {
			return fmt.Errorf("save: learnable %v is not float64", i)
		}
		ws[i] = learnableSnapshot{
			Shape: append([]int(nil), node.Shape()...),
			Data:  append([]float64(nil), data...),
		}
	}

	if err := gob.NewEncoder(w).Encode(ws); err != nil {
		return fmt.Errorf("save: could not encode weights: %v", err)
	}
	return nil
}

// Load reads weights written with Save into a network of the same
// architecture
func Load(r io.Reader, net NeuralNet) error {
	var ws []learnableSnapshot
	if err := gob.NewDecoder(r).Decode(&ws); err != nil {
		return fmt.Errorf("load: could not decode weights: %v", err)
	}

	learnables := net.Learnables()
	if len(ws) != len(learnables) {
		return fmt.Errorf("load: invalid number of learnables \n\twant(%v)"+
			"\n\thave(%v)", len(learnables), len(ws))
	}

	for i, node := range learnables {
		if !node.Shape().Eq(tensor.Shape(ws[i].Shape)) {
			return fmt.Errorf("load: learnable %v has shape %v but %v was "+
				"saved", i, node.Shape(), ws[i].Shape)
		}

		value := tensor.New(
			tensor.WithShape(ws[i].Shape...),
			tensor.WithBacking(ws[i].Data),
		)
		if err := G.Let(node, value); err != nil {
			return fmt.Errorf("load: could not set learnable %v: %v", i, err)
		}
	}
	return nil
}
