package policy

import (
	"fmt"

	"github.com/samuelfneumann/rlv/network"
	G "gorgonia.org/gorgonia"
)

// Sampler is a SquashedGaussian in its own computational graph, used
// only for forward passes. Weights are copied into a Sampler from the
// policy being trained with SetWeights.
type Sampler struct {
	policy *SquashedGaussian
	vm     G.VM
}

// NewSampler returns a new Sampler which acts on batch observations
// at a time. See NewSquashedGaussian for the remaining arguments.
func NewSampler(features, actionDims, batch int, hidden []int,
	init G.InitWFn, seed uint64) (*Sampler, error) {
	g := G.NewGraph()
	p, err := NewSquashedGaussian(g, features, actionDims, batch, hidden,
		init, "sampler", seed)
	if err != nil {
		return nil, fmt.Errorf("newSampler: %v", err)
	}

	return &Sampler{
		policy: p,
		vm:     G.NewTapeMachine(g),
	}, nil
}

// Policy returns the underlying SquashedGaussian
func (s *Sampler) Policy() *SquashedGaussian {
	return s.policy
}

// SetWeights copies the weights of the source policy into the Sampler
func (s *Sampler) SetWeights(source *SquashedGaussian) error {
	return network.Set(s.policy.Network(), source.Network())
}

// Sample samples actions and their log probabilities for a batch of
// observations using freshly drawn noise
func (s *Sampler) Sample(obs []float64) (Sample, error) {
	return s.SampleWith(obs, s.policy.SampleNoise())
}

// SampleWith samples actions and their log probabilities for a batch
// of observations using the given standard normal noise
func (s *Sampler) SampleWith(obs, noise []float64) (Sample, error) {
	if err := s.run(obs, noise); err != nil {
		return Sample{}, fmt.Errorf("sampleWith: %v", err)
	}

	actions, logProb := s.policy.Read()
	return Sample{
		Actions: actions,
		LogProb: logProb,
		Noise:   append([]float64(nil), noise...),
	}, nil
}

// Mode returns the deterministic actions tanh(μ) for a batch of
// observations
func (s *Sampler) Mode(obs []float64) ([]float64, error) {
	noise := make([]float64, s.policy.BatchSize()*s.policy.ActionDims())
	if err := s.run(obs, noise); err != nil {
		return nil, fmt.Errorf("mode: %v", err)
	}
	return s.policy.Mode(), nil
}

func (s *Sampler) run(obs, noise []float64) error {
	if err := s.policy.SetInput(obs); err != nil {
		return fmt.Errorf("could not set observations: %v", err)
	}
	if err := s.policy.SetNoise(noise); err != nil {
		return fmt.Errorf("could not set noise: %v", err)
	}
	defer s.vm.Reset()

	if err := s.vm.RunAll(); err != nil {
		return fmt.Errorf("could not run policy: %v", err)
	}
	return nil
}

// Close releases the resources of the Sampler's VM
func (s *Sampler) Close() error {
	return s.vm.Close()
}
