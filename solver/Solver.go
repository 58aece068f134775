// Package solver creates Gorgonia Solvers from plain configuration
// values so that they can be described in configuration files.
package solver

import (
	"fmt"
	"strings"

	G "gorgonia.org/gorgonia"
)

// Type describes different types of solvers that are available
type Type string

// Available solver types
const (
	Adam    Type = "Adam"
	RMSProp Type = "RMSProp"
	Vanilla Type = "Vanilla"
)

// ParseType returns the solver Type with the given case-insensitive
// name
func ParseType(name string) (Type, error) {
	for _, t := range []Type{Adam, RMSProp, Vanilla} {
		if strings.EqualFold(name, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("parseType: unknown solver type %q", name)
}

// Config describes a Gorgonia Solver. Zero values of the optional
// fields select the defaults of the solver's Type.
type Config struct {
	Type     Type    `mapstructure:"type" yaml:"type"`
	StepSize float64 `mapstructure:"step_size" yaml:"step_size"`

	// Adam and RMSProp smoothing factor
	Epsilon float64 `mapstructure:"epsilon" yaml:"epsilon,omitempty"`

	// Adam moment decay rates
	Beta1 float64 `mapstructure:"beta1" yaml:"beta1,omitempty"`
	Beta2 float64 `mapstructure:"beta2" yaml:"beta2,omitempty"`

	// RMSProp decay rate
	Rho float64 `mapstructure:"rho" yaml:"rho,omitempty"`

	// Gradients are clipped to [-Clip, Clip] if Clip > 0
	Clip float64 `mapstructure:"clip" yaml:"clip,omitempty"`
}

// NewDefaultAdam returns the configuration of an Adam Solver with
// default hyperparameters
func NewDefaultAdam(stepSize float64) Config {
	return Config{
		Type:     Adam,
		StepSize: stepSize,
		Epsilon:  1e-8,
		Beta1:    0.9,
		Beta2:    0.999,
	}
}

// withDefaults fills in the zero-valued fields of c
func (c Config) withDefaults() Config {
	if c.Type == "" {
		c.Type = Adam
	}
	if c.Epsilon == 0 {
		c.Epsilon = 1e-8
	}
	if c.Beta1 == 0 {
		c.Beta1 = 0.9
	}
	if c.Beta2 == 0 {
		c.Beta2 = 0.999
	}
	if c.Rho == 0 {
		c.Rho = 0.999
	}
	return c
}

// Create returns a new Gorgonia Solver as described by the Config.
// Losses are expected to already be averaged over the batch, so the
// solver is created with a batch size of 1.
func (c Config) Create() (G.Solver, error) {
	if c.StepSize <= 0 {
		return nil, fmt.Errorf("create: step size must be positive")
	}
	c = c.withDefaults()

	opts := []G.SolverOpt{G.WithLearnRate(c.StepSize), G.WithBatchSize(1)}
	if c.Clip > 0 {
		opts = append(opts, G.WithClip(c.Clip))
	}

	switch c.Type {
	case Adam:
		opts = append(opts, G.WithEps(c.Epsilon), G.WithBeta1(c.Beta1),
			G.WithBeta2(c.Beta2))
		return G.NewAdamSolver(opts...), nil

	case RMSProp:
		opts = append(opts, G.WithEps(c.Epsilon), G.WithRho(c.Rho))
		return G.NewRMSPropSolver(opts...), nil

	case Vanilla:
		return G.NewVanillaSolver(opts...), nil
	}

	return nil, fmt.Errorf("create: unknown solver type %q", c.Type)
}
