package sac

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samuelfneumann/rlv/initwfn"
	"github.com/samuelfneumann/rlv/solver"
	G "gorgonia.org/gorgonia"
)

// autoEntCoef is the value of Config.EntCoef and Config.TargetEntropy
// which selects automatic tuning or the default target entropy
const autoEntCoef = "auto"

// Config implements a configuration for a SAC agent
type Config struct {
	// Number of rows in each gradient update. The computational graphs
	// are built for this batch size.
	BatchSize      int `mapstructure:"batch_size" yaml:"batch_size"`
	ReplayCapacity int `mapstructure:"replay_capacity" yaml:"replay_capacity"`

	// Actions are sampled uniformly in [-1, 1] and no training happens
	// before LearningStarts environment steps. After that, the agent
	// takes GradientSteps gradient steps every TrainFreq environment
	// steps.
	LearningStarts int `mapstructure:"learning_starts" yaml:"learning_starts"`
	TrainFreq      int `mapstructure:"train_freq" yaml:"train_freq"`
	GradientSteps  int `mapstructure:"gradient_steps" yaml:"gradient_steps"`

	Gamma float64 `mapstructure:"gamma" yaml:"gamma"`

	// Target net updates
	Tau                  float64 `mapstructure:"tau" yaml:"tau"` // Polyak averaging constant
	TargetUpdateInterval int     `mapstructure:"target_update_interval" yaml:"target_update_interval"`

	LearningRate float64      `mapstructure:"learning_rate" yaml:"learning_rate"`
	Optimizer    solver.Type  `mapstructure:"optimizer" yaml:"optimizer"`
	Init         initwfn.Type `mapstructure:"init" yaml:"init"`

	// EntCoef is "auto" to tune the entropy coefficient starting from 1,
	// "auto_x" to tune it starting from x, or a number for a fixed
	// coefficient
	EntCoef string `mapstructure:"ent_coef" yaml:"ent_coef"`

	// TargetEntropy is "auto" for -dim(A) or a number
	TargetEntropy string `mapstructure:"target_entropy" yaml:"target_entropy"`

	// Hidden layer sizes of the actor and critics
	Hidden []int `mapstructure:"hidden" yaml:"hidden,flow"`

	// Diagnostics are logged once every LogInterval calls to Train. If
	// 0, diagnostics are never logged.
	LogInterval int `mapstructure:"log_interval" yaml:"log_interval"`
}

// DefaultConfig returns the default SAC configuration
func DefaultConfig() Config {
	return Config{
		BatchSize:            256,
		ReplayCapacity:       1_000_000,
		LearningStarts:       1000,
		TrainFreq:            1,
		GradientSteps:        1,
		Gamma:                0.99,
		Tau:                  0.005,
		TargetUpdateInterval: 1,
		LearningRate:         3e-4,
		Optimizer:            solver.Adam,
		Init:                 initwfn.GlorotU,
		EntCoef:              autoEntCoef,
		TargetEntropy:        autoEntCoef,
		Hidden:               []int{256, 256},
		LogInterval:          1000,
	}
}

// Validate checks a Config to ensure it is a valid configuration of a
// SAC agent.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("validate: batch size must be positive")
	}
	if c.ReplayCapacity <= 0 {
		return fmt.Errorf("validate: replay capacity must be positive")
	}
	if c.LearningStarts < 0 {
		return fmt.Errorf("validate: learning starts must be non-negative")
	}
	if c.TrainFreq <= 0 || c.GradientSteps <= 0 {
		return fmt.Errorf("validate: train frequency and gradient steps "+
			"must be positive \n\thave(%v, %v)", c.TrainFreq, c.GradientSteps)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: gamma must be in [0, 1] \n\thave(%v)",
			c.Gamma)
	}
	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("validate: tau must be in (0, 1] \n\thave(%v)",
			c.Tau)
	}
	if c.TargetUpdateInterval <= 0 {
		return fmt.Errorf("validate: target update interval must be " +
			"positive")
	}
	if len(c.Hidden) == 0 {
		return fmt.Errorf("validate: at least one hidden layer is required")
	}
	for _, h := range c.Hidden {
		if h <= 0 {
			return fmt.Errorf("validate: hidden layer sizes must be "+
				"positive \n\thave(%v)", c.Hidden)
		}
	}
	if _, _, err := c.entCoef(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if _, err := c.targetEntropy(1); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if _, err := c.solver(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if _, err := c.InitWFn(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	return nil
}

// entCoef returns the initial entropy coefficient and whether it is
// tuned automatically
func (c Config) entCoef() (float64, bool, error) {
	value := strings.TrimSpace(c.EntCoef)
	auto := false
	if strings.HasPrefix(value, autoEntCoef) {
		auto = true
		value = strings.TrimPrefix(value, autoEntCoef)
		if value == "" {
			return 1.0, true, nil
		}
		value = strings.TrimPrefix(value, "_")
	}

	coef, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false, fmt.Errorf("entCoef: could not parse entropy "+
			"coefficient %q", c.EntCoef)
	}
	if coef <= 0 {
		return 0, false, fmt.Errorf("entCoef: entropy coefficient must be "+
			"positive \n\thave(%v)", coef)
	}
	return coef, auto, nil
}

// targetEntropy returns the target entropy for actions of the given
// dimension
func (c Config) targetEntropy(actionDims int) (float64, error) {
	value := strings.TrimSpace(c.TargetEntropy)
	if value == "" || value == autoEntCoef {
		return -float64(actionDims), nil
	}

	target, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("targetEntropy: could not parse target "+
			"entropy %q", c.TargetEntropy)
	}
	return target, nil
}

// solver returns a new solver for one of the SAC networks
func (c Config) solver() (G.Solver, error) {
	config := solver.NewDefaultAdam(c.LearningRate)
	if c.Optimizer != "" {
		t, err := solver.ParseType(string(c.Optimizer))
		if err != nil {
			return nil, fmt.Errorf("solver: %v", err)
		}
		config.Type = t
	}
	return config.Create()
}

// InitWFn returns the weight initializer of the actor and critics
func (c Config) InitWFn() (G.InitWFn, error) {
	return initwfn.Config{Type: c.Init}.Create()
}
