package rlv

import "fmt"

// Config implements the configuration of the parts of an RLV agent
// which are added to SAC
type Config struct {
	// Profile names the environment profile. If empty, the profile is
	// parsed from the environment name.
	Profile string `mapstructure:"profile" yaml:"profile,omitempty"`

	// Inverse model warmup steps and learning rate
	WarmupSteps      int     `mapstructure:"warmup_steps" yaml:"warmup_steps"`
	BetaInverseModel float64 `mapstructure:"beta_inverse_model" yaml:"beta_inverse_model"`

	// Hidden layer sizes of the inverse model
	InverseModelHidden []int `mapstructure:"inverse_model_hidden" yaml:"inverse_model_hidden,flow"`

	// TrainInverseModelDuringFusion determines whether the inverse
	// model takes a gradient step on each action-free batch during
	// fusion training
	TrainInverseModelDuringFusion bool `mapstructure:"train_inverse_model_during_fusion" yaml:"train_inverse_model_during_fusion"`

	// RewardSignal is "zero" or "dataset". See ZeroSignal and
	// DatasetSignal.
	RewardSignal RewardSignal `mapstructure:"reward_signal" yaml:"reward_signal"`

	// Capacity of the action-free buffer
	ActionFreeCapacity int `mapstructure:"action_free_capacity" yaml:"action_free_capacity"`

	// Diagnostics are logged once every LogInterval calls to Train. If
	// 0, diagnostics are never logged.
	LogInterval int `mapstructure:"log_interval" yaml:"log_interval"`
}

// DefaultConfig returns the default RLV configuration
func DefaultConfig() Config {
	return Config{
		WarmupSteps:        1500,
		BetaInverseModel:   3e-4,
		InverseModelHidden: []int{64, 64, 64},
		RewardSignal:       ZeroSignal,
		ActionFreeCapacity: 1_000_000,
		LogInterval:        1000,
	}
}

// Validate checks a Config to ensure it is a valid configuration of
// an RLV agent
func (c Config) Validate() error {
	if c.WarmupSteps < 0 {
		return fmt.Errorf("validate: warmup steps must be non-negative")
	}
	if c.BetaInverseModel <= 0 {
		return fmt.Errorf("validate: inverse model learning rate must be " +
			"positive")
	}
	for _, h := range c.InverseModelHidden {
		if h <= 0 {
			return fmt.Errorf("validate: hidden layer sizes must be "+
				"positive \n\thave(%v)", c.InverseModelHidden)
		}
	}
	if c.RewardSignal != "" && c.RewardSignal != ZeroSignal &&
		c.RewardSignal != DatasetSignal {
		return fmt.Errorf("validate: unknown reward signal %q",
			c.RewardSignal)
	}
	if c.ActionFreeCapacity <= 0 {
		return fmt.Errorf("validate: action-free capacity must be positive")
	}
	return nil
}
