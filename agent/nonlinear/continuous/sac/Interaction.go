package sac

import (
	"fmt"
	"log"
	"math"

	"github.com/samuelfneumann/rlv/expreplay"
	ts "github.com/samuelfneumann/rlv/timestep"
	"github.com/samuelfneumann/rlv/utils/floatutils"
	"gonum.org/v1/gonum/mat"
)

// SetLogger sets the logger which diagnostics are written to
func (s *SAC) SetLogger(l *log.Logger) {
	s.logger = l
}

// Logger returns the logger which diagnostics are written to
func (s *SAC) Logger() *log.Logger {
	return s.logger
}

// Config returns the configuration of the agent
func (s *SAC) Config() Config {
	return s.config
}

// ReplayBuffer returns the buffer of environment interactions
func (s *SAC) ReplayBuffer() *expreplay.ReplayBuffer {
	return s.replay
}

// NumTimesteps returns the number of environment steps observed
func (s *SAC) NumTimesteps() int {
	return s.numTimesteps
}

// NUpdates returns the total number of gradient steps taken
func (s *SAC) NUpdates() int {
	return s.nUpdates
}

// SelectAction selects an action in the environment. Before
// LearningStarts environment steps, actions are uniform random. In
// evaluation mode, the action is tanh of the policy mean.
func (s *SAC) SelectAction(t ts.TimeStep) (*mat.VecDense, error) {
	obs := t.Observation.RawVector().Data

	var action []float64
	switch {
	case s.eval:
		mode, err := s.behaviour.Mode(obs)
		if err != nil {
			return nil, fmt.Errorf("selectAction: %v", err)
		}
		action = mode

	case s.numTimesteps < s.config.LearningStarts:
		action = make([]float64, s.actionDims)
		for i := range action {
			action[i] = s.random.Rand()
		}

	default:
		sample, err := s.behaviour.Sample(obs)
		if err != nil {
			return nil, fmt.Errorf("selectAction: %v", err)
		}
		action = sample.Actions
	}

	return mat.NewVecDense(s.actionDims, s.scaleAction(action)), nil
}

// scaleAction maps an action in [-1, 1] to the bounds of the
// environment's actions. Unbounded dimensions are left unchanged.
func (s *SAC) scaleAction(action []float64) []float64 {
	scaled := make([]float64, len(action))
	for i, a := range action {
		low, high := s.actionLow[i], s.actionHigh[i]
		if math.IsInf(low, 0) || math.IsInf(high, 0) {
			scaled[i] = a
			continue
		}
		scaled[i] = low + 0.5*(a+1)*(high-low)
	}
	return scaled
}

// unscaleAction is the inverse of scaleAction
func (s *SAC) unscaleAction(action []float64) []float64 {
	unscaled := make([]float64, len(action))
	for i, a := range action {
		low, high := s.actionLow[i], s.actionHigh[i]
		if math.IsInf(low, 0) || math.IsInf(high, 0) || high == low {
			unscaled[i] = a
			continue
		}
		unscaled[i] = floatutils.Clip(2*(a-low)/(high-low)-1, -1, 1)
	}
	return unscaled
}

// ObserveFirst records the first timestep of an episode
func (s *SAC) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		s.logger.Printf("warning: ObserveFirst() should only be called on "+
			"the first timestep (current timestep = %d)", t.Number)
	}
	s.prevStep = t
	return nil
}

// Observe records that taking action in the previous timestep led to
// nextStep. The action is stored in the replay buffer rescaled to
// [-1, 1].
func (s *SAC) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	if action.Len() != s.actionDims {
		return fmt.Errorf("observe: invalid action dimension \n\twant(%v)"+
			"\n\thave(%v)", s.actionDims, action.Len())
	}

	raw := make([]float64, action.Len())
	for i := range raw {
		raw[i] = action.AtVec(i)
	}
	unscaled := mat.NewVecDense(len(raw), s.unscaleAction(raw))

	transition, err := ts.NewTransition(s.prevStep, unscaled, nextStep)
	if err != nil {
		return fmt.Errorf("observe: %v", err)
	}
	if err := s.replay.AddTransition(transition); err != nil {
		return fmt.Errorf("observe: could not add to replay buffer: %v",
			err)
	}

	s.numTimesteps++
	s.prevStep = nextStep
	return nil
}

// Due returns whether a training call is due at the current
// environment step
func (s *SAC) Due() bool {
	return s.numTimesteps > 0 &&
		s.numTimesteps >= s.config.LearningStarts &&
		s.numTimesteps%s.config.TrainFreq == 0
}

// Step trains the agent for GradientSteps gradient steps if a training
// call is due
func (s *SAC) Step() error {
	if s.eval || !s.Due() {
		return nil
	}
	_, err := s.Learn(s.config.GradientSteps)
	return err
}

// Learn takes gradientSteps gradient steps on batches sampled from the
// replay buffer
func (s *SAC) Learn(gradientSteps int) (Diagnostics, error) {
	var acc Accumulator
	for step := 0; step < gradientSteps; step++ {
		b, err := s.replay.Sample(s.config.BatchSize)
		if err != nil {
			return Diagnostics{}, fmt.Errorf("learn: could not sample "+
				"replay buffer: %v", err)
		}

		losses, err := GradientStep(s, b, step)
		if err != nil {
			return Diagnostics{}, fmt.Errorf("learn: %v", err)
		}
		acc.Add(losses)
	}

	d := s.record(gradientSteps, &acc)
	return d, nil
}

// record counts gradientSteps new gradient steps and returns the
// diagnostics of the training call that took them. Diagnostics are
// logged once every LogInterval training calls.
func (s *SAC) record(gradientSteps int, acc *Accumulator) Diagnostics {
	s.nUpdates += gradientSteps
	s.trainCalls++
	d := acc.Diagnostics(s.nUpdates)

	if s.config.LogInterval > 0 && s.trainCalls%s.config.LogInterval == 0 {
		s.logger.Print(d)
	}
	return d
}

// EndEpisode performs cleanup at the end of an episode
func (s *SAC) EndEpisode() {}

// Eval sets the agent to evaluation mode
func (s *SAC) Eval() { s.eval = true }

// Train sets the agent to training mode
func (s *SAC) Train() { s.eval = false }

// IsEval returns whether the agent is in evaluation mode
func (s *SAC) IsEval() bool { return s.eval }
