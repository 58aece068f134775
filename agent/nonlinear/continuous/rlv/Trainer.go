package rlv

import (
	"fmt"
	"log"
	"math"

	"github.com/samuelfneumann/rlv/agent/nonlinear/continuous/sac"
	"github.com/samuelfneumann/rlv/expreplay"
)

// Core is the actor-critic which the Trainer takes gradient steps
// with. Its batch size must be twice the Trainer's batch size.
type Core interface {
	sac.Core
}

// Buffer is a source of batches of transitions
type Buffer interface {
	Sample(batchSize int) (expreplay.Batch, error)
	Len() int
}

// RewardSignal determines the signal which action-free transitions are
// relabeled from
type RewardSignal string

const (
	// ZeroSignal relabels every action-free transition from a signal
	// of 0
	ZeroSignal RewardSignal = "zero"

	// DatasetSignal relabels each action-free transition from the
	// reward stored with it
	DatasetSignal RewardSignal = "dataset"
)

// Diagnostics summarizes the gradient steps of one call to Train
type Diagnostics struct {
	sac.Diagnostics
	InverseModelLoss float64 // Loss of the last gradient step
}

// String implements the fmt.Stringer interface
func (d Diagnostics) String() string {
	return fmt.Sprintf("%v train/inverse_model_loss=%.6f", d.Diagnostics,
		d.InverseModelLoss)
}

// Trainer trains an actor-critic on batches which fuse environment
// interactions with action-free transitions. The actions of the
// action-free transitions are predicted by an inverse dynamics model
// and their rewards are assigned by a Profile.
type Trainer struct {
	core       Core
	inverse    *InverseModel
	interact   Buffer
	actionFree Buffer
	profile    Profile
	batchSize  int

	trainInverse bool
	signal       RewardSignal

	nUpdates    int
	calls       int
	warmupState WarmupState
	logInterval int
	logger      *log.Logger
}

// NewTrainer returns a new Trainer which samples batchSize rows from
// each of the interaction and action-free buffers per gradient step
func NewTrainer(core Core, inverse *InverseModel, interact,
	actionFree Buffer, profile Profile, c Config) (*Trainer, error) {
	batchSize := inverse.BatchSize()
	if core.BatchSize() != 2*batchSize {
		return nil, fmt.Errorf("newTrainer: actor-critic batch size must "+
			"be twice the inverse model batch size \n\twant(%v)\n\thave(%v)",
			2*batchSize, core.BatchSize())
	}

	signal := c.RewardSignal
	if signal == "" {
		signal = ZeroSignal
	}
	if signal != ZeroSignal && signal != DatasetSignal {
		return nil, fmt.Errorf("newTrainer: unknown reward signal %q",
			c.RewardSignal)
	}

	return &Trainer{
		core:         core,
		inverse:      inverse,
		interact:     interact,
		actionFree:   actionFree,
		profile:      profile,
		batchSize:    batchSize,
		trainInverse: c.TrainInverseModelDuringFusion,
		signal:       signal,
		logInterval:  c.LogInterval,
		logger:       log.Default(),
	}, nil
}

// SetLogger sets the logger which diagnostics are written to
func (t *Trainer) SetLogger(l *log.Logger) {
	t.logger = l
}

// NUpdates returns the total number of gradient steps taken
func (t *Trainer) NUpdates() int {
	return t.nUpdates
}

// Train takes gradientSteps gradient steps on augmented batches. For
// each step, batchSize action-free transitions are labelled with
// actions predicted by the inverse model and rewards assigned by the
// Profile, then stacked under batchSize environment interactions.
func (t *Trainer) Train(gradientSteps int) (Diagnostics, error) {
	var acc sac.Accumulator
	var inverseLoss float64

	for step := 0; step < gradientSteps; step++ {
		batch, loss, err := t.augmentedBatch()
		if err != nil {
			return Diagnostics{}, fmt.Errorf("train: %w", err)
		}
		inverseLoss = loss

		losses, err := sac.GradientStep(t.core, batch, step)
		if err != nil {
			return Diagnostics{}, fmt.Errorf("train: %v", err)
		}
		acc.Add(losses)
	}

	t.nUpdates += gradientSteps
	t.calls++
	d := Diagnostics{
		Diagnostics:      acc.Diagnostics(t.nUpdates),
		InverseModelLoss: inverseLoss,
	}

	if t.logInterval > 0 && t.calls%t.logInterval == 0 {
		t.logger.Print(d)
	}
	return d, nil
}

// augmentedBatch returns an augmented batch of 2·batchSize rows and
// the inverse model loss on its action-free rows
func (t *Trainer) augmentedBatch() (expreplay.Batch, float64, error) {
	observed, err := t.actionFree.Sample(t.batchSize)
	if err != nil {
		return expreplay.Batch{}, 0, fmt.Errorf("could not sample "+
			"action-free buffer: %w", err)
	}

	pred, loss, err := t.inverse.Evaluate(observed.Observations,
		observed.NextObservations, observed.Actions)
	if err != nil {
		return expreplay.Batch{}, 0, fmt.Errorf("could not predict "+
			"actions: %v", err)
	}
	if t.trainInverse {
		loss, err = t.inverse.TrainStep(observed.Observations,
			observed.NextObservations, observed.Actions)
		if err != nil {
			return expreplay.Batch{}, 0, fmt.Errorf("could not train "+
				"inverse model: %v", err)
		}
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return expreplay.Batch{}, 0, fmt.Errorf("non-finite inverse model "+
			"loss: %v", loss)
	}

	rewards := make([]float64, observed.Size)
	for i := range rewards {
		var signal float64
		if t.signal == DatasetSignal {
			signal = observed.Rewards[i]
		}
		rewards[i] = t.profile.Relabel(signal)
	}
	observed.Actions = pred
	observed.Rewards = rewards

	interaction, err := t.interact.Sample(t.batchSize)
	if err != nil {
		return expreplay.Batch{}, 0, fmt.Errorf("could not sample "+
			"interaction buffer: %w", err)
	}

	batch, err := expreplay.Concat(interaction, observed)
	if err != nil {
		return expreplay.Batch{}, 0, fmt.Errorf("could not build "+
			"augmented batch: %v", err)
	}
	return batch, loss, nil
}
