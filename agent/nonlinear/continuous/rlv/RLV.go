// Package rlv implements Reinforcement Learning with Videos: Soft
// Actor-Critic trained on batches which fuse environment interactions
// with action-free observations. The actions of the action-free
// observations are predicted by an inverse dynamics model, which is
// pretrained on action-free data with known actions, and their rewards
// are assigned by an environment Profile.
package rlv

import (
	"fmt"
	"io"
	"log"

	"github.com/samuelfneumann/rlv/agent/nonlinear/continuous/sac"
	"github.com/samuelfneumann/rlv/dataset"
	env "github.com/samuelfneumann/rlv/environment"
	"github.com/samuelfneumann/rlv/expreplay"
	ts "github.com/samuelfneumann/rlv/timestep"
	"gonum.org/v1/gonum/mat"
)

// RLV implements the RLV agent. Environment interaction and the
// interaction buffer are handled by a SAC agent, while gradient steps
// are taken by a Trainer.
type RLV struct {
	config     Config
	agent      *sac.SAC
	actionFree *expreplay.ReplayBuffer
	inverse    *InverseModel
	trainer    *Trainer
	profile    Profile
	logger     *log.Logger
}

// New returns a new RLV agent which acts in the environment e. Each
// gradient step samples sacConfig.BatchSize rows from both the
// interaction and action-free buffers, so that the actor-critic trains
// on batches of 2·sacConfig.BatchSize rows.
func New(e env.Environment, sacConfig sac.Config, c Config,
	seed uint64) (*RLV, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	logger := log.Default()

	profile, ok := ParseProfile(c.Profile)
	if !ok {
		logger.Printf("warning: unsupported environment %q, using the %v "+
			"profile", c.Profile, profile)
	}

	obsDims := e.ObservationSpec().Dims()
	actionDims := profile.ActionDims(e.ActionSpec())
	if actionDims != e.ActionSpec().Dims() {
		return nil, fmt.Errorf("new: %v profile reads %v action dimensions "+
			"from a spec of %v", profile, actionDims, e.ActionSpec().Dims())
	}

	batchSize := sacConfig.BatchSize
	sacConfig.BatchSize *= 2
	agent, err := sac.New(e, sacConfig, seed)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	actionFree, err := expreplay.New(c.ActionFreeCapacity, obsDims,
		actionDims, seed+10)
	if err != nil {
		return nil, fmt.Errorf("new: could not construct action-free "+
			"buffer: %v", err)
	}

	init, err := sacConfig.InitWFn()
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	inverse, err := NewInverseModel(obsDims, actionDims, batchSize,
		c.InverseModelHidden, c.BetaInverseModel, init)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	trainer, err := NewTrainer(agent, inverse, agent.ReplayBuffer(),
		actionFree, profile, c)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return &RLV{
		config:     c,
		agent:      agent,
		actionFree: actionFree,
		inverse:    inverse,
		trainer:    trainer,
		profile:    profile,
		logger:     logger,
	}, nil
}

// SetLogger sets the logger which diagnostics are written to
func (r *RLV) SetLogger(l *log.Logger) {
	r.logger = l
	r.agent.SetLogger(l)
	r.trainer.SetLogger(l)
}

// SAC returns the SAC agent which interacts with the environment
func (r *RLV) SAC() *sac.SAC {
	return r.agent
}

// Profile returns the environment profile of the agent
func (r *RLV) Profile() Profile {
	return r.profile
}

// InverseModel returns the inverse dynamics model of the agent
func (r *RLV) InverseModel() *InverseModel {
	return r.inverse
}

// ActionFreeBuffer returns the buffer of action-free transitions
func (r *RLV) ActionFreeBuffer() *expreplay.ReplayBuffer {
	return r.actionFree
}

// Trainer returns the Trainer which takes gradient steps
func (r *RLV) Trainer() *Trainer {
	return r.trainer
}

// FillFromDataset fills the action-free buffer with the transitions of
// d and then freezes the buffer
func (r *RLV) FillFromDataset(d dataset.Dataset) error {
	if err := d.Fill(r.actionFree); err != nil {
		return fmt.Errorf("fillFromDataset: %v", err)
	}
	r.actionFree.Freeze()
	r.logger.Printf("filled action-free buffer with %d transitions",
		r.actionFree.Len())
	return nil
}

// FillFromAgent fills the action-free buffer with the interactions of
// a previously trained SAC agent and then freezes the buffer
func (r *RLV) FillFromAgent(a *sac.SAC) error {
	if err := r.FillFromDataset(dataset.FromBuffer(a.ReplayBuffer(),
		r.config.Profile)); err != nil {
		return fmt.Errorf("fillFromAgent: %v", err)
	}
	return nil
}

// Warmup pretrains the inverse model on the action-free buffer. See
// Trainer.Warmup.
func (r *RLV) Warmup() ([]float64, error) {
	return r.trainer.Warmup(r.config.WarmupSteps)
}

// WarmupState returns the state of the inverse model warmup
func (r *RLV) WarmupState() WarmupState {
	return r.trainer.WarmupState()
}

// Learn takes gradientSteps fused gradient steps
func (r *RLV) Learn(gradientSteps int) (Diagnostics, error) {
	return r.trainer.Train(gradientSteps)
}

// SelectAction selects an action in the environment
func (r *RLV) SelectAction(t ts.TimeStep) (*mat.VecDense, error) {
	return r.agent.SelectAction(t)
}

// ObserveFirst records the first timestep of an episode
func (r *RLV) ObserveFirst(t ts.TimeStep) error {
	return r.agent.ObserveFirst(t)
}

// Observe records that taking action in the previous timestep led to
// nextStep
func (r *RLV) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	return r.agent.Observe(action, nextStep)
}

// Step takes GradientSteps fused gradient steps if a training call is
// due
func (r *RLV) Step() error {
	if r.agent.IsEval() || !r.agent.Due() {
		return nil
	}
	_, err := r.trainer.Train(r.agent.Config().GradientSteps)
	return err
}

// EndEpisode performs cleanup at the end of an episode
func (r *RLV) EndEpisode() { r.agent.EndEpisode() }

// Eval sets the agent to evaluation mode
func (r *RLV) Eval() { r.agent.Eval() }

// Train sets the agent to training mode
func (r *RLV) Train() { r.agent.Train() }

// IsEval returns whether the agent is in evaluation mode
func (r *RLV) IsEval() bool { return r.agent.IsEval() }

// SaveInverseModel writes the weights of the inverse model to w
func (r *RLV) SaveInverseModel(w io.Writer) error {
	return r.inverse.Save(w)
}

// LoadInverseModel reads weights written with SaveInverseModel into
// the inverse model
func (r *RLV) LoadInverseModel(rd io.Reader) error {
	return r.inverse.Load(rd)
}

// Close releases the resources of the agent
func (r *RLV) Close() error {
	err := r.agent.Close()
	if invErr := r.inverse.Close(); invErr != nil && err == nil {
		err = invErr
	}
	return err
}
