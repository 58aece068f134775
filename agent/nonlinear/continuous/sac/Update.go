package sac

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/rlv/agent/nonlinear/continuous/policy"
	"github.com/samuelfneumann/rlv/expreplay"
)

// Core is the part of an actor-critic agent used to take gradient
// steps on a batch of transitions. All batched arguments are row major
// with BatchSize rows.
type Core interface {
	BatchSize() int
	Gamma() float64
	TargetUpdateInterval() int

	// ActionLogProb samples actions from the current policy together
	// with their log probabilities and the noise used to sample them
	ActionLogProb(obs []float64) (policy.Sample, error)

	// EntCoef returns the current entropy coefficient
	EntCoef() float64

	// UpdateEntCoef takes one gradient step on the entropy coefficient
	// if it is tuned automatically. If it is not, updated is false.
	UpdateEntCoef(logProb []float64) (loss float64, updated bool, err error)

	// TargetQ returns the prediction of each target critic
	TargetQ(nextObs, nextActions []float64) ([][]float64, error)

	// UpdateCritic takes one gradient step on all critics toward the
	// given targets
	UpdateCritic(obs, actions, target []float64) (float64, error)

	// UpdateActor takes one gradient step on the policy, using the
	// noise of the given sample to reparameterize actions
	UpdateActor(obs []float64, sample policy.Sample,
		entCoef float64) (float64, error)

	// UpdateTarget moves the target critics toward the critics
	UpdateTarget() error
}

// StepLosses holds the losses of a single gradient step
type StepLosses struct {
	EntCoef        float64
	EntCoefLoss    float64
	HasEntCoefLoss bool
	CriticLoss     float64
	ActorLoss      float64
}

// Diagnostics summarizes the gradient steps of one training call
type Diagnostics struct {
	NUpdates       int     // Cumulative number of gradient steps
	EntCoef        float64 // Mean over the call
	ActorLoss      float64 // Mean over the call
	CriticLoss     float64 // Mean over the call
	EntCoefLoss    float64 // Mean over the call, if HasEntCoefLoss
	HasEntCoefLoss bool
}

// String implements the fmt.Stringer interface
func (d Diagnostics) String() string {
	s := fmt.Sprintf("train/n_updates=%d train/ent_coef=%.6f "+
		"train/actor_loss=%.6f train/critic_loss=%.6f", d.NUpdates,
		d.EntCoef, d.ActorLoss, d.CriticLoss)
	if d.HasEntCoefLoss {
		s += fmt.Sprintf(" train/ent_coef_loss=%.6f", d.EntCoefLoss)
	}
	return s
}

// Accumulator averages the losses of consecutive gradient steps
type Accumulator struct {
	steps    int
	entSteps int
	sum      StepLosses
}

// Add adds the losses of a single gradient step
func (a *Accumulator) Add(l StepLosses) {
	a.steps++
	a.sum.EntCoef += l.EntCoef
	a.sum.CriticLoss += l.CriticLoss
	a.sum.ActorLoss += l.ActorLoss
	if l.HasEntCoefLoss {
		a.entSteps++
		a.sum.EntCoefLoss += l.EntCoefLoss
	}
}

// Diagnostics returns the mean losses added so far
func (a *Accumulator) Diagnostics(nUpdates int) Diagnostics {
	d := Diagnostics{NUpdates: nUpdates}
	if a.steps == 0 {
		return d
	}

	n := float64(a.steps)
	d.EntCoef = a.sum.EntCoef / n
	d.ActorLoss = a.sum.ActorLoss / n
	d.CriticLoss = a.sum.CriticLoss / n
	if a.entSteps > 0 {
		d.HasEntCoefLoss = true
		d.EntCoefLoss = a.sum.EntCoefLoss / float64(a.entSteps)
	}
	return d
}

// TDTarget returns the soft TD targets
//
//		r + (1 - d) γ (min_k Q_k(s', a') - α log π(a'|s'))
//
// where nextQ holds the prediction of each target critic.
func TDTarget(rewards, dones []float64, nextQ [][]float64,
	nextLogProb []float64, entCoef, gamma float64) ([]float64, error) {
	if len(nextQ) == 0 {
		return nil, fmt.Errorf("tdTarget: no critic predictions")
	}
	n := len(rewards)
	if len(dones) != n || len(nextLogProb) != n {
		return nil, fmt.Errorf("tdTarget: mismatched batch sizes "+
			"\n\thave(%v, %v, %v)", n, len(dones), len(nextLogProb))
	}

	target := make([]float64, n)
	for i := range target {
		minQ := math.Inf(1)
		for k, q := range nextQ {
			if len(q) != n {
				return nil, fmt.Errorf("tdTarget: critic %v predicted %v "+
					"values for %v rows", k, len(q), n)
			}
			minQ = math.Min(minQ, q[i])
		}
		soft := minQ - entCoef*nextLogProb[i]
		target[i] = rewards[i] + (1-dones[i])*gamma*soft
	}
	return target, nil
}

// GradientStep takes one gradient step of c on the batch b. The updates
// happen in order: entropy coefficient, critics, actor, then target
// critics. The entropy coefficient read before its update is used for
// both the TD target and the actor loss. The target critics are updated
// only if step is a multiple of c.TargetUpdateInterval(). A non-finite
// loss is returned as an error before any later update runs.
func GradientStep(c Core, b expreplay.Batch, step int) (StepLosses, error) {
	if b.Size != c.BatchSize() {
		return StepLosses{}, fmt.Errorf("gradientStep: invalid batch size "+
			"\n\twant(%v)\n\thave(%v)", c.BatchSize(), b.Size)
	}

	sample, err := c.ActionLogProb(b.Observations)
	if err != nil {
		return StepLosses{}, fmt.Errorf("gradientStep: could not sample "+
			"actions: %v", err)
	}

	var losses StepLosses
	losses.EntCoef = c.EntCoef()
	if err := finite("entropy coefficient", losses.EntCoef); err != nil {
		return losses, fmt.Errorf("gradientStep: %v", err)
	}

	losses.EntCoefLoss, losses.HasEntCoefLoss, err =
		c.UpdateEntCoef(sample.LogProb)
	if err != nil {
		return StepLosses{}, fmt.Errorf("gradientStep: could not update "+
			"entropy coefficient: %v", err)
	}
	if losses.HasEntCoefLoss {
		err := finite("entropy coefficient loss", losses.EntCoefLoss)
		if err != nil {
			return losses, fmt.Errorf("gradientStep: %v", err)
		}
	}

	next, err := c.ActionLogProb(b.NextObservations)
	if err != nil {
		return StepLosses{}, fmt.Errorf("gradientStep: could not sample "+
			"next actions: %v", err)
	}
	nextQ, err := c.TargetQ(b.NextObservations, next.Actions)
	if err != nil {
		return StepLosses{}, fmt.Errorf("gradientStep: could not compute "+
			"target values: %v", err)
	}
	target, err := TDTarget(b.Rewards, b.Dones, nextQ, next.LogProb,
		losses.EntCoef, c.Gamma())
	if err != nil {
		return StepLosses{}, fmt.Errorf("gradientStep: %v", err)
	}

	losses.CriticLoss, err = c.UpdateCritic(b.Observations, b.Actions, target)
	if err != nil {
		return StepLosses{}, fmt.Errorf("gradientStep: could not update "+
			"critic: %v", err)
	}
	if err := finite("critic loss", losses.CriticLoss); err != nil {
		return losses, fmt.Errorf("gradientStep: %v", err)
	}

	losses.ActorLoss, err = c.UpdateActor(b.Observations, sample,
		losses.EntCoef)
	if err != nil {
		return StepLosses{}, fmt.Errorf("gradientStep: could not update "+
			"actor: %v", err)
	}
	if err := finite("actor loss", losses.ActorLoss); err != nil {
		return losses, fmt.Errorf("gradientStep: %v", err)
	}

	if step%c.TargetUpdateInterval() == 0 {
		if err := c.UpdateTarget(); err != nil {
			return StepLosses{}, fmt.Errorf("gradientStep: could not "+
				"update target critic: %v", err)
		}
	}
	return losses, nil
}

// finite returns an error if v is NaN or infinite
func finite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("non-finite %v: %v", name, v)
	}
	return nil
}
