//go:build gym
// +build gym

// Package gym provides access to OpenAI Gym environments, such as the
// MuJoCo suite and robotic arm simulations, through GoGym.
//
// GoGym runs Gym through cgo bindings to Python, so this package is
// only built with the gym build tag. Importing it registers Gym as the
// fallback constructor for environment.Make, so that any environment
// name not registered by this module is looked up in Gym.
package gym

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/gogym"
	env "github.com/samuelfneumann/rlv/environment"
	ts "github.com/samuelfneumann/rlv/timestep"
	"gonum.org/v1/gonum/mat"
)

func init() {
	env.RegisterFallback(func(c env.Config, seed uint64) (env.Environment,
		ts.TimeStep, error) {
		return New(c.Name, c.Discount, c.EpisodeCutoff, seed)
	})
}

// GymEnv implements access to an OpenAI Gym environment using GoGym
type GymEnv struct {
	gogym.Environment

	currentStep ts.TimeStep
	discount    float64
	cutoff      int
}

// New returns a new GymEnv with the given name, which must be a legal
// name from the OpenAI Gym suite. Episodes are cut off after cutoff
// steps, or only by Gym itself if cutoff is not positive.
func New(name string, discount float64, cutoff int, seed uint64) (*GymEnv,
	ts.TimeStep, error) {
	goGymEnv, err := gogym.Make(name)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: could not create "+
			"environment: %v", err)
	}
	goGymEnv.Seed(int(seed))

	gymEnv := &GymEnv{
		Environment: goGymEnv,
		discount:    discount,
		cutoff:      cutoff,
	}

	t, err := gymEnv.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %v", err)
	}
	return gymEnv, t, nil
}

// Step takes a single environmental step. Gym does not report why an
// episode ended, so episodes ended by Gym end with timestep.Unknown
// and those ended by the cutoff end with timestep.Timeout.
func (g *GymEnv) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	obs, reward, done, err := g.Environment.Step(a)
	if err != nil {
		return ts.TimeStep{}, true, fmt.Errorf("step: could not step "+
			"GoGym environment: %v", err)
	}

	t := ts.New(ts.Mid, reward, g.discount, obs, g.currentStep.Number+1)
	if done {
		t.StepType = ts.Last
		t.SetEnd(ts.Unknown)
	} else if g.cutoff > 0 && t.Number >= g.cutoff {
		t.StepType = ts.Last
		t.SetEnd(ts.Timeout)
	}
	g.currentStep = t

	return t, t.Last(), nil
}

// Reset resets the environment to some starting state
func (g *GymEnv) Reset() (ts.TimeStep, error) {
	obs, err := g.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: could not reset "+
			"environment: %v", err)
	}

	t := ts.New(ts.First, 0, g.discount, obs, 0)
	g.currentStep = t

	return t, nil
}

// CurrentTimeStep returns the current timestep in the environment
func (g *GymEnv) CurrentTimeStep() ts.TimeStep {
	return g.currentStep
}

// space is the part of a GoGym space used to build a Spec
type space interface {
	Low() []*mat.VecDense
	High() []*mat.VecDense
}

// spec converts a GoGym space to a Spec
func spec(space space, t env.SpecType) env.Spec {
	switch space.(type) {
	case *gogym.BoxSpace:
		return env.NewSpec(t, space.Low()[0], space.High()[0],
			env.Continuous)
	case *gogym.DiscreteSpace:
		return env.NewSpec(t, space.Low()[0], space.High()[0],
			env.Discrete)
	}
	panic(fmt.Sprintf("spec: unsupported space type %T, package gym "+
		"supports only GoGym's BoxSpace or DiscreteSpace", space))
}

// ObservationSpec returns the observation spec of the environment
func (g *GymEnv) ObservationSpec() env.Spec {
	return spec(g.ObservationSpace(), env.Observation)
}

// ActionSpec returns the action specification of the environment
func (g *GymEnv) ActionSpec() env.Spec {
	return spec(g.ActionSpace(), env.Action)
}

// DiscountSpec returns the discount specification of the environment
func (g *GymEnv) DiscountSpec() env.Spec {
	bound := mat.NewVecDense(1, []float64{g.discount})

	return env.NewSpec(env.Discount, bound, bound, env.Continuous)
}

// RewardSpec returns the reward specification of the environment. Gym
// does not expose reward bounds, so rewards are unbounded.
func (g *GymEnv) RewardSpec() env.Spec {
	low := mat.NewVecDense(1, []float64{math.Inf(-1)})
	high := mat.NewVecDense(1, []float64{math.Inf(1)})

	return env.NewSpec(env.Reward, low, high, env.Continuous)
}

// Close performs resource cleanup after the environment is no longer
// needed
func (g *GymEnv) Close() error {
	g.Environment.Close()
	return nil
}
