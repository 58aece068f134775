// Package environment outlines the interfaces and structs needed to
// implement concrete environments
package environment

import (
	"fmt"
	"sort"
	"sync"

	ts "github.com/samuelfneumann/rlv/timestep"
	"gonum.org/v1/gonum/mat"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() *mat.VecDense
}

// Ender determines when episodes end. If an episode should end, End
// changes the TimeStep's StepType to timestep.Last, records how the
// episode ended, and returns true.
type Ender interface {
	End(*ts.TimeStep) bool
}

// Task implements the reward scheme and episode termination for
// taking actions in some environment
type Task interface {
	Starter
	Ender
	GetReward(state, action, nextState mat.Vector) float64
	AtGoal(state mat.Matrix) bool
	RewardSpec() Spec
}

// Environment implements a simualted environment, which includes a
// Task to complete
type Environment interface {
	Reset() (ts.TimeStep, error)
	Step(action *mat.VecDense) (ts.TimeStep, bool, error)
	CurrentTimeStep() ts.TimeStep
	RewardSpec() Spec
	DiscountSpec() Spec
	ObservationSpec() Spec
	ActionSpec() Spec
	Close() error
}

// Config describes an environment to construct with Make
type Config struct {
	Name          string  `mapstructure:"name" yaml:"name"`
	Discount      float64 `mapstructure:"discount" yaml:"discount"`
	EpisodeCutoff int     `mapstructure:"episode_cutoff" yaml:"episode_cutoff"`
}

// Constructor constructs an environment from a Config, returning the
// environment and its first TimeStep
type Constructor func(c Config, seed uint64) (Environment, ts.TimeStep,
	error)

var (
	registryLock sync.RWMutex
	registry     = make(map[string]Constructor)
	fallback     Constructor
)

// Register registers an environment Constructor under the given name
// so that it can be built with Make. Registering the same name twice
// panics.
func Register(name string, c Constructor) {
	registryLock.Lock()
	defer registryLock.Unlock()

	if _, ok := registry[name]; ok {
		panic(fmt.Sprintf("register: environment %v already registered",
			name))
	}
	registry[name] = c
}

// RegisterFallback registers a Constructor used by Make for names that
// have not been registered, such as environments provided by an
// external suite.
func RegisterFallback(c Constructor) {
	registryLock.Lock()
	defer registryLock.Unlock()

	fallback = c
}

// Registered returns the sorted names of all registered environments
func Registered() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Make constructs the environment described by c
func Make(c Config, seed uint64) (Environment, ts.TimeStep, error) {
	registryLock.RLock()
	constructor, ok := registry[c.Name]
	if !ok {
		constructor = fallback
	}
	registryLock.RUnlock()

	if constructor == nil {
		return nil, ts.TimeStep{}, fmt.Errorf("make: unknown environment "+
			"%q, registered environments are %v", c.Name, Registered())
	}

	env, step, err := constructor(c, seed)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("make: could not create %v: "+
			"%v", c.Name, err)
	}
	return env, step, nil
}
