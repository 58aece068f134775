// Package timestep implements timesteps of the agent-environment interaction
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of step that a TimeStep can be, either a first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// EndType describes the way in which an episode ended
type EndType int

const (
	// Timeout denotes an episode cut off by a step limit. The last
	// state of a timed out episode is not terminal and should still be
	// bootstrapped from.
	Timeout EndType = iota

	// TerminalStateReached denotes an episode that ended by entering
	// a terminal state
	TerminalStateReached

	// Unknown denotes an episode that ended for an unknown reason, for
	// example when an external environment reports done without a cause
	Unknown
)

func (e EndType) String() string {
	switch e {
	case Timeout:
		return "Timeout"
	case TerminalStateReached:
		return "TerminalStateReached"
	default:
		return "Unknown"
	}
}

// TimeStep packages together a single timestep in an environment
type TimeStep struct {
	StepType    StepType
	Reward      float64
	Discount    float64
	Observation *mat.VecDense
	Number      int

	endType EndType
	ended   bool
}

// New returns a new TimeStep
func New(t StepType, r, d float64, o *mat.VecDense, n int) TimeStep {
	return TimeStep{StepType: t, Reward: r, Discount: d, Observation: o,
		Number: n}
}

// First returns whether a TimeStep is the first in an environment
func (t TimeStep) First() bool {
	return t.StepType == First
}

// Mid returns whether a TimeStep is a middle step in an environment
func (t TimeStep) Mid() bool {
	return t.StepType == Mid
}

// Last returns whether a TimeStep is the last step in an environment
func (t TimeStep) Last() bool {
	return t.StepType == Last
}

// SetEnd records how the episode ended. It is called by environment
// Enders when they mark a TimeStep as the last in an episode.
func (t *TimeStep) SetEnd(e EndType) {
	t.endType = e
	t.ended = true
}

// EndType returns the ending type of the TimeStep. If the TimeStep
// has not been marked as an ending step, the second return value is
// false.
func (t TimeStep) EndType() (EndType, bool) {
	return t.endType, t.ended
}

// Terminal returns whether the TimeStep ends the episode by reaching a
// terminal state
func (t TimeStep) Terminal() bool {
	return t.Last() && t.ended && t.endType == TerminalStateReached
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Discount: %.2f  |  " +
		"Step Number:  %v"

	return fmt.Sprintf(str, t.StepType, t.Reward, t.Discount, t.Number)
}
