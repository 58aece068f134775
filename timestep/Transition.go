package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transition is a single (s, a, r, s', done) tuple as stored by a
// replay buffer
type Transition struct {
	State     *mat.VecDense
	Action    *mat.VecDense
	Reward    float64
	Discount  float64
	NextState *mat.VecDense
	Done      bool
}

// NewTransition constructs a Transition from the TimeStep an action was
// taken in, the action itself, and the TimeStep that resulted. Only
// episodes ending in a terminal state produce a done transition, so
// that the value of states cut off by a step limit is bootstrapped.
func NewTransition(step TimeStep, action *mat.VecDense,
	nextStep TimeStep) (Transition, error) {
	if step.Observation == nil || nextStep.Observation == nil {
		return Transition{}, fmt.Errorf("newTransition: observations must " +
			"not be nil")
	}
	if step.Observation.Len() != nextStep.Observation.Len() {
		return Transition{}, fmt.Errorf("newTransition: observation sizes "+
			"differ \n\twant(%v) \n\thave(%v)", step.Observation.Len(),
			nextStep.Observation.Len())
	}

	return Transition{
		State:     step.Observation,
		Action:    action,
		Reward:    nextStep.Reward,
		Discount:  nextStep.Discount,
		NextState: nextStep.Observation,
		Done:      nextStep.Terminal(),
	}, nil
}
