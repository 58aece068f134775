package acrobot

import (
	"math"

	env "github.com/samuelfneumann/rlv/environment"
	ts "github.com/samuelfneumann/rlv/timestep"
	"gonum.org/v1/gonum/mat"
)

const (
	// Goal position in the classic control problem is to swing the
	// tip above one link length above the fixed base.
	GoalHeight float64 = LinkLength1

	// maxReward is given on the transition into the goal and minReward
	// on all other transitions
	maxReward, minReward float64 = 0.0, -1.0
)

// SwingUp implements the classic control Acrobot task where the
// agent must swing the tip of the second link above some set
// height.
//
// The task is a cost-to-goal task: a reward of -1.0 is given on all
// timesteps except for the timestep which transitions the acrobot's
// second link above the goal line, on which a reward of 0.0 is given.
//
// Episodes end in a terminal state when the tip swings above the goal
// height, or with a timeout when the step limit is reached.
type SwingUp struct {
	env.Starter
	stepLimitEnder env.Ender
	lineEnder      env.Ender
	goalHeight     float64
}

// NewSwingUp returns a new SwingUp task with start state distribution
// defined by s, episodic step limit stepLimit, and goal height
// goalHeight. A non-positive step limit never ends episodes.
func NewSwingUp(s env.Starter, stepLimit int, goalHeight float64) *SwingUp {
	task := &SwingUp{
		Starter:        s,
		stepLimitEnder: env.NewStepLimit(stepLimit),
		goalHeight:     goalHeight,
	}
	task.lineEnder = env.NewFunctionEnder(task.atGoal,
		ts.TerminalStateReached)

	return task
}

// atGoal returns whether the tip of the acrobot is above the goal
func (s *SwingUp) atGoal(obs *mat.VecDense) bool {
	return -math.Cos(obs.AtVec(0))-math.Cos(obs.AtVec(1)+obs.AtVec(0)) >
		s.goalHeight
}

// AtGoal returns whether the argument state is a goal state
func (s *SwingUp) AtGoal(state mat.Matrix) bool {
	r, _ := state.Dims()
	obs := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		obs.SetVec(i, state.At(i, 0))
	}
	return s.atGoal(obs)
}

// End determines if a timestep is the last timestep in the episode.
// Reaching the goal takes precedence over the step limit.
func (s *SwingUp) End(t *ts.TimeStep) bool {
	if ended := s.lineEnder.End(t); ended {
		return true
	}
	return s.stepLimitEnder.End(t)
}

// GetReward returns the reward for a given state and action, resulting
// in a given next state.
func (s *SwingUp) GetReward(_, _, nextState mat.Vector) float64 {
	if s.AtGoal(nextState) {
		return maxReward
	}
	return minReward
}

// RewardSpec returns the reward specification for the environment
func (s *SwingUp) RewardSpec() env.Spec {
	lowerBound := mat.NewVecDense(1, []float64{minReward})
	upperBound := mat.NewVecDense(1, []float64{maxReward})

	return env.NewSpec(env.Reward, lowerBound, upperBound, env.Continuous)
}
