// Package acrobot implements the classic control Acrobot environment
// with continuous actions
package acrobot

import (
	"fmt"
	"math"

	env "github.com/samuelfneumann/rlv/environment"
	ts "github.com/samuelfneumann/rlv/timestep"
	"github.com/samuelfneumann/rlv/utils/floatutils"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// Name is the name under which the environment is registered with
// environment.Make
const Name = "acrobot-continuous"

// dynamicsType determines whether the dynamics of the environment
// follows those defined in the NeurIPS paper or the RL book.
type dynamicsType bool

const (
	// Dynamics of environment is consistent with RL book
	book dynamicsType = true

	// Dynamics of environment is consistent with NeurIPS paper
	nips dynamicsType = false
)

const (
	dt float64 = 0.2

	// Physical constants
	LinkLength1 float64 = 1.0 // Metres, length of link 1
	LinkLength2 float64 = 1.0 // Metres, length of link 2
	LinkMass1   float64 = 1.0 // Kg, mass of link 1
	LinkMass2   float64 = 1.0 // Kg, mass of link 2
	LinkCOMPos1 float64 = 0.5 // Metres, centre of mass link 1
	LinkCOMPos2 float64 = 0.5 // Metres, cetnre of mass link 2
	LinkMOI     float64 = 1.0 // Moments of inertia for both links
	MaxVel1     float64 = 4 * math.Pi
	MinVel1     float64 = -MaxVel1
	MaxVel2     float64 = 9 * math.Pi
	MinVel2     float64 = -MaxVel2
	Gravity     float64 = 9.8
	MaxAngle    float64 = math.Pi
	MinAngle    float64 = -MaxAngle
	MinTorque   float64 = -1.0
	MaxTorque   float64 = 1.0

	// Environment constants
	ObservationDims int = 4
	ActionDims      int = 1

	BookOrNips dynamicsType = book
)

func init() {
	env.Register(Name, func(c env.Config, seed uint64) (env.Environment,
		ts.TimeStep, error) {
		bounds := make([]r1.Interval, ObservationDims)
		for i := range bounds {
			bounds[i] = r1.Interval{Min: -0.1, Max: 0.1}
		}
		starter := env.NewUniformStarter(bounds, seed)
		task := NewSwingUp(starter, c.EpisodeCutoff, GoalHeight)

		return New(task, c.Discount)
	})
}

// Continuous implements the classic control environment Acrobot with
// continuous actions. In this environment, a double hindged and double
// linked pendulum is attached to a single actuated fixed base. Torque
// can be applied to the base to swing the double pendulum around.
//
// State feature vectors are 4-dimensional and have the form:
//
//		v ⃗	= [θ1, θ2, θ̇1, θ̇2], where:
//		θ1 = angle of the first link measured from the negative y-axis
//		θ2 = angle of the second link measured from the negative y-axis
//		θ̇1 = angular velocity of the first link
//		θ̇2 = angular velocity of the second link
//
// Angles are wrapped to stay within [-π, π] and angular velocities are
// clipped to [MinVel1, MaxVel1] and [MinVel2, MaxVel2].
//
// Actions are 1-dimensional torques in [MinTorque, MaxTorque]. Actions
// outside of these bounds are clipped.
type Continuous struct {
	env.Task
	lastStep        ts.TimeStep
	discount        float64
	angleBounds     r1.Interval
	velocity1Bounds r1.Interval
	velocity2Bounds r1.Interval
}

// New returns a new continuous action Acrobot environment and its
// first TimeStep
func New(t env.Task, discount float64) (*Continuous, ts.TimeStep, error) {
	acrobot := &Continuous{
		Task:            t,
		discount:        discount,
		angleBounds:     r1.Interval{Min: MinAngle, Max: MaxAngle},
		velocity1Bounds: r1.Interval{Min: MinVel1, Max: MaxVel1},
		velocity2Bounds: r1.Interval{Min: MinVel2, Max: MaxVel2},
	}

	firstStep, err := acrobot.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %v", err)
	}
	return acrobot, firstStep, nil
}

// validateState checks if the state is valid
func (a *Continuous) validateState(state *mat.VecDense) error {
	if l := state.Len(); l != ObservationDims {
		return fmt.Errorf("illegal state length \n\twant(%v) \n\thave(%v)",
			ObservationDims, l)
	}
	if !within(state.AtVec(0), a.angleBounds) {
		return fmt.Errorf("angle 1 out of bounds")
	}
	if !within(state.AtVec(1), a.angleBounds) {
		return fmt.Errorf("angle 2 out of bounds")
	}
	if !within(state.AtVec(2), a.velocity1Bounds) {
		return fmt.Errorf("angular velocity 1 out of bounds")
	}
	if !within(state.AtVec(3), a.velocity2Bounds) {
		return fmt.Errorf("angular velocity 2 out of bounds")
	}
	return nil
}

// within returns whether v lies in the closed interval i
func within(v float64, i r1.Interval) bool {
	return v >= i.Min && v <= i.Max
}

// Reset resets the environment, begins a new episode, and returns
// the first timestep of the new episode
func (a *Continuous) Reset() (ts.TimeStep, error) {
	state := a.Start()
	if err := a.validateState(state); err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: %v", err)
	}

	a.lastStep = ts.New(ts.First, 0, a.discount, state, 0)
	return a.lastStep, nil
}

// Step takes one environmental step given a torque to apply to the
// fixed base. It returns the next TimeStep and whether the episode
// has ended.
func (a *Continuous) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	if action.Len() != ActionDims {
		return ts.TimeStep{}, true, fmt.Errorf("step: actions should be "+
			"%v-dimensional", ActionDims)
	}

	torque := floatutils.Clip(action.AtVec(0), MinTorque, MaxTorque)
	newState := a.nextState(torque)

	state := a.lastStep.Observation
	reward := a.GetReward(state, action, newState)
	nextStep := ts.New(ts.Mid, reward, a.discount, newState,
		a.lastStep.Number+1)

	// Adjusts the StepType if the episode has ended
	a.End(&nextStep)

	a.lastStep = nextStep
	return nextStep, nextStep.Last(), nil
}

// nextState returns the next state of the environment given the
// torque to apply to the fixed base of the acrobot.
func (a *Continuous) nextState(torque float64) *mat.VecDense {
	s := a.lastStep.Observation

	sAugmented := mat.NewVecDense(s.Len()+1, nil)
	sAugmented.SliceVec(0, s.Len()).(*mat.VecDense).CopyVec(s)
	sAugmented.SetVec(sAugmented.Len()-1, torque)

	integrated := rk4(dsDt, sAugmented, []float64{0.0, dt})
	r, c := integrated.Dims()
	ns := mat.NewVecDense(c-1, nil)
	for i := 0; i < c-1; i++ {
		ns.SetVec(i, integrated.At(r-1, i))
	}

	ns.SetVec(0, floatutils.WrapInterval(ns.AtVec(0), a.angleBounds))
	ns.SetVec(1, floatutils.WrapInterval(ns.AtVec(1), a.angleBounds))
	ns.SetVec(2, floatutils.ClipInterval(ns.AtVec(2), a.velocity1Bounds))
	ns.SetVec(3, floatutils.ClipInterval(ns.AtVec(3), a.velocity2Bounds))

	return ns
}

// CurrentTimeStep returns the current timestep of the environment
func (a *Continuous) CurrentTimeStep() ts.TimeStep {
	return a.lastStep
}

// ObservationSpec returns the observation specification of the
// environment
func (a *Continuous) ObservationSpec() env.Spec {
	lowerBound := mat.NewVecDense(ObservationDims, []float64{MinAngle,
		MinAngle, MinVel1, MinVel2})
	upperBound := mat.NewVecDense(ObservationDims, []float64{MaxAngle,
		MaxAngle, MaxVel1, MaxVel2})

	return env.NewSpec(env.Observation, lowerBound, upperBound,
		env.Continuous)
}

// ActionSpec returns the action specification of the environment
func (a *Continuous) ActionSpec() env.Spec {
	lowerBound := mat.NewVecDense(ActionDims, []float64{MinTorque})
	upperBound := mat.NewVecDense(ActionDims, []float64{MaxTorque})

	return env.NewSpec(env.Action, lowerBound, upperBound, env.Continuous)
}

// DiscountSpec returns the discounting specification of the environment
func (a *Continuous) DiscountSpec() env.Spec {
	bound := mat.NewVecDense(1, []float64{a.discount})

	return env.NewSpec(env.Discount, bound, bound, env.Continuous)
}

// Close implements the environment.Environment interface
func (a *Continuous) Close() error {
	return nil
}

// String implements the fmt.Stringer interface
func (a *Continuous) String() string {
	state := a.lastStep.Observation

	return fmt.Sprintf("Acrobot  |  θ1: %v  |  θ2: %v  |  θ̇1: %v  |  θ̇2: %v",
		state.AtVec(0), state.AtVec(1), state.AtVec(2), state.AtVec(3))
}

// dsDt calculate ds/dt for the environment, where s = the current
// environment state augmented with the applied torque
func dsDt(sAugmented *mat.VecDense, t float64) []float64 {
	m1 := LinkMass1
	m2 := LinkMass2
	l1 := LinkLength1
	lc1 := LinkCOMPos1
	lc2 := LinkCOMPos2
	i1 := LinkMOI
	i2 := LinkMOI
	g := Gravity

	a := sAugmented.AtVec(sAugmented.Len() - 1)
	theta1 := sAugmented.AtVec(0)
	theta2 := sAugmented.AtVec(1)
	dtheta1 := sAugmented.AtVec(2)
	dtheta2 := sAugmented.AtVec(3)

	d1 := m1*lc1*lc1 + m2*(l1*l1+lc2*lc2+2*l1*lc2*math.Cos(theta2)) + i1 + i2
	d2 := m2*(lc2*lc2+l1*lc2*math.Cos(theta2)) + i2

	phi2 := m2 * lc2 * g * math.Cos(theta1+theta2-math.Pi/2.0)
	phi1 := -m2*l1*lc2*dtheta2*dtheta2*math.Sin(theta2) -
		2*m2*l1*lc2*dtheta2*dtheta1*math.Sin(theta2) +
		(m1*lc1+m2*l1)*g*math.Cos(theta1-math.Pi/2.0) + phi2

	var ddtheta2 float64
	if BookOrNips == nips {
		ddtheta2 = (a + d2/d1*phi1 - phi2) / (m2*lc2*lc2 + i2 - d2*d2/d1)
	} else {
		ddtheta2 = (a + d2/d1*phi1 - m2*l1*lc2*dtheta1*dtheta1*
			math.Sin(theta2) - phi2) / (m2*lc2*lc2 + i2 - d2*d2/d1)
	}
	ddtheta1 := -(d2*ddtheta2 + phi1) / d1

	// Last component is da/dt == 0.0
	return []float64{dtheta1, dtheta2, ddtheta1, ddtheta2, 0.0}
}

// rk4 integrates an n-dimensional system of ODEs using 4-th order
// Runge-Kutta, returning one row per time in t.
func rk4(derivs func(*mat.VecDense, float64) []float64, y0 *mat.VecDense,
	t []float64) *mat.Dense {
	yout := mat.NewDense(len(t), y0.Len(), nil)
	yout.SetRow(0, y0.RawVector().Data)

	for i := 0; i < len(t)-1; i++ {
		thist := t[i]
		h := t[i+1] - thist
		h2 := h / 2.0

		yi := mat.VecDenseCopyOf(yout.RowView(i))

		k1 := mat.NewVecDense(yi.Len(), derivs(yi, thist))

		input := mat.NewVecDense(yi.Len(), nil)
		input.AddScaledVec(yi, h2, k1)
		k2 := mat.NewVecDense(yi.Len(), derivs(input, thist+h2))

		input.AddScaledVec(yi, h2, k2)
		k3 := mat.NewVecDense(yi.Len(), derivs(input, thist+h2))

		input.AddScaledVec(yi, h, k3)
		k4 := mat.NewVecDense(yi.Len(), derivs(input, thist+h))

		row := mat.VecDenseCopyOf(k1)
		row.AddScaledVec(row, 2.0, k2)
		row.AddScaledVec(row, 2.0, k3)
		row.AddVec(row, k4)
		row.AddScaledVec(yi, h/6.0, row)

		yout.SetRow(i+1, row.RawVector().Data)
	}
	return yout
}
