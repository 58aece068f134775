package environment

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SpecType determines what kind of specification a Spec is. A Spec can
// specify the layout of an acion, an observation, a discount, or a reward
type SpecType int

const (
	Action SpecType = iota
	Observation
	Discount
	Reward
)

// Cardinality determines the cardinality of a number (discrete or continuous)
type Cardinality string

const (
	Continuous Cardinality = "Continuous"
	Discrete   Cardinality = "Discrete"
)

// Spec implements an environment specification, which tells the type,
// shape, and bounds of an action, observation, discount, or reward in
// an environment.
//
// Shape holds the size of each axis of the described data. Flat vector
// data has a single axis.
type Spec struct {
	Shape      []int
	Type       SpecType
	LowerBound *mat.VecDense
	UpperBound *mat.VecDense
	Cardinality
}

// NewSpec constructs a new environment specification for flat vectors
// with one element per bound. The argument t outlines what the
// specification is describing (e.g. actions, observations, etc.). The
// cardinality argument describes whether the values that the Spec
// describes are continuous or discrete.
func NewSpec(t SpecType, lowerBound, upperBound *mat.VecDense,
	cardinality Cardinality) Spec {
	if lowerBound.Len() != upperBound.Len() {
		panic(fmt.Sprintf("lower bounds length %v must match upper bounds "+
			"length %v", lowerBound.Len(), upperBound.Len()))
	}
	return Spec{[]int{lowerBound.Len()}, t, lowerBound, upperBound,
		cardinality}
}

// Dims returns the total number of elements described by the Spec
func (s Spec) Dims() int {
	if len(s.Shape) == 0 {
		return 0
	}

	dims := 1
	for _, d := range s.Shape {
		dims *= d
	}
	return dims
}
