package expreplay

import (
	"golang.org/x/exp/rand"
)

// Selector implements functionality for choosing which rows of an
// experience replay buffer should be sampled
type Selector interface {
	// choose selects n indices in [0, size)
	choose(size, n int) []int
}

// uniformSelector is a Selector which selects data from an experience
// replay buffer uniformly randomly with replacement
type uniformSelector struct {
	rng *rand.Rand
}

// NewUniformSelector returns a new Selector which selects data uniformly
// randomly from an experience replay buffer
func NewUniformSelector(seed uint64) Selector {
	source := rand.NewSource(seed)
	rng := rand.New(source)

	return &uniformSelector{rng: rng}
}

// choose selects n indices at which to draw data from the buffer. The
// same index may be chosen more than once.
func (u *uniformSelector) choose(size, n int) []int {
	selected := make([]int, n)
	for i := range selected {
		selected[i] = u.rng.Intn(size)
	}

	return selected
}
