package expreplay

import "fmt"

// Batch is a batch of transitions sampled from a ReplayBuffer. Each
// field is stored row-major, so that row i of Observations is
// Observations[i*ObservationDims:(i+1)*ObservationDims]. Rewards and
// Dones hold a single column, with Dones stored as 0 or 1.
type Batch struct {
	Size            int
	ObservationDims int
	ActionDims      int

	Observations     []float64
	Actions          []float64
	NextObservations []float64
	Rewards          []float64
	Dones            []float64
}

// newBatch allocates a zeroed Batch
func newBatch(size, obsDims, actDims int) Batch {
	return Batch{
		Size:             size,
		ObservationDims:  obsDims,
		ActionDims:       actDims,
		Observations:     make([]float64, size*obsDims),
		Actions:          make([]float64, size*actDims),
		NextObservations: make([]float64, size*obsDims),
		Rewards:          make([]float64, size),
		Dones:            make([]float64, size),
	}
}

// Observation returns the observation of row i
func (b Batch) Observation(i int) []float64 {
	return b.Observations[i*b.ObservationDims : (i+1)*b.ObservationDims]
}

// Action returns the action of row i
func (b Batch) Action(i int) []float64 {
	return b.Actions[i*b.ActionDims : (i+1)*b.ActionDims]
}

// NextObservation returns the next observation of row i
func (b Batch) NextObservation(i int) []float64 {
	return b.NextObservations[i*b.ObservationDims : (i+1)*b.ObservationDims]
}

// Shape returns the (rows, columns) shape of the named field, one of
// "observations", "actions", "next_observations", "rewards", or "dones".
func (b Batch) Shape(field string) (int, int, error) {
	switch field {
	case "observations", "next_observations":
		return b.Size, b.ObservationDims, nil
	case "actions":
		return b.Size, b.ActionDims, nil
	case "rewards", "dones":
		return b.Size, 1, nil
	}
	return 0, 0, fmt.Errorf("shape: unknown field %v", field)
}

// Concat stacks the rows of b under the rows of a, producing a batch
// of a.Size + b.Size rows. Both batches must have the same observation
// and action dimensions.
func Concat(a, b Batch) (Batch, error) {
	if a.ObservationDims != b.ObservationDims {
		return Batch{}, &ExpReplayError{
			Op: "concat",
			Err: fmt.Errorf("%w: observation dims %v and %v",
				errShapeMismatch, a.ObservationDims, b.ObservationDims),
		}
	}
	if a.ActionDims != b.ActionDims {
		return Batch{}, &ExpReplayError{
			Op: "concat",
			Err: fmt.Errorf("%w: action dims %v and %v", errShapeMismatch,
				a.ActionDims, b.ActionDims),
		}
	}

	return Batch{
		Size:             a.Size + b.Size,
		ObservationDims:  a.ObservationDims,
		ActionDims:       a.ActionDims,
		Observations:     join(a.Observations, b.Observations),
		Actions:          join(a.Actions, b.Actions),
		NextObservations: join(a.NextObservations, b.NextObservations),
		Rewards:          join(a.Rewards, b.Rewards),
		Dones:            join(a.Dones, b.Dones),
	}, nil
}

func join(a, b []float64) []float64 {
	out := make([]float64, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
