package timestep

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewTransitionDone(t *testing.T) {
	tests := []struct {
		name     string
		stepType StepType
		end      EndType
		setEnd   bool
		done     bool
	}{
		{"mid", Mid, Timeout, false, false},
		{"timeout", Last, Timeout, true, false},
		{"terminal", Last, TerminalStateReached, true, true},
		{"unknown", Last, Unknown, true, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			first := New(First, 0, 0.99, mat.NewVecDense(2, []float64{1, 2}), 0)
			next := New(test.stepType, -1, 0.99,
				mat.NewVecDense(2, []float64{3, 4}), 1)
			if test.setEnd {
				next.SetEnd(test.end)
			}

			tr, err := NewTransition(first, mat.NewVecDense(1, []float64{0.5}),
				next)
			require.NoError(t, err)
			require.Equal(t, test.done, tr.Done)
			require.Equal(t, -1.0, tr.Reward)
			require.Equal(t, 3.0, tr.NextState.AtVec(0))
		})
	}
}

func TestNewTransitionMismatch(t *testing.T) {
	first := New(First, 0, 1, mat.NewVecDense(2, nil), 0)
	next := New(Mid, 0, 1, mat.NewVecDense(3, nil), 1)

	_, err := NewTransition(first, mat.NewVecDense(1, nil), next)
	require.Error(t, err)
}
