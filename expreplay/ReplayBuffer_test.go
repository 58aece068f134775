package expreplay

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// fill adds n transitions to r, where transition i has every
// observation feature equal to i, every action feature equal to -i,
// reward i, and next observation features equal to i + 0.5
func fill(t *testing.T, r *ReplayBuffer, n int) {
	for i := 0; i < n; i++ {
		v := float64(i)
		obs := make([]float64, r.ObservationDims())
		nextObs := make([]float64, r.ObservationDims())
		for j := range obs {
			obs[j] = v
			nextObs[j] = v + 0.5
		}
		action := make([]float64, r.ActionDims())
		for j := range action {
			action[j] = -v
		}
		require.NoError(t, r.Add(obs, action, nextObs, v, i%2 == 0))
	}
}

func TestCapacityInvariant(t *testing.T) {
	const capacity = 7
	for added := 0; added <= 3*capacity; added++ {
		r, err := New(capacity, 3, 2, 1)
		require.NoError(t, err)

		fill(t, r, added)

		want := added
		if want > capacity {
			want = capacity
		}
		require.Equal(t, want, r.Len())
		require.LessOrEqual(t, r.Len(), r.Capacity())

		// The oldest rows are evicted first
		all := r.All()
		require.Equal(t, want, all.Size)
		for i := 0; i < all.Size; i++ {
			require.Equal(t, float64(added-want+i), all.Rewards[i])
		}
	}
}

func TestSampleValidity(t *testing.T) {
	r, err := New(100, 4, 2, 42)
	require.NoError(t, err)
	fill(t, r, 150)

	for _, batchSize := range []int{1, 2, 16, 256, 1000, 10000} {
		b, err := r.Sample(batchSize)
		require.NoError(t, err)
		require.Equal(t, batchSize, b.Size)
		require.Len(t, b.Observations, batchSize*4)
		require.Len(t, b.Actions, batchSize*2)
		require.Len(t, b.Rewards, batchSize)

		for i := 0; i < b.Size; i++ {
			v := b.Rewards[i]

			// Only the most recent 100 transitions remain
			require.GreaterOrEqual(t, v, 50.0)
			require.Less(t, v, 150.0)

			for _, o := range b.Observation(i) {
				require.Equal(t, v, o)
			}
			for _, o := range b.NextObservation(i) {
				require.Equal(t, v+0.5, o)
			}
			for _, a := range b.Action(i) {
				require.Equal(t, -v, a)
			}

			wantDone := 0.0
			if int(v)%2 == 0 {
				wantDone = 1.0
			}
			require.Equal(t, wantDone, b.Dones[i])
		}
	}
}

func TestSampleErrors(t *testing.T) {
	r, err := New(10, 4, 2, 1)
	require.NoError(t, err)

	_, err = r.Sample(4)
	require.Error(t, err)
	require.True(t, IsInvalidArgument(err))
	require.True(t, IsEmptyBuffer(err))

	fill(t, r, 3)
	for _, batchSize := range []int{0, -1} {
		_, err = r.Sample(batchSize)
		require.Error(t, err)
		require.True(t, IsInvalidArgument(err))
		require.False(t, IsEmptyBuffer(err))
	}
}

func TestAddShapeMismatch(t *testing.T) {
	r, err := New(10, 4, 2, 1)
	require.NoError(t, err)

	err = r.Add(make([]float64, 3), make([]float64, 2), make([]float64, 4),
		0, false)
	require.True(t, IsShapeMismatch(err))

	err = r.Add(make([]float64, 4), make([]float64, 1), make([]float64, 4),
		0, false)
	require.True(t, IsShapeMismatch(err))
	require.Equal(t, 0, r.Len())
}

func TestFreeze(t *testing.T) {
	r, err := New(10, 1, 1, 1)
	require.NoError(t, err)
	fill(t, r, 5)

	clone := r.Clone(2)
	r.Freeze()
	require.True(t, r.Frozen())

	err = r.Add([]float64{1}, []float64{1}, []float64{1}, 1, false)
	require.True(t, IsFrozen(err))
	require.Equal(t, 5, r.Len())

	// Clones are independent of the original
	require.False(t, clone.Frozen())
	require.NoError(t, clone.Add([]float64{1}, []float64{1}, []float64{1}, 1,
		false))
	require.Equal(t, 6, clone.Len())
	require.Equal(t, 5, r.Len())
}

func TestSaveLoad(t *testing.T) {
	r, err := New(8, 3, 2, 1)
	require.NoError(t, err)
	fill(t, r, 11)
	r.Freeze()

	var buf bytes.Buffer
	require.NoError(t, r.Save(&buf))

	loaded, err := Load(&buf, 3)
	require.NoError(t, err)
	require.Equal(t, r.Len(), loaded.Len())
	require.Equal(t, r.Capacity(), loaded.Capacity())
	require.True(t, loaded.Frozen())
	require.Equal(t, r.All(), loaded.All())
}

func TestConcat(t *testing.T) {
	interaction, err := New(100, 4, 2, 1)
	require.NoError(t, err)
	fill(t, interaction, 50)

	actionFree, err := New(100, 4, 2, 2)
	require.NoError(t, err)
	fill(t, actionFree, 50)

	a, err := interaction.Sample(32)
	require.NoError(t, err)
	b, err := actionFree.Sample(32)
	require.NoError(t, err)

	c, err := Concat(a, b)
	require.NoError(t, err)

	shapes := map[string][2]int{
		"observations":      {64, 4},
		"next_observations": {64, 4},
		"actions":           {64, 2},
		"rewards":           {64, 1},
		"dones":             {64, 1},
	}
	for field, want := range shapes {
		rows, cols, err := c.Shape(field)
		require.NoError(t, err)
		require.Equal(t, want, [2]int{rows, cols}, field)
	}
	require.Len(t, c.Observations, 64*4)
	require.Len(t, c.Actions, 64*2)
	require.Len(t, c.Rewards, 64)

	// Interaction rows come first
	require.Equal(t, a.Rewards, c.Rewards[:32])
	require.Equal(t, b.Rewards, c.Rewards[32:])
}

func TestConcatShapeMismatch(t *testing.T) {
	a := newBatch(2, 4, 2)
	b := newBatch(2, 3, 2)
	_, err := Concat(a, b)
	require.True(t, IsShapeMismatch(err))

	b = newBatch(2, 4, 1)
	_, err = Concat(a, b)
	require.True(t, IsShapeMismatch(err))
}
