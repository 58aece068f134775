package tracker

import (
	"path/filepath"
	"testing"

	ts "github.com/samuelfneumann/rlv/timestep"
	"github.com/stretchr/testify/require"
)

// episode returns the timesteps of an episode with the given rewards
func episode(rewards ...float64) []ts.TimeStep {
	steps := []ts.TimeStep{ts.New(ts.First, 0, 1, nil, 0)}
	for i, r := range rewards {
		stepType := ts.Mid
		if i == len(rewards)-1 {
			stepType = ts.Last
		}
		steps = append(steps, ts.New(stepType, r, 1, nil, i+1))
	}
	return steps
}

func TestReturn(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "returns.gob")
	r := NewReturn(filename)
	l := NewEpisodeLength(filepath.Join(t.TempDir(), "lengths.gob"))

	for _, ep := range [][]ts.TimeStep{episode(1, 2, 3), episode(-1),
		episode(0.5, 0.5)} {
		for _, step := range ep {
			require.NoError(t, r.Track(step))
			require.NoError(t, l.Track(step))
		}
	}

	// Unfinished episodes are not recorded
	unfinished := episode(4, 4)
	require.NoError(t, r.Track(unfinished[0]))
	require.NoError(t, r.Track(unfinished[1]))

	require.Equal(t, []float64{6, -1, 1}, r.Returns())
	require.Equal(t, []int{3, 1, 2}, l.Lengths())

	require.NoError(t, r.Save())
	data, err := LoadData(filename)
	require.NoError(t, err)
	require.Equal(t, r.Returns(), data)

	require.NoError(t, l.Save())
	lengths, err := LoadLengths(l.filename)
	require.NoError(t, err)
	require.Equal(t, l.Lengths(), lengths)
}

func TestReturnNonSequential(t *testing.T) {
	r := NewReturn("")
	require.NoError(t, r.Track(ts.New(ts.First, 0, 1, nil, 0)))
	require.Error(t, r.Track(ts.New(ts.Mid, 0, 1, nil, 2)))
}

func TestLoadMissing(t *testing.T) {
	_, err := LoadData(filepath.Join(t.TempDir(), "missing.gob"))
	require.Error(t, err)
	_, err = LoadLengths(filepath.Join(t.TempDir(), "missing.gob"))
	require.Error(t, err)
}
