package initwfn

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestCreate(t *testing.T) {
	tests := []struct {
		config Config
		check  func(t *testing.T, data []float64)
	}{
		{Config{Type: Zeroes}, func(t *testing.T, data []float64) {
			for _, v := range data {
				require.Equal(t, 0.0, v)
			}
		}},
		{Config{Type: "ones"}, func(t *testing.T, data []float64) {
			for _, v := range data {
				require.Equal(t, 1.0, v)
			}
		}},
		{Config{}, func(t *testing.T, data []float64) {
			// Glorot uniform weights are bounded by sqrt(6 / (4 + 8))
			for _, v := range data {
				require.LessOrEqual(t, v*v, 1.0)
			}
		}},
		{Config{Type: HeN, Gain: 2}, func(t *testing.T, data []float64) {
			require.Len(t, data, 32)
		}},
	}

	for _, test := range tests {
		t.Run(string(test.config.Type), func(t *testing.T) {
			init, err := test.config.Create()
			require.NoError(t, err)

			data, ok := init(tensor.Float64, 4, 8).([]float64)
			require.True(t, ok)
			test.check(t, data)
		})
	}
}

func TestCreateUnknown(t *testing.T) {
	_, err := Config{Type: "Orthogonal"}.Create()
	require.Error(t, err)
}
