package floatutils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r1"
)

func TestClip(t *testing.T) {
	require.Equal(t, 1.0, Clip(3, -1, 1))
	require.Equal(t, -1.0, Clip(-3, -1, 1))
	require.Equal(t, 0.5, ClipInterval(0.5, r1.Interval{Min: -1, Max: 1}))
}

func TestWrap(t *testing.T) {
	bounds := r1.Interval{Min: -math.Pi, Max: math.Pi}
	require.InDelta(t, -math.Pi+0.5, WrapInterval(math.Pi+0.5, bounds), 1e-12)
	require.InDelta(t, math.Pi-0.5, WrapInterval(-math.Pi-0.5, bounds), 1e-12)
	require.InDelta(t, 1.0, WrapInterval(1.0+4*math.Pi, bounds), 1e-12)
	require.Equal(t, 0.3, WrapInterval(0.3, bounds))
}

func TestMin(t *testing.T) {
	require.Equal(t, -2.0, Min(3, -2, 5))
	require.Equal(t, 7.0, Min(7))
}
