package network

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
)

func newTestMLP(t *testing.T, init G.InitWFn, name string) NeuralNet {
	g := G.NewGraph()
	net, err := NewMultiHeadMLP(3, 2, 2, g, []int{4, 4}, []bool{true, true},
		init, Repeat(ReLU, 2), name)
	require.NoError(t, err)
	return net
}

func values(t *testing.T, net NeuralNet) [][]float64 {
	out := make([][]float64, 0, len(net.Learnables()))
	for _, node := range net.Learnables() {
		data, ok := node.Value().Data().([]float64)
		require.True(t, ok)
		out = append(out, append([]float64(nil), data...))
	}
	return out
}

func TestMultiHeadMLPForward(t *testing.T) {
	g := G.NewGraph()
	net, err := NewMultiHeadMLP(3, 2, 1, g, []int{5}, []bool{true},
		G.Ones(), []*Activation{ReLU()}, "net")
	require.NoError(t, err)
	require.Equal(t, []int{1}, net.Outputs())
	require.Equal(t, 3, net.Features())
	require.Equal(t, 2, net.BatchSize())

	// Hidden: 5 units each equal to the row sum, output sums the hidden
	// units with a zero bias
	require.NoError(t, net.SetInput([]float64{1, 2, 3, -1, -2, -3}))
	vm := G.NewTapeMachine(g)
	defer vm.Close()
	require.NoError(t, vm.RunAll())

	out := net.Output()[0].Data().([]float64)
	require.InDeltaSlice(t, []float64{30, 0}, out, 1e-9)
}

func TestMultiHeadMLPValidation(t *testing.T) {
	g := G.NewGraph()
	_, err := NewMultiHeadMLP(3, 2, 1, g, []int{5, 5}, []bool{true},
		G.Ones(), Repeat(ReLU, 2), "net")
	require.Error(t, err)

	_, err = NewMultiHeadMLP(3, 2, 1, g, []int{5}, []bool{true},
		G.Ones(), Repeat(ReLU, 2), "other")
	require.Error(t, err)
}

func TestSetInputOnComputedInput(t *testing.T) {
	g := G.NewGraph()
	root, err := NewMultiHeadMLP(3, 2, 4, g, []int{}, []bool{},
		G.Ones(), []*Activation{}, "root")
	require.NoError(t, err)

	child, err := NewMultiHeadMLPFromInput(root.Prediction(), 1, g,
		[]int{}, []bool{}, G.Ones(), []*Activation{}, "child", true)
	require.NoError(t, err)
	require.Error(t, child.SetInput(make([]float64, 8)))
}

func TestSet(t *testing.T) {
	source := newTestMLP(t, G.GlorotU(1.0), "source")
	dest := newTestMLP(t, G.Zeroes(), "dest")

	require.NoError(t, Set(dest, source))
	require.Equal(t, values(t, source), values(t, dest))

	// Weights are copied, not shared
	data := source.Learnables()[0].Value().Data().([]float64)
	data[0] += 100
	require.NotEqual(t, values(t, source), values(t, dest))
}

func TestPolyak(t *testing.T) {
	source := newTestMLP(t, G.Ones(), "source")
	dest := newTestMLP(t, G.Zeroes(), "dest")

	const tau = 0.1
	require.NoError(t, Polyak(dest, source, tau))

	for i, node := range dest.Learnables() {
		for _, v := range values(t, dest)[i] {
			// Biases are initialized to zero in both networks
			if node.Shape()[0] == 1 {
				require.InDelta(t, 0.0, v, 1e-12)
			} else {
				require.InDelta(t, tau, v, 1e-12)
			}
		}
	}

	require.NoError(t, Polyak(dest, source, tau))
	require.InDelta(t, 0.19, values(t, dest)[0][0], 1e-12)
}

func TestSetIncompatible(t *testing.T) {
	a := newTestMLP(t, G.Zeroes(), "a")

	g := G.NewGraph()
	b, err := NewMultiHeadMLP(3, 2, 2, g, []int{4}, []bool{true},
		G.Zeroes(), Repeat(ReLU, 1), "b")
	require.NoError(t, err)

	require.Error(t, Set(a, b))
	require.Error(t, Polyak(a, b, 0.5))
}

func TestSaveLoad(t *testing.T) {
	source := newTestMLP(t, G.GlorotN(1.0), "source")
	dest := newTestMLP(t, G.Zeroes(), "dest")

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, source))
	require.NoError(t, Load(&buf, dest))
	require.Equal(t, values(t, source), values(t, dest))
}

func TestTreeMLP(t *testing.T) {
	g := G.NewGraph()
	leaves := []LeafConfig{
		{HiddenSizes: []int{}, Biases: []bool{}, Activations: []*Activation{}},
		{HiddenSizes: []int{3}, Biases: []bool{true},
			Activations: []*Activation{TanH()}},
	}
	tree, err := NewTreeMLP(2, 4, 3, g, []int{8}, []bool{true},
		[]*Activation{ReLU()}, leaves, G.GlorotU(1.0), "tree")
	require.NoError(t, err)
	require.Equal(t, []int{3, 3}, tree.Outputs())

	// Root: W, b. Leaf 0: W, b. Leaf 1: W, b, W, b
	require.Len(t, tree.Learnables(), 8)

	require.NoError(t, tree.SetInput(make([]float64, 8)))
	vm := G.NewTapeMachine(g)
	defer vm.Close()
	require.NoError(t, vm.RunAll())

	for _, out := range tree.Output() {
		require.Equal(t, []int{4, 3}, []int(out.Shape()))
	}
}
