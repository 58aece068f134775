package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestParseType(t *testing.T) {
	for name, want := range map[string]Type{
		"adam": Adam, "Adam": Adam, "rmsprop": RMSProp, "VANILLA": Vanilla,
	} {
		got, err := ParseType(name)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseType("sgd-with-nesterov")
	require.Error(t, err)
}

// TestCreate minimizes (x - 3)² with each solver type
func TestCreate(t *testing.T) {
	for _, typ := range []Type{Adam, RMSProp, Vanilla} {
		t.Run(string(typ), func(t *testing.T) {
			g := G.NewGraph()
			x := G.NewMatrix(g, tensor.Float64, G.WithShape(1, 1),
				G.WithName("x"), G.WithInit(G.Zeroes()))
			cost := G.Must(G.Mean(G.Must(G.Square(G.Must(G.Sub(x,
				G.NewConstant(3.0)))))))

			_, err := G.Grad(cost, x)
			require.NoError(t, err)

			s, err := Config{Type: typ, StepSize: 0.05}.Create()
			require.NoError(t, err)

			vm := G.NewTapeMachine(g, G.BindDualValues(x))
			defer vm.Close()

			for i := 0; i < 500; i++ {
				require.NoError(t, vm.RunAll())
				require.NoError(t, s.Step([]G.ValueGrad{x}))
				vm.Reset()
			}

			got := x.Value().Data().([]float64)[0]
			require.InDelta(t, 3.0, got, 0.1)
		})
	}
}

func TestCreateInvalid(t *testing.T) {
	_, err := Config{Type: Adam}.Create()
	require.Error(t, err)

	_, err = Config{Type: "Newton", StepSize: 0.1}.Create()
	require.Error(t, err)
}
