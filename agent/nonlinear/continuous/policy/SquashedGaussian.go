// Package policy implements policies using function approximation
package policy

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/rlv/network"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	// Bounds of the log standard deviation predicted by the policy
	LogStdMin = -20.0
	LogStdMax = 2.0

	// Added inside the log of the tanh Jacobian for numerical stability
	squashEpsilon = 1e-6
)

// Sample is a batch of actions sampled from a policy together with
// their log probabilities and the standard normal noise used to sample
// them. Actions and Noise are row major with one row per observation.
type Sample struct {
	Actions []float64
	LogProb []float64
	Noise   []float64
}

// SquashedGaussian implements a Gaussian policy whose samples are
// squashed into [-1, 1] with tanh. A TreeMLP predicts the mean and the
// log standard deviation of the Gaussian from a shared root network.
//
// Actions are reparameterized as a = tanh(μ + σ ⊙ ε) where ε is a
// standard normal input node of the graph, so that gradients of the
// log probability and of anything computed on the actions flow back
// into the policy weights. The noise is sampled outside the graph and
// set with SetNoise before each forward pass.
type SquashedGaussian struct {
	net        *network.TreeMLP
	batchSize  int
	actionDims int

	noise   *G.Node
	mean    *G.Node
	logStd  *G.Node
	actions *G.Node
	logProb *G.Node

	meanVal    G.Value
	actionsVal G.Value
	logProbVal G.Value

	normal distuv.Normal
}

// NewSquashedGaussian adds a new SquashedGaussian policy to g. The
// policy takes input observations of shape (batch, features) and
// predicts actionDims-dimensional actions. The root network has one
// ReLU layer per element of hidden, and the mean and log standard
// deviation are predicted by linear leaves. The name prefixes every
// node the policy adds to g.
func NewSquashedGaussian(g *G.ExprGraph, features, actionDims, batch int,
	hidden []int, init G.InitWFn, name string,
	seed uint64) (*SquashedGaussian, error) {
	if actionDims <= 0 {
		return nil, fmt.Errorf("newSquashedGaussian: action dimensions must "+
			"be positive \n\thave(%v)", actionDims)
	}

	leaf := network.LeafConfig{}
	net, err := network.NewTreeMLP(features, batch, actionDims, g, hidden,
		repeatBool(true, len(hidden)), network.Repeat(network.ReLU,
			len(hidden)), []network.LeafConfig{leaf, leaf}, init, name)
	if err != nil {
		return nil, fmt.Errorf("newSquashedGaussian: could not create "+
			"network: %v", err)
	}

	mean := net.Prediction()[0]
	rawLogStd := net.Prediction()[1]

	noise := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, actionDims),
		G.WithName(name+"Noise"), G.WithInit(G.Zeroes()))

	// Bound the log standard deviation smoothly into [LogStdMin, LogStdMax]
	half := 0.5 * (LogStdMax - LogStdMin)
	logStd := G.Must(G.Add(G.NewConstant(LogStdMin+half),
		G.Must(G.HadamardProd(G.NewConstant(half), G.Must(G.Tanh(rawLogStd))))))
	std := G.Must(G.Exp(logStd))

	preSquash := G.Must(G.Add(mean, G.Must(G.HadamardProd(std, noise))))
	actions := G.Must(G.Tanh(preSquash))

	// Log density of the Gaussian sample, corrected for the tanh squash
	gaussian := G.Must(G.HadamardProd(G.NewConstant(-0.5),
		G.Must(G.Square(noise))))
	gaussian = G.Must(G.Sub(gaussian, logStd))
	gaussian = G.Must(G.Sub(gaussian,
		G.NewConstant(0.5*math.Log(2*math.Pi))))

	jacobian := G.Must(G.Sub(G.NewConstant(1.0), G.Must(G.Square(actions))))
	jacobian = G.Must(G.Log(G.Must(G.Add(jacobian,
		G.NewConstant(squashEpsilon)))))

	logProb := G.Must(G.Sum(G.Must(G.Sub(gaussian, jacobian)), 1))

	p := &SquashedGaussian{
		net:        net,
		batchSize:  batch,
		actionDims: actionDims,
		noise:      noise,
		mean:       mean,
		logStd:     logStd,
		actions:    actions,
		logProb:    logProb,
		normal: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   rand.NewSource(seed),
		},
	}
	G.Read(p.mean, &p.meanVal)
	G.Read(p.actions, &p.actionsVal)
	G.Read(p.logProb, &p.logProbVal)

	return p, nil
}

// Network returns the TreeMLP which predicts the policy's parameters
func (p *SquashedGaussian) Network() *network.TreeMLP {
	return p.net
}

// BatchSize returns the number of observations the policy acts on in
// a single forward pass
func (p *SquashedGaussian) BatchSize() int {
	return p.batchSize
}

// ActionDims returns the dimension of actions
func (p *SquashedGaussian) ActionDims() int {
	return p.actionDims
}

// Input returns the observation input node
func (p *SquashedGaussian) Input() *G.Node {
	return p.net.Input()
}

// Actions returns the node of squashed actions, of shape
// (batch, actionDims)
func (p *SquashedGaussian) Actions() *G.Node {
	return p.actions
}

// LogProb returns the node of action log probabilities, of shape
// (batch)
func (p *SquashedGaussian) LogProb() *G.Node {
	return p.logProb
}

// Mean returns the node of the mean of the unsquashed Gaussian
func (p *SquashedGaussian) Mean() *G.Node {
	return p.mean
}

// Learnables returns the learnable nodes of the policy
func (p *SquashedGaussian) Learnables() G.Nodes {
	return p.net.Learnables()
}

// SetInput sets the observations of the next forward pass
func (p *SquashedGaussian) SetInput(obs []float64) error {
	return p.net.SetInput(obs)
}

// SetNoise sets the standard normal noise of the next forward pass
func (p *SquashedGaussian) SetNoise(noise []float64) error {
	if len(noise) != p.batchSize*p.actionDims {
		return fmt.Errorf("setNoise: invalid number of noise values "+
			"\n\twant(%v)\n\thave(%v)", p.batchSize*p.actionDims, len(noise))
	}
	t := tensor.New(
		tensor.WithBacking(noise),
		tensor.WithShape(p.batchSize, p.actionDims),
	)
	return G.Let(p.noise, t)
}

// SampleNoise draws one standard normal value per action dimension
// and batch row
func (p *SquashedGaussian) SampleNoise() []float64 {
	noise := make([]float64, p.batchSize*p.actionDims)
	for i := range noise {
		noise[i] = p.normal.Rand()
	}
	return noise
}

// Read returns copies of the actions and log probabilities computed
// in the last forward pass
func (p *SquashedGaussian) Read() (actions, logProb []float64) {
	return copyValue(p.actionsVal), copyValue(p.logProbVal)
}

// Mode returns tanh of the mean computed in the last forward pass,
// the deterministic action of the policy
func (p *SquashedGaussian) Mode() []float64 {
	mode := copyValue(p.meanVal)
	for i := range mode {
		mode[i] = math.Tanh(mode[i])
	}
	return mode
}

func copyValue(v G.Value) []float64 {
	if v == nil {
		return nil
	}
	return append([]float64(nil), v.Data().([]float64)...)
}

func repeatBool(b bool, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = b
	}
	return out
}
