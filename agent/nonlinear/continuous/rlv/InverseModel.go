package rlv

import (
	"fmt"
	"io"

	"github.com/samuelfneumann/rlv/network"
	"github.com/samuelfneumann/rlv/solver"
	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// InverseModel is an inverse dynamics model, which predicts the action
// that led from an observation to the next observation. The model is
// an MLP with ReLU hidden layers and a linear output layer, taking the
// concatenation of both observations as input. It is trained by
// regression onto known actions with the mean squared error.
//
// Training uses a graph with a fixed batch size. Predictions for other
// batch sizes use forward graphs which are built when first needed and
// synced with the trained weights before use.
type InverseModel struct {
	obsDims    int
	actionDims int
	batchSize  int
	hidden     []int
	init       G.InitWFn

	net     network.NeuralNet
	obs     *G.Node
	nextObs *G.Node
	target  *G.Node
	lossVal G.Value
	vm      G.VM
	solver  G.Solver

	updates    int
	predictors map[int]*predictor
}

// predictor is a forward graph of the inverse model
type predictor struct {
	net     network.NeuralNet
	obs     *G.Node
	nextObs *G.Node
	vm      G.VM
	updates int // Value of InverseModel.updates when last synced
}

// NewInverseModel returns a new InverseModel trained on batches of
// batchSize rows with Adam at the given learning rate
func NewInverseModel(obsDims, actionDims, batchSize int, hidden []int,
	learningRate float64, init G.InitWFn) (*InverseModel, error) {
	if obsDims <= 0 || actionDims <= 0 || batchSize <= 0 {
		return nil, fmt.Errorf("newInverseModel: dimensions and batch size "+
			"must be positive \n\thave(%v, %v, %v)", obsDims, actionDims,
			batchSize)
	}

	s, err := solver.NewDefaultAdam(learningRate).Create()
	if err != nil {
		return nil, fmt.Errorf("newInverseModel: %v", err)
	}

	m := &InverseModel{
		obsDims:    obsDims,
		actionDims: actionDims,
		batchSize:  batchSize,
		hidden:     append([]int(nil), hidden...),
		init:       init,
		solver:     s,
		predictors: make(map[int]*predictor),
	}

	g := G.NewGraph()
	m.net, m.obs, m.nextObs, err = m.newNet(g, batchSize, "inverseModel")
	if err != nil {
		return nil, fmt.Errorf("newInverseModel: %v", err)
	}

	m.target = G.NewMatrix(g, tensor.Float64,
		G.WithShape(batchSize, actionDims), G.WithName("inverseModelTarget"),
		G.WithInit(G.Zeroes()))
	loss := G.Must(G.Sub(m.net.Prediction()[0], m.target))
	loss = G.Must(G.Mean(G.Must(G.Square(loss))))
	G.Read(loss, &m.lossVal)

	if _, err := G.Grad(loss, m.net.Learnables()...); err != nil {
		return nil, fmt.Errorf("newInverseModel: could not compute "+
			"gradient: %v", err)
	}
	m.vm = G.NewTapeMachine(g, G.BindDualValues(m.net.Learnables()...))

	return m, nil
}

// newNet adds the inverse model network to g
func (m *InverseModel) newNet(g *G.ExprGraph, batch int,
	name string) (network.NeuralNet, *G.Node, *G.Node, error) {
	obs := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, m.obsDims),
		G.WithName(name+"Obs"), G.WithInit(G.Zeroes()))
	nextObs := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, m.obsDims),
		G.WithName(name+"NextObs"), G.WithInit(G.Zeroes()))

	biases := make([]bool, len(m.hidden))
	for i := range biases {
		biases[i] = true
	}
	net, err := network.NewMultiHeadMLPFromInput([]*G.Node{obs, nextObs},
		m.actionDims, g, m.hidden, biases, m.init,
		network.Repeat(network.ReLU, len(m.hidden)), name, true)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not create network: %v", err)
	}
	return net, obs, nextObs, nil
}

// BatchSize returns the number of rows used in each training step
func (m *InverseModel) BatchSize() int {
	return m.batchSize
}

// rows returns the number of rows in the row major observations
func (m *InverseModel) rows(obs, nextObs []float64) (int, error) {
	if len(obs) == 0 || len(obs)%m.obsDims != 0 {
		return 0, fmt.Errorf("observations of length %v are not rows of "+
			"%v features", len(obs), m.obsDims)
	}
	if len(obs) != len(nextObs) {
		return 0, fmt.Errorf("observation and next observation lengths "+
			"differ \n\twant(%v)\n\thave(%v)", len(obs), len(nextObs))
	}
	return len(obs) / m.obsDims, nil
}

// Predict returns the predicted actions for any number of rows of
// observations and next observations. Predict does not change the
// weights of the model.
func (m *InverseModel) Predict(obs, nextObs []float64) ([]float64, error) {
	batch, err := m.rows(obs, nextObs)
	if err != nil {
		return nil, fmt.Errorf("predict: %v", err)
	}

	p, ok := m.predictors[batch]
	if !ok {
		g := G.NewGraph()
		net, obsNode, nextObsNode, err := m.newNet(g, batch, "predictor")
		if err != nil {
			return nil, fmt.Errorf("predict: %v", err)
		}
		p = &predictor{
			net:     net,
			obs:     obsNode,
			nextObs: nextObsNode,
			vm:      G.NewTapeMachine(g),
			updates: -1,
		}
		m.predictors[batch] = p
	}

	if p.updates != m.updates {
		if err := network.Set(p.net, m.net); err != nil {
			return nil, fmt.Errorf("predict: %v", err)
		}
		p.updates = m.updates
	}

	if err := setMatrix(p.obs, obs); err != nil {
		return nil, fmt.Errorf("predict: %v", err)
	}
	if err := setMatrix(p.nextObs, nextObs); err != nil {
		return nil, fmt.Errorf("predict: %v", err)
	}
	defer p.vm.Reset()

	if err := p.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("predict: could not run model: %v", err)
	}
	return append([]float64(nil), p.net.Output()[0].Data().([]float64)...),
		nil
}

// TrainStep takes one Adam step on the mean squared error between the
// predicted actions and target. It returns the loss before the step.
func (m *InverseModel) TrainStep(obs, nextObs, target []float64) (float64,
	error) {
	if err := setMatrix(m.obs, obs); err != nil {
		return 0, fmt.Errorf("trainStep: %v", err)
	}
	if err := setMatrix(m.nextObs, nextObs); err != nil {
		return 0, fmt.Errorf("trainStep: %v", err)
	}
	if err := setMatrix(m.target, target); err != nil {
		return 0, fmt.Errorf("trainStep: %v", err)
	}
	defer m.vm.Reset()

	if err := m.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("trainStep: could not run model: %v", err)
	}
	loss := m.lossVal.Data().(float64)

	if err := m.solver.Step(m.net.Model()); err != nil {
		return 0, fmt.Errorf("trainStep: could not step solver: %v", err)
	}
	m.updates++

	return loss, nil
}

// Evaluate returns the predicted actions and their mean squared error
// from target without changing the weights of the model
func (m *InverseModel) Evaluate(obs, nextObs, target []float64) ([]float64,
	float64, error) {
	pred, err := m.Predict(obs, nextObs)
	if err != nil {
		return nil, 0, fmt.Errorf("evaluate: %v", err)
	}
	if len(target) != len(pred) {
		return nil, 0, fmt.Errorf("evaluate: invalid number of targets "+
			"\n\twant(%v)\n\thave(%v)", len(pred), len(target))
	}

	dist := floats.Distance(pred, target, 2)
	return pred, dist * dist / float64(len(pred)), nil
}

// Save writes the weights of the model to w
func (m *InverseModel) Save(w io.Writer) error {
	if err := network.Save(w, m.net); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	return nil
}

// Load reads weights written with Save into the model
func (m *InverseModel) Load(r io.Reader) error {
	if err := network.Load(r, m.net); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	m.updates++
	return nil
}

// Close releases the resources of the model's VMs
func (m *InverseModel) Close() error {
	err := m.vm.Close()
	for _, p := range m.predictors {
		if pErr := p.vm.Close(); pErr != nil && err == nil {
			err = pErr
		}
	}
	return err
}

// setMatrix sets the value of an input node of the computational graph
func setMatrix(n *G.Node, data []float64) error {
	if len(data) != n.Shape().TotalSize() {
		return fmt.Errorf("invalid number of values for %v \n\twant(%v)"+
			"\n\thave(%v)", n.Name(), n.Shape().TotalSize(), len(data))
	}
	t := tensor.New(
		tensor.WithBacking(data),
		tensor.WithShape(n.Shape()...),
	)
	return G.Let(n, t)
}
