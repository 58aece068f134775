// Package sac implements the Soft Actor-Critic algorithm
package sac

import (
	"fmt"
	"log"
	"math"

	"github.com/samuelfneumann/rlv/agent/nonlinear/continuous/policy"
	env "github.com/samuelfneumann/rlv/environment"
	"github.com/samuelfneumann/rlv/expreplay"
	"github.com/samuelfneumann/rlv/network"
	ts "github.com/samuelfneumann/rlv/timestep"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// numCritics is the number of critics and target critics
const numCritics = 2

// SAC implements the Soft Actor-Critic algorithm with a squashed
// Gaussian policy, twin critics with target critics, and automatic
// tuning of the entropy coefficient.
//
// Gorgonia graphs have static shapes, so SAC keeps one graph per use:
// a behaviour policy which selects one action at a time, a sampler
// which samples actions for a batch, an actor graph which holds the
// trained policy together with copies of the critics, a critic graph,
// a target critic graph, and an entropy coefficient graph. Weights are
// copied between graphs with network.Set after each update.
type SAC struct {
	config     Config
	obsDims    int
	actionDims int
	actionLow  []float64
	actionHigh []float64

	// Policy
	behaviour    *policy.Sampler // Batch size 1
	sampler      *policy.Sampler // Batch size config.BatchSize
	actor        *policy.SquashedGaussian
	actorCritics [numCritics]network.NeuralNet
	actorEntCoef *G.Node
	actorLossVal G.Value
	actorVM      G.VM
	actorSolver  G.Solver

	// Critics
	critics       [numCritics]network.NeuralNet
	criticObs     *G.Node
	criticActions *G.Node
	criticTarget  *G.Node
	criticLossVal G.Value
	criticModel   []G.ValueGrad
	criticVM      G.VM
	criticSolver  G.Solver

	// Target critics
	targets       [numCritics]network.NeuralNet
	targetObs     *G.Node
	targetActions *G.Node
	targetVM      G.VM

	// Entropy coefficient
	autoEntCoef   bool
	entCoef       float64 // Used if !autoEntCoef
	logEntCoef    *G.Node
	entLogProb    *G.Node
	entLossVal    G.Value
	entVM         G.VM
	entSolver     G.Solver
	targetEntropy float64

	replay       *expreplay.ReplayBuffer
	prevStep     ts.TimeStep
	numTimesteps int
	nUpdates     int
	trainCalls   int
	eval         bool
	random       distuv.Uniform

	logger *log.Logger
}

// New creates a new SAC agent which acts in the environment e
func New(e env.Environment, c Config, seed uint64) (*SAC, error) {
	return newSAC(e.ObservationSpec(), e.ActionSpec(), c, seed)
}

func newSAC(obsSpec, actionSpec env.Spec, c Config, seed uint64) (*SAC,
	error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if actionSpec.Cardinality != env.Continuous {
		return nil, fmt.Errorf("new: SAC requires continuous actions")
	}

	obsDims := obsSpec.Dims()
	actionDims := actionSpec.Dims()
	init, err := c.InitWFn()
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	replay, err := expreplay.New(c.ReplayCapacity, obsDims, actionDims, seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not construct experience "+
			"replay buffer: %v", err)
	}

	s := &SAC{
		config:     c,
		obsDims:    obsDims,
		actionDims: actionDims,
		actionLow:  actionSpec.LowerBound.RawVector().Data,
		actionHigh: actionSpec.UpperBound.RawVector().Data,
		replay:     replay,
		random: distuv.Uniform{
			Min: -1,
			Max: 1,
			Src: rand.NewSource(seed + 1),
		},
		logger: log.Default(),
	}

	if err := s.buildCritics(init); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if err := s.buildActor(init, seed+2); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if err := s.buildEntCoef(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	s.behaviour, err = policy.NewSampler(obsDims, actionDims, 1, c.Hidden,
		init, seed+3)
	if err != nil {
		return nil, fmt.Errorf("new: could not create behaviour policy: %v",
			err)
	}
	s.sampler, err = policy.NewSampler(obsDims, actionDims, c.BatchSize,
		c.Hidden, init, seed+4)
	if err != nil {
		return nil, fmt.Errorf("new: could not create sampling policy: %v",
			err)
	}
	if err := s.syncPolicies(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	for i := range s.critics {
		if err := network.Set(s.targets[i], s.critics[i]); err != nil {
			return nil, fmt.Errorf("new: could not initialize target "+
				"critic: %v", err)
		}
	}
	if err := s.syncActorCritics(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return s, nil
}

// newCritics adds numCritics Q-value networks to g, each taking the
// concatenation of inputs as its input
func newCritics(g *G.ExprGraph, inputs []*G.Node, hidden []int,
	init G.InitWFn, name string) ([numCritics]network.NeuralNet, error) {
	var critics [numCritics]network.NeuralNet
	biases := make([]bool, len(hidden))
	for i := range biases {
		biases[i] = true
	}

	for i := range critics {
		critic, err := network.NewMultiHeadMLPFromInput(inputs, 1, g, hidden,
			biases, init, network.Repeat(network.ReLU, len(hidden)),
			fmt.Sprintf("%v%d", name, i), true)
		if err != nil {
			return critics, fmt.Errorf("could not create critic %v: %v", i,
				err)
		}
		critics[i] = critic
	}
	return critics, nil
}

// buildCritics constructs the critic and target critic graphs
func (s *SAC) buildCritics(init G.InitWFn) error {
	batch := s.config.BatchSize

	// Critics and their loss
	g := G.NewGraph()
	s.criticObs = G.NewMatrix(g, tensor.Float64,
		G.WithShape(batch, s.obsDims), G.WithName("criticObs"),
		G.WithInit(G.Zeroes()))
	s.criticActions = G.NewMatrix(g, tensor.Float64,
		G.WithShape(batch, s.actionDims), G.WithName("criticActions"),
		G.WithInit(G.Zeroes()))
	s.criticTarget = G.NewMatrix(g, tensor.Float64, G.WithShape(batch, 1),
		G.WithName("criticTarget"), G.WithInit(G.Zeroes()))

	critics, err := newCritics(g, []*G.Node{s.criticObs, s.criticActions},
		s.config.Hidden, init, "critic")
	if err != nil {
		return fmt.Errorf("buildCritics: %v", err)
	}
	s.critics = critics

	var loss *G.Node
	var learnables G.Nodes
	for _, critic := range critics {
		mse := G.Must(G.Sub(critic.Prediction()[0], s.criticTarget))
		mse = G.Must(G.Mean(G.Must(G.Square(mse))))
		if loss == nil {
			loss = mse
		} else {
			loss = G.Must(G.Add(loss, mse))
		}

		learnables = append(learnables, critic.Learnables()...)
		s.criticModel = append(s.criticModel, critic.Model()...)
	}
	loss = G.Must(G.HadamardProd(G.NewConstant(0.5), loss))
	G.Read(loss, &s.criticLossVal)

	if _, err := G.Grad(loss, learnables...); err != nil {
		return fmt.Errorf("buildCritics: could not compute critic "+
			"gradient: %v", err)
	}
	s.criticVM = G.NewTapeMachine(g, G.BindDualValues(learnables...))
	if s.criticSolver, err = s.config.solver(); err != nil {
		return fmt.Errorf("buildCritics: %v", err)
	}

	// Target critics
	tg := G.NewGraph()
	s.targetObs = G.NewMatrix(tg, tensor.Float64,
		G.WithShape(batch, s.obsDims), G.WithName("targetObs"),
		G.WithInit(G.Zeroes()))
	s.targetActions = G.NewMatrix(tg, tensor.Float64,
		G.WithShape(batch, s.actionDims), G.WithName("targetActions"),
		G.WithInit(G.Zeroes()))

	targets, err := newCritics(tg, []*G.Node{s.targetObs, s.targetActions},
		s.config.Hidden, init, "target")
	if err != nil {
		return fmt.Errorf("buildCritics: %v", err)
	}
	s.targets = targets
	s.targetVM = G.NewTapeMachine(tg)

	return nil
}

// buildActor constructs the actor graph. The actor graph evaluates the
// actions of the trained policy with copies of the critics so that the
// policy gradient flows through the actions.
func (s *SAC) buildActor(init G.InitWFn, seed uint64) error {
	g := G.NewGraph()
	actor, err := policy.NewSquashedGaussian(g, s.obsDims, s.actionDims,
		s.config.BatchSize, s.config.Hidden, init, "actor", seed)
	if err != nil {
		return fmt.Errorf("buildActor: could not create policy: %v", err)
	}
	s.actor = actor

	critics, err := newCritics(g, []*G.Node{actor.Input(), actor.Actions()},
		s.config.Hidden, init, "actorCritic")
	if err != nil {
		return fmt.Errorf("buildActor: %v", err)
	}
	s.actorCritics = critics

	s.actorEntCoef = G.NewScalar(g, tensor.Float64, G.WithName("entCoef"),
		G.WithValue(1.0))

	// min(q1, q2) = 0.5 * (q1 + q2 - |q1 - q2|)
	q1 := critics[0].Prediction()[0]
	q2 := critics[1].Prediction()[0]
	minQ := G.Must(G.Sub(G.Must(G.Add(q1, q2)),
		G.Must(G.Abs(G.Must(G.Sub(q1, q2))))))
	minQ = G.Must(G.HadamardProd(G.NewConstant(0.5), minQ))

	entropy := G.Must(G.HadamardProd(s.actorEntCoef, actor.LogProb()))
	loss := G.Must(G.Sub(G.Must(G.Mean(entropy)), G.Must(G.Mean(minQ))))
	G.Read(loss, &s.actorLossVal)

	if _, err := G.Grad(loss, actor.Learnables()...); err != nil {
		return fmt.Errorf("buildActor: could not compute policy "+
			"gradient: %v", err)
	}
	s.actorVM = G.NewTapeMachine(g, G.BindDualValues(actor.Learnables()...))
	if s.actorSolver, err = s.config.solver(); err != nil {
		return fmt.Errorf("buildActor: %v", err)
	}
	return nil
}

// buildEntCoef constructs the graph of the log entropy coefficient,
// which is only trained if the entropy coefficient is tuned
// automatically
func (s *SAC) buildEntCoef() error {
	entCoef, auto, err := s.config.entCoef()
	if err != nil {
		return fmt.Errorf("buildEntCoef: %v", err)
	}
	s.autoEntCoef = auto
	s.entCoef = entCoef
	if !auto {
		return nil
	}

	if s.targetEntropy, err = s.config.targetEntropy(s.actionDims); err != nil {
		return fmt.Errorf("buildEntCoef: %v", err)
	}

	g := G.NewGraph()
	s.logEntCoef = G.NewScalar(g, tensor.Float64, G.WithName("logEntCoef"),
		G.WithValue(math.Log(entCoef)))
	s.entLogProb = G.NewVector(g, tensor.Float64,
		G.WithShape(s.config.BatchSize), G.WithName("entLogProb"),
		G.WithInit(G.Zeroes()))

	// -log(α) * mean(log π + target entropy)
	meanLogProb := G.Must(G.Mean(G.Must(G.Add(s.entLogProb,
		G.NewConstant(s.targetEntropy)))))
	loss := G.Must(G.Neg(G.Must(G.Mul(s.logEntCoef, meanLogProb))))
	G.Read(loss, &s.entLossVal)

	if _, err := G.Grad(loss, s.logEntCoef); err != nil {
		return fmt.Errorf("buildEntCoef: could not compute entropy "+
			"coefficient gradient: %v", err)
	}
	s.entVM = G.NewTapeMachine(g, G.BindDualValues(s.logEntCoef))
	if s.entSolver, err = s.config.solver(); err != nil {
		return fmt.Errorf("buildEntCoef: %v", err)
	}
	return nil
}

// syncPolicies copies the weights of the trained policy into the
// behaviour and sampling policies
func (s *SAC) syncPolicies() error {
	if err := s.behaviour.SetWeights(s.actor); err != nil {
		return fmt.Errorf("could not set behaviour policy: %v", err)
	}
	if err := s.sampler.SetWeights(s.actor); err != nil {
		return fmt.Errorf("could not set sampling policy: %v", err)
	}
	return nil
}

// syncActorCritics copies the weights of the critics into the actor
// graph
func (s *SAC) syncActorCritics() error {
	for i := range s.critics {
		if err := network.Set(s.actorCritics[i], s.critics[i]); err != nil {
			return fmt.Errorf("could not set actor critic %v: %v", i, err)
		}
	}
	return nil
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

// scalar returns the data of a scalar value
func scalar(v G.Value) float64 {
	return v.Data().(float64)
}

// BatchSize returns the number of rows in each gradient update
func (s *SAC) BatchSize() int {
	return s.config.BatchSize
}

// ObservationDims returns the dimension of observations
func (s *SAC) ObservationDims() int {
	return s.obsDims
}

// ActionDims returns the dimension of actions
func (s *SAC) ActionDims() int {
	return s.actionDims
}

// Gamma returns the discount factor
func (s *SAC) Gamma() float64 {
	return s.config.Gamma
}

// TargetUpdateInterval returns the number of gradient steps between
// target critic updates
func (s *SAC) TargetUpdateInterval() int {
	return s.config.TargetUpdateInterval
}

// ActionLogProb samples actions for a batch of observations from the
// current policy
func (s *SAC) ActionLogProb(obs []float64) (policy.Sample, error) {
	return s.sampler.Sample(obs)
}

// EntCoef returns the current entropy coefficient
func (s *SAC) EntCoef() float64 {
	if !s.autoEntCoef {
		return s.entCoef
	}
	return math.Exp(scalar(s.logEntCoef.Value()))
}

// UpdateEntCoef takes one gradient step on the log entropy coefficient
func (s *SAC) UpdateEntCoef(logProb []float64) (float64, bool, error) {
	if !s.autoEntCoef {
		return 0, false, nil
	}
	if err := setMatrix(s.entLogProb, logProb); err != nil {
		return 0, false, fmt.Errorf("updateEntCoef: %v", err)
	}
	defer s.entVM.Reset()

	if err := s.entVM.RunAll(); err != nil {
		return 0, false, fmt.Errorf("updateEntCoef: could not run "+
			"entropy coefficient graph: %v", err)
	}
	loss := scalar(s.entLossVal)
	model := []G.ValueGrad{s.logEntCoef}
	if err := s.entSolver.Step(model); err != nil {
		return 0, false, fmt.Errorf("updateEntCoef: could not step "+
			"solver: %v", err)
	}
	return loss, true, nil
}

// TargetQ returns the predictions of each target critic
func (s *SAC) TargetQ(nextObs, nextActions []float64) ([][]float64, error) {
	if err := setMatrix(s.targetObs, nextObs); err != nil {
		return nil, fmt.Errorf("targetQ: %v", err)
	}
	if err := setMatrix(s.targetActions, nextActions); err != nil {
		return nil, fmt.Errorf("targetQ: %v", err)
	}
	defer s.targetVM.Reset()

	if err := s.targetVM.RunAll(); err != nil {
		return nil, fmt.Errorf("targetQ: could not run target critics: %v",
			err)
	}

	q := make([][]float64, numCritics)
	for i, target := range s.targets {
		q[i] = append([]float64(nil),
			target.Output()[0].Data().([]float64)...)
	}
	return q, nil
}

// UpdateCritic takes one gradient step on both critics
func (s *SAC) UpdateCritic(obs, actions, target []float64) (float64, error) {
	if err := setMatrix(s.criticObs, obs); err != nil {
		return 0, fmt.Errorf("updateCritic: %v", err)
	}
	if err := setMatrix(s.criticActions, actions); err != nil {
		return 0, fmt.Errorf("updateCritic: %v", err)
	}
	if err := setMatrix(s.criticTarget, target); err != nil {
		return 0, fmt.Errorf("updateCritic: %v", err)
	}

	if err := s.criticVM.RunAll(); err != nil {
		s.criticVM.Reset()
		return 0, fmt.Errorf("updateCritic: could not run critics: %v", err)
	}
	loss := scalar(s.criticLossVal)
	if err := s.criticSolver.Step(s.criticModel); err != nil {
		s.criticVM.Reset()
		return 0, fmt.Errorf("updateCritic: could not step solver: %v", err)
	}
	s.criticVM.Reset()

	if err := s.syncActorCritics(); err != nil {
		return 0, fmt.Errorf("updateCritic: %v", err)
	}
	return loss, nil
}

// UpdateActor takes one gradient step on the policy
func (s *SAC) UpdateActor(obs []float64, sample policy.Sample,
	entCoef float64) (float64, error) {
	if err := s.actor.SetInput(obs); err != nil {
		return 0, fmt.Errorf("updateActor: %v", err)
	}
	if err := s.actor.SetNoise(sample.Noise); err != nil {
		return 0, fmt.Errorf("updateActor: %v", err)
	}
	if err := G.Let(s.actorEntCoef, G.NewF64(entCoef)); err != nil {
		return 0, fmt.Errorf("updateActor: could not set entropy "+
			"coefficient: %v", err)
	}

	if err := s.actorVM.RunAll(); err != nil {
		s.actorVM.Reset()
		return 0, fmt.Errorf("updateActor: could not run actor: %v", err)
	}
	loss := scalar(s.actorLossVal)
	if err := s.actorSolver.Step(s.actor.Network().Model()); err != nil {
		s.actorVM.Reset()
		return 0, fmt.Errorf("updateActor: could not step solver: %v", err)
	}
	s.actorVM.Reset()

	if err := s.syncPolicies(); err != nil {
		return 0, fmt.Errorf("updateActor: %v", err)
	}
	return loss, nil
}

// UpdateTarget moves the target critics toward the critics with
// Polyak averaging
func (s *SAC) UpdateTarget() error {
	for i := range s.targets {
		if err := network.Polyak(s.targets[i], s.critics[i],
			s.config.Tau); err != nil {
			return fmt.Errorf("updateTarget: %v", err)
		}
	}
	return nil
}

// Close releases the resources of all VMs
func (s *SAC) Close() error {
	vms := []G.VM{s.actorVM, s.criticVM, s.targetVM}
	if s.entVM != nil {
		vms = append(vms, s.entVM)
	}

	var firstErr error
	for _, vm := range vms {
		if err := vm.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, sampler := range []*policy.Sampler{s.behaviour, s.sampler} {
		if err := sampler.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
