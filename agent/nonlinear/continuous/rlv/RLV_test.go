package rlv

import (
	"bytes"
	"log"
	"math"
	"testing"

	"github.com/samuelfneumann/rlv/agent/nonlinear/continuous/sac"
	"github.com/samuelfneumann/rlv/dataset"
	env "github.com/samuelfneumann/rlv/environment"
	"github.com/samuelfneumann/rlv/environment/classiccontrol/acrobot"
	"github.com/samuelfneumann/rlv/expreplay"
	ts "github.com/samuelfneumann/rlv/timestep"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testSACConfig() sac.Config {
	c := sac.DefaultConfig()
	c.BatchSize = 16
	c.ReplayCapacity = 1000
	c.LearningStarts = 1000
	c.Hidden = []int{16, 16}
	c.LogInterval = 0
	return c
}

func testConfig() Config {
	c := DefaultConfig()
	c.Profile = acrobot.Name
	c.WarmupSteps = 20
	c.InverseModelHidden = []int{16}
	c.ActionFreeCapacity = 1000
	c.LogInterval = 0
	return c
}

func newAcrobot(t *testing.T, seed uint64) env.Environment {
	e, _, err := env.Make(env.Config{Name: acrobot.Name, Discount: 0.99,
		EpisodeCutoff: 500}, seed)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

// learner is an agent which can be stepped through an environment
type learner interface {
	SelectAction(t ts.TimeStep) (*mat.VecDense, error)
	ObserveFirst(t ts.TimeStep) error
	Observe(action mat.Vector, nextStep ts.TimeStep) error
	Step() error
	EndEpisode()
}

// interact steps an agent through the environment for steps
// environment steps. The agent is given the chance to train after
// each step.
func interact(t *testing.T, e env.Environment, a learner, steps int) {
	step, err := e.Reset()
	require.NoError(t, err)
	require.NoError(t, a.ObserveFirst(step))

	for i := 0; i < steps; i++ {
		action, err := a.SelectAction(step)
		require.NoError(t, err)

		step, _, err = e.Step(action)
		require.NoError(t, err)
		require.NoError(t, a.Observe(action, step))
		require.NoError(t, a.Step())

		if step.Last() {
			a.EndEpisode()
			step, err = e.Reset()
			require.NoError(t, err)
			require.NoError(t, a.ObserveFirst(step))
		}
	}
}

// collect returns a dataset of steps transitions gathered by a SAC
// agent which acts uniformly at random
func collect(t *testing.T, steps int) (dataset.Dataset, *sac.SAC) {
	c := testSACConfig()
	c.LearningStarts = 2 * steps
	e := newAcrobot(t, 7)

	collector, err := sac.New(e, c, 7)
	require.NoError(t, err)
	t.Cleanup(func() { collector.Close() })
	collector.SetLogger(log.New(&bytes.Buffer{}, "", 0))

	interact(t, e, collector, steps)
	return dataset.FromBuffer(collector.ReplayBuffer(), acrobot.Name),
		collector
}

func requireFinite(t *testing.T, d Diagnostics) {
	for _, v := range []float64{d.EntCoef, d.ActorLoss, d.CriticLoss,
		d.EntCoefLoss, d.InverseModelLoss} {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%v", d)
	}
}

func TestRLV(t *testing.T) {
	data, _ := collect(t, 1000)
	require.Equal(t, 1000, data.Len())
	require.NoError(t, data.Validate())

	e := newAcrobot(t, 1)
	agent, err := New(e, testSACConfig(), testConfig(), 1)
	require.NoError(t, err)
	defer agent.Close()
	var logs bytes.Buffer
	agent.SetLogger(log.New(&logs, "", 0))

	require.Equal(t, AcrobotProfile, agent.Profile())
	require.Equal(t, 32, agent.SAC().BatchSize())
	require.Equal(t, 16, agent.InverseModel().BatchSize())

	require.NoError(t, agent.FillFromDataset(data))
	require.Equal(t, 1000, agent.ActionFreeBuffer().Len())
	require.True(t, agent.ActionFreeBuffer().Frozen())
	require.Contains(t, logs.String(), "1000 transitions")

	err = agent.ActionFreeBuffer().Add(make([]float64, 4), make([]float64, 1),
		make([]float64, 4), 0, false)
	require.True(t, expreplay.IsFrozen(err))

	losses, err := agent.Warmup()
	require.NoError(t, err)
	require.Len(t, losses, 20)
	require.Equal(t, WarmupDone, agent.WarmupState())

	// Training starts at the 1000th environment step
	interact(t, e, agent, 1000)
	require.Equal(t, 1000, agent.SAC().NumTimesteps())
	require.Equal(t, 1, agent.Trainer().NUpdates())

	d, err := agent.Learn(5)
	require.NoError(t, err)
	require.Equal(t, 6, d.NUpdates)
	require.True(t, d.HasEntCoefLoss)
	requireFinite(t, d)

	// The interaction buffer only holds environment interactions
	require.Equal(t, 1000, agent.SAC().ReplayBuffer().Len())

	agent.Eval()
	require.True(t, agent.IsEval())
	interact(t, e, agent, 10)
	require.Equal(t, 6, agent.Trainer().NUpdates())
	agent.Train()
	require.False(t, agent.IsEval())
}

func TestRLVFillFromAgent(t *testing.T) {
	_, collector := collect(t, 100)

	agent, err := New(newAcrobot(t, 2), testSACConfig(), testConfig(), 2)
	require.NoError(t, err)
	defer agent.Close()
	agent.SetLogger(log.New(&bytes.Buffer{}, "", 0))

	require.NoError(t, agent.FillFromAgent(collector))
	require.Equal(t, 100, agent.ActionFreeBuffer().Len())

	want := collector.ReplayBuffer().All()
	got := agent.ActionFreeBuffer().All()
	require.Equal(t, want.Actions, got.Actions)
	require.Equal(t, want.Rewards, got.Rewards)

	// Once frozen, the action-free buffer cannot be filled again
	require.Error(t, agent.FillFromAgent(collector))
}

func TestRLVInverseModelSaveLoad(t *testing.T) {
	data, _ := collect(t, 100)

	source, err := New(newAcrobot(t, 3), testSACConfig(), testConfig(), 3)
	require.NoError(t, err)
	defer source.Close()
	source.SetLogger(log.New(&bytes.Buffer{}, "", 0))
	require.NoError(t, source.FillFromDataset(data))
	_, err = source.Warmup()
	require.NoError(t, err)

	dest, err := New(newAcrobot(t, 4), testSACConfig(), testConfig(), 4)
	require.NoError(t, err)
	defer dest.Close()

	var buf bytes.Buffer
	require.NoError(t, source.SaveInverseModel(&buf))
	require.NoError(t, dest.LoadInverseModel(&buf))

	b := data.Batch
	want, err := source.InverseModel().Predict(b.Observations,
		b.NextObservations)
	require.NoError(t, err)
	got, err := dest.InverseModel().Predict(b.Observations,
		b.NextObservations)
	require.NoError(t, err)
	require.InDeltaSlice(t, want, got, 1e-12)
}

func TestNewErrors(t *testing.T) {
	e := newAcrobot(t, 5)

	c := testConfig()
	c.BetaInverseModel = 0
	_, err := New(e, testSACConfig(), c, 1)
	require.Error(t, err)

	c = testConfig()
	c.RewardSignal = "random"
	_, err = New(e, testSACConfig(), c, 1)
	require.Error(t, err)

	sc := testSACConfig()
	sc.BatchSize = 0
	_, err = New(e, sc, testConfig(), 1)
	require.Error(t, err)
}
