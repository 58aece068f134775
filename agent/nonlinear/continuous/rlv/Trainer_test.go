package rlv

import (
	"bytes"
	"fmt"
	"log"
	"math"
	"testing"

	"github.com/samuelfneumann/rlv/agent/nonlinear/continuous/policy"
	"github.com/samuelfneumann/rlv/expreplay"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
)

// fixedBuffer always samples the same batch
type fixedBuffer struct {
	batch expreplay.Batch
}

func (f fixedBuffer) Sample(n int) (expreplay.Batch, error) {
	if n != f.batch.Size {
		return expreplay.Batch{}, fmt.Errorf("fixedBuffer: cannot sample %v "+
			"rows", n)
	}
	return f.batch, nil
}

func (f fixedBuffer) Len() int { return f.batch.Size }

// recordingCore is a Core which records the updates it is asked for.
// Its critics and policy predict zeros.
type recordingCore struct {
	batch      int
	actionDims int
	interval   int

	calls   []string
	actions [][]float64
	targets [][]float64
}

func (r *recordingCore) BatchSize() int            { return r.batch }
func (r *recordingCore) Gamma() float64            { return 0.99 }
func (r *recordingCore) TargetUpdateInterval() int { return r.interval }
func (r *recordingCore) EntCoef() float64          { return 0.2 }

func (r *recordingCore) ActionLogProb([]float64) (policy.Sample, error) {
	return policy.Sample{
		Actions: make([]float64, r.batch*r.actionDims),
		LogProb: make([]float64, r.batch),
		Noise:   make([]float64, r.batch*r.actionDims),
	}, nil
}

func (r *recordingCore) UpdateEntCoef([]float64) (float64, bool, error) {
	r.calls = append(r.calls, "entropy")
	return 0, true, nil
}

func (r *recordingCore) TargetQ(_, _ []float64) ([][]float64, error) {
	return [][]float64{make([]float64, r.batch), make([]float64, r.batch)},
		nil
}

func (r *recordingCore) UpdateCritic(_, actions, target []float64) (float64,
	error) {
	r.calls = append(r.calls, "critic")
	r.actions = append(r.actions, append([]float64(nil), actions...))
	r.targets = append(r.targets, append([]float64(nil), target...))
	return 1, nil
}

func (r *recordingCore) UpdateActor([]float64, policy.Sample,
	float64) (float64, error) {
	r.calls = append(r.calls, "actor")
	return -1, nil
}

func (r *recordingCore) UpdateTarget() error {
	r.calls = append(r.calls, "target")
	return nil
}

// targetSteps returns the gradient steps at which the target critics
// were updated
func (r *recordingCore) targetSteps() []int {
	var steps []int
	step := -1
	for _, call := range r.calls {
		switch call {
		case "entropy":
			step++
		case "target":
			steps = append(steps, step)
		}
	}
	return steps
}

// newBatch returns a batch of n rows with the given dimensions, with
// every reward equal to reward
func newBatch(n, obsDims, actionDims int, offset, reward float64) expreplay.Batch {
	b := expreplay.Batch{
		Size:             n,
		ObservationDims:  obsDims,
		ActionDims:       actionDims,
		Observations:     make([]float64, n*obsDims),
		Actions:          make([]float64, n*actionDims),
		NextObservations: make([]float64, n*obsDims),
		Rewards:          make([]float64, n),
		Dones:            make([]float64, n),
	}
	for i := range b.Observations {
		b.Observations[i] = offset + float64(i)/100
		b.NextObservations[i] = offset - float64(i)/100
	}
	for i := range b.Actions {
		b.Actions[i] = 0.5
	}
	for i := range b.Rewards {
		b.Rewards[i] = reward
	}
	return b
}

func newTestTrainer(t *testing.T, core Core, interact, actionFree Buffer,
	profile Profile, c Config, batch, obsDims, actionDims int) (*Trainer,
	*InverseModel) {
	inverse, err := NewInverseModel(obsDims, actionDims, batch, []int{8},
		1e-3, G.GlorotU(1.0))
	require.NoError(t, err)
	t.Cleanup(func() { inverse.Close() })

	trainer, err := NewTrainer(core, inverse, interact, actionFree, profile,
		c)
	require.NoError(t, err)
	trainer.SetLogger(log.New(&bytes.Buffer{}, "", 0))
	return trainer, inverse
}

func TestTrainerPolyakCadence(t *testing.T) {
	const batch = 4
	core := &recordingCore{batch: 2 * batch, actionDims: 2, interval: 3}
	interact := fixedBuffer{newBatch(batch, 3, 2, 0, 1)}
	actionFree := fixedBuffer{newBatch(batch, 3, 2, 1, -5)}

	trainer, _ := newTestTrainer(t, core, interact, actionFree,
		GenericProfile, DefaultConfig(), batch, 3, 2)

	d, err := trainer.Train(10)
	require.NoError(t, err)
	require.Equal(t, 10, d.NUpdates)
	require.Equal(t, []int{0, 3, 6, 9}, core.targetSteps())

	// Updates happen in order within each gradient step
	require.Equal(t, []string{"entropy", "critic", "actor", "target",
		"entropy", "critic", "actor"}, core.calls[:7])
}

func TestTrainerAugmentedBatch(t *testing.T) {
	const batch = 4
	tests := []struct {
		profile Profile
		signal  RewardSignal
		want    float64
	}{
		{GenericProfile, ZeroSignal, 10},
		{GenericProfile, DatasetSignal, 0},
		{AcrobotProfile, ZeroSignal, 10},
		{AcrobotProfile, DatasetSignal, -1},
		{RoboticArmProfile, DatasetSignal, 100},
	}

	for _, test := range tests {
		core := &recordingCore{batch: 2 * batch, actionDims: 2, interval: 1}
		interact := fixedBuffer{newBatch(batch, 3, 2, 0, 1)}
		free := newBatch(batch, 3, 2, 1, -5)

		c := DefaultConfig()
		c.RewardSignal = test.signal
		trainer, inverse := newTestTrainer(t, core, interact,
			fixedBuffer{free}, test.profile, c, batch, 3, 2)

		d, err := trainer.Train(1)
		require.NoError(t, err)
		require.Equal(t, 1, d.NUpdates)

		// With zero critics and log probabilities the TD targets are the
		// rewards of the augmented batch
		target := core.targets[0]
		require.Len(t, target, 2*batch)
		for i := 0; i < batch; i++ {
			require.Equal(t, 1.0, target[i])
			require.Equal(t, test.want, target[batch+i],
				"%v %v", test.profile, test.signal)
		}

		// Action-free rows carry the actions predicted by the inverse
		// model
		pred, err := inverse.Predict(free.Observations, free.NextObservations)
		require.NoError(t, err)
		actions := core.actions[0]
		require.Equal(t, interact.batch.Actions, actions[:batch*2])
		require.InDeltaSlice(t, pred, actions[batch*2:], 1e-12)

		_, loss, err := inverse.Evaluate(free.Observations,
			free.NextObservations, free.Actions)
		require.NoError(t, err)
		require.InDelta(t, loss, d.InverseModelLoss, 1e-12)
	}
}

func TestTrainerInverseModelDuringFusion(t *testing.T) {
	const batch = 4
	free := newBatch(batch, 3, 2, 1, -5)

	for _, train := range []bool{false, true} {
		core := &recordingCore{batch: 2 * batch, actionDims: 2, interval: 1}
		c := DefaultConfig()
		c.TrainInverseModelDuringFusion = train
		trainer, inverse := newTestTrainer(t, core,
			fixedBuffer{newBatch(batch, 3, 2, 0, 1)}, fixedBuffer{free},
			GenericProfile, c, batch, 3, 2)

		before, err := inverse.Predict(free.Observations,
			free.NextObservations)
		require.NoError(t, err)

		_, err = trainer.Train(3)
		require.NoError(t, err)

		after, err := inverse.Predict(free.Observations,
			free.NextObservations)
		require.NoError(t, err)
		if train {
			require.NotEqual(t, before, after)
		} else {
			require.Equal(t, before, after)
		}
	}
}

func TestTrainerErrors(t *testing.T) {
	const batch = 4
	interact := fixedBuffer{newBatch(batch, 3, 2, 0, 1)}

	// Core batch size must be twice the inverse model batch size
	inverse, err := NewInverseModel(3, 2, batch, []int{8}, 1e-3,
		G.GlorotU(1.0))
	require.NoError(t, err)
	defer inverse.Close()
	_, err = NewTrainer(&recordingCore{batch: batch, actionDims: 2,
		interval: 1}, inverse, interact, interact, GenericProfile,
		DefaultConfig())
	require.Error(t, err)

	c := DefaultConfig()
	c.RewardSignal = "random"
	_, err = NewTrainer(&recordingCore{batch: 2 * batch, actionDims: 2,
		interval: 1}, inverse, interact, interact, GenericProfile, c)
	require.Error(t, err)

	// Empty action-free buffer
	empty, err := expreplay.New(10, 3, 2, 1)
	require.NoError(t, err)
	trainer, _ := newTestTrainer(t, &recordingCore{batch: 2 * batch,
		actionDims: 2, interval: 1}, interact, empty, GenericProfile,
		DefaultConfig(), batch, 3, 2)
	_, err = trainer.Train(1)
	require.Error(t, err)
	require.True(t, expreplay.IsInvalidArgument(err))
}

func TestWarmup(t *testing.T) {
	const batch = 4
	core := &recordingCore{batch: 2 * batch, actionDims: 2, interval: 1}
	interact := fixedBuffer{newBatch(batch, 3, 2, 0, 1)}

	empty, err := expreplay.New(10, 3, 2, 1)
	require.NoError(t, err)
	trainer, _ := newTestTrainer(t, core, interact, empty, GenericProfile,
		DefaultConfig(), batch, 3, 2)
	require.Equal(t, WarmupPending, trainer.WarmupState())

	losses, err := trainer.Warmup(10)
	require.Error(t, err)
	require.True(t, expreplay.IsInvalidArgument(err))
	require.Empty(t, losses)
	require.Equal(t, WarmupPending, trainer.WarmupState())

	var logs bytes.Buffer
	trainer, _ = newTestTrainer(t, core, interact,
		fixedBuffer{newBatch(batch, 3, 2, 1, 0)}, GenericProfile,
		DefaultConfig(), batch, 3, 2)
	trainer.SetLogger(log.New(&logs, "", 0))

	losses, err = trainer.Warmup(250)
	require.NoError(t, err)
	require.Len(t, losses, 250)
	require.Equal(t, WarmupDone, trainer.WarmupState())
	for _, l := range losses {
		require.False(t, math.IsNaN(l))
	}
	require.Less(t, losses[len(losses)-1], losses[0])
	require.Contains(t, logs.String(), "warmup step=0 loss=")
	require.Contains(t, logs.String(), "warmup step=200 loss=")
	require.NotContains(t, logs.String(), "warmup step=1 ")

	// Warmup only happens once
	losses, err = trainer.Warmup(250)
	require.NoError(t, err)
	require.Nil(t, losses)

	// Warmup does not touch the actor-critic
	require.Empty(t, core.calls)
}

func TestAugmentedBatchShape(t *testing.T) {
	const batch = 32
	core := &recordingCore{batch: 2 * batch, actionDims: 2, interval: 1}
	trainer, _ := newTestTrainer(t, core,
		fixedBuffer{newBatch(batch, 4, 2, 0, 1)},
		fixedBuffer{newBatch(batch, 4, 2, 1, -5)}, AcrobotProfile,
		DefaultConfig(), batch, 4, 2)

	b, _, err := trainer.augmentedBatch()
	require.NoError(t, err)
	require.Equal(t, 2*batch, b.Size)
	require.Len(t, b.Observations, 64*4)
	require.Len(t, b.NextObservations, 64*4)
	require.Len(t, b.Actions, 64*2)
	require.Len(t, b.Rewards, 64)
	require.Len(t, b.Dones, 64)

	shapes := []struct {
		field      string
		rows, cols int
	}{
		{"observations", 64, 4},
		{"next_observations", 64, 4},
		{"actions", 64, 2},
		{"rewards", 64, 1},
		{"dones", 64, 1},
	}
	for _, s := range shapes {
		rows, cols, err := b.Shape(s.field)
		require.NoError(t, err, s.field)
		require.Equal(t, s.rows, rows, s.field)
		require.Equal(t, s.cols, cols, s.field)
	}
}
