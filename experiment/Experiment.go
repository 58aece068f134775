// Package experiment implements functionality for running an experiment:
// loading its configuration, building the environment and agent, and
// running the agent online while tracking returns.
package experiment

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/samuelfneumann/rlv/agent"
	"github.com/samuelfneumann/rlv/agent/nonlinear/continuous/rlv"
	"github.com/samuelfneumann/rlv/agent/nonlinear/continuous/sac"
	"github.com/samuelfneumann/rlv/dataset"
	env "github.com/samuelfneumann/rlv/environment"
	"github.com/samuelfneumann/rlv/experiment/checkpointer"
	"github.com/samuelfneumann/rlv/experiment/tracker"
)

// Experiment outlines structs that can run experiments. Experiments
// send each TimeStep to Trackers, which cache the data they track in
// RAM until Save is called. Run runs episodes until the maximum
// timestep limit is reached, and RunEpisode runs a single episode.
type Experiment interface {
	Run() error
	RunEpisode() (bool, error) // Returns whether the experiment ended
	Save() error

	// Adds a new tracker.Tracker to the (possibly already running)
	// experiment
	Register(t tracker.Tracker)
}

// Names of the files written to the output directory
const (
	ConfigFile       = "config.yaml"
	ReturnsFile      = "returns.gob"
	LengthsFile      = "episode_lengths.gob"
	InverseModelFile = "inverse_model.gob"
	checkpointPrefix = "inverse_model"
)

// Result summarizes a finished experiment
type Result struct {
	Steps          int
	Episodes       int
	Returns        []float64
	EpisodeLengths []int
	WarmupLosses   []float64
}

// Train runs the experiment described by c. The resolved configuration,
// the episodic returns and lengths, and, for RLV agents, the inverse
// model are written to c.Run.OutputDir.
func Train(c Config, logger *log.Logger) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, fmt.Errorf("train: %v", err)
	}
	if err := os.MkdirAll(c.Run.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("train: could not create output "+
			"directory: %v", err)
	}
	if err := c.WriteFile(filepath.Join(c.Run.OutputDir,
		ConfigFile)); err != nil {
		return Result{}, fmt.Errorf("train: %v", err)
	}

	e, _, err := env.Make(c.Environment, c.Run.Seed)
	if err != nil {
		return Result{}, fmt.Errorf("train: %v", err)
	}
	defer e.Close()

	var result Result
	var a agent.Closer
	var learner *rlv.RLV
	switch c.Run.Agent {
	case RLVAgent:
		learner, result.WarmupLosses, err = newRLV(e, c, logger)
		a = learner
	case SACAgent:
		var s *sac.SAC
		s, err = sac.New(e, c.SAC, c.Run.Seed)
		if err == nil {
			s.SetLogger(logger)
		}
		a = s
	}
	if err != nil {
		return Result{}, fmt.Errorf("train: %v", err)
	}
	defer a.Close()

	returns := tracker.NewReturn(filepath.Join(c.Run.OutputDir,
		ReturnsFile))
	lengths := tracker.NewEpisodeLength(filepath.Join(c.Run.OutputDir,
		LengthsFile))
	o := NewOnline(e, a, c.Run.Steps, returns, lengths)
	o.SetLogger(logger, c.Run.LogInterval)

	if learner != nil && c.Run.CheckpointInterval > 0 {
		ck, err := checkpointer.NewNStep(c.Run.CheckpointInterval,
			learner.InverseModel(), checkpointer.FilenameEnumerator(
				c.Run.OutputDir, checkpointPrefix, ".gob"))
		if err != nil {
			return Result{}, fmt.Errorf("train: %v", err)
		}
		o.AddCheckpointer(ck)
	}

	if err := o.Run(); err != nil {
		return Result{}, fmt.Errorf("train: %v", err)
	}
	if err := o.Save(); err != nil {
		return Result{}, fmt.Errorf("train: %v", err)
	}

	if learner != nil {
		err := checkpointer.Save(learner.InverseModel(),
			filepath.Join(c.Run.OutputDir, InverseModelFile))
		if err != nil {
			return Result{}, fmt.Errorf("train: %v", err)
		}
	}

	result.Steps = o.Steps()
	result.Episodes = o.Episodes()
	result.Returns = returns.Returns()
	result.EpisodeLengths = lengths.Lengths()
	logger.Printf("finished %d steps in %d episodes", result.Steps,
		result.Episodes)
	return result, nil
}

// newRLV returns an RLV agent whose action-free buffer has been filled
// from the dataset at c.Run.Dataset and whose inverse model has been
// warmed up
func newRLV(e env.Environment, c Config, logger *log.Logger) (*rlv.RLV,
	[]float64, error) {
	if c.Run.Dataset == "" {
		return nil, nil, fmt.Errorf("newRLV: an rlv agent needs a dataset")
	}
	d, err := dataset.LoadFile(c.Run.Dataset)
	if err != nil {
		return nil, nil, fmt.Errorf("newRLV: %v", err)
	}

	if c.RLV.Profile == "" {
		c.RLV.Profile = c.Environment.Name
	}
	a, err := rlv.New(e, c.SAC, c.RLV, c.Run.Seed)
	if err != nil {
		return nil, nil, fmt.Errorf("newRLV: %v", err)
	}
	a.SetLogger(logger)

	if err := a.FillFromDataset(d); err != nil {
		a.Close()
		return nil, nil, fmt.Errorf("newRLV: %v", err)
	}
	losses, err := a.Warmup()
	if err != nil {
		a.Close()
		return nil, nil, fmt.Errorf("newRLV: %v", err)
	}
	return a, losses, nil
}

// Collect trains a SAC agent as described by c and writes its
// interaction buffer as a dataset to out. Datasets collected this way
// fill the action-free buffers of RLV agents.
func Collect(c Config, out string, logger *log.Logger) (dataset.Dataset,
	error) {
	c.Run.Agent = SACAgent
	if err := c.Validate(); err != nil {
		return dataset.Dataset{}, fmt.Errorf("collect: %v", err)
	}

	e, _, err := env.Make(c.Environment, c.Run.Seed)
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("collect: %v", err)
	}
	defer e.Close()

	a, err := sac.New(e, c.SAC, c.Run.Seed)
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("collect: %v", err)
	}
	defer a.Close()
	a.SetLogger(logger)

	o := NewOnline(e, a, c.Run.Steps)
	o.SetLogger(logger, c.Run.LogInterval)
	if err := o.Run(); err != nil {
		return dataset.Dataset{}, fmt.Errorf("collect: %v", err)
	}

	d := dataset.FromBuffer(a.ReplayBuffer(), c.Environment.Name)
	if err := d.SaveFile(out); err != nil {
		return dataset.Dataset{}, fmt.Errorf("collect: %v", err)
	}
	logger.Printf("wrote %d transitions to %v", d.Len(), out)
	return d, nil
}
