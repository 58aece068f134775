package experiment

import (
	"fmt"
	"log"

	"github.com/samuelfneumann/rlv/agent"
	env "github.com/samuelfneumann/rlv/environment"
	"github.com/samuelfneumann/rlv/experiment/checkpointer"
	"github.com/samuelfneumann/rlv/experiment/tracker"
	ts "github.com/samuelfneumann/rlv/timestep"
)

// Online is an Experiment that runs an agent online only. No offline
// evaluation is performed.
type Online struct {
	env.Environment
	agent.Agent
	maxSteps      int
	currentSteps  int
	episodes      int
	episodeReturn float64
	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer

	logInterval int
	logger      *log.Logger
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The steps parameter determines how
// many timesteps the experiment is run for, and the t parameter
// is a slice of tracker.Tracker which determine what data is saved.
func NewOnline(e env.Environment, a agent.Agent, steps int,
	t ...tracker.Tracker) *Online {
	return &Online{
		Environment: e,
		Agent:       a,
		maxSteps:    steps,
		trackers:    t,
		logger:      log.Default(),
	}
}

// SetLogger sets the logger which episode returns are written to once
// every interval episodes. If interval is 0, returns are never logged.
func (o *Online) SetLogger(l *log.Logger, interval int) {
	o.logger = l
	o.logInterval = interval
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// AddCheckpointer adds a checkpointer.Checkpointer which is given
// every TimeStep of the experiment
func (o *Online) AddCheckpointer(c checkpointer.Checkpointer) {
	o.checkpointers = append(o.checkpointers, c)
}

// Steps returns the number of environment steps taken so far
func (o *Online) Steps() int {
	return o.currentSteps
}

// Episodes returns the number of episodes finished so far
func (o *Online) Episodes() int {
	return o.episodes
}

// RunEpisode runs a single episode of the experiment and returns
// whether or not the maximum timestep limit has been reached
func (o *Online) RunEpisode() (bool, error) {
	step, err := o.Environment.Reset()
	if err != nil {
		return false, fmt.Errorf("runEpisode: could not reset: %v", err)
	}
	if err := o.Agent.ObserveFirst(step); err != nil {
		return false, fmt.Errorf("runEpisode: %v", err)
	}
	if err := o.track(step); err != nil {
		return false, fmt.Errorf("runEpisode: %v", err)
	}
	o.episodeReturn = 0

	for !step.Last() && o.currentSteps < o.maxSteps {
		o.currentSteps++

		action, err := o.Agent.SelectAction(step)
		if err != nil {
			return false, fmt.Errorf("runEpisode: could not select "+
				"action: %v", err)
		}
		step, _, err = o.Environment.Step(action)
		if err != nil {
			return false, fmt.Errorf("runEpisode: could not step "+
				"environment: %v", err)
		}
		o.episodeReturn += step.Reward

		if err := o.track(step); err != nil {
			return false, fmt.Errorf("runEpisode: %v", err)
		}

		if err := o.Agent.Observe(action, step); err != nil {
			return false, fmt.Errorf("runEpisode: %v", err)
		}
		if err := o.Agent.Step(); err != nil {
			return false, fmt.Errorf("runEpisode: could not step agent: "+
				"%v", err)
		}
	}

	if step.Last() {
		o.episodes++
		o.Agent.EndEpisode()
		if o.logInterval > 0 && o.episodes%o.logInterval == 0 {
			o.logger.Printf("episode=%d steps=%d return=%.3f", o.episodes,
				o.currentSteps, o.episodeReturn)
		}
	}

	return o.currentSteps >= o.maxSteps, nil
}

// Run runs the entire experiment for all timesteps
func (o *Online) Run() error {
	for {
		ended, err := o.RunEpisode()
		if err != nil {
			return fmt.Errorf("run: %v", err)
		}
		if ended {
			return nil
		}
	}
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %v", err)
		}
	}
	return nil
}

// track sends the current timestep to each tracker and checkpointer
func (o *Online) track(t ts.TimeStep) error {
	for _, tr := range o.trackers {
		if err := tr.Track(t); err != nil {
			return err
		}
	}
	for _, c := range o.checkpointers {
		if err := c.Checkpoint(t); err != nil {
			return err
		}
	}
	return nil
}
