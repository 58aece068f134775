// Package checkpointer implements periodic checkpointing of models
// during an experiment
package checkpointer

import (
	"io"

	ts "github.com/samuelfneumann/rlv/timestep"
)

// Serializable is an object that can be saved/serialized
type Serializable interface {
	Save(w io.Writer) error
}

// Checkpointer checkpoints/saves serializable objects based on
// timestep.TimeSteps
type Checkpointer interface {
	Checkpoint(ts.TimeStep) error
}
