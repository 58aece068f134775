package checkpointer

import (
	"fmt"
	"os"

	ts "github.com/samuelfneumann/rlv/timestep"
)

// nStep implements checkpointing every N environment steps
type nStep struct {
	interval int
	steps    int
	object   Serializable // Object to save

	// filename returns the name of the file to save the object in.
	//
	// If each checkpoint should be saved in a separate file with each
	// file having an incremented number as a suffix (e.g. file1.gob,
	// file2.gob, ..., fileK.gob), then use FilenameEnumerator.
	// Otherwise, use a function which always returns the same name so
	// that each checkpoint overwrites the last.
	filename func() string
}

// NewNStep returns a checkpointer that checkpoints every n environment
// steps. The first TimeStep of each episode is not counted as a step.
func NewNStep(n int, object Serializable,
	filename func() string) (Checkpointer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("newNStep: interval must be positive")
	}
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}, nil
}

// Checkpoint checkpoints the Checkpointer's tracked object by calling
// its Save() method if a checkpoint is due
func (n *nStep) Checkpoint(t ts.TimeStep) error {
	if t.First() {
		return nil
	}
	n.steps++
	if n.steps%n.interval != 0 {
		return nil
	}

	if err := Save(n.object, n.filename()); err != nil {
		return fmt.Errorf("checkpoint: %v", err)
	}
	return nil
}

// Save saves object to the file filename
func Save(object Serializable, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not create file: %v", err)
	}
	defer file.Close()

	if err := object.Save(file); err != nil {
		return fmt.Errorf("save: could not save to %v: %v", filename, err)
	}
	return nil
}
