// Package dataset implements offline datasets of transitions which
// can be written to and read from disk, used to fill the action-free
// buffer of an RLV agent.
package dataset

import (
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/samuelfneumann/rlv/expreplay"
)

// Dataset is a set of transitions stored row major, together with the
// name of the environment the transitions were collected in
type Dataset struct {
	Environment string
	expreplay.Batch
}

// FromBuffer returns a Dataset holding every transition in r, oldest
// first
func FromBuffer(r *expreplay.ReplayBuffer, environment string) Dataset {
	return Dataset{
		Environment: environment,
		Batch:       r.All(),
	}
}

// Len returns the number of transitions in the Dataset
func (d Dataset) Len() int {
	return d.Size
}

// Validate checks that every field of the Dataset has one row per
// transition and that all values are finite
func (d Dataset) Validate() error {
	if d.Size < 0 {
		return fmt.Errorf("validate: negative size %v", d.Size)
	}
	if d.ObservationDims <= 0 || d.ActionDims <= 0 {
		return fmt.Errorf("validate: observation and action dimensions "+
			"must be positive \n\thave(%v, %v)", d.ObservationDims,
			d.ActionDims)
	}

	fields := []struct {
		name string
		data []float64
		cols int
	}{
		{"observations", d.Observations, d.ObservationDims},
		{"actions", d.Actions, d.ActionDims},
		{"next observations", d.NextObservations, d.ObservationDims},
		{"rewards", d.Rewards, 1},
		{"dones", d.Dones, 1},
	}
	for _, f := range fields {
		if len(f.data) != d.Size*f.cols {
			return fmt.Errorf("validate: invalid number of %v \n\twant(%v)"+
				"\n\thave(%v)", f.name, d.Size*f.cols, len(f.data))
		}
		for i, v := range f.data {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("validate: non-finite value in %v at "+
					"index %v", f.name, i)
			}
		}
	}

	for i, done := range d.Dones {
		if done != 0 && done != 1 {
			return fmt.Errorf("validate: done flag %v at row %v is not 0 or 1",
				done, i)
		}
	}
	return nil
}

// Fill adds every transition in the Dataset to r
func (d Dataset) Fill(r *expreplay.ReplayBuffer) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("fill: %v", err)
	}
	if d.ObservationDims != r.ObservationDims() ||
		d.ActionDims != r.ActionDims() {
		return fmt.Errorf("fill: dataset dimensions (%v, %v) do not match "+
			"buffer dimensions (%v, %v)", d.ObservationDims, d.ActionDims,
			r.ObservationDims(), r.ActionDims())
	}

	for i := 0; i < d.Size; i++ {
		err := r.Add(d.Observation(i), d.Action(i), d.NextObservation(i),
			d.Rewards[i], d.Dones[i] != 0)
		if err != nil {
			return fmt.Errorf("fill: could not add transition %v: %v", i, err)
		}
	}
	return nil
}

// Save writes the Dataset to w
func (d Dataset) Save(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(d); err != nil {
		return fmt.Errorf("save: could not encode dataset: %v", err)
	}
	return nil
}

// Load reads a Dataset written with Save
func Load(r io.Reader) (Dataset, error) {
	var d Dataset
	if err := gob.NewDecoder(r).Decode(&d); err != nil {
		return Dataset{}, fmt.Errorf("load: could not decode dataset: %v",
			err)
	}
	if err := d.Validate(); err != nil {
		return Dataset{}, fmt.Errorf("load: %v", err)
	}
	return d, nil
}

// SaveFile writes the Dataset to the file at path
func (d Dataset) SaveFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saveFile: could not create file: %v", err)
	}
	defer file.Close()

	if err := d.Save(file); err != nil {
		return fmt.Errorf("saveFile: %v", err)
	}
	return file.Close()
}

// LoadFile reads a Dataset from the file at path
func LoadFile(path string) (Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("loadFile: could not open file: %v", err)
	}
	defer file.Close()

	d, err := Load(file)
	if err != nil {
		return Dataset{}, fmt.Errorf("loadFile: %v", err)
	}
	return d, nil
}
