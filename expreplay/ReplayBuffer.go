// Package expreplay implements experience replay buffers
package expreplay

import (
	"encoding/gob"
	"fmt"
	"io"
	"sync"

	"github.com/samuelfneumann/rlv/timestep"
)

// ReplayBuffer implements a fixed capacity experience replay buffer.
// Transitions are stored in a ring: once the buffer is full, each new
// transition overwrites the oldest one. Sampling is uniform with
// replacement over the filled region of the buffer.
//
// A ReplayBuffer may be frozen, after which its contents can only be
// read. This is used for data which is collected once and should not
// change afterwards, such as offline action-free data.
type ReplayBuffer struct {
	lock            sync.Mutex // Guards the following caches
	stateCache      []float64
	actionCache     []float64
	rewardCache     []float64
	doneCache       []float64
	nextStateCache  []float64
	currentInUsePos int
	isFull          bool
	frozen          bool

	sampler Selector

	maxCapacity int
	featureSize int
	actionSize  int
}

// New returns a new ReplayBuffer which holds at most capacity
// transitions with featureSize-dimensional observations and
// actionSize-dimensional actions. The seed determines the rows drawn
// by Sample.
func New(capacity, featureSize, actionSize int,
	seed uint64) (*ReplayBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("new: capacity must be positive")
	}
	if featureSize <= 0 || actionSize <= 0 {
		return nil, fmt.Errorf("new: feature and action sizes must be "+
			"positive \n\thave(%v, %v)", featureSize, actionSize)
	}

	return &ReplayBuffer{
		stateCache:     make([]float64, capacity*featureSize),
		nextStateCache: make([]float64, capacity*featureSize),
		actionCache:    make([]float64, capacity*actionSize),
		rewardCache:    make([]float64, capacity),
		doneCache:      make([]float64, capacity),

		sampler: NewUniformSelector(seed),

		maxCapacity: capacity,
		featureSize: featureSize,
		actionSize:  actionSize,
	}, nil
}

// String returns the string representation of the ReplayBuffer
func (r *ReplayBuffer) String() string {
	return fmt.Sprintf("ReplayBuffer{Len: %v, Capacity: %v, Features: %v, "+
		"Actions: %v, Frozen: %v}", r.Len(), r.Capacity(), r.featureSize,
		r.actionSize, r.Frozen())
}

// ObservationDims returns the dimension of stored observations
func (r *ReplayBuffer) ObservationDims() int {
	return r.featureSize
}

// ActionDims returns the dimension of stored actions
func (r *ReplayBuffer) ActionDims() int {
	return r.actionSize
}

// Len returns the current number of transitions in the buffer that are
// available for sampling
func (r *ReplayBuffer) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.len()
}

func (r *ReplayBuffer) len() int {
	if r.isFull {
		return r.maxCapacity
	}
	return r.currentInUsePos
}

// Capacity returns the maximum number of transitions that the buffer
// can hold
func (r *ReplayBuffer) Capacity() int {
	return r.maxCapacity
}

// Freeze stops the buffer from accepting any further transitions
func (r *ReplayBuffer) Freeze() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.frozen = true
}

// Frozen returns whether the buffer has been frozen
func (r *ReplayBuffer) Frozen() bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.frozen
}

// AddTransition adds a Transition to the buffer
func (r *ReplayBuffer) AddTransition(t timestep.Transition) error {
	return r.Add(t.State.RawVector().Data, t.Action.RawVector().Data,
		t.NextState.RawVector().Data, t.Reward, t.Done)
}

// Add adds a transition to the buffer at the current write position,
// overwriting the oldest transition if the buffer is full.
func (r *ReplayBuffer) Add(obs, action, nextObs []float64, reward float64,
	done bool) error {
	if len(obs) != r.featureSize || len(nextObs) != r.featureSize {
		return &ExpReplayError{
			Op: "add",
			Err: fmt.Errorf("%w: observation size \n\twant(%v)\n\thave(%v, %v)",
				errShapeMismatch, r.featureSize, len(obs), len(nextObs)),
		}
	}
	if len(action) != r.actionSize {
		return &ExpReplayError{
			Op: "add",
			Err: fmt.Errorf("%w: action size \n\twant(%v)\n\thave(%v)",
				errShapeMismatch, r.actionSize, len(action)),
		}
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.frozen {
		return &ExpReplayError{Op: "add", Err: errFrozen}
	}

	index := r.currentInUsePos
	copy(r.stateCache[index*r.featureSize:], obs)
	copy(r.nextStateCache[index*r.featureSize:], nextObs)
	copy(r.actionCache[index*r.actionSize:], action)
	r.rewardCache[index] = reward
	if done {
		r.doneCache[index] = 1
	} else {
		r.doneCache[index] = 0
	}

	if !r.isFull && index+1 == r.maxCapacity {
		r.isFull = true
	}
	r.currentInUsePos = (r.currentInUsePos + 1) % r.maxCapacity
	return nil
}

// Sample samples batchSize transitions uniformly with replacement from
// the buffer. Sampling from an empty buffer or with a non-positive
// batch size is an error.
func (r *ReplayBuffer) Sample(batchSize int) (Batch, error) {
	if batchSize <= 0 {
		return Batch{}, &ExpReplayError{
			Op:  "sample",
			Err: fmt.Errorf("%w: have(%v)", errInvalidBatchSize, batchSize),
		}
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	size := r.len()
	if size == 0 {
		return Batch{}, &ExpReplayError{Op: "sample", Err: errEmptyCache}
	}

	indices := r.sampler.choose(size, batchSize)

	batch := newBatch(batchSize, r.featureSize, r.actionSize)
	for i, index := range indices {
		f := r.featureSize
		copy(batch.Observations[i*f:(i+1)*f],
			r.stateCache[index*f:(index+1)*f])
		copy(batch.NextObservations[i*f:(i+1)*f],
			r.nextStateCache[index*f:(index+1)*f])

		a := r.actionSize
		copy(batch.Actions[i*a:(i+1)*a], r.actionCache[index*a:(index+1)*a])

		batch.Rewards[i] = r.rewardCache[index]
		batch.Dones[i] = r.doneCache[index]
	}

	return batch, nil
}

// All returns every transition currently stored in the buffer, oldest
// first
func (r *ReplayBuffer) All() Batch {
	r.lock.Lock()
	defer r.lock.Unlock()

	size := r.len()
	start := 0
	if r.isFull {
		start = r.currentInUsePos
	}

	batch := newBatch(size, r.featureSize, r.actionSize)
	f, a := r.featureSize, r.actionSize
	for i := 0; i < size; i++ {
		index := (start + i) % r.maxCapacity
		copy(batch.Observations[i*f:(i+1)*f],
			r.stateCache[index*f:(index+1)*f])
		copy(batch.NextObservations[i*f:(i+1)*f],
			r.nextStateCache[index*f:(index+1)*f])
		copy(batch.Actions[i*a:(i+1)*a], r.actionCache[index*a:(index+1)*a])
		batch.Rewards[i] = r.rewardCache[index]
		batch.Dones[i] = r.doneCache[index]
	}
	return batch
}

// Clone returns a deep copy of the buffer. The clone is not frozen and
// samples with a generator seeded by seed.
func (r *ReplayBuffer) Clone(seed uint64) *ReplayBuffer {
	r.lock.Lock()
	defer r.lock.Unlock()

	return &ReplayBuffer{
		stateCache:      append([]float64(nil), r.stateCache...),
		actionCache:     append([]float64(nil), r.actionCache...),
		rewardCache:     append([]float64(nil), r.rewardCache...),
		doneCache:       append([]float64(nil), r.doneCache...),
		nextStateCache:  append([]float64(nil), r.nextStateCache...),
		currentInUsePos: r.currentInUsePos,
		isFull:          r.isFull,

		sampler: NewUniformSelector(seed),

		maxCapacity: r.maxCapacity,
		featureSize: r.featureSize,
		actionSize:  r.actionSize,
	}
}

// snapshot is the gob representation of a ReplayBuffer
type snapshot struct {
	Capacity    int
	FeatureSize int
	ActionSize  int
	Frozen      bool
	Transitions Batch
}

// Save writes the contents of the buffer to w, oldest transition first
func (r *ReplayBuffer) Save(w io.Writer) error {
	snap := snapshot{
		Capacity:    r.maxCapacity,
		FeatureSize: r.featureSize,
		ActionSize:  r.actionSize,
		Frozen:      r.Frozen(),
		Transitions: r.All(),
	}

	if err := gob.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("save: could not encode buffer: %v", err)
	}
	return nil
}

// Load reads a buffer written with Save
func Load(rd io.Reader, seed uint64) (*ReplayBuffer, error) {
	var snap snapshot
	if err := gob.NewDecoder(rd).Decode(&snap); err != nil {
		return nil, fmt.Errorf("load: could not decode buffer: %v", err)
	}

	buffer, err := New(snap.Capacity, snap.FeatureSize, snap.ActionSize, seed)
	if err != nil {
		return nil, fmt.Errorf("load: %v", err)
	}

	t := snap.Transitions
	for i := 0; i < t.Size; i++ {
		err := buffer.Add(t.Observation(i), t.Action(i), t.NextObservation(i),
			t.Rewards[i], t.Dones[i] != 0)
		if err != nil {
			return nil, fmt.Errorf("load: could not add transition %v: %v",
				i, err)
		}
	}

	if snap.Frozen {
		buffer.Freeze()
	}
	return buffer, nil
}
