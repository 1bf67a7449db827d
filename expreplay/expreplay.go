// Package expreplay implements a fixed-capacity experience replay
// buffer with first-in-first-out eviction and uniform sampling.
package expreplay

import (
	"fmt"
	"math/rand"

	"github.com/pickwise/pickwise/timestep"
)

// Buffer is a bounded store of transitions. Once the buffer holds
// maxCapacity transitions, each insert overwrites the oldest entry, so
// the buffer always keeps the most recent maxCapacity transitions.
//
// Data is kept in flat caches, one per transition field, with one-hot
// encoded actions. This is the layout the learning networks consume, so
// Sample can return batches without any per-call reshaping.
type Buffer struct {
	stateCache     []float64
	actionCache    []float64
	rewardCache    []float64
	doneCache      []float64
	nextStateCache []float64

	// next is the slot the next insert writes to; slots wrap around
	// once the buffer is full
	next   int
	isFull bool

	batchSize   int
	maxCapacity int
	featureSize int
	actionSize  int

	rng *rand.Rand
}

// New creates a replay buffer holding at most maxCapacity transitions
// of featureSize state features and actionSize discrete actions.
// Sample returns batchSize transitions per call.
func New(maxCapacity, batchSize, featureSize, actionSize int) (*Buffer,
	error) {
	if maxCapacity < 1 {
		return nil, fmt.Errorf("new: maxCapacity must be >= 1")
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("new: batchSize must be >= 1")
	}
	if maxCapacity < batchSize {
		return nil, fmt.Errorf("new: cannot have batch size (%v) > max "+
			"buffer capacity (%v)", batchSize, maxCapacity)
	}

	return &Buffer{
		stateCache:     make([]float64, maxCapacity*featureSize),
		actionCache:    make([]float64, maxCapacity*actionSize),
		rewardCache:    make([]float64, maxCapacity),
		doneCache:      make([]float64, maxCapacity),
		nextStateCache: make([]float64, maxCapacity*featureSize),

		batchSize:   batchSize,
		maxCapacity: maxCapacity,
		featureSize: featureSize,
		actionSize:  actionSize,

		rng: rand.New(rand.NewSource(rand.Int63())),
	}, nil
}

// BatchSize returns the number of samples returned by Sample()
func (b *Buffer) BatchSize() int {
	return b.batchSize
}

// Size returns the current number of transitions in the buffer
func (b *Buffer) Size() int {
	if b.isFull {
		return b.maxCapacity
	}
	return b.next
}

// MaxCapacity returns the maximum number of transitions the buffer
// can hold
func (b *Buffer) MaxCapacity() int {
	return b.maxCapacity
}

// Add copies a transition into the buffer, evicting the oldest
// transition if the buffer is full.
func (b *Buffer) Add(t timestep.Transition) error {
	if t.State.Len() != b.featureSize || t.NextState.Len() != b.featureSize {
		return fmt.Errorf("add: invalid feature size \n\twant(%v)"+
			"\n\thave(%v)", b.featureSize, t.State.Len())
	}
	if t.Action < 0 || t.Action >= b.actionSize {
		return fmt.Errorf("add: action out of range \n\twant[0, %v)"+
			"\n\thave(%v)", b.actionSize, t.Action)
	}

	index := b.next

	stateInd := index * b.featureSize
	copy(b.stateCache[stateInd:stateInd+b.featureSize],
		timestep.RawObs(t.State))
	copy(b.nextStateCache[stateInd:stateInd+b.featureSize],
		timestep.RawObs(t.NextState))

	actionInd := index * b.actionSize
	for i := 0; i < b.actionSize; i++ {
		b.actionCache[actionInd+i] = 0
	}
	b.actionCache[actionInd+t.Action] = 1

	b.rewardCache[index] = t.Reward
	if t.Done {
		b.doneCache[index] = 1
	} else {
		b.doneCache[index] = 0
	}

	b.next++
	if b.next >= b.maxCapacity {
		b.next = 0
		b.isFull = true
	}
	return nil
}

// Sample draws one batch of transitions uniformly at random. No index
// is drawn twice within a single call. The returned slices are the
// flattened states, one-hot actions, rewards, done flags, and next
// states of the batch.
//
// Sampling an empty buffer returns an error satisfying IsEmptyBuffer;
// sampling a buffer with fewer than BatchSize() transitions returns an
// error satisfying IsInsufficientSamples.
func (b *Buffer) Sample() ([]float64, []float64, []float64, []float64,
	[]float64, error) {
	size := b.Size()
	if size == 0 {
		err := &BufferError{Op: "sample", Err: errEmptyBuffer}
		return nil, nil, nil, nil, nil, err
	}
	if size < b.batchSize {
		err := &BufferError{Op: "sample", Err: errInsufficientSamples}
		return nil, nil, nil, nil, nil, err
	}

	indices := b.rng.Perm(size)[:b.batchSize]

	stateBatch := make([]float64, b.batchSize*b.featureSize)
	nextStateBatch := make([]float64, b.batchSize*b.featureSize)
	for i, index := range indices {
		batchStartInd := i * b.featureSize
		expStartInd := index * b.featureSize
		copy(stateBatch[batchStartInd:batchStartInd+b.featureSize],
			b.stateCache[expStartInd:expStartInd+b.featureSize])
		copy(nextStateBatch[batchStartInd:batchStartInd+b.featureSize],
			b.nextStateCache[expStartInd:expStartInd+b.featureSize])
	}

	actionBatch := make([]float64, b.batchSize*b.actionSize)
	for i, index := range indices {
		batchStartInd := i * b.actionSize
		expStartInd := index * b.actionSize
		copy(actionBatch[batchStartInd:batchStartInd+b.actionSize],
			b.actionCache[expStartInd:expStartInd+b.actionSize])
	}

	rewardBatch := make([]float64, b.batchSize)
	doneBatch := make([]float64, b.batchSize)
	for i, index := range indices {
		rewardBatch[i] = b.rewardCache[index]
		doneBatch[i] = b.doneCache[index]
	}

	return stateBatch, actionBatch, rewardBatch, doneBatch, nextStateBatch,
		nil
}
