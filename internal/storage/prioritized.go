package storage

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultMaxResampleAttempts bounds the draws per band when the drawn
// index fails the n-step reachability guard.
const DefaultMaxResampleAttempts = 1000

// Source is the randomness a buffer draws from. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// Options configures a PrioritizedBuffer.
type Options struct {
	Capacity            int
	ObservationDim      int
	ActionDim           int
	Alpha               float64
	MaxResampleAttempts int
	// Seed for the sampling source; zero seeds from the clock.
	Seed   int64
	Logger zerolog.Logger
}

// PrioritizedBuffer is a TransitionStore paired with a PriorityIndex over
// the same slots. Fresh transitions enter at the highest priority seen so
// far so that each is sampled at least once before its error is known.
type PrioritizedBuffer struct {
	id          string
	store       *TransitionStore
	index       *PriorityIndex
	maxPriority float64
	maxAttempts int
	totalAdded  uint64
	rng         Source
	logger      zerolog.Logger
}

var _ Backend = (*PrioritizedBuffer)(nil)

// NewPrioritizedBuffer creates an empty buffer.
func NewPrioritizedBuffer(opts Options) (*PrioritizedBuffer, error) {
	store, err := NewTransitionStore(opts.Capacity, opts.ObservationDim, opts.ActionDim)
	if err != nil {
		return nil, err
	}
	index, err := NewPriorityIndex(opts.Capacity, opts.Alpha)
	if err != nil {
		return nil, err
	}

	maxAttempts := opts.MaxResampleAttempts
	if maxAttempts < 0 {
		return nil, fmt.Errorf("%w: max resample attempts must be >= 0, got %d", ErrInvalidArgument, maxAttempts)
	}
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxResampleAttempts
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	id := uuid.New().String()
	return &PrioritizedBuffer{
		id:          id,
		store:       store,
		index:       index,
		maxPriority: 1.0,
		maxAttempts: maxAttempts,
		rng:         rand.New(rand.NewSource(seed)),
		logger:      opts.Logger.With().Str("component", "replay_buffer").Str("buffer_id", id).Logger(),
	}, nil
}

// ID returns the buffer's unique identifier.
func (b *PrioritizedBuffer) ID() string { return b.id }

// Size returns the number of populated slots.
func (b *PrioritizedBuffer) Size() int { return b.store.Size() }

// MaxPriority returns the highest raw priority assigned so far.
func (b *PrioritizedBuffer) MaxPriority() float64 { return b.maxPriority }

// Phase implements Backend.Phase
func (b *PrioritizedBuffer) Phase() Phase {
	switch {
	case b.store.Full():
		return PhaseFull
	case b.store.Size() > 0:
		return PhaseFilling
	default:
		return PhaseEmpty
	}
}

// Get returns a copy of the transition stored at slot i.
func (b *PrioritizedBuffer) Get(i int) (Transition, error) {
	return b.store.Get(i)
}

// Add implements Backend.Add
func (b *PrioritizedBuffer) Add(t Transition) error {
	before := b.Phase()

	slot, err := b.store.Add(t)
	if err != nil {
		return err
	}
	if err := b.index.Update(slot, b.maxPriority); err != nil {
		// slot < capacity and maxPriority >= 1, so this is unreachable
		// unless the index and store disagree on capacity.
		return fmt.Errorf("seed priority for slot %d: %w", slot, err)
	}
	b.totalAdded++

	if after := b.Phase(); after != before {
		b.logger.Info().
			Str("from", before.String()).
			Str("to", after.String()).
			Int("size", b.store.Size()).
			Msg("Buffer phase changed")
	}
	return nil
}

// SampleUniform implements Backend.SampleUniform
func (b *PrioritizedBuffer) SampleUniform(batchSize int, discount float32, n int) (*Batch, error) {
	if err := b.checkSample(batchSize, n); err != nil {
		return nil, err
	}

	last := b.store.Size() - n
	indices := make([]int, batchSize)
	for i := range indices {
		indices[i] = b.rng.Intn(last + 1)
	}

	batch, err := b.store.FetchWindow(indices, n, discount)
	if err != nil {
		return nil, err
	}
	batch.Weights = make([]float32, batchSize)
	for i := range batch.Weights {
		batch.Weights[i] = 1.0
	}
	return batch, nil
}

// SamplePrioritized implements Backend.SamplePrioritized
func (b *PrioritizedBuffer) SamplePrioritized(batchSize int, beta float64, discount float32, n int) (*Batch, error) {
	if !(beta > 0) || math.IsInf(beta, 0) {
		return nil, fmt.Errorf("%w: beta must be finite and > 0, got %g", ErrInvalidArgument, beta)
	}
	if err := b.checkSample(batchSize, n); err != nil {
		return nil, err
	}

	indices, resamples, err := b.SampleIndices(batchSize, n)
	if err != nil {
		return nil, err
	}

	size := float64(b.store.Size())
	total := b.index.TotalSum()
	pMin := b.index.TotalMin() / total
	maxWeight := math.Pow(pMin*size, -beta)

	weights := make([]float32, len(indices))
	for j, idx := range indices {
		leaf, err := b.index.Leaf(idx)
		if err != nil {
			return nil, err
		}
		pSample := leaf / total
		weights[j] = float32(math.Pow(pSample*size, -beta) / maxWeight)
	}

	batch, err := b.store.FetchWindow(indices, n, discount)
	if err != nil {
		return nil, err
	}
	batch.Weights = weights
	batch.Resamples = resamples
	return batch, nil
}

// SampleIndices splits the priority mass of leaves [0, size-n-1] into
// batchSize equal bands and draws one index per band. A draw that lands
// on an index without a complete n-step window is retried in the same
// band, at most maxAttempts times. It returns the indices and the number
// of rejected draws. With n == size the range is empty and the call
// fails with ErrInsufficientData.
func (b *PrioritizedBuffer) SampleIndices(batchSize, n int) ([]int, int, error) {
	if err := b.checkSample(batchSize, n); err != nil {
		return nil, 0, err
	}

	size := b.store.Size()
	hi := size - n - 1
	if hi < 0 {
		return nil, 0, fmt.Errorf("%w: %d-step sampling needs more than %d transitions", ErrInsufficientData, n, size)
	}
	mass, err := b.index.RangeSum(0, hi)
	if err != nil {
		return nil, 0, err
	}
	if !(mass > 0) {
		return nil, 0, fmt.Errorf("%w: no priority mass over [0, %d]", ErrInsufficientData, hi)
	}

	band := mass / float64(batchSize)
	indices := make([]int, 0, batchSize)
	resamples := 0
	for k := 0; k < batchSize; k++ {
		attempts := 0
		for {
			if attempts == b.maxAttempts {
				b.logger.Warn().
					Int("band", k).
					Int("attempts", attempts).
					Int("size", size).
					Int("n", n).
					Msg("Resample attempts exhausted")
				return nil, resamples, fmt.Errorf("%w: band %d found no index with a complete %d-step window after %d attempts",
					ErrInsufficientData, k, n, attempts)
			}
			attempts++

			target := b.rng.Float64()*band + float64(k)*band
			idx, err := b.index.FindPrefixSum(target)
			if err != nil && !errors.Is(err, ErrMassOutOfRange) {
				return nil, resamples, err
			}
			if err == nil && idx+n <= size {
				indices = append(indices, idx)
				break
			}
			resamples++
		}
	}

	return indices, resamples, nil
}

// UpdatePriorities implements Backend.UpdatePriorities. The whole request
// is validated before any leaf changes.
func (b *PrioritizedBuffer) UpdatePriorities(indices []int, priorities []float64) error {
	if len(indices) != len(priorities) {
		return fmt.Errorf("%w: mismatched lengths: %d indices vs %d priorities",
			ErrInvalidArgument, len(indices), len(priorities))
	}

	size := b.store.Size()
	for j, idx := range indices {
		if idx < 0 || idx >= size {
			return fmt.Errorf("%w: index %d not live in [0, %d)", ErrIndexOutOfRange, idx, size)
		}
		if err := b.index.CheckPriority(priorities[j]); err != nil {
			return fmt.Errorf("index %d: %w", idx, err)
		}
	}

	for j, idx := range indices {
		if err := b.index.Update(idx, priorities[j]); err != nil {
			return err
		}
		b.maxPriority = math.Max(b.maxPriority, priorities[j])
	}
	return nil
}

// Stats implements Backend.Stats
func (b *PrioritizedBuffer) Stats() Stats {
	return Stats{
		BufferID:         b.id,
		Capacity:         b.store.Capacity(),
		Size:             b.store.Size(),
		Cursor:           b.store.Cursor(),
		Phase:            b.Phase().String(),
		Alpha:            b.index.Alpha(),
		TreeSize:         b.index.TreeSize(),
		MaxPriority:      b.maxPriority,
		TotalPriority:    b.index.TotalSum(),
		TotalTransitions: b.totalAdded,
	}
}

func (b *PrioritizedBuffer) checkSample(batchSize, n int) error {
	if batchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidArgument, batchSize)
	}
	if n < 1 {
		return fmt.Errorf("%w: n must be >= 1, got %d", ErrInvalidArgument, n)
	}
	if size := b.store.Size(); n > size {
		return fmt.Errorf("%w: %d-step window needs %d transitions, have %d", ErrInsufficientData, n, n, size)
	}
	return nil
}
