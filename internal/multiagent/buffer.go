// Package multiagent provides a bounded replay buffer of joint
// experiences for centralized-critic training, sampled uniformly
// without replacement.
package multiagent

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrInvalidArgument indicates a malformed push or constructor call.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInsufficientData indicates a batch larger than the buffer.
	ErrInsufficientData = errors.New("insufficient data")
)

// Experience is one joint step. Slices are indexed by agent; Done
// marks the end of the shared episode.
type Experience struct {
	States     [][]float32
	Actions    [][]float32
	Rewards    []float32
	NextStates [][]float32
	Done       bool
}

// Batch holds a sample both split per agent and concatenated across
// agents. Per-agent columns are indexed [agent][sample]; global columns
// and Dones are indexed [sample].
type Batch struct {
	Observations     [][][]float32
	Actions          [][][]float32
	Rewards          [][]float32
	NextObservations [][][]float32

	GlobalStates     [][]float32
	GlobalActions    [][]float32
	GlobalNextStates [][]float32
	Dones            []bool
}

// Buffer keeps the most recent maxSize experiences; pushing into a full
// buffer drops the oldest one.
type Buffer struct {
	numAgents int
	maxSize   int
	items     []Experience
	head      int
	count     int
	dropped   uint64
	rng       *rand.Rand
	logger    zerolog.Logger
}

// New creates a buffer for numAgents agents holding at most maxSize
// experiences. A zero seed seeds from the clock.
func New(numAgents, maxSize int, seed int64, logger zerolog.Logger) (*Buffer, error) {
	if numAgents <= 0 || maxSize <= 0 {
		return nil, fmt.Errorf("%w: num agents and max size must be positive, got %d and %d",
			ErrInvalidArgument, numAgents, maxSize)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Buffer{
		numAgents: numAgents,
		maxSize:   maxSize,
		items:     make([]Experience, maxSize),
		rng:       rand.New(rand.NewSource(seed)),
		logger:    logger.With().Str("component", "multiagent_buffer").Logger(),
	}, nil
}

// Len returns the number of stored experiences.
func (b *Buffer) Len() int { return b.count }

// Dropped returns how many experiences have been evicted.
func (b *Buffer) Dropped() uint64 { return b.dropped }

// Push appends one joint experience. Every per-agent slice must have one
// entry per agent.
func (b *Buffer) Push(states, actions [][]float32, rewards []float32, nextStates [][]float32, done bool) error {
	if len(states) != b.numAgents || len(actions) != b.numAgents || len(rewards) != b.numAgents ||
		len(nextStates) != b.numAgents {
		return fmt.Errorf("%w: expected %d entries per field, got states=%d actions=%d rewards=%d next=%d",
			ErrInvalidArgument, b.numAgents, len(states), len(actions), len(rewards), len(nextStates))
	}

	b.items[b.head] = Experience{
		States:     cloneRows(states),
		Actions:    cloneRows(actions),
		Rewards:    append([]float32(nil), rewards...),
		NextStates: cloneRows(nextStates),
		Done:       done,
	}
	b.head = (b.head + 1) % b.maxSize
	if b.count < b.maxSize {
		b.count++
	} else {
		b.dropped++
	}
	return nil
}

// Sample draws batchSize distinct experiences uniformly at random.
func (b *Buffer) Sample(batchSize int) (*Batch, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidArgument, batchSize)
	}
	if batchSize > b.count {
		return nil, fmt.Errorf("%w: batch size %d exceeds %d stored experiences", ErrInsufficientData, batchSize, b.count)
	}

	// partial Fisher-Yates over the stored slots
	slots := make([]int, b.count)
	for i := range slots {
		slots[i] = i
	}
	for i := 0; i < batchSize; i++ {
		j := i + b.rng.Intn(b.count-i)
		slots[i], slots[j] = slots[j], slots[i]
	}

	batch := &Batch{
		Observations:     make([][][]float32, b.numAgents),
		Actions:          make([][][]float32, b.numAgents),
		Rewards:          make([][]float32, b.numAgents),
		NextObservations: make([][][]float32, b.numAgents),
		GlobalStates:     make([][]float32, batchSize),
		GlobalActions:    make([][]float32, batchSize),
		GlobalNextStates: make([][]float32, batchSize),
		Dones:            make([]bool, batchSize),
	}
	for a := 0; a < b.numAgents; a++ {
		batch.Observations[a] = make([][]float32, batchSize)
		batch.Actions[a] = make([][]float32, batchSize)
		batch.Rewards[a] = make([]float32, batchSize)
		batch.NextObservations[a] = make([][]float32, batchSize)
	}

	for s := 0; s < batchSize; s++ {
		exp := b.items[slots[s]]
		for a := 0; a < b.numAgents; a++ {
			batch.Observations[a][s] = append([]float32(nil), exp.States[a]...)
			batch.Actions[a][s] = append([]float32(nil), exp.Actions[a]...)
			batch.Rewards[a][s] = exp.Rewards[a]
			batch.NextObservations[a][s] = append([]float32(nil), exp.NextStates[a]...)
		}
		batch.GlobalStates[s] = concat(exp.States)
		batch.GlobalActions[s] = concat(exp.Actions)
		batch.GlobalNextStates[s] = concat(exp.NextStates)
		batch.Dones[s] = exp.Done
	}

	b.logger.Debug().Int("batch_size", batchSize).Int("stored", b.count).Msg("Sampled joint batch")
	return batch, nil
}

func cloneRows(rows [][]float32) [][]float32 {
	out := make([][]float32, len(rows))
	for i, r := range rows {
		out[i] = append([]float32(nil), r...)
	}
	return out
}

func concat(rows [][]float32) []float32 {
	n := 0
	for _, r := range rows {
		n += len(r)
	}
	out := make([]float32, 0, n)
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}
