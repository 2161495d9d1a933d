package storage

import (
	"fmt"
	"math"
)

// TransitionStore is a fixed-capacity ring of transitions kept as flat
// parallel columns. Slot i of each column belongs to the same transition.
type TransitionStore struct {
	capacity  int
	obsDim    int
	actionDim int

	observations     []float32 // capacity * obsDim
	nextObservations []float32 // capacity * obsDim
	actions          []float32 // capacity * actionDim
	rewards          []float32
	notDones         []float32

	cursor int
	full   bool
}

// NewTransitionStore allocates all columns up front.
func NewTransitionStore(capacity, obsDim, actionDim int) (*TransitionStore, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidArgument, capacity)
	}
	if obsDim <= 0 || actionDim <= 0 {
		return nil, fmt.Errorf("%w: observation and action dims must be positive, got %d and %d",
			ErrInvalidArgument, obsDim, actionDim)
	}

	return &TransitionStore{
		capacity:         capacity,
		obsDim:           obsDim,
		actionDim:        actionDim,
		observations:     make([]float32, capacity*obsDim),
		nextObservations: make([]float32, capacity*obsDim),
		actions:          make([]float32, capacity*actionDim),
		rewards:          make([]float32, capacity),
		notDones:         make([]float32, capacity),
	}, nil
}

// Capacity returns the fixed number of slots.
func (s *TransitionStore) Capacity() int { return s.capacity }

// Cursor returns the slot the next Add will write.
func (s *TransitionStore) Cursor() int { return s.cursor }

// Full reports whether the cursor has wrapped at least once.
func (s *TransitionStore) Full() bool { return s.full }

// Size returns the number of populated slots.
func (s *TransitionStore) Size() int {
	if s.full {
		return s.capacity
	}
	return s.cursor
}

// Add writes t at the cursor and returns the slot it was written to.
// Nothing is mutated when t has the wrong shape.
func (s *TransitionStore) Add(t Transition) (int, error) {
	if len(t.Observation) != s.obsDim || len(t.NextObservation) != s.obsDim {
		return 0, fmt.Errorf("%w: observation length %d/%d, want %d",
			ErrInvalidArgument, len(t.Observation), len(t.NextObservation), s.obsDim)
	}
	if len(t.Action) != s.actionDim {
		return 0, fmt.Errorf("%w: action length %d, want %d", ErrInvalidArgument, len(t.Action), s.actionDim)
	}

	slot := s.cursor
	copy(s.observations[slot*s.obsDim:(slot+1)*s.obsDim], t.Observation)
	copy(s.nextObservations[slot*s.obsDim:(slot+1)*s.obsDim], t.NextObservation)
	copy(s.actions[slot*s.actionDim:(slot+1)*s.actionDim], t.Action)
	s.rewards[slot] = t.Reward
	if t.Done {
		s.notDones[slot] = 0
	} else {
		s.notDones[slot] = 1
	}

	s.cursor = (s.cursor + 1) % s.capacity
	s.full = s.full || s.cursor == 0
	return slot, nil
}

// Get returns a copy of the transition in slot i.
func (s *TransitionStore) Get(i int) (Transition, error) {
	if i < 0 || i >= s.Size() {
		return Transition{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, s.Size())
	}

	return Transition{
		Observation:     s.observationAt(s.observations, i),
		Action:          s.actionAt(i),
		Reward:          s.rewards[i],
		NextObservation: s.observationAt(s.nextObservations, i),
		Done:            s.notDones[i] == 0,
	}, nil
}

// FetchWindow gathers the n-step window starting at each index. The
// returned reward is sum_k discount^k * notDone * sign(reward[i+k]) where
// notDone is the running minimum of continuation flags before step k; the
// returned continuation is that minimum over the whole window.
func (s *TransitionStore) FetchWindow(indices []int, n int, discount float32) (*Batch, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: n must be >= 1, got %d", ErrInvalidArgument, n)
	}
	size := s.Size()
	for _, i := range indices {
		if i < 0 || i+n > size {
			return nil, fmt.Errorf("%w: window [%d, %d) exceeds size %d", ErrIndexOutOfRange, i, i+n, size)
		}
	}

	batch := &Batch{
		Observations:     make([][]float32, len(indices)),
		Actions:          make([][]float32, len(indices)),
		Rewards:          make([]float32, len(indices)),
		NextObservations: make([][]float32, len(indices)),
		NotDones:         make([]float32, len(indices)),
		Indices:          append([]int(nil), indices...),
	}

	for j, i := range indices {
		batch.Observations[j] = s.observationAt(s.observations, i)
		batch.Actions[j] = s.actionAt(i)
		batch.NextObservations[j] = s.observationAt(s.nextObservations, i+n-1)

		var ret float32
		notDone := float32(1)
		for k := 0; k < n; k++ {
			ret += float32(math.Pow(float64(discount), float64(k))) * notDone * sign(s.rewards[i+k])
			notDone = min(notDone, s.notDones[i+k])
		}
		batch.Rewards[j] = ret
		batch.NotDones[j] = notDone
	}

	return batch, nil
}

func (s *TransitionStore) observationAt(column []float32, i int) []float32 {
	out := make([]float32, s.obsDim)
	copy(out, column[i*s.obsDim:(i+1)*s.obsDim])
	return out
}

func (s *TransitionStore) actionAt(i int) []float32 {
	out := make([]float32, s.actionDim)
	copy(out, s.actions[i*s.actionDim:(i+1)*s.actionDim])
	return out
}

func sign(x float32) float32 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
