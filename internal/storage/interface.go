package storage

// Transition is a single environment step.
type Transition struct {
	Observation     []float32 `json:"observation"`
	Action          []float32 `json:"action"`
	Reward          float32   `json:"reward"`
	NextObservation []float32 `json:"next_observation"`
	Done            bool      `json:"done"`
}

// Batch is a set of sampled n-step windows. Row j of every column belongs
// to the window starting at Indices[j].
type Batch struct {
	Observations     [][]float32
	Actions          [][]float32
	Rewards          []float32
	NextObservations [][]float32
	NotDones         []float32
	Weights          []float32
	Indices          []int

	// Resamples counts band draws rejected by the n-step reachability guard.
	Resamples int
}

// Len returns the number of sampled windows.
func (b *Batch) Len() int {
	return len(b.Indices)
}

// Phase is the fill state of a buffer.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseFilling
	PhaseFull
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseFilling:
		return "filling"
	case PhaseFull:
		return "full"
	default:
		return "unknown"
	}
}

// Stats represents replay buffer statistics
type Stats struct {
	BufferID         string  `json:"buffer_id"`
	Capacity         int     `json:"capacity"`
	Size             int     `json:"size"`
	Cursor           int     `json:"cursor"`
	Phase            string  `json:"phase"`
	Alpha            float64 `json:"alpha"`
	TreeSize         int     `json:"tree_size"`
	MaxPriority      float64 `json:"max_priority"`
	TotalPriority    float64 `json:"total_priority"`
	TotalTransitions uint64  `json:"total_transitions"`
}

// Backend defines the interface for replay buffer implementations.
// Implementations are not safe for concurrent use.
type Backend interface {
	// Add stores a transition, overwriting the oldest once full.
	Add(t Transition) error

	// SampleUniform draws n-step windows with uniform probability.
	SampleUniform(batchSize int, discount float32, n int) (*Batch, error)

	// SamplePrioritized draws n-step windows proportional to priority^alpha
	// and attaches importance-sampling weights.
	SamplePrioritized(batchSize int, beta float64, discount float32, n int) (*Batch, error)

	// UpdatePriorities replaces priorities for previously sampled indices.
	UpdatePriorities(indices []int, priorities []float64) error

	// Phase reports the fill state.
	Phase() Phase

	// Stats returns buffer statistics.
	Stats() Stats
}
