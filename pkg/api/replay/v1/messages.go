// Package replayv1 defines the wire messages and gRPC bindings of the
// replay service. Messages are plain structs carried by the JSON codec
// registered in codec.go.
package replayv1

// Transition is a single environment step.
type Transition struct {
	Observation     []float32 `json:"observation"`
	Action          []float32 `json:"action"`
	Reward          float32   `json:"reward"`
	NextObservation []float32 `json:"next_observation"`
	Done            bool      `json:"done"`
}

type AddTransitionRequest struct {
	Transition *Transition `json:"transition"`
}

type AddTransitionResponse struct {
	Size  uint32 `json:"size"`
	Phase string `json:"phase"`
}

type AddBatchRequest struct {
	Transitions []*Transition `json:"transitions"`
}

type AddBatchResponse struct {
	StoredCount   uint32   `json:"stored_count"`
	FailedCount   uint32   `json:"failed_count"`
	ErrorMessages []string `json:"error_messages,omitempty"`
	Size          uint32   `json:"size"`
}

type SampleUniformRequest struct {
	BatchSize uint32  `json:"batch_size"`
	Discount  float32 `json:"discount"`
	NSteps    uint32  `json:"n_steps"`
}

type SamplePrioritizedRequest struct {
	BatchSize uint32  `json:"batch_size"`
	Beta      float64 `json:"beta"`
	Discount  float32 `json:"discount"`
	NSteps    uint32  `json:"n_steps"`
}

// SampleResponse is column-major: row j of each column belongs to the
// window starting at Indices[j].
type SampleResponse struct {
	Observations     [][]float32 `json:"observations"`
	Actions          [][]float32 `json:"actions"`
	Rewards          []float32   `json:"rewards"`
	NextObservations [][]float32 `json:"next_observations"`
	NotDones         []float32   `json:"not_dones"`
	Weights          []float32   `json:"weights"`
	Indices          []int64     `json:"indices"`
	Resamples        uint32      `json:"resamples"`
}

type UpdatePrioritiesRequest struct {
	Indices    []int64   `json:"indices"`
	Priorities []float64 `json:"priorities"`
}

type UpdatePrioritiesResponse struct {
	UpdatedCount uint32  `json:"updated_count"`
	MaxPriority  float64 `json:"max_priority"`
}

type StatsResponse struct {
	BufferId         string  `json:"buffer_id"`
	Capacity         uint64  `json:"capacity"`
	Size             uint64  `json:"size"`
	Cursor           uint64  `json:"cursor"`
	Phase            string  `json:"phase"`
	Alpha            float64 `json:"alpha"`
	TreeSize         uint64  `json:"tree_size"`
	MaxPriority      float64 `json:"max_priority"`
	TotalPriority    float64 `json:"total_priority"`
	TotalTransitions uint64  `json:"total_transitions"`
}
