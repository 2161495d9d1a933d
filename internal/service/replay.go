package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/cartridge/replaybuffer/internal/events"
	"github.com/cartridge/replaybuffer/internal/metrics"
	"github.com/cartridge/replaybuffer/internal/storage"
	replayv1 "github.com/cartridge/replaybuffer/pkg/api/replay/v1"
)

// ReplayService implements the Replay gRPC service. The backend is not
// safe for concurrent use, so every call holds mu for its duration.
type ReplayService struct {
	replayv1.UnimplementedReplayServer

	mu        sync.Mutex
	backend   storage.Backend
	metrics   *metrics.Collector
	publisher events.Publisher
	logger    zerolog.Logger
}

// NewReplayService creates a new ReplayService
func NewReplayService(backend storage.Backend, collector *metrics.Collector, publisher events.Publisher, logger zerolog.Logger) *ReplayService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &ReplayService{
		backend:   backend,
		metrics:   collector,
		publisher: publisher,
		logger:    logger.With().Str("component", "replay_service").Logger(),
	}
}

// Snapshot returns current buffer statistics.
func (s *ReplayService) Snapshot() storage.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Stats()
}

// AddTransition stores a single transition
func (s *ReplayService) AddTransition(ctx context.Context, req *replayv1.AddTransitionRequest) (*replayv1.AddTransitionResponse, error) {
	if req.Transition == nil {
		return nil, status.Error(codes.InvalidArgument, "transition is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.add(ctx, req.Transition); err != nil {
		return nil, s.toStatus(replayv1.Replay_AddTransition_FullMethodName, err)
	}

	stats := s.backend.Stats()
	s.metrics.ObserveBuffer(stats)
	return &replayv1.AddTransitionResponse{
		Size:  uint32(stats.Size),
		Phase: stats.Phase,
	}, nil
}

// AddBatch stores transitions in order and stops at the first rejected one
func (s *ReplayService) AddBatch(ctx context.Context, req *replayv1.AddBatchRequest) (*replayv1.AddBatchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := &replayv1.AddBatchResponse{}
	for i, t := range req.Transitions {
		if t == nil {
			resp.ErrorMessages = append(resp.ErrorMessages, "transition is required")
			resp.FailedCount = uint32(len(req.Transitions) - i)
			break
		}
		if err := s.add(ctx, t); err != nil {
			resp.ErrorMessages = append(resp.ErrorMessages, err.Error())
			resp.FailedCount = uint32(len(req.Transitions) - i)
			break
		}
		resp.StoredCount++
	}

	stats := s.backend.Stats()
	s.metrics.ObserveBuffer(stats)
	resp.Size = uint32(stats.Size)
	return resp, nil
}

// SampleUniform samples n-step windows uniformly
func (s *ReplayService) SampleUniform(ctx context.Context, req *replayv1.SampleUniformRequest) (*replayv1.SampleResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	batch, err := s.backend.SampleUniform(int(req.BatchSize), req.Discount, int(req.NSteps))
	if err != nil {
		return nil, s.toStatus(replayv1.Replay_SampleUniform_FullMethodName, err)
	}
	s.metrics.Sampled(metrics.ModeUniform, batch.Len(), batch.Resamples, time.Since(start))

	return batchToProto(batch), nil
}

// SamplePrioritized samples n-step windows by priority with IS weights
func (s *ReplayService) SamplePrioritized(ctx context.Context, req *replayv1.SamplePrioritizedRequest) (*replayv1.SampleResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	batch, err := s.backend.SamplePrioritized(int(req.BatchSize), req.Beta, req.Discount, int(req.NSteps))
	if err != nil {
		return nil, s.toStatus(replayv1.Replay_SamplePrioritized_FullMethodName, err)
	}
	s.metrics.Sampled(metrics.ModePrioritized, batch.Len(), batch.Resamples, time.Since(start))

	return batchToProto(batch), nil
}

// UpdatePriorities updates priorities for previously sampled indices
func (s *ReplayService) UpdatePriorities(ctx context.Context, req *replayv1.UpdatePrioritiesRequest) (*replayv1.UpdatePrioritiesResponse, error) {
	if len(req.Indices) != len(req.Priorities) {
		return nil, status.Error(codes.InvalidArgument, "indices and priorities must have same length")
	}

	indices := make([]int, len(req.Indices))
	for i, idx := range req.Indices {
		indices[i] = int(idx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.UpdatePriorities(indices, req.Priorities); err != nil {
		return nil, s.toStatus(replayv1.Replay_UpdatePriorities_FullMethodName, err)
	}

	stats := s.backend.Stats()
	s.metrics.PrioritiesUpdated(len(indices))
	s.metrics.ObserveBuffer(stats)
	return &replayv1.UpdatePrioritiesResponse{
		UpdatedCount: uint32(len(indices)),
		MaxPriority:  stats.MaxPriority,
	}, nil
}

// GetStats returns replay buffer statistics
func (s *ReplayService) GetStats(ctx context.Context, _ *emptypb.Empty) (*replayv1.StatsResponse, error) {
	stats := s.Snapshot()
	return &replayv1.StatsResponse{
		BufferId:         stats.BufferID,
		Capacity:         uint64(stats.Capacity),
		Size:             uint64(stats.Size),
		Cursor:           uint64(stats.Cursor),
		Phase:            stats.Phase,
		Alpha:            stats.Alpha,
		TreeSize:         uint64(stats.TreeSize),
		MaxPriority:      stats.MaxPriority,
		TotalPriority:    stats.TotalPriority,
		TotalTransitions: stats.TotalTransitions,
	}, nil
}

// add writes one transition and publishes a phase event if the fill
// state changed. Callers hold mu.
func (s *ReplayService) add(ctx context.Context, t *replayv1.Transition) error {
	before := s.backend.Phase()
	if err := s.backend.Add(protoToStorageTransition(t)); err != nil {
		return err
	}
	s.metrics.TransitionsAdded(1)

	after := s.backend.Phase()
	if after == before {
		return nil
	}

	stats := s.backend.Stats()
	event := events.PhaseEvent{
		BufferID:  stats.BufferID,
		From:      before.String(),
		To:        after.String(),
		Size:      stats.Size,
		Capacity:  stats.Capacity,
		Timestamp: time.Now().UTC(),
	}
	if err := s.publisher.PublishPhase(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("to", event.To).Msg("Failed to publish phase event")
	}
	return nil
}

func (s *ReplayService) toStatus(method string, err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, storage.ErrInsufficientData):
		code = codes.FailedPrecondition
	case errors.Is(err, storage.ErrIndexOutOfRange):
		code = codes.OutOfRange
	case errors.Is(err, storage.ErrInvalidArgument):
		code = codes.InvalidArgument
	}
	s.metrics.RPCError(method, code.String())
	return status.Error(code, err.Error())
}

// Conversion functions

func protoToStorageTransition(proto *replayv1.Transition) storage.Transition {
	return storage.Transition{
		Observation:     proto.Observation,
		Action:          proto.Action,
		Reward:          proto.Reward,
		NextObservation: proto.NextObservation,
		Done:            proto.Done,
	}
}

func batchToProto(batch *storage.Batch) *replayv1.SampleResponse {
	indices := make([]int64, len(batch.Indices))
	for i, idx := range batch.Indices {
		indices[i] = int64(idx)
	}
	return &replayv1.SampleResponse{
		Observations:     batch.Observations,
		Actions:          batch.Actions,
		Rewards:          batch.Rewards,
		NextObservations: batch.NextObservations,
		NotDones:         batch.NotDones,
		Weights:          batch.Weights,
		Indices:          indices,
		Resamples:        uint32(batch.Resamples),
	}
}
