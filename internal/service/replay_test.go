package service

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/cartridge/replaybuffer/internal/events"
	"github.com/cartridge/replaybuffer/internal/metrics"
	"github.com/cartridge/replaybuffer/internal/storage"
	replayv1 "github.com/cartridge/replaybuffer/pkg/api/replay/v1"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.PhaseEvent
	err    error
}

func (p *recordingPublisher) PublishPhase(_ context.Context, event events.PhaseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func newTestService(t *testing.T, capacity int, pub events.Publisher) (*ReplayService, *metrics.Collector) {
	t.Helper()
	backend, err := storage.NewPrioritizedBuffer(storage.Options{
		Capacity:       capacity,
		ObservationDim: 2,
		ActionDim:      1,
		Alpha:          0.6,
		Seed:           7,
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, err)
	collector := metrics.NewCollector(zerolog.Nop())
	return NewReplayService(backend, collector, pub, zerolog.Nop()), collector
}

func transition(reward float32, done bool) *replayv1.Transition {
	return &replayv1.Transition{
		Observation:     []float32{reward, 0},
		Action:          []float32{1},
		Reward:          reward,
		NextObservation: []float32{reward, 1},
		Done:            done,
	}
}

func counterValue(t *testing.T, collector *metrics.Collector, name string) float64 {
	t.Helper()
	families, err := collector.Registry().Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestAddTransition(t *testing.T) {
	svc, collector := newTestService(t, 4, nil)
	ctx := context.Background()

	resp, err := svc.AddTransition(ctx, &replayv1.AddTransitionRequest{Transition: transition(1, false)})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), resp.Size)
	assert.Equal(t, "filling", resp.Phase)
	assert.Equal(t, 1.0, counterValue(t, collector, "replay_transitions_added_total"))

	_, err = svc.AddTransition(ctx, &replayv1.AddTransitionRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	bad := transition(1, false)
	bad.Action = []float32{1, 2}
	_, err = svc.AddTransition(ctx, &replayv1.AddTransitionRequest{Transition: bad})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, 1.0, counterValue(t, collector, "replay_rpc_errors_total"))
	assert.Equal(t, 1, svc.Snapshot().Size)
}

func TestAddBatch_StopsAtFirstFailure(t *testing.T) {
	svc, _ := newTestService(t, 8, nil)

	bad := transition(2, false)
	bad.Observation = []float32{1}
	resp, err := svc.AddBatch(context.Background(), &replayv1.AddBatchRequest{
		Transitions: []*replayv1.Transition{transition(1, false), bad, transition(3, false)},
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), resp.StoredCount)
	assert.Equal(t, uint32(2), resp.FailedCount)
	assert.Len(t, resp.ErrorMessages, 1)
	assert.Equal(t, uint32(1), resp.Size)
}

func TestPhaseEvents(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newTestService(t, 3, pub)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.AddTransition(ctx, &replayv1.AddTransitionRequest{Transition: transition(float32(i), false)})
		require.NoError(t, err)
	}

	require.Len(t, pub.events, 2)
	assert.Equal(t, "empty", pub.events[0].From)
	assert.Equal(t, "filling", pub.events[0].To)
	assert.Equal(t, "filling", pub.events[1].From)
	assert.Equal(t, "full", pub.events[1].To)
	assert.Equal(t, 3, pub.events[1].Size)
	assert.Equal(t, 3, pub.events[1].Capacity)
	assert.Equal(t, svc.Snapshot().BufferID, pub.events[1].BufferID)
}

func TestPhaseEvents_PublishErrorDoesNotFailAdd(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats down")}
	svc, _ := newTestService(t, 2, pub)

	_, err := svc.AddTransition(context.Background(), &replayv1.AddTransitionRequest{Transition: transition(1, false)})
	require.NoError(t, err)
	assert.Len(t, pub.events, 1)
}

func TestErrorCodes(t *testing.T) {
	svc, _ := newTestService(t, 4, nil)
	ctx := context.Background()

	_, err := svc.SamplePrioritized(ctx, &replayv1.SamplePrioritizedRequest{BatchSize: 1, Beta: 0.4, Discount: 0.9, NSteps: 1})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	for i := 0; i < 4; i++ {
		_, err := svc.AddTransition(ctx, &replayv1.AddTransitionRequest{Transition: transition(1, false)})
		require.NoError(t, err)
	}

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"zero batch", func() error {
			_, err := svc.SampleUniform(ctx, &replayv1.SampleUniformRequest{BatchSize: 0, Discount: 0.9, NSteps: 1})
			return err
		}, codes.InvalidArgument},
		{"window longer than buffer", func() error {
			_, err := svc.SampleUniform(ctx, &replayv1.SampleUniformRequest{BatchSize: 1, Discount: 0.9, NSteps: 5})
			return err
		}, codes.FailedPrecondition},
		{"zero beta", func() error {
			_, err := svc.SamplePrioritized(ctx, &replayv1.SamplePrioritizedRequest{BatchSize: 1, Beta: 0, Discount: 0.9, NSteps: 1})
			return err
		}, codes.InvalidArgument},
		{"mismatched lengths", func() error {
			_, err := svc.UpdatePriorities(ctx, &replayv1.UpdatePrioritiesRequest{Indices: []int64{0}, Priorities: []float64{}})
			return err
		}, codes.InvalidArgument},
		{"index past size", func() error {
			_, err := svc.UpdatePriorities(ctx, &replayv1.UpdatePrioritiesRequest{Indices: []int64{9}, Priorities: []float64{1}})
			return err
		}, codes.OutOfRange},
		{"negative priority", func() error {
			_, err := svc.UpdatePriorities(ctx, &replayv1.UpdatePrioritiesRequest{Indices: []int64{0}, Priorities: []float64{-1}})
			return err
		}, codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status.Code(tt.call()))
		})
	}
}

func startBufconnServer(t *testing.T, svc replayv1.ReplayServer) replayv1.ReplayClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	replayv1.RegisterReplayServer(server, svc)
	go func() {
		_ = server.Serve(lis)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return replayv1.NewReplayClient(conn)
}

func TestReplayServiceOverGRPC(t *testing.T) {
	svc, _ := newTestService(t, 4, nil)
	client := startBufconnServer(t, svc)
	ctx := context.Background()

	t.Run("AddBatch", func(t *testing.T) {
		resp, err := client.AddBatch(ctx, &replayv1.AddBatchRequest{
			Transitions: []*replayv1.Transition{
				transition(5, false),
				transition(-1, false),
				transition(0, true),
				transition(2, false),
			},
		})
		require.NoError(t, err)
		assert.Equal(t, uint32(4), resp.StoredCount)
		assert.Equal(t, uint32(0), resp.FailedCount)
		assert.Equal(t, uint32(4), resp.Size)
	})

	t.Run("GetStats", func(t *testing.T) {
		resp, err := client.GetStats(ctx, &emptypb.Empty{})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.BufferId)
		assert.Equal(t, uint64(4), resp.Capacity)
		assert.Equal(t, uint64(4), resp.Size)
		assert.Equal(t, uint64(0), resp.Cursor)
		assert.Equal(t, "full", resp.Phase)
		assert.Equal(t, uint64(4), resp.TreeSize)
		assert.Equal(t, uint64(4), resp.TotalTransitions)
		assert.InDelta(t, 4.0, resp.TotalPriority, 1e-9)
	})

	t.Run("SampleUniform", func(t *testing.T) {
		resp, err := client.SampleUniform(ctx, &replayv1.SampleUniformRequest{BatchSize: 3, Discount: 0.5, NSteps: 2})
		require.NoError(t, err)
		require.Len(t, resp.Indices, 3)
		assert.Len(t, resp.Observations, 3)
		assert.Len(t, resp.NextObservations, 3)
		for j, idx := range resp.Indices {
			assert.LessOrEqual(t, idx, int64(2))
			assert.Equal(t, float32(1), resp.Weights[j])
			assert.Len(t, resp.Observations[j], 2)
		}
	})

	t.Run("SamplePrioritized", func(t *testing.T) {
		resp, err := client.SamplePrioritized(ctx, &replayv1.SamplePrioritizedRequest{BatchSize: 2, Beta: 0.4, Discount: 0.5, NSteps: 2})
		require.NoError(t, err)
		require.Len(t, resp.Indices, 2)
		for j, idx := range resp.Indices {
			assert.LessOrEqual(t, idx, int64(2))
			assert.Greater(t, resp.Weights[j], float32(0))
			assert.LessOrEqual(t, resp.Weights[j], float32(1))
		}
	})

	t.Run("UpdatePriorities", func(t *testing.T) {
		resp, err := client.UpdatePriorities(ctx, &replayv1.UpdatePrioritiesRequest{
			Indices:    []int64{0, 3},
			Priorities: []float64{4, 0.5},
		})
		require.NoError(t, err)
		assert.Equal(t, uint32(2), resp.UpdatedCount)
		assert.Equal(t, 4.0, resp.MaxPriority)

		stats, err := client.GetStats(ctx, &emptypb.Empty{})
		require.NoError(t, err)
		assert.Equal(t, 4.0, stats.MaxPriority)
	})

	t.Run("StatusCodesCrossTheWire", func(t *testing.T) {
		_, err := client.UpdatePriorities(ctx, &replayv1.UpdatePrioritiesRequest{
			Indices:    []int64{7},
			Priorities: []float64{1},
		})
		assert.Equal(t, codes.OutOfRange, status.Code(err))
	})
}
