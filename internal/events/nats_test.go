package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // random port
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(server.Shutdown)
	return server
}

func TestNATSPublisher_PublishPhase(t *testing.T) {
	server := startTestNATSServer(t)

	sub, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer sub.Close()

	phaseCh := make(chan *nats.Msg, 4)
	fullCh := make(chan *nats.Msg, 4)
	_, err = sub.ChanSubscribe("replay.phase", phaseCh)
	require.NoError(t, err)
	_, err = sub.ChanSubscribe("replay.phase.full", fullCh)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	pub, err := NewNATSPublisher(server.ClientURL(), "replay", zerolog.Nop())
	require.NoError(t, err)
	defer pub.Close()

	ctx := context.Background()
	require.NoError(t, pub.PublishPhase(ctx, PhaseEvent{BufferID: "b-1", From: "empty", To: "filling", Size: 1, Capacity: 4}))
	require.NoError(t, pub.PublishPhase(ctx, PhaseEvent{BufferID: "b-1", From: "filling", To: "full", Size: 4, Capacity: 4}))
	require.NoError(t, pub.conn.Flush())

	var got []PhaseEvent
	for i := 0; i < 2; i++ {
		select {
		case msg := <-phaseCh:
			var ev PhaseEvent
			require.NoError(t, json.Unmarshal(msg.Data, &ev))
			got = append(got, ev)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for phase event")
		}
	}
	assert.Equal(t, "filling", got[0].To)
	assert.Equal(t, "full", got[1].To)

	select {
	case msg := <-fullCh:
		var ev PhaseEvent
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		assert.Equal(t, 4, ev.Size)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for full event")
	}
}

func TestNATSPublisher_CancelledContext(t *testing.T) {
	server := startTestNATSServer(t)
	pub, err := NewNATSPublisher(server.ClientURL(), "replay", zerolog.Nop())
	require.NoError(t, err)
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pub.PublishPhase(ctx, PhaseEvent{To: "full"}), context.Canceled)
}

func TestNewNATSPublisher_ConnectFailure(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:1", "replay", zerolog.Nop())
	assert.Error(t, err)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.PublishPhase(context.Background(), PhaseEvent{}))
}
