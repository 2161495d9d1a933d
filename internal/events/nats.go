package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSPublisher implements Publisher using NATS
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSPublisher connects to natsURL and publishes under subject.
func NewNATSPublisher(natsURL, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(natsURL, nats.Name("replay-buffer"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", natsURL, err)
	}

	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "nats_publisher").Logger(),
	}, nil
}

// Close drains pending messages and closes the connection.
func (n *NATSPublisher) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}

// PhaseSubject is the subject every phase event is published to.
func (n *NATSPublisher) PhaseSubject() string {
	return n.subject + ".phase"
}

// PublishPhase publishes the event to <subject>.phase and, when the
// buffer has just filled, also to <subject>.phase.full.
func (n *NATSPublisher) PublishPhase(ctx context.Context, event PhaseEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	subject := n.PhaseSubject()
	if err := n.conn.Publish(subject, data); err != nil {
		n.logger.Error().Err(err).Str("subject", subject).Msg("Failed to publish phase event")
		return err
	}

	if event.To == "full" {
		routingKey := subject + ".full"
		if err := n.conn.Publish(routingKey, data); err != nil {
			n.logger.Error().Err(err).Str("routing_key", routingKey).Msg("Failed to publish to routing key")
		}
	}

	n.logger.Debug().
		Str("buffer_id", event.BufferID).
		Str("from", event.From).
		Str("to", event.To).
		Str("subject", subject).
		Msg("Published phase event")

	return nil
}
