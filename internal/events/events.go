package events

import (
	"context"
	"time"
)

// Publisher is implemented by downstream fan-out mechanisms.
type Publisher interface {
	PublishPhase(ctx context.Context, event PhaseEvent) error
}

// PhaseEvent is emitted when a buffer moves between empty, filling and full.
type PhaseEvent struct {
	BufferID  string    `json:"buffer_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Size      int       `json:"size"`
	Capacity  int       `json:"capacity"`
	Timestamp time.Time `json:"timestamp"`
}

// NoopPublisher drops every event; useful for tests.
type NoopPublisher struct{}

// PublishPhase satisfies Publisher.
func (NoopPublisher) PublishPhase(context.Context, PhaseEvent) error { return nil }
