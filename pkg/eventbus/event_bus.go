// Package eventbus publishes and consumes workflow domain events over watermill.
package eventbus

import (
	"context"
	"errors"

	"github.com/dukex/stepflow/pkg/events"
)

var ErrUnknownEventType = errors.New("unknown event type")

// Event is any domain event from pkg/events.
type Event interface {
	GetType() events.EventType
}

// EventPublisher sends an event keyed by the workflow it concerns.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber dispatches received events to one handler per event type.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the decoded event, e.g. *events.EdgeDecided.
type EventHandler func(ctx context.Context, event Event) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// Nop discards every event. Services use it when no bus is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, Event) error { return nil }
