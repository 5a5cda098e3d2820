package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nfrund/projecthub/internal/topics"
)

// Event[T] wraps a topic name and provides type-safe publishing.
// Defining an event also registers its topic with the default topic registry,
// so every event on the bus is discoverable through the inspection CLI.
type Event[T any] struct {
	topicName string
}

// NewEvent creates a typed server-internal event and registers its topic.
// Events are defined at package level, so a duplicate name panics at startup.
func NewEvent[T any](name, description string) Event[T] {
	topics.Define(topics.Topic{
		Name:        name,
		Module:      moduleOf(name),
		Description: description,
	})
	return Event[T]{topicName: name}
}

// NewClientEvent is like NewEvent, but marks the topic as publishable by
// WebSocket clients. The bridge only forwards actions registered this way.
func NewClientEvent[T any](name, description string) Event[T] {
	topics.Define(topics.Topic{
		Name:              name,
		Module:            moduleOf(name),
		Description:       description,
		ClientPublishable: true,
	})
	return Event[T]{topicName: name}
}

// Name returns the topic name.
func (e Event[T]) Name() string {
	return e.topicName
}

// moduleOf derives the owning module from the topic prefix,
// e.g. "rooms.membership.changed" -> "rooms".
func moduleOf(name string) string {
	for i, ch := range name {
		if ch == '.' {
			return name[:i]
		}
	}
	return name
}

// Publish sends a typed event. The compiler ensures 'payload' matches 'T'.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], payload T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event.Name(), err)
	}

	return p.Publish(ctx, Message{
		Topic:   event.Name(),
		Payload: data,
	})
}

// SubscribeTyped subscribes to a typed event, unmarshaling each payload into T
// before invoking the handler.
func SubscribeTyped[T any](ctx context.Context, s Subscriber, event Event[T], handler func(ctx context.Context, payload T) error) error {
	return s.Subscribe(ctx, event.Name(), func(ctx context.Context, msg Message) error {
		var payload T
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", event.Name(), err)
		}
		return handler(ctx, payload)
	})
}
