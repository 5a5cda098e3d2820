package pubsub

import (
	"context"
)

// Metadata keys set by the WebSocket bridge on messages originating from a
// connected client. Subscribers use them to identify the sender connection
// and the project scope without parsing the payload.
const (
	MetaClientID = "client_id"
	MetaProject  = "project"
)

// Message is the structure passed between components on the bus.
// It is intentionally simple to act as a wrapper for raw data.
type Message struct {
	// Topic identifies the channel the message belongs to (e.g., "client.chat.message.new").
	Topic string
	// UserID identifies the user who initiated the message.
	UserID string
	// Payload contains the raw message data (e.g., chat text, JSON).
	Payload []byte
	// Metadata can contain arbitrary key-value pairs for context (e.g., client IDs).
	Metadata map[string]string
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the Pub/Sub system.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the Pub/Sub system.
type Subscriber interface {
	// Subscribe starts listening to the given topic, processing messages with
	// the handler. The subscription runs in the background; Subscribe returns
	// once it is active.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
