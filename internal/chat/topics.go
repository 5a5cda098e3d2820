package chat

import "github.com/nfrund/projecthub/internal/pubsub"

// NewMessagePayload is what a client sends with a chat message action.
type NewMessagePayload struct {
	Text string `json:"text"`
}

// TypingPayload is intentionally empty; sender identity and project scope
// arrive through the bus message metadata.
type TypingPayload struct{}

var (
	// EventClientMessage is a new chat message published by a client.
	EventClientMessage = pubsub.NewClientEvent[NewMessagePayload](
		"client.chat.message.new",
		"A new chat message sent by a client",
	)

	// EventClientTyping signals that a client is typing.
	EventClientTyping = pubsub.NewClientEvent[TypingPayload](
		"client.chat.typing",
		"Ephemeral typing notice from a client; expires client-side after 3s",
	)
)
