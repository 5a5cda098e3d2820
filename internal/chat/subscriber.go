package chat

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nfrund/projecthub/internal/domain"
	"github.com/nfrund/projecthub/internal/pubsub"
)

// Subscriber listens for client chat actions on the pub/sub bus and drives
// the chat service. The WebSocket bridge publishes the actions with the
// sender's identity and project scope in the message metadata.
type Subscriber struct {
	subscriber pubsub.Subscriber
	service    *Service
	logger     *slog.Logger
}

// NewSubscriber creates a subscriber for the chat module.
func NewSubscriber(sub pubsub.Subscriber, service *Service) *Subscriber {
	return &Subscriber{
		subscriber: sub,
		service:    service,
		logger:     slog.Default().With("service", "chat"),
	}
}

// Start begins listening for chat-related client actions. It returns once the
// subscriptions are active; handlers run for the life of the context.
func (cs *Subscriber) Start(ctx context.Context) error {
	if err := cs.subscriber.Subscribe(ctx, EventClientMessage.Name(), cs.handleNewMessage); err != nil {
		return err
	}
	return cs.subscriber.Subscribe(ctx, EventClientTyping.Name(), cs.handleTyping)
}

// handleNewMessage processes an incoming chat message action.
func (cs *Subscriber) handleNewMessage(ctx context.Context, msg pubsub.Message) error {
	var payload NewMessagePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("failed to unmarshal chat message", "error", err, "payload", string(msg.Payload))
		return nil // Malformed client input is dropped, not retried.
	}

	projectID := msg.Metadata[pubsub.MetaProject]
	senderConnID := msg.Metadata[pubsub.MetaClientID]

	if _, err := cs.service.Send(ctx, projectID, msg.UserID, senderConnID, payload.Text); err != nil {
		if err == domain.ErrEmptyMessage {
			cs.logger.Debug("rejected empty chat message", "project", projectID, "sender", msg.UserID)
			return nil
		}
		// Persistence failures surface here; the send was aborted and no
		// broadcast happened. Ack regardless: a nack would make the bus
		// redeliver and stall the subscription, and resending is the
		// client's decision.
		cs.logger.Error("failed to send chat message", "project", projectID, "sender", msg.UserID, "error", err)
		return nil
	}
	return nil
}

// handleTyping republishes an ephemeral typing notice to the room.
func (cs *Subscriber) handleTyping(ctx context.Context, msg pubsub.Message) error {
	projectID := msg.Metadata[pubsub.MetaProject]
	senderConnID := msg.Metadata[pubsub.MetaClientID]

	cs.service.Typing(projectID, msg.UserID, senderConnID)
	return nil
}
