package whiteboard

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nfrund/projecthub/internal/pubsub"
	"github.com/nfrund/projecthub/internal/rooms"
)

// Subscriber connects the whiteboard engine to the pub/sub bus: client
// update/save actions from the WebSocket bridge, and membership events from
// the room registry for join hydration and last-leave flushing.
type Subscriber struct {
	subscriber pubsub.Subscriber
	engine     *Engine
	logger     *slog.Logger
}

// NewSubscriber creates a subscriber for the whiteboard module.
func NewSubscriber(sub pubsub.Subscriber, engine *Engine) *Subscriber {
	return &Subscriber{
		subscriber: sub,
		engine:     engine,
		logger:     slog.Default().With("service", "whiteboard"),
	}
}

// Start begins listening for whiteboard-related events. It returns once the
// subscriptions are active; handlers run for the life of the context.
func (ws *Subscriber) Start(ctx context.Context) error {
	if err := ws.subscriber.Subscribe(ctx, EventClientUpdate.Name(), ws.handleUpdate); err != nil {
		return err
	}
	if err := ws.subscriber.Subscribe(ctx, EventClientSave.Name(), ws.handleSave); err != nil {
		return err
	}
	return pubsub.SubscribeTyped(ctx, ws.subscriber, rooms.EventMembershipChanged, ws.handleMembershipChanged)
}

func (ws *Subscriber) handleUpdate(ctx context.Context, msg pubsub.Message) error {
	var payload UpdatePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		ws.logger.Error("failed to unmarshal board update", "error", err)
		return nil // Malformed client input is dropped, not retried.
	}

	projectID := msg.Metadata[pubsub.MetaProject]
	senderConnID := msg.Metadata[pubsub.MetaClientID]
	ws.engine.BroadcastUpdate(projectID, senderConnID, msg.UserID, payload.Elements)
	return nil
}

func (ws *Subscriber) handleSave(ctx context.Context, msg pubsub.Message) error {
	var payload SavePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		ws.logger.Error("failed to unmarshal save request", "error", err)
		return nil
	}

	projectID := msg.Metadata[pubsub.MetaProject]
	connID := msg.Metadata[pubsub.MetaClientID]
	ws.engine.HandleExplicitSave(ctx, projectID, connID, payload.Elements)
	return nil
}

// handleMembershipChanged hydrates joining clients with the last durable
// snapshot and flushes unsaved state when a whiteboard room empties.
func (ws *Subscriber) handleMembershipChanged(ctx context.Context, ev rooms.MembershipChanged) error {
	if ev.Feature != rooms.FeatureWhiteboard {
		return nil
	}

	switch ev.Action {
	case rooms.ActionJoined:
		if err := ws.engine.SendInit(ctx, ev.ProjectID, ev.ClientID); err != nil {
			// The joiner starts from an empty canvas and can re-join to retry;
			// nobody else is affected.
			ws.logger.Error("failed to hydrate joining client", "project", ev.ProjectID, "clientID", ev.ClientID, "error", err)
		}
	case rooms.ActionLeft:
		if ev.Remaining == 0 {
			ws.engine.Flush(ctx, ev.ProjectID)
		}
	}
	return nil
}
