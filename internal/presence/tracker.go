// Package presence derives the live participant list of a room and pushes it
// to the room's members whenever membership changes.
package presence

import (
	"context"
	"log/slog"

	"github.com/nfrund/projecthub/internal/pubsub"
	"github.com/nfrund/projecthub/internal/rooms"
	"github.com/nfrund/projecthub/internal/websocket"
)

// List is the payload of a presence event: the full, de-duplicated list of
// usernames currently in the room. Receivers replace their previous list
// wholesale, so at-least-once delivery needs no reconciliation on their side.
type List struct {
	Feature rooms.Feature `json:"feature"`
	Users   []string      `json:"users"`
}

// Broadcaster is the slice of the room registry the tracker needs.
type Broadcaster interface {
	Publish(key rooms.Key, payload []byte, excludeConnID string) int
}

// Tracker listens for membership changes and broadcasts the resulting member
// list to the affected room. It keeps no state of its own; the registry's
// membership events already carry the full list.
type Tracker struct {
	broadcaster Broadcaster
	logger      *slog.Logger
}

// NewTracker creates a presence tracker that publishes through the given
// broadcaster (normally the rooms registry).
func NewTracker(b Broadcaster) *Tracker {
	return &Tracker{
		broadcaster: b,
		logger:      slog.Default().With("service", "presence"),
	}
}

// Start subscribes to membership changes. It returns once the subscription is
// active; the handler runs for the life of the context.
func (t *Tracker) Start(ctx context.Context, sub pubsub.Subscriber) error {
	return pubsub.SubscribeTyped(ctx, sub, rooms.EventMembershipChanged, t.handleMembershipChanged)
}

func (t *Tracker) handleMembershipChanged(ctx context.Context, ev rooms.MembershipChanged) error {
	users := ev.Usernames
	if users == nil {
		users = []string{}
	}

	payload, err := websocket.MarshalEvent(websocket.EventPresence, ev.ProjectID, List{
		Feature: ev.Feature,
		Users:   users,
	})
	if err != nil {
		// Marshalling is deterministic, so redelivery could never succeed.
		t.logger.Error("failed to marshal presence event", "project", ev.ProjectID, "error", err)
		return nil
	}

	key := rooms.Key{ProjectID: ev.ProjectID, Feature: ev.Feature}
	delivered := t.broadcaster.Publish(key, payload, "")
	t.logger.Debug("presence update broadcast", "room", key.String(), "users", len(users), "delivered", delivered)
	return nil
}
