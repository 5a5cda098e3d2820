package websocket

import "github.com/nfrund/projecthub/internal/topics"

// Room management actions are handled by the bridge itself instead of being
// forwarded onto the bus: joining must complete synchronously so the join
// acknowledgement ordering holds before any feature event reaches the client.
const (
	ActionRoomJoin  = "client.room.join"
	ActionRoomLeave = "client.room.leave"
)

// Registered for the side effect only: the bridge short-circuits these
// actions before the whitelist check, but the CLI still lists them.
var (
	_ = topics.Define(topics.Topic{
		Name:              ActionRoomJoin,
		Module:            "rooms",
		Description:       "Enter a project's chat or whiteboard room",
		ClientPublishable: true,
	})

	_ = topics.Define(topics.Topic{
		Name:              ActionRoomLeave,
		Module:            "rooms",
		Description:       "Leave a project's chat or whiteboard room",
		ClientPublishable: true,
	})
)

// RoomPayload selects the feature room of the envelope's project.
type RoomPayload struct {
	Feature string `json:"feature" validate:"required,oneof=chat whiteboard"`
}
