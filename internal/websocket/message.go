package websocket

import "encoding/json"

// Server-to-client event names. The set below is the full outbound surface of
// the real-time layer.
const (
	EventPresence   = "presence"
	EventNewMessage = "newMessage"
	EventTyping     = "typing"
	EventBoardInit  = "boardInit"
	EventBoardSync  = "boardUpdate"
	EventSaveStatus = "saveStatus"
)

// Event is the envelope for every message the server sends to a client.
type Event struct {
	Event   string `json:"event"`
	Project string `json:"project,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// MarshalEvent builds the wire form of a server-to-client event.
func MarshalEvent(event, project string, payload any) ([]byte, error) {
	return json.Marshal(Event{
		Event:   event,
		Project: project,
		Payload: payload,
	})
}

// Envelope is the shape of every client-to-server message. Action names are
// bus topic names and must be registered as client-publishable.
type Envelope struct {
	Action  string          `json:"action" validate:"required"`
	Project string          `json:"project" validate:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
