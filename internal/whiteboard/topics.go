package whiteboard

import (
	"encoding/json"

	"github.com/nfrund/projecthub/internal/pubsub"
)

// UpdatePayload carries the sender's full current element sequence. It is
// named a delta for its transport role only: the content is the whole scene,
// and the last update to arrive at a receiver wins wholesale.
type UpdatePayload struct {
	Elements []json.RawMessage `json:"elements"`
}

// SavePayload is an explicit save request with the full element sequence.
type SavePayload struct {
	Elements []json.RawMessage `json:"elements"`
}

var (
	// EventClientUpdate is an incremental scene broadcast from a client.
	EventClientUpdate = pubsub.NewClientEvent[UpdatePayload](
		"client.whiteboard.update",
		"Full current element sequence from an editing client; fanned out to the room",
	)

	// EventClientSave is an explicit save request from a client.
	EventClientSave = pubsub.NewClientEvent[SavePayload](
		"client.whiteboard.save",
		"Explicit request to persist the whiteboard snapshot",
	)
)
