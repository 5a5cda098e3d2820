// Package rooms implements the session registry and room channels for the
// real-time collaboration layer. A room is a broadcast scope keyed by project
// and feature (chat or whiteboard). Rooms are created lazily on first join
// and garbage-collected when the last member leaves.
package rooms

import (
	"fmt"
)

// Feature identifies which collaboration surface a room belongs to.
type Feature string

const (
	FeatureChat       Feature = "chat"
	FeatureWhiteboard Feature = "whiteboard"
)

// ParseFeature validates a wire-level feature string.
func ParseFeature(s string) (Feature, error) {
	switch Feature(s) {
	case FeatureChat, FeatureWhiteboard:
		return Feature(s), nil
	default:
		return "", fmt.Errorf("unknown room feature %q", s)
	}
}

// Key uniquely identifies a room.
type Key struct {
	ProjectID string
	Feature   Feature
}

func (k Key) String() string {
	return k.ProjectID + "/" + string(k.Feature)
}

// Conn is the registry's view of a connected client. The WebSocket bridge
// provides the concrete implementation; Send must never block, delivery to a
// slow or dead peer is dropped rather than stalling the fan-out.
type Conn interface {
	// ID returns the unique connection identifier.
	ID() string
	// Username returns the externally verified identity attached to the connection.
	Username() string
	// Send queues a payload for delivery. Fire-and-forget.
	Send(payload []byte)
}
