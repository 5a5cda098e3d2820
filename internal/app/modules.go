// Package app assembles the application's feature modules from their shared
// core services. It is the single source of truth for which features are
// enabled.
package app

import (
	"time"

	"github.com/nfrund/projecthub/internal/chat"
	"github.com/nfrund/projecthub/internal/module"
	"github.com/nfrund/projecthub/internal/pubsub"
	"github.com/nfrund/projecthub/internal/rooms"
	"github.com/nfrund/projecthub/internal/whiteboard"
)

// Dependencies holds the core services that are required by the application's
// modules. This struct is passed from the serving process to wire up the
// modules.
type Dependencies struct {
	Publisher        pubsub.Publisher
	Subscriber       pubsub.Subscriber
	Rooms            *rooms.Registry
	ChatStore        chat.MessageStore
	SnapshotStore    whiteboard.SnapshotStore
	AutosaveInterval time.Duration
}

// NewModules creates and returns the list of all active modules for the
// application.
func NewModules(deps Dependencies) []module.Module {
	return []module.Module{
		// Add new application modules here.
		chat.New(chat.Dependencies{
			Store:       deps.ChatStore,
			Broadcaster: deps.Rooms,
			Subscriber:  deps.Subscriber,
		}),
		whiteboard.New(whiteboard.Dependencies{
			Store:            deps.SnapshotStore,
			Broadcaster:      deps.Rooms,
			Subscriber:       deps.Subscriber,
			AutosaveInterval: deps.AutosaveInterval,
		}),
	}
}
