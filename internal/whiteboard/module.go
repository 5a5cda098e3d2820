package whiteboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/projecthub/internal/module"
	"github.com/nfrund/projecthub/internal/pubsub"
	"github.com/nfrund/projecthub/internal/registry"
)

// EngineKey exposes the whiteboard engine to other modules through the registry.
var EngineKey = registry.Key[*Engine]("whiteboard.engine")

// Module wires the whiteboard feature into the application.
type Module struct {
	module.BaseModule
	engine     *Engine
	subscriber pubsub.Subscriber
}

// Dependencies holds all the services that the whiteboard module requires.
type Dependencies struct {
	Store            SnapshotStore
	Broadcaster      Broadcaster
	Subscriber       pubsub.Subscriber
	AutosaveInterval time.Duration
}

// New creates a new instance of the whiteboard module, injecting its dependencies.
func New(deps Dependencies) *Module {
	return &Module{
		engine:     NewEngine(deps.Store, deps.Broadcaster, deps.AutosaveInterval),
		subscriber: deps.Subscriber,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "whiteboard"
}

// Register publishes the engine for other modules.
func (m *Module) Register(reg *registry.Registry) error {
	registry.Set(reg, EngineKey, m.engine)
	return nil
}

// Boot starts the bus subscribers and the periodic autosave loop.
func (m *Module) Boot(ctx context.Context, g *echo.Group, reg *registry.Registry) error {
	slog.Info("Booting whiteboard module")

	sub := NewSubscriber(m.subscriber, m.engine)
	if err := sub.Start(ctx); err != nil {
		return err
	}

	go m.engine.Run(ctx)
	return nil
}

// Shutdown is called on application termination.
func (m *Module) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down whiteboard module")
	return nil
}
