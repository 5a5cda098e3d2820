// Package topics provides a central registry of every topic that flows over
// the pub/sub bus. Topics are defined once, at package init time, next to the
// code that owns them. The registry doubles as the whitelist of actions a
// WebSocket client is allowed to publish: an inbound action that is not
// registered as client-publishable is rejected before it reaches the bus.
package topics

import (
	"fmt"
	"sort"
	"sync"
)

// Topic describes a single bus topic.
type Topic struct {
	// Name is the topic string used on the bus, e.g. "client.chat.message.new".
	Name string
	// Module is the owning module, derived from the name prefix when empty.
	Module string
	// Description documents the topic for the inspection CLI.
	Description string
	// ClientPublishable marks topics that WebSocket clients may publish as
	// actions. Server-internal topics leave this false.
	ClientPublishable bool
}

// Registry holds registered topics. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]Topic
}

// NewRegistry creates an empty topic registry.
func NewRegistry() *Registry {
	return &Registry{topics: make(map[string]Topic)}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry that package-level topic
// definitions register into.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a topic to the registry. Registering the same name twice is
// an error; topics are meant to be defined exactly once.
func (r *Registry) Register(t Topic) error {
	if t.Name == "" {
		return fmt.Errorf("topic name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.topics[t.Name]; exists {
		return fmt.Errorf("topic %q already registered", t.Name)
	}
	r.topics[t.Name] = t
	return nil
}

// MustRegister registers a topic and panics on error. Topic definitions run
// at init time, so a failure here is a configuration bug that should stop
// startup.
func (r *Registry) MustRegister(t Topic) Topic {
	if err := r.Register(t); err != nil {
		panic(err)
	}
	return t
}

// Get looks up a topic by name.
func (r *Registry) Get(name string) (Topic, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.topics[name]
	return t, ok
}

// IsClientAction reports whether the named topic may be published by a
// WebSocket client.
func (r *Registry) IsClientAction(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.topics[name]
	return ok && t.ClientPublishable
}

// List returns all registered topics sorted by name.
func (r *Registry) List() []Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Topic, 0, len(r.topics))
	for _, t := range r.topics {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Define registers a topic with the default registry and returns it.
func Define(t Topic) Topic {
	return defaultRegistry.MustRegister(t)
}
