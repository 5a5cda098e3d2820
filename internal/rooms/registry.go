package rooms

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nfrund/projecthub/internal/pubsub"
)

// room holds the member connections of one Key in insertion order. Order is
// only used for display; correctness never depends on it.
type room struct {
	members []Conn
	present map[string]struct{} // connection IDs, for idempotent joins
}

func (r *room) contains(connID string) bool {
	_, ok := r.present[connID]
	return ok
}

func (r *room) add(c Conn) {
	r.members = append(r.members, c)
	r.present[c.ID()] = struct{}{}
}

func (r *room) remove(connID string) {
	if !r.contains(connID) {
		return
	}
	delete(r.present, connID)
	for i, m := range r.members {
		if m.ID() == connID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
}

// usernames returns the de-duplicated member identities in insertion order.
// A user with two tabs open appears once.
func (r *room) usernames() []string {
	seen := make(map[string]struct{}, len(r.members))
	out := make([]string, 0, len(r.members))
	for _, m := range r.members {
		if _, ok := seen[m.Username()]; ok {
			continue
		}
		seen[m.Username()] = struct{}{}
		out = append(out, m.Username())
	}
	return out
}

// Registry maps (project, feature) pairs to their connected participants and
// tracks which rooms each connection has joined. It is owned by the serving
// process and passed to the components that need it; there is no package
// level instance.
type Registry struct {
	mu        sync.RWMutex
	rooms     map[Key]*room
	conns     map[string]Conn
	joined    map[string]map[Key]struct{}
	publisher pubsub.Publisher
	logger    *slog.Logger
}

// NewRegistry creates an empty session registry. Membership changes are
// announced on the given publisher.
func NewRegistry(publisher pubsub.Publisher) *Registry {
	return &Registry{
		rooms:     make(map[Key]*room),
		conns:     make(map[string]Conn),
		joined:    make(map[string]map[Key]struct{}),
		publisher: publisher,
		logger:    slog.Default().With("service", "rooms"),
	}
}

// Register makes a connection known to the registry. It must be called before
// the connection joins any room.
func (g *Registry) Register(c Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.conns[c.ID()] = c
	if g.joined[c.ID()] == nil {
		g.joined[c.ID()] = make(map[Key]struct{})
	}
}

// Find returns a registered connection by ID.
func (g *Registry) Find(connID string) (Conn, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.conns[connID]
	return c, ok
}

// Join adds the connection to the room for (projectID, feature), creating the
// room if needed. Re-joining is an idempotent no-op and fires no event.
func (g *Registry) Join(c Conn, projectID string, feature Feature) {
	key := Key{ProjectID: projectID, Feature: feature}

	g.mu.Lock()
	if g.conns[c.ID()] == nil {
		g.conns[c.ID()] = c
	}
	if g.joined[c.ID()] == nil {
		g.joined[c.ID()] = make(map[Key]struct{})
	}

	rm := g.rooms[key]
	if rm == nil {
		rm = &room{present: make(map[string]struct{})}
		g.rooms[key] = rm
	}
	if rm.contains(c.ID()) {
		g.mu.Unlock()
		return
	}
	rm.add(c)
	g.joined[c.ID()][key] = struct{}{}
	event := MembershipChanged{
		ProjectID: projectID,
		Feature:   feature,
		Action:    ActionJoined,
		ClientID:  c.ID(),
		Username:  c.Username(),
		Usernames: rm.usernames(),
		Remaining: len(rm.members),
	}
	g.mu.Unlock()

	g.logger.Debug("connection joined room", "room", key.String(), "clientID", c.ID(), "members", event.Remaining)
	g.announce(event)
}

// Leave removes the connection from the room. Leaving a room the connection
// is not a member of is a no-op. The room is deleted once empty.
func (g *Registry) Leave(c Conn, projectID string, feature Feature) {
	key := Key{ProjectID: projectID, Feature: feature}

	g.mu.Lock()
	rm := g.rooms[key]
	if rm == nil || !rm.contains(c.ID()) {
		g.mu.Unlock()
		return
	}
	rm.remove(c.ID())
	delete(g.joined[c.ID()], key)
	if len(rm.members) == 0 {
		delete(g.rooms, key)
	}
	event := MembershipChanged{
		ProjectID: projectID,
		Feature:   feature,
		Action:    ActionLeft,
		ClientID:  c.ID(),
		Username:  c.Username(),
		Usernames: rm.usernames(),
		Remaining: len(rm.members),
	}
	g.mu.Unlock()

	g.logger.Debug("connection left room", "room", key.String(), "clientID", c.ID(), "members", event.Remaining)
	g.announce(event)
}

// Disconnect removes the connection from every room it belongs to, exactly as
// if Leave had been called for each, so observers still receive membership
// events. Membership is pruned synchronously, never lazily.
func (g *Registry) Disconnect(c Conn) {
	g.mu.RLock()
	keys := make([]Key, 0, len(g.joined[c.ID()]))
	for key := range g.joined[c.ID()] {
		keys = append(keys, key)
	}
	g.mu.RUnlock()

	for _, key := range keys {
		g.Leave(c, key.ProjectID, key.Feature)
	}

	g.mu.Lock()
	delete(g.conns, c.ID())
	delete(g.joined, c.ID())
	g.mu.Unlock()
}

// Publish delivers the payload to every member of the room except the
// connection identified by excludeConnID (empty string excludes nobody).
// Deliveries are independent and non-blocking; a room with no remaining
// members is a no-op, not an error. Returns the number of deliveries queued.
func (g *Registry) Publish(key Key, payload []byte, excludeConnID string) int {
	g.mu.RLock()
	rm := g.rooms[key]
	var targets []Conn
	if rm != nil {
		targets = make([]Conn, 0, len(rm.members))
		for _, m := range rm.members {
			if m.ID() == excludeConnID {
				continue
			}
			targets = append(targets, m)
		}
	}
	g.mu.RUnlock()

	for _, t := range targets {
		t.Send(payload)
	}
	return len(targets)
}

// Usernames returns the de-duplicated member list of a room in join order.
func (g *Registry) Usernames(key Key) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rm := g.rooms[key]
	if rm == nil {
		return nil
	}
	return rm.usernames()
}

// Members returns the number of member connections in a room.
func (g *Registry) Members(key Key) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rm := g.rooms[key]
	if rm == nil {
		return 0
	}
	return len(rm.members)
}

// Rooms returns the keys of every room the connection has joined.
func (g *Registry) Rooms(connID string) []Key {
	g.mu.RLock()
	defer g.mu.RUnlock()

	keys := make([]Key, 0, len(g.joined[connID]))
	for key := range g.joined[connID] {
		keys = append(keys, key)
	}
	return keys
}

func (g *Registry) announce(event MembershipChanged) {
	if g.publisher == nil {
		return
	}
	if err := pubsub.Publish(context.Background(), g.publisher, EventMembershipChanged, event); err != nil {
		g.logger.Error("failed to publish membership change", "room", event.ProjectID+"/"+string(event.Feature), "error", err)
	}
}
