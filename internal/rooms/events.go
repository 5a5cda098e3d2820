package rooms

import "github.com/nfrund/projecthub/internal/pubsub"

// Membership actions carried by MembershipChanged events.
const (
	ActionJoined = "joined"
	ActionLeft   = "left"
)

// MembershipChanged is published on the bus whenever a connection joins or
// leaves a room, including the implicit leaves performed on disconnect.
// It carries the full post-change member list so consumers never need to
// reconcile deltas.
type MembershipChanged struct {
	ProjectID string   `json:"projectId"`
	Feature   Feature  `json:"feature"`
	Action    string   `json:"action"`
	ClientID  string   `json:"clientId"`
	Username  string   `json:"username"`
	Usernames []string `json:"usernames"`
	Remaining int      `json:"remaining"`
}

// EventMembershipChanged is consumed by the presence tracker and by the
// whiteboard engine (join hydration, last-leave save).
var EventMembershipChanged = pubsub.NewEvent[MembershipChanged](
	"rooms.membership.changed",
	"Fired after a connection joins or leaves a room; carries the full member list",
)
