package reconnect

import (
	"sort"
	"sync"
	"time"

	"github.com/nfrund/projecthub/internal/chat"
)

// TypingIndicators is the client-side countdown behind "X is typing...".
// The server never tracks typing state; each receiver expires an indicator
// locally once no renewal arrives within the TTL.
type TypingIndicators struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
	ttl      time.Duration
}

// NewTypingIndicators creates an empty indicator set with the standard TTL.
func NewTypingIndicators() *TypingIndicators {
	return &TypingIndicators{
		lastSeen: make(map[string]time.Time),
		ttl:      chat.TypingTTL,
	}
}

// Touch records a typing event from the username, restarting its countdown.
func (ti *TypingIndicators) Touch(username string, now time.Time) {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	ti.lastSeen[username] = now
}

// Active returns the usernames whose indicator has not expired, sorted for
// stable display. Expired entries are pruned as a side effect.
func (ti *TypingIndicators) Active(now time.Time) []string {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	out := make([]string, 0, len(ti.lastSeen))
	for username, seen := range ti.lastSeen {
		if now.Sub(seen) >= ti.ttl {
			delete(ti.lastSeen, username)
			continue
		}
		out = append(out, username)
	}
	sort.Strings(out)
	return out
}
