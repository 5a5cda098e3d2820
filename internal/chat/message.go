package chat

import "time"

// Message defines the structure for a chat message. Messages are immutable
// once created: the project's message log is append-only and nothing in the
// real-time layer ever mutates or deletes an entry.
type Message struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sentAt"`
}

// TypingNotice is the payload of a typing event. The server keeps no typing
// state; receivers expire the indicator client-side after TypingTTL with no
// renewal.
type TypingNotice struct {
	Username string `json:"username"`
}

// TypingTTL is how long a typing indicator stays visible at each observing
// client after the last typing event for that user.
const TypingTTL = 3 * time.Second
