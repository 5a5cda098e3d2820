package domain

import "errors"

// Validation errors are rejected synchronously at the boundary of the
// triggering operation and never produce a broadcast.
var (
	// ErrEmptyMessage is returned when a chat message contains no visible text.
	ErrEmptyMessage = errors.New("chat message text is empty")

	// ErrEmptySnapshot is returned when a whiteboard save carries no elements.
	// An empty save is never allowed to overwrite a non-empty snapshot.
	ErrEmptySnapshot = errors.New("whiteboard snapshot has no elements")

	// ErrUnknownAction is returned when a client publishes an action that is
	// not registered as client-publishable.
	ErrUnknownAction = errors.New("action is not client-publishable")
)
