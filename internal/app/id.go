package app

import "github.com/google/uuid"

// newSessionID produces a random session identifier.
// Isolated here so the ID strategy can evolve independently.
func newSessionID() string {
	return uuid.NewString()
}
