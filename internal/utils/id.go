package utils

import "github.com/google/uuid"

// NewID returns a random unique identifier for sessions and guests.
func NewID() string {
	return uuid.NewString()
}
