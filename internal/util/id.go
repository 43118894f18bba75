package util

import "github.com/google/uuid"

// NewID returns a random identifier used for request correlation.
func NewID() string {
	return uuid.NewString()
}
