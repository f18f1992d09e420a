package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new time-ordered unique identifier string
func GenerateID() string {
	return uuid.Must(uuid.NewV7()).String()
}
