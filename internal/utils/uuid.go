package utils

import (
	"github.com/google/uuid"
)

// GenerateUUID returns a new time-ordered UUID v7
func GenerateUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewRunID returns a UUID v7 for log correlation, falling back to v4 when the
// clock source fails.
func NewRunID() string {
	if id, err := GenerateUUID(); err == nil {
		return id
	}
	return uuid.NewString()
}
