package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewSessionID returns a random session identifier
func NewSessionID() string {
	return uuid.NewString()
}

// NewRequestID returns a short id used to correlate log lines of one request
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
