package entity

import (
	"time"
)

// IdempotencyKey stores the response of a processed request so retries replay it
type IdempotencyKey struct {
	Key          string    `json:"key"`
	SessionID    string    `json:"session_id"`
	Endpoint     string    `json:"endpoint"`
	ResponseCode int       `json:"response_code"`
	ResponseBody string    `json:"response_body"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IsExpired checks if the idempotency key has expired
func (i *IdempotencyKey) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}
