package audit

import (
	"context"
	"time"
)

// Event is a single security-relevant outcome. Identifier is the login name
// as submitted; UserID is set only once the user is resolved.
type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	EventType  string            `json:"event_type"`
	UserID     string            `json:"user_id,omitempty"`
	Identifier string            `json:"identifier,omitempty"`
	KeyID      string            `json:"kid,omitempty"`
	IP         string            `json:"ip,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Sink receives events from the dispatcher goroutine, one at a time.
type Sink interface {
	Emit(ctx context.Context, event Event)
}
