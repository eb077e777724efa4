package events

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// StreamEvents holds all published platform events.
const StreamEvents = "PROMPTFORGE_EVENTS"

// Subject constants.
const (
	SubjectGenerationEvent = "promptforge.events.generation"
	SubjectAuditEvent      = "promptforge.events.audit"
)

// GenerationEvent is published after each enhancement attempt, whether
// the model call succeeded or fell back to a template.
type GenerationEvent struct {
	RequestID  string    `json:"request_id"`
	UserID     uuid.UUID `json:"user_id,omitempty"`
	Guest      bool      `json:"guest"`
	PromptType string    `json:"prompt_type"`
	Complexity string    `json:"complexity"`
	Fallback   bool      `json:"fallback"`
	Score      float64   `json:"score"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// AuditEvent is published for compliance/audit logging.
type AuditEvent struct {
	UserID       uuid.UUID `json:"user_id"`
	EventType    string    `json:"event_type"`
	Severity     string    `json:"severity"` // info, warn, error
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Details      string    `json:"details"`
	Timestamp    time.Time `json:"timestamp"`
}
