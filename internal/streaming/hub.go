package streaming

import "context"

// Event types published on the hub.
const (
	EventRegistryReloaded  = "registry.reloaded"
	EventAutomationAdded   = "automation.added"
	EventAutomationUpdated = "automation.updated"
	EventAutomationRemoved = "automation.removed"
	EventIndexRefreshed    = "index.refreshed"
	EventThemeChanged      = "theme.changed"
)

// StreamEvent is a real-time event emitted when the automation set or
// derived state changes.
type StreamEvent struct {
	AutomationID string `json:"automation_id,omitempty"`
	EventType    string `json:"event_type"`
	Payload      any    `json:"payload,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	AutomationID string   `json:"automation_id,omitempty"`
	EventTypes   []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for real-time automation events.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}
