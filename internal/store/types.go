package store

import "time"

// Theme is a named color palette for graph rendering. Colors is keyed by
// node kind (trigger, condition, action, metadata).
type Theme struct {
	Name      string            `json:"name"`
	Colors    map[string]string `json:"colors"`
	IsDefault bool              `json:"is_default"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Annotation is a user note attached to an automation, or to one node of
// its graph when NodeID is set.
type Annotation struct {
	AutomationID string    `json:"automation_id"`
	NodeID       string    `json:"node_id,omitempty"`
	Body         string    `json:"body"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RenderRecord is one entry of the append-only render log. Sequence is
// monotonic per automation.
type RenderRecord struct {
	ID           int64     `json:"id"`
	AutomationID string    `json:"automation_id"`
	Sequence     int64     `json:"sequence"`
	Format       string    `json:"format"`
	NodeCount    int       `json:"node_count"`
	EdgeCount    int       `json:"edge_count"`
	DurationMs   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RenderFilter narrows render log queries. Zero values mean no constraint.
type RenderFilter struct {
	AutomationID string
	Format       string
	Since        time.Time
	Limit        int
}
