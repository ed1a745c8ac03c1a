package mcp

import "sync"

// WatchRegistry maps MCP session IDs to the automation they watch.
// Populated by the hassviz.watch tool; an empty automation ID means the
// session wants every event.
type WatchRegistry struct {
	mu      sync.RWMutex
	watches map[string]string // sessionID -> automationID
}

// NewWatchRegistry creates a new empty WatchRegistry.
func NewWatchRegistry() *WatchRegistry {
	return &WatchRegistry{watches: make(map[string]string)}
}

// Register associates a session with an automation. Re-registering a
// session overwrites its previous watch.
func (r *WatchRegistry) Register(sessionID, automationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watches[sessionID] = automationID
}

// SessionsFor returns the sessions interested in events for the given
// automation. Sessions watching everything always match.
func (r *WatchRegistry) SessionsFor(automationID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for sid, watched := range r.watches {
		if watched == "" || watched == automationID || automationID == "" {
			out = append(out, sid)
		}
	}
	return out
}

// Remove deletes the watch for a session. Called when a session
// disconnects or unsubscribes.
func (r *WatchRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.watches, sessionID)
}
