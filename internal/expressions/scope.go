package expressions

import (
	"sync"

	"github.com/hassviz/hassviz/pkg/schema"
)

// Scope assembles the evaluation data for expression engines. It mirrors
// the variables exposed to template expressions: entity states and
// attributes, the automation's own metadata, user variables and the
// simulated trigger. Values are frozen on insert; Data returns a deep copy
// so no evaluation can mutate the scope.
type Scope struct {
	mu         sync.RWMutex
	states     map[string]any
	attributes map[string]any
	automation map[string]any
	variables  map[string]any
	trigger    map[string]any
}

// NewScope creates an empty Scope.
func NewScope() *Scope {
	return &Scope{
		states:     make(map[string]any),
		attributes: make(map[string]any),
		variables:  make(map[string]any),
	}
}

// SetState records an entity's state and attributes.
func (s *Scope) SetState(entityID, state string, attributes map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[entityID] = state
	if attributes != nil {
		s.attributes[entityID] = deepCopyMap(attributes)
	}
}

// SetVariable records one user variable.
func (s *Scope) SetVariable(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variables[name] = deepCopyAny(value)
}

// SetTrigger records the simulated firing trigger.
func (s *Scope) SetTrigger(trigger map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trigger = deepCopyMap(trigger)
}

// ForAutomation attaches the automation's metadata and declared variables.
func (s *Scope) ForAutomation(a *schema.Automation) *Scope {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.automation = map[string]any{
		"id":          a.ID,
		"alias":       a.Alias,
		"description": a.Description,
	}
	if vars, ok := a.Config["variables"].(map[string]any); ok {
		for name, value := range vars {
			s.variables[name] = deepCopyAny(value)
		}
	}
	return s
}

// Data returns a snapshot suitable for Engine.Evaluate. The snapshot is
// deep-copied and safe for concurrent use.
func (s *Scope) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]any{
		"states":     deepCopyMap(s.states),
		"attributes": deepCopyMap(s.attributes),
		"automation": deepCopyMap(s.automation),
		"variables":  deepCopyMap(s.variables),
		"trigger":    deepCopyMap(s.trigger),
	}
}

// deepCopyMap creates a deep copy of a map[string]any.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = deepCopyAny(v)
	}
	return cp
}

// deepCopyAny recursively deep-copies a value.
// Handles maps, slices, and primitives (which are inherently immutable).
func deepCopyAny(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cp := make([]any, len(val))
		for i, item := range val {
			cp[i] = deepCopyAny(item)
		}
		return cp
	default:
		return v
	}
}
