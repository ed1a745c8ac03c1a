package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTriggerLabel(t *testing.T) {
	tests := []struct {
		name    string
		trigger map[string]any
		want    string
	}{
		{
			name:    "state with to",
			trigger: map[string]any{"platform": "state", "entity_id": "binary_sensor.motion", "to": "on"},
			want:    "State: binary_sensor.motion → on",
		},
		{
			name:    "state without to",
			trigger: map[string]any{"platform": "state", "entity_id": "binary_sensor.motion"},
			want:    "State: binary_sensor.motion",
		},
		{
			name: "state with entity list",
			trigger: map[string]any{
				"platform":  "state",
				"entity_id": []any{"light.a", "light.b"},
				"to":        "off",
			},
			want: "State: light.a, light.b → off",
		},
		{
			name:    "state with from and to",
			trigger: map[string]any{"platform": "state", "entity_id": "lock.door", "from": "locked", "to": "unlocked"},
			want:    "State: lock.door locked → unlocked",
		},
		{
			name:    "time",
			trigger: map[string]any{"platform": "time", "at": "10:00:00"},
			want:    "Time: 10:00:00",
		},
		{
			name:    "time without at",
			trigger: map[string]any{"platform": "time"},
			want:    "Time trigger",
		},
		{
			name:    "sun",
			trigger: map[string]any{"platform": "sun", "event": "sunset"},
			want:    "Sun: sunset",
		},
		{
			name:    "sun with offset",
			trigger: map[string]any{"platform": "sun", "event": "sunrise", "offset": "-00:30:00"},
			want:    "Sun: sunrise -00:30:00",
		},
		{
			name:    "numeric state above",
			trigger: map[string]any{"platform": "numeric_state", "entity_id": "sensor.temp", "above": 25},
			want:    "Numeric State: sensor.temp > 25",
		},
		{
			name:    "numeric state both bounds",
			trigger: map[string]any{"platform": "numeric_state", "entity_id": "sensor.temp", "above": 20, "below": 30},
			want:    "Numeric State: sensor.temp > 20, < 30",
		},
		{
			name:    "template",
			trigger: map[string]any{"platform": "template", "value_template": "{{ true }}"},
			want:    "Template trigger",
		},
		{
			name:    "event",
			trigger: map[string]any{"platform": "event", "event_type": "custom_event"},
			want:    "Event: custom_event",
		},
		{
			name:    "mqtt",
			trigger: map[string]any{"platform": "mqtt", "topic": "home/doorbell"},
			want:    "MQTT: home/doorbell",
		},
		{
			name:    "webhook",
			trigger: map[string]any{"platform": "webhook", "webhook_id": "abc123"},
			want:    "Webhook: abc123",
		},
		{
			name:    "unknown platform",
			trigger: map[string]any{"platform": "geo_location"},
			want:    "geo_location trigger",
		},
		{
			name:    "missing platform",
			trigger: map[string]any{"entity_id": "light.a"},
			want:    "Unknown trigger",
		},
		{
			name:    "modern trigger key",
			trigger: map[string]any{"trigger": "state", "entity_id": "switch.fan", "to": "on"},
			want:    "State: switch.fan → on",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TriggerLabel(tt.trigger))
		})
	}
}

func TestConditionLabel(t *testing.T) {
	tests := []struct {
		name      string
		condition map[string]any
		want      string
	}{
		{
			name:      "state",
			condition: map[string]any{"condition": "state", "entity_id": "sun.sun", "state": "below_horizon"},
			want:      "State: sun.sun == below_horizon",
		},
		{
			name:      "numeric state",
			condition: map[string]any{"condition": "numeric_state", "entity_id": "sensor.temp", "below": 18},
			want:      "Numeric State: sensor.temp < 18",
		},
		{
			name:      "sun after only",
			condition: map[string]any{"condition": "sun", "after": "sunset"},
			want:      "Sun: after sunset",
		},
		{
			name:      "time both bounds",
			condition: map[string]any{"condition": "time", "after": "08:00", "before": "22:00"},
			want:      "Time: after 08:00, before 22:00",
		},
		{
			name:      "template",
			condition: map[string]any{"condition": "template", "value_template": "{{ x }}"},
			want:      "Template condition",
		},
		{
			name: "and composite",
			condition: map[string]any{
				"condition":  "and",
				"conditions": []any{map[string]any{}, map[string]any{}, map[string]any{}},
			},
			want: "AND (3 conditions)",
		},
		{
			name: "or composite",
			condition: map[string]any{
				"condition":  "or",
				"conditions": []any{map[string]any{}, map[string]any{}},
			},
			want: "OR (2 conditions)",
		},
		{
			name: "not composite single",
			condition: map[string]any{
				"condition":  "not",
				"conditions": []any{map[string]any{}},
			},
			want: "NOT (1 condition)",
		},
		{
			name:      "unknown type",
			condition: map[string]any{"condition": "device"},
			want:      "device condition",
		},
		{
			name:      "missing type",
			condition: map[string]any{"entity_id": "light.a"},
			want:      "Unknown condition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConditionLabel(tt.condition))
		})
	}
}

func TestActionLabel(t *testing.T) {
	tests := []struct {
		name   string
		action map[string]any
		want   string
	}{
		{
			name:   "service call",
			action: map[string]any{"service": "light.turn_on"},
			want:   "Service: light.turn_on",
		},
		{
			name:   "modern action key",
			action: map[string]any{"action": "light.turn_off"},
			want:   "Service: light.turn_off",
		},
		{
			name:   "delay seconds int",
			action: map[string]any{"delay": 30},
			want:   "Delay: 30 seconds",
		},
		{
			name:   "delay minutes dict",
			action: map[string]any{"delay": map[string]any{"minutes": 5}},
			want:   "Delay: 5 minutes",
		},
		{
			name:   "delay mixed dict",
			action: map[string]any{"delay": map[string]any{"hours": 1, "seconds": 10}},
			want:   "Delay: 1 hour 10 seconds",
		},
		{
			name:   "delay string",
			action: map[string]any{"delay": "00:05:00"},
			want:   "Delay: 00:05:00",
		},
		{
			name:   "choose",
			action: map[string]any{"choose": []any{map[string]any{}, map[string]any{}}},
			want:   "Choose (2 options)",
		},
		{
			name:   "if",
			action: map[string]any{"if": []any{}, "then": []any{}},
			want:   "If-Then",
		},
		{
			name:   "parallel",
			action: map[string]any{"parallel": []any{[]any{}, []any{}, []any{}}},
			want:   "Parallel (3 actions)",
		},
		{
			name:   "repeat plain",
			action: map[string]any{"repeat": map[string]any{"sequence": []any{}}},
			want:   "Repeat",
		},
		{
			name:   "repeat count",
			action: map[string]any{"repeat": map[string]any{"count": 5, "sequence": []any{}}},
			want:   "Repeat 5x",
		},
		{
			name:   "repeat while",
			action: map[string]any{"repeat": map[string]any{"while": []any{}, "sequence": []any{}}},
			want:   "Repeat while...",
		},
		{
			name:   "scene",
			action: map[string]any{"scene": "scene.movie_night"},
			want:   "Activate Scene: scene.movie_night",
		},
		{
			name:   "fire event",
			action: map[string]any{"event": "party_mode"},
			want:   "Fire event: party_mode",
		},
		{
			name:   "stop",
			action: map[string]any{"stop": "done early"},
			want:   "Stop: done early",
		},
		{
			name:   "unknown action",
			action: map[string]any{"frobnicate": true},
			want:   "Unknown action",
		},
		{
			name:   "empty action",
			action: map[string]any{},
			want:   "Unknown action",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ActionLabel(tt.action))
		})
	}
}

func TestSummarizeConditions(t *testing.T) {
	assert.Equal(t, "condition", summarizeConditions(nil))
	assert.Equal(t, "3 conditions", summarizeConditions([]any{1, 2, 3}))
	assert.Equal(t, "sensor.temp > 20",
		summarizeConditions([]any{map[string]any{"condition": "numeric_state", "entity_id": "sensor.temp", "above": 20}}))
	assert.Equal(t, "light.a = on",
		summarizeConditions([]any{map[string]any{"condition": "state", "entity_id": "light.a", "state": "on"}}))
	assert.Equal(t, "any of 2",
		summarizeConditions([]any{map[string]any{"condition": "or", "conditions": []any{1, 2}}}))
}
