package validation

import (
	"testing"

	"github.com/hassviz/hassviz/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *AutomationValidator {
	t.Helper()
	v, err := NewAutomationValidator()
	require.NoError(t, err)
	return v
}

func validConfig() map[string]any {
	return map[string]any{
		"id":    "morning_lights",
		"alias": "Morning Lights",
		"trigger": []any{
			map[string]any{"platform": "time", "at": "07:00:00"},
		},
		"action": []any{
			map[string]any{"service": "light.turn_on"},
		},
	}
}

func TestValidateValidConfig(t *testing.T) {
	v := newValidator(t)

	result := v.Validate(validConfig())
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestValidateRejectsNonMapping(t *testing.T) {
	v := newValidator(t)

	for _, config := range []any{nil, "just a string", []any{1, 2}} {
		result := v.Validate(config)
		assert.False(t, result.Valid(), "config %v should be rejected", config)
	}
}

func TestValidateStructuralErrors(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name   string
		config map[string]any
	}{
		{
			name:   "alias not a string",
			config: map[string]any{"alias": 42},
		},
		{
			name:   "mode not in enum",
			config: map[string]any{"mode": "sideways"},
		},
		{
			name:   "trigger section is a number",
			config: map[string]any{"trigger": 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.config)
			assert.False(t, result.Valid())
			require.NotEmpty(t, result.Errors)
			assert.Equal(t, "structural", result.Errors[0].Code)
		})
	}
}

func TestValidateAllowsUnknownKeys(t *testing.T) {
	v := newValidator(t)

	config := validConfig()
	config["custom_extension"] = map[string]any{"anything": true}

	assert.True(t, v.Validate(config).Valid())
}

func TestValidateAllowsShorthandSections(t *testing.T) {
	v := newValidator(t)

	// A bare mapping where a list is expected, and a template string as
	// the whole condition section.
	config := map[string]any{
		"trigger":   map[string]any{"platform": "state", "entity_id": "light.a"},
		"condition": "{{ states('sun.sun') == 'below_horizon' }}",
		"action":    []any{map[string]any{"service": "light.turn_on"}},
	}

	assert.True(t, v.Validate(config).Valid())
}

func TestValidateWarnsOnEmptySections(t *testing.T) {
	v := newValidator(t)

	result := v.Validate(map[string]any{"alias": "Inert"})
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 2)
	assert.Equal(t, "empty_section", result.Warnings[0].Code)
	assert.Equal(t, "/trigger", result.Warnings[0].Path)
	assert.Equal(t, "/action", result.Warnings[1].Path)
}

func TestValidateWarnsOnChooseOptionWithoutSequence(t *testing.T) {
	v := newValidator(t)

	config := validConfig()
	config["action"] = []any{
		map[string]any{
			"choose": []any{
				map[string]any{
					"conditions": []any{map[string]any{"condition": "state"}},
				},
			},
		},
	}

	result := v.Validate(config)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "empty_branch", result.Warnings[0].Code)
	assert.Equal(t, "/action/0/choose/0", result.Warnings[0].Path)
}

func TestValidateDepthLimit(t *testing.T) {
	v := newValidator(t)

	// Build an if/then chain deeper than the parser allows.
	inner := []any{map[string]any{"service": "light.turn_on"}}
	for i := 0; i < 40; i++ {
		inner = []any{map[string]any{"if": []any{}, "then": inner}}
	}

	config := validConfig()
	config["action"] = inner

	result := v.Validate(config)
	assert.False(t, result.Valid())
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "depth_exceeded", result.Errors[0].Code)
}

func TestValidateBatchDuplicateIDs(t *testing.T) {
	v := newValidator(t)

	automations := []schema.Automation{
		{ID: "a1", Config: validConfig()},
		{ID: "a1", Config: validConfig()},
		{ID: "a2", Config: validConfig()},
	}

	result := v.ValidateBatch(automations)
	assert.False(t, result.Valid())
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "duplicate_id", result.Errors[0].Code)
	assert.Equal(t, "/1", result.Errors[0].Path)
}

func TestValidateBatchPrefixesPaths(t *testing.T) {
	v := newValidator(t)

	automations := []schema.Automation{
		{ID: "a1", Config: validConfig()},
		{ID: "a2", Config: map[string]any{"alias": "Inert"}},
	}

	result := v.ValidateBatch(automations)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 2)
	assert.Equal(t, "/1/trigger", result.Warnings[0].Path)
}
