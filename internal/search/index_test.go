package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hassviz/hassviz/pkg/schema"
)

func sampleAutomations() []schema.Automation {
	return []schema.Automation{
		{
			ID:    "motion_light",
			Alias: "Motion Light",
			Config: map[string]any{
				"id":    "motion_light",
				"alias": "Motion Light",
				"trigger": []any{
					map[string]any{"platform": "state", "entity_id": "binary_sensor.hallway_motion", "to": "on"},
				},
				"action": []any{
					map[string]any{"service": "light.turn_on", "target": map[string]any{"entity_id": "light.hallway"}},
				},
			},
		},
		{
			ID:    "night_thermostat",
			Alias: "Night Thermostat",
			Config: map[string]any{
				"id":    "night_thermostat",
				"alias": "Night Thermostat",
				"trigger": []any{
					map[string]any{"platform": "time", "at": "22:30:00"},
				},
				"action": []any{
					map[string]any{"service": "climate.set_temperature", "entity_id": "climate.bedroom"},
				},
			},
		},
	}
}

func buildIndex(t *testing.T) *Index {
	t.Helper()
	ix := NewIndex(nil)
	require.NoError(t, ix.Build(context.Background(), sampleAutomations()))
	return ix
}

func TestSearchByAlias(t *testing.T) {
	ix := buildIndex(t)

	results := ix.Search("motion light", 10)
	require.NotEmpty(t, results)
	assert.Equal(t, "motion_light", results[0].AutomationID)
}

func TestSearchByEntity(t *testing.T) {
	ix := buildIndex(t)

	results := ix.Search("climate.bedroom", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "night_thermostat", results[0].AutomationID)
}

func TestSearchPrefixMatch(t *testing.T) {
	ix := buildIndex(t)

	results := ix.Search("therm", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "night_thermostat", results[0].AutomationID)
}

func TestSearchRequiresAllTerms(t *testing.T) {
	ix := buildIndex(t)

	assert.Empty(t, ix.Search("motion submarine", 10))
}

func TestSearchEmptyQuery(t *testing.T) {
	ix := buildIndex(t)
	assert.Nil(t, ix.Search("   ", 10))
}

func TestSearchLimit(t *testing.T) {
	ix := buildIndex(t)

	// Both automations have a trigger platform token indexed via labels.
	results := ix.Search("trigger", 1)
	assert.LessOrEqual(t, len(results), 1)
}

func TestSuggest(t *testing.T) {
	ix := buildIndex(t)

	suggestions := ix.Suggest("ther", 10)
	assert.Contains(t, suggestions, "thermostat")

	assert.Nil(t, ix.Suggest("", 10))
}

func TestOptions(t *testing.T) {
	ix := buildIndex(t)

	opts := ix.Options()
	assert.Contains(t, opts.Entities, "binary_sensor.hallway_motion")
	assert.Contains(t, opts.Entities, "light.hallway")
	assert.Contains(t, opts.Entities, "climate.bedroom")
	assert.Contains(t, opts.Services, "light.turn_on")
	assert.Contains(t, opts.Services, "climate.set_temperature")
	assert.ElementsMatch(t, []string{"state", "time"}, opts.Platforms)
}

func TestByEntity(t *testing.T) {
	ix := buildIndex(t)

	assert.Equal(t, []string{"motion_light"}, ix.ByEntity("light.hallway"))
	assert.Empty(t, ix.ByEntity("light.unknown"))
}

func TestBuildReplacesIndex(t *testing.T) {
	ix := buildIndex(t)
	first := ix.BuiltAt()
	assert.WithinDuration(t, time.Now(), first, time.Minute)

	require.NoError(t, ix.Build(context.Background(), nil))
	assert.Empty(t, ix.Search("motion", 10))
	assert.False(t, ix.BuiltAt().Before(first))
}

func TestBuildCancelledContext(t *testing.T) {
	ix := NewIndex(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, ix.Build(ctx, sampleAutomations()), context.Canceled)
}

func TestExtractReferencesNested(t *testing.T) {
	refs := ExtractReferences(map[string]any{
		"action": []any{
			map[string]any{
				"choose": []any{
					map[string]any{
						"conditions": []any{
							map[string]any{"condition": "state", "entity_id": []any{"light.a", "light.b"}},
						},
						"sequence": []any{
							map[string]any{"service": "notify.mobile_app"},
						},
					},
				},
			},
		},
	})

	assert.ElementsMatch(t, []string{"light.a", "light.b"}, refs.Entities)
	assert.Equal(t, []string{"notify.mobile_app"}, refs.Services)
}
