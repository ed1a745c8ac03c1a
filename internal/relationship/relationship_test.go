package relationship

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hassviz/hassviz/pkg/schema"
)

// automation builds a config triggering on one entity and acting on another.
func chainLink(id, triggerEntity, actionEntity string) schema.Automation {
	return schema.Automation{
		ID: id,
		Config: map[string]any{
			"id": id,
			"trigger": []any{
				map[string]any{"platform": "state", "entity_id": triggerEntity, "to": "on"},
			},
			"action": []any{
				map[string]any{"service": "switch.turn_on", "entity_id": actionEntity},
			},
		},
	}
}

func TestBuildEntityUsage(t *testing.T) {
	a := NewAnalyzer(nil)

	g := a.Build([]schema.Automation{
		{
			ID: "auto_1",
			Config: map[string]any{
				"trigger": []any{
					map[string]any{"platform": "state", "entity_id": "binary_sensor.motion"},
				},
				"condition": []any{
					map[string]any{"condition": "state", "entity_id": "sun.sun", "state": "below_horizon"},
				},
				"action": []any{
					map[string]any{"service": "light.turn_on", "entity_id": "light.hall"},
				},
			},
		},
	})

	assert.Equal(t, []string{"auto_1"}, g.EntityUsage["binary_sensor.motion"].TriggeredBy)
	assert.Equal(t, []string{"auto_1"}, g.EntityUsage["sun.sun"].CheckedBy)
	assert.Equal(t, []string{"auto_1"}, g.EntityUsage["light.hall"].ActedOnBy)
	assert.Equal(t, "binary_sensor", g.EntityUsage["binary_sensor.motion"].Domain)
	assert.Equal(t, "light", g.EntityUsage["light.hall"].Domain)
	assert.Empty(t, g.Dependencies)
}

func TestBuildDependencies(t *testing.T) {
	a := NewAnalyzer(nil)

	g := a.Build([]schema.Automation{
		chainLink("a", "switch.start", "switch.middle"),
		chainLink("b", "switch.middle", "switch.end"),
	})

	require.Len(t, g.Dependencies, 1)
	assert.Equal(t, Dependency{From: "a", To: "b", Entity: "switch.middle"}, g.Dependencies[0])
}

func TestBuildIgnoresSelfDependency(t *testing.T) {
	a := NewAnalyzer(nil)

	g := a.Build([]schema.Automation{
		chainLink("loop", "switch.x", "switch.x"),
	})
	assert.Empty(t, g.Dependencies)
}

func TestImpactAndUpstream(t *testing.T) {
	a := NewAnalyzer(nil)

	g := a.Build([]schema.Automation{
		chainLink("a", "switch.s1", "switch.s2"),
		chainLink("b", "switch.s2", "switch.s3"),
		chainLink("c", "switch.s3", "switch.s4"),
		chainLink("d", "switch.other", "switch.elsewhere"),
	})

	assert.Equal(t, []string{"b", "c"}, g.Impact("a"))
	assert.Equal(t, []string{"c"}, g.Impact("b"))
	assert.Empty(t, g.Impact("c"))
	assert.Empty(t, g.Impact("d"))

	assert.Equal(t, []string{"a", "b"}, g.Upstream("c"))
	assert.Empty(t, g.Upstream("a"))
}

func TestChains(t *testing.T) {
	a := NewAnalyzer(nil)

	g := a.Build([]schema.Automation{
		chainLink("a", "switch.s1", "switch.s2"),
		chainLink("b", "switch.s2", "switch.s3"),
		chainLink("c", "switch.s3", "switch.s4"),
	})

	chains := g.Chains()
	require.Len(t, chains, 1)
	assert.Equal(t, []string{"a", "b", "c"}, chains[0])
}

func TestCycles(t *testing.T) {
	a := NewAnalyzer(nil)

	g := a.Build([]schema.Automation{
		chainLink("a", "switch.s1", "switch.s2"),
		chainLink("b", "switch.s2", "switch.s1"),
		chainLink("c", "switch.unrelated", "switch.nowhere"),
	})

	cycles := g.Cycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b"}, cycles[0])
}

func TestNoCycles(t *testing.T) {
	a := NewAnalyzer(nil)

	g := a.Build([]schema.Automation{
		chainLink("a", "switch.s1", "switch.s2"),
		chainLink("b", "switch.s2", "switch.s3"),
	})
	assert.Empty(t, g.Cycles())
}

func TestEntitiesInNestedActions(t *testing.T) {
	a := NewAnalyzer(nil)

	g := a.Build([]schema.Automation{
		{
			ID: "nested",
			Config: map[string]any{
				"trigger": []any{
					map[string]any{"platform": "state", "entity_id": "binary_sensor.door"},
				},
				"action": []any{
					map[string]any{
						"if":   []any{map[string]any{"condition": "state", "entity_id": "sun.sun"}},
						"then": []any{map[string]any{"service": "light.turn_on", "entity_id": "light.porch"}},
					},
				},
			},
		},
	})

	assert.Equal(t, []string{"nested"}, g.EntityUsage["light.porch"].ActedOnBy)
}
