package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hassviz/hassviz/pkg/schema"
)

// --- test config builders ---

func simpleAutomation() map[string]any {
	return map[string]any{
		"alias": "Test",
		"trigger": map[string]any{
			"platform":  "state",
			"entity_id": "binary_sensor.motion",
			"to":        "on",
		},
		"action": map[string]any{"service": "light.turn_on"},
	}
}

func multiTriggerAutomation() map[string]any {
	return map[string]any{
		"alias": "Multi",
		"trigger": []any{
			map[string]any{"platform": "state", "entity_id": "binary_sensor.door", "to": "on"},
			map[string]any{"platform": "time", "at": "10:00"},
			map[string]any{"platform": "sun", "event": "sunset"},
		},
		"action": []any{
			map[string]any{"service": "light.turn_on"},
			map[string]any{"service": "notify.mobile"},
		},
	}
}

// --- node/edge helpers ---

func nodeIDs(g *schema.Graph) map[string]bool {
	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	return ids
}

func outgoing(g *schema.Graph, from string) []schema.Edge {
	var out []schema.Edge
	for _, e := range g.Edges {
		if e.From == from {
			out = append(out, e)
		}
	}
	return out
}

// assertAcyclic verifies the edge set forms a DAG via iterative DFS.
func assertAcyclic(t *testing.T, g *schema.Graph) {
	t.Helper()
	adj := make(map[string][]string)
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)
	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case visiting:
			return false
		case done:
			return true
		}
		state[id] = visiting
		for _, next := range adj[id] {
			if !visit(next) {
				return false
			}
		}
		state[id] = done
		return true
	}
	for _, n := range g.Nodes {
		require.True(t, visit(n.ID), "cycle detected through node %s", n.ID)
	}
}

// --- tests ---

func TestParseSimpleAutomation(t *testing.T) {
	g, err := Parse(simpleAutomation())
	require.NoError(t, err)

	// metadata + trigger + action
	require.Len(t, g.Nodes, 3)
	require.Len(t, g.Edges, 2)

	assert.Equal(t, schema.NodeKindMetadata, g.Nodes[0].Kind)
	assert.Equal(t, "Test", g.Nodes[0].Label)
	assert.Equal(t, schema.NodeKindTrigger, g.Nodes[1].Kind)
	assert.Equal(t, "State: binary_sensor.motion → on", g.Nodes[1].Label)
	assert.Equal(t, schema.NodeKindAction, g.Nodes[2].Kind)
	assert.Equal(t, "Service: light.turn_on", g.Nodes[2].Label)

	// metadata → trigger → action
	assert.Equal(t, g.Nodes[0].ID, g.Edges[0].From)
	assert.Equal(t, g.Nodes[1].ID, g.Edges[0].To)
	assert.Equal(t, g.Nodes[1].ID, g.Edges[1].From)
	assert.Equal(t, g.Nodes[2].ID, g.Edges[1].To)
}

func TestParseMetadata(t *testing.T) {
	g, err := Parse(map[string]any{
		"id":          "auto_1",
		"alias":       "Morning Lights",
		"description": "Turns on lights at dawn",
	})
	require.NoError(t, err)

	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "Morning Lights", g.Nodes[0].Label)
	assert.Equal(t, "auto_1", g.Metadata.ID)
	assert.Equal(t, "Morning Lights", g.Metadata.Alias)
	assert.Equal(t, "Turns on lights at dawn", g.Metadata.Description)
}

func TestParseMetadataFallbacks(t *testing.T) {
	g, err := Parse(map[string]any{"id": "auto_2"})
	require.NoError(t, err)
	assert.Equal(t, "auto_2", g.Nodes[0].Label)

	g, err = Parse(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Unnamed Automation", g.Nodes[0].Label)
}

func TestParseNilConfig(t *testing.T) {
	_, err := Parse(nil)
	require.Error(t, err)
	vizErr, ok := err.(*schema.VizError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeMalformed, vizErr.Code)
}

func TestParseMultipleTriggersFanOutFromMetadata(t *testing.T) {
	g, err := Parse(multiTriggerAutomation())
	require.NoError(t, err)

	metadataID := g.Nodes[0].ID
	triggers := g.NodesOfKind(schema.NodeKindTrigger)
	require.Len(t, triggers, 3)

	// All trigger edges originate from metadata, labeled OR.
	edges := outgoing(g, metadataID)
	require.Len(t, edges, 3)
	for _, e := range edges {
		assert.Equal(t, "OR", e.Label)
	}

	// With no conditions, every trigger chains to the first action.
	actions := g.NodesOfKind(schema.NodeKindAction)
	require.Len(t, actions, 2)
	for _, trig := range triggers {
		out := outgoing(g, trig.ID)
		require.Len(t, out, 1)
		assert.Equal(t, actions[0].ID, out[0].To)
	}
}

func TestParseSingleTriggerEdgeUnlabeled(t *testing.T) {
	g, err := Parse(simpleAutomation())
	require.NoError(t, err)
	assert.Empty(t, g.Edges[0].Label)
}

func TestParseConditionsChainWithAND(t *testing.T) {
	g, err := Parse(map[string]any{
		"alias":   "Guarded",
		"trigger": map[string]any{"platform": "state", "entity_id": "a.b", "to": "on"},
		"condition": []any{
			map[string]any{"condition": "state", "entity_id": "sun.sun", "state": "below_horizon"},
			map[string]any{"condition": "time", "after": "18:00"},
		},
		"action": map[string]any{"service": "light.turn_on"},
	})
	require.NoError(t, err)

	conditions := g.NodesOfKind(schema.NodeKindCondition)
	require.Len(t, conditions, 2)

	// condition[0] → condition[1] labeled AND
	chain := outgoing(g, conditions[0].ID)
	require.Len(t, chain, 1)
	assert.Equal(t, conditions[1].ID, chain[0].To)
	assert.Equal(t, "AND", chain[0].Label)

	// last condition → first action labeled then
	actions := g.NodesOfKind(schema.NodeKindAction)
	last := outgoing(g, conditions[1].ID)
	require.Len(t, last, 1)
	assert.Equal(t, actions[0].ID, last[0].To)
	assert.Equal(t, "then", last[0].Label)
}

func TestParseCompositeConditionIsOneNode(t *testing.T) {
	g, err := Parse(map[string]any{
		"alias": "Composite",
		"condition": map[string]any{
			"condition":  "and",
			"conditions": []any{map[string]any{}, map[string]any{}, map[string]any{}},
		},
	})
	require.NoError(t, err)

	conditions := g.NodesOfKind(schema.NodeKindCondition)
	require.Len(t, conditions, 1)
	assert.Equal(t, "AND (3 conditions)", conditions[0].Label)
}

func TestParseChoose(t *testing.T) {
	g, err := Parse(map[string]any{
		"alias": "Chooser",
		"action": map[string]any{
			"choose": []any{
				map[string]any{
					"conditions": []any{
						map[string]any{"condition": "state", "entity_id": "light.a", "state": "on"},
					},
					"sequence": []any{map[string]any{"service": "light.turn_off"}},
				},
				map[string]any{
					"sequence": []any{map[string]any{"service": "light.turn_on"}},
				},
			},
			"default": []any{map[string]any{"service": "notify.mobile"}},
		},
	})
	require.NoError(t, err)

	actions := g.NodesOfKind(schema.NodeKindAction)
	require.Len(t, actions, 4) // choose + 2 branch actions + default action
	assert.Equal(t, "Choose (2 options)", actions[0].Label)

	// One edge from choose to each branch's first node.
	branches := outgoing(g, actions[0].ID)
	require.Len(t, branches, 3)
	assert.Equal(t, "if light.a = on", branches[0].Label)
	assert.Equal(t, "option 2", branches[1].Label)
	assert.Equal(t, "else", branches[2].Label)

	assertAcyclic(t, g)
}

func TestParseIfThenElse(t *testing.T) {
	g, err := Parse(map[string]any{
		"alias": "Conditional",
		"action": map[string]any{
			"if":   []any{map[string]any{"condition": "state", "entity_id": "a.b", "state": "on"}},
			"then": []any{map[string]any{"service": "light.turn_on"}, map[string]any{"service": "notify.mobile"}},
			"else": []any{map[string]any{"service": "light.turn_off"}},
		},
	})
	require.NoError(t, err)

	actions := g.NodesOfKind(schema.NodeKindAction)
	require.Len(t, actions, 4) // if + 2 then + 1 else
	assert.Equal(t, "If-Then", actions[0].Label)

	out := outgoing(g, actions[0].ID)
	require.Len(t, out, 2)
	assert.Equal(t, "then", out[0].Label)
	assert.Equal(t, "else", out[1].Label)

	// then-sequence chains internally.
	thenChain := outgoing(g, out[0].To)
	require.Len(t, thenChain, 1)
	assert.Empty(t, thenChain[0].Label)
}

func TestParseParallel(t *testing.T) {
	g, err := Parse(map[string]any{
		"alias": "Fanout",
		"action": map[string]any{
			"parallel": []any{
				[]any{map[string]any{"service": "light.turn_on"}},
				[]any{map[string]any{"service": "switch.turn_on"}},
			},
		},
	})
	require.NoError(t, err)

	actions := g.NodesOfKind(schema.NodeKindAction)
	require.Len(t, actions, 3)
	assert.Equal(t, "Parallel (2 actions)", actions[0].Label)

	out := outgoing(g, actions[0].ID)
	require.Len(t, out, 2)
	assert.Equal(t, "branch 1", out[0].Label)
	assert.Equal(t, "branch 2", out[1].Label)
}

func TestParseRepeat(t *testing.T) {
	g, err := Parse(map[string]any{
		"alias": "Looper",
		"action": map[string]any{
			"repeat": map[string]any{
				"count": 3,
				"sequence": []any{
					map[string]any{"service": "light.toggle"},
				},
			},
		},
	})
	require.NoError(t, err)

	actions := g.NodesOfKind(schema.NodeKindAction)
	require.Len(t, actions, 2)
	assert.Equal(t, "Repeat 3x", actions[0].Label)

	out := outgoing(g, actions[0].ID)
	require.Len(t, out, 1)
	assert.Equal(t, "loop", out[0].Label)
}

func TestParseNestedControlConstructs(t *testing.T) {
	g, err := Parse(map[string]any{
		"alias": "Nested",
		"action": map[string]any{
			"choose": []any{
				map[string]any{
					"sequence": []any{
						map[string]any{
							"if":   []any{map[string]any{"condition": "template"}},
							"then": []any{map[string]any{"service": "light.turn_on"}},
						},
					},
				},
			},
		},
	})
	require.NoError(t, err)

	actions := g.NodesOfKind(schema.NodeKindAction)
	require.Len(t, actions, 3) // choose + nested if + nested service
	assertAcyclic(t, g)
}

func TestParseDepthLimit(t *testing.T) {
	// Build a choose nested deeper than the limit.
	inner := map[string]any{"service": "light.turn_on"}
	for i := 0; i < DefaultMaxDepth+2; i++ {
		inner = map[string]any{
			"choose": []any{
				map[string]any{"sequence": []any{inner}},
			},
		}
	}

	_, err := Parse(map[string]any{"alias": "Deep", "action": inner})
	require.Error(t, err)
	vizErr, ok := err.(*schema.VizError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeDepthExceeded, vizErr.Code)
}

func TestParseGracefulDegradation(t *testing.T) {
	g, err := Parse(map[string]any{
		"alias":  "Odd",
		"action": map[string]any{"frobnicate": true},
	})
	require.NoError(t, err)

	actions := g.NodesOfKind(schema.NodeKindAction)
	require.Len(t, actions, 1)
	assert.Equal(t, "Unknown action", actions[0].Label)
}

func TestParseStringShorthandAction(t *testing.T) {
	g, err := Parse(map[string]any{
		"alias":  "Shorthand",
		"action": []any{"script.wake_up"},
	})
	require.NoError(t, err)

	actions := g.NodesOfKind(schema.NodeKindAction)
	require.Len(t, actions, 1)
	assert.Equal(t, "Service: script.wake_up", actions[0].Label)
}

func TestParsePluralKeys(t *testing.T) {
	g, err := Parse(map[string]any{
		"alias":    "Plural",
		"triggers": []any{map[string]any{"platform": "time", "at": "09:00"}},
		"conditions": []any{
			map[string]any{"condition": "template"},
		},
		"actions": []any{map[string]any{"service": "light.turn_on"}},
	})
	require.NoError(t, err)

	assert.Len(t, g.NodesOfKind(schema.NodeKindTrigger), 1)
	assert.Len(t, g.NodesOfKind(schema.NodeKindCondition), 1)
	assert.Len(t, g.NodesOfKind(schema.NodeKindAction), 1)
}

func TestParseNodeCountInvariant(t *testing.T) {
	g, err := Parse(multiTriggerAutomation())
	require.NoError(t, err)
	// 1 metadata + 3 triggers + 0 conditions + 2 actions
	assert.Len(t, g.Nodes, 6)
}

func TestParseNoDanglingEdges(t *testing.T) {
	configs := []map[string]any{
		simpleAutomation(),
		multiTriggerAutomation(),
		{
			"alias": "Everything",
			"trigger": []any{
				map[string]any{"platform": "state", "entity_id": "a.b"},
				map[string]any{"platform": "time", "at": "12:00"},
			},
			"condition": []any{
				map[string]any{"condition": "sun", "after": "sunset"},
				map[string]any{"condition": "template"},
			},
			"action": []any{
				map[string]any{"service": "light.turn_on"},
				map[string]any{
					"parallel": []any{
						[]any{map[string]any{"service": "a.x"}},
						[]any{map[string]any{"delay": 5}},
					},
				},
				map[string]any{"scene": "scene.done"},
			},
		},
	}

	for _, cfg := range configs {
		g, err := Parse(cfg)
		require.NoError(t, err)
		ids := nodeIDs(g)
		for _, e := range g.Edges {
			assert.True(t, ids[e.From], "edge from unknown node %s", e.From)
			assert.True(t, ids[e.To], "edge to unknown node %s", e.To)
		}
		assertAcyclic(t, g)
	}
}

func TestParseDeterminism(t *testing.T) {
	cfg := multiTriggerAutomation()
	first, err := Parse(cfg)
	require.NoError(t, err)
	second, err := Parse(cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestParseFreshCounterPerCall(t *testing.T) {
	p := NewParser()
	first, err := p.Parse(simpleAutomation())
	require.NoError(t, err)
	second, err := p.Parse(simpleAutomation())
	require.NoError(t, err)

	// A reused parser must not leak its counter across automations.
	assert.Equal(t, first.Nodes[0].ID, second.Nodes[0].ID)
}

func TestParseNodeIDsUnique(t *testing.T) {
	g, err := Parse(map[string]any{
		"alias":   "IDs",
		"trigger": map[string]any{"platform": "time", "at": "08:00"},
		"action": map[string]any{
			"choose": []any{
				map[string]any{"sequence": []any{map[string]any{"service": "a.b"}}},
				map[string]any{"sequence": []any{map[string]any{"service": "c.d"}}},
			},
		},
	})
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, n := range g.Nodes {
		assert.False(t, seen[n.ID], "duplicate node id %s", n.ID)
		seen[n.ID] = true
	}
}

func TestParseDataRetainedVerbatim(t *testing.T) {
	trigger := map[string]any{"platform": "state", "entity_id": "a.b", "to": "on"}
	g, err := Parse(map[string]any{"alias": "Data", "trigger": trigger})
	require.NoError(t, err)

	triggers := g.NodesOfKind(schema.NodeKindTrigger)
	require.Len(t, triggers, 1)
	assert.Equal(t, trigger, triggers[0].Data)
}
