package graph

import (
	"fmt"

	"github.com/hassviz/hassviz/pkg/schema"
)

// DefaultMaxDepth bounds recursion into nested action blocks. A pathological
// choose/if tree deeper than this is rejected instead of growing the stack.
const DefaultMaxDepth = 32

// Parser converts one automation configuration into a schema.Graph.
// Each Parse call uses a fresh node counter, so a Parser may be reused
// (or shared across goroutines) for any number of automations.
type Parser struct {
	// MaxDepth limits nested action recursion. Zero means DefaultMaxDepth.
	MaxDepth int
}

// NewParser creates a Parser with the default recursion limit.
func NewParser() *Parser {
	return &Parser{MaxDepth: DefaultMaxDepth}
}

// Parse converts an automation configuration into a graph. It is a pure
// function of its input: parsing the same configuration twice produces
// structurally identical graphs.
//
// Malformed entries degrade to placeholder nodes rather than failing the
// parse. The only hard failures are a nil/non-mapping input and exceeding
// the recursion depth limit.
func (p *Parser) Parse(config map[string]any) (*schema.Graph, error) {
	if config == nil {
		return nil, schema.NewError(schema.ErrCodeMalformed, "automation configuration must be a mapping")
	}

	st := &parseState{
		graph:    &schema.Graph{},
		maxDepth: p.MaxDepth,
	}
	if st.maxDepth <= 0 {
		st.maxDepth = DefaultMaxDepth
	}

	metadataID := st.addMetadata(config)
	triggerIDs := st.addTriggers(config, metadataID)
	conditionIDs := st.addConditions(config, triggerIDs)

	actionIDs, err := st.addActions(config)
	if err != nil {
		return nil, err
	}

	st.chainActions(metadataID, triggerIDs, conditionIDs, actionIDs)
	return st.graph, nil
}

// Parse is a convenience wrapper that parses with a default Parser.
func Parse(config map[string]any) (*schema.Graph, error) {
	return NewParser().Parse(config)
}

// parseState accumulates one parse. The node counter is monotonic for the
// whole parse: nested action nodes continue the same sequence and IDs are
// never reused.
type parseState struct {
	graph    *schema.Graph
	counter  int
	maxDepth int
}

// addNode appends a node and returns its generated ID.
func (st *parseState) addNode(kind schema.NodeKind, label string, data map[string]any) string {
	id := fmt.Sprintf("%s-%d", kind, st.counter)
	st.counter++
	st.graph.Nodes = append(st.graph.Nodes, schema.Node{
		ID:    id,
		Label: label,
		Kind:  kind,
		Data:  data,
		Color: schema.DefaultColors[kind],
	})
	return id
}

func (st *parseState) addEdge(from, to, label string) {
	st.graph.Edges = append(st.graph.Edges, schema.Edge{From: from, To: to, Label: label})
}

// addMetadata creates the root metadata node and records graph metadata.
func (st *parseState) addMetadata(config map[string]any) string {
	id := stringField(config, "id")
	alias := stringField(config, "alias")
	description := stringField(config, "description")

	label := alias
	if label == "" {
		label = id
	}
	if label == "" {
		label = "Unnamed Automation"
	}

	st.graph.Metadata = schema.GraphMetadata{
		ID:          id,
		Alias:       alias,
		Description: description,
	}

	return st.addNode(schema.NodeKindMetadata, label, map[string]any{
		"id":          id,
		"alias":       alias,
		"description": description,
	})
}

// addTriggers creates one node per trigger and wires metadata → trigger
// edges. With more than one trigger the edges carry an "OR" label: any one
// trigger firing starts the automation.
func (st *parseState) addTriggers(config map[string]any, metadataID string) []string {
	triggers := sectionList(config, "trigger", "triggers")

	edgeLabel := ""
	if len(triggers) > 1 {
		edgeLabel = "OR"
	}

	ids := make([]string, 0, len(triggers))
	for _, t := range triggers {
		var id string
		if m, ok := t.(map[string]any); ok {
			id = st.addNode(schema.NodeKindTrigger, TriggerLabel(m), m)
		} else {
			id = st.addNode(schema.NodeKindTrigger, "Unknown trigger", nil)
		}
		st.addEdge(metadataID, id, edgeLabel)
		ids = append(ids, id)
	}
	return ids
}

// addConditions creates one node per condition and chains them. Every
// trigger connects to the first condition; condition-to-condition edges
// carry an "AND" label because all conditions must hold.
func (st *parseState) addConditions(config map[string]any, triggerIDs []string) []string {
	conditions := sectionList(config, "condition", "conditions")

	ids := make([]string, 0, len(conditions))
	for _, c := range conditions {
		switch v := c.(type) {
		case map[string]any:
			ids = append(ids, st.addNode(schema.NodeKindCondition, ConditionLabel(v), v))
		case string:
			// Shorthand template condition.
			ids = append(ids, st.addNode(schema.NodeKindCondition, "Template condition", nil))
		default:
			ids = append(ids, st.addNode(schema.NodeKindCondition, "Unknown condition", nil))
		}
	}

	if len(ids) > 0 {
		for _, triggerID := range triggerIDs {
			st.addEdge(triggerID, ids[0], "if")
		}
		chainLabel := ""
		if len(ids) > 1 {
			chainLabel = "AND"
		}
		for i := 0; i < len(ids)-1; i++ {
			st.addEdge(ids[i], ids[i+1], chainLabel)
		}
	}
	return ids
}

// addActions creates the top-level action nodes in document order,
// recursing into control constructs. The returned IDs are the top-level
// chain anchors (a control construct contributes its own node; its nested
// nodes hang off it).
func (st *parseState) addActions(config map[string]any) ([]string, error) {
	actions := sectionList(config, "action", "actions")

	ids := make([]string, 0, len(actions))
	for _, a := range actions {
		id, err := st.parseAction(a, 0)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseAction creates the node for one action entry, recursing into
// choose/if/parallel/repeat bodies. It returns the entry node's ID so the
// caller can wire it into the surrounding chain.
func (st *parseState) parseAction(action any, depth int) (string, error) {
	if depth > st.maxDepth {
		return "", schema.NewErrorf(schema.ErrCodeDepthExceeded,
			"nested action depth exceeds limit of %d", st.maxDepth)
	}

	m, ok := action.(map[string]any)
	if !ok {
		if s, isStr := action.(string); isStr && s != "" {
			return st.addNode(schema.NodeKindAction, fmt.Sprintf("Service: %s", s), nil), nil
		}
		return st.addNode(schema.NodeKindAction, "Unknown action", nil), nil
	}

	switch {
	case hasKey(m, "choose"):
		return st.parseChoose(m, depth)
	case hasKey(m, "if"):
		return st.parseIf(m, depth)
	case hasKey(m, "parallel"):
		return st.parseParallel(m, depth)
	case hasKey(m, "repeat"):
		return st.parseRepeat(m, depth)
	default:
		return st.addNode(schema.NodeKindAction, ActionLabel(m), m), nil
	}
}

// parseChoose handles a choose block: one node for the construct, then one
// sub-chain per option with an edge from the choose node to each branch's
// first node, labeled with the branch condition or index.
func (st *parseState) parseChoose(action map[string]any, depth int) (string, error) {
	chooseID := st.addNode(schema.NodeKindAction, ActionLabel(action), action)

	for i, opt := range toList(action["choose"]) {
		option, ok := opt.(map[string]any)
		if !ok {
			continue
		}

		branchLabel := fmt.Sprintf("option %d", i+1)
		if conds := sectionList(option, "condition", "conditions"); len(conds) > 0 {
			branchLabel = "if " + summarizeConditions(conds)
		}

		if err := st.parseSequence(toList(option["sequence"]), chooseID, branchLabel, depth+1); err != nil {
			return "", err
		}
	}

	if hasKey(action, "default") {
		if err := st.parseSequence(toList(action["default"]), chooseID, "else", depth+1); err != nil {
			return "", err
		}
	}

	return chooseID, nil
}

// parseIf handles an if/then/else block.
func (st *parseState) parseIf(action map[string]any, depth int) (string, error) {
	ifID := st.addNode(schema.NodeKindAction, ActionLabel(action), action)

	if err := st.parseSequence(toList(action["then"]), ifID, "then", depth+1); err != nil {
		return "", err
	}
	if hasKey(action, "else") {
		if err := st.parseSequence(toList(action["else"]), ifID, "else", depth+1); err != nil {
			return "", err
		}
	}
	return ifID, nil
}

// parseParallel handles a parallel block: each branch chains from the
// parallel node with its own labeled edge; branches imply no ordering
// between each other.
func (st *parseState) parseParallel(action map[string]any, depth int) (string, error) {
	parallelID := st.addNode(schema.NodeKindAction, ActionLabel(action), action)

	for i, branch := range toList(action["parallel"]) {
		seq, ok := branch.([]any)
		if !ok {
			seq = []any{branch}
		}
		label := fmt.Sprintf("branch %d", i+1)
		if err := st.parseSequence(seq, parallelID, label, depth+1); err != nil {
			return "", err
		}
	}
	return parallelID, nil
}

// parseRepeat handles a repeat block. The repeated sequence is represented
// once; iteration counts are not unrolled.
func (st *parseState) parseRepeat(action map[string]any, depth int) (string, error) {
	repeatID := st.addNode(schema.NodeKindAction, ActionLabel(action), action)

	cfg, ok := action["repeat"].(map[string]any)
	if !ok {
		return repeatID, nil
	}
	if err := st.parseSequence(toList(cfg["sequence"]), repeatID, "loop", depth+1); err != nil {
		return "", err
	}
	return repeatID, nil
}

// parseSequence parses a nested action sequence, wiring the first node to
// the parent with the given edge label and chaining the rest in order.
// An empty sequence contributes nothing.
func (st *parseState) parseSequence(seq []any, parentID, firstEdgeLabel string, depth int) error {
	prev := ""
	for _, a := range seq {
		id, err := st.parseAction(a, depth)
		if err != nil {
			return err
		}
		if prev == "" {
			st.addEdge(parentID, id, firstEdgeLabel)
		} else {
			st.addEdge(prev, id, "")
		}
		prev = id
	}
	return nil
}

// chainActions wires the top-level stages together: conditions (or
// triggers, or metadata when earlier stages are absent) flow into the first
// action, and actions chain sequentially.
func (st *parseState) chainActions(metadataID string, triggerIDs, conditionIDs, actionIDs []string) {
	if len(actionIDs) > 0 {
		first := actionIDs[0]
		switch {
		case len(conditionIDs) > 0:
			st.addEdge(conditionIDs[len(conditionIDs)-1], first, "then")
		case len(triggerIDs) > 0:
			for _, triggerID := range triggerIDs {
				st.addEdge(triggerID, first, "")
			}
		default:
			st.addEdge(metadataID, first, "")
		}
	}

	for i := 0; i < len(actionIDs)-1; i++ {
		st.addEdge(actionIDs[i], actionIDs[i+1], "")
	}
}

// sectionList reads a config section accepting both singular and plural key
// names, normalizing a bare mapping to a one-element list. Plural wins when
// both are present, matching the host platform's precedence.
func sectionList(config map[string]any, singular, plural string) []any {
	v := config[plural]
	if v == nil {
		v = config[singular]
	}
	return toList(v)
}
