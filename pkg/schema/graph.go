package schema

// NodeKind classifies a graph node by the automation component it represents.
type NodeKind string

const (
	NodeKindTrigger   NodeKind = "trigger"
	NodeKindCondition NodeKind = "condition"
	NodeKindAction    NodeKind = "action"
	NodeKindMetadata  NodeKind = "metadata"
)

// DefaultColors is the fallback palette keyed by node kind. Renderers use it
// when a node carries no explicit color and no theme overrides it.
var DefaultColors = map[NodeKind]string{
	NodeKindTrigger:   "#2d6a2d",
	NodeKindCondition: "#b7791a",
	NodeKindAction:    "#1a5276",
	NodeKindMetadata:  "#6b6b6b",
}

// Node is one visual element of an automation graph.
type Node struct {
	ID    string         `json:"id"`
	Label string         `json:"label"`
	Kind  NodeKind       `json:"type"`
	Data  map[string]any `json:"data,omitempty"`
	Color string         `json:"color,omitempty"`
}

// Edge is a directed, optionally labeled connection between two nodes.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// GraphMetadata carries the automation's own identifying fields.
type GraphMetadata struct {
	ID          string `json:"id,omitempty"`
	Alias       string `json:"alias,omitempty"`
	Description string `json:"description,omitempty"`
}

// Graph is the complete parse result for one automation. A Graph is built
// once per parse call and never mutated after it is returned.
type Graph struct {
	Nodes    []Node        `json:"nodes"`
	Edges    []Edge        `json:"edges"`
	Metadata GraphMetadata `json:"metadata"`
}

// NodeByID returns the node with the given ID, or nil if absent.
func (g *Graph) NodeByID(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// NodesOfKind returns all nodes of the given kind in discovery order.
func (g *Graph) NodesOfKind(kind NodeKind) []Node {
	var out []Node
	for _, n := range g.Nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
