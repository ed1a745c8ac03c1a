package diagram

import (
	"fmt"
	"strings"

	"github.com/hassviz/hassviz/pkg/schema"
)

// RenderText renders an automation graph as an indented outline, one node
// per line with its edge label as the connector. Useful for terminal output
// where an image or Mermaid source is unwieldy.
func RenderText(g *schema.Graph) string {
	var b strings.Builder

	if title := g.Metadata.Alias; title != "" {
		b.WriteString(fmt.Sprintf("=== %s ===\n\n", title))
	}

	children := make(map[string][]schema.Edge, len(g.Edges))
	hasParent := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		children[e.From] = append(children[e.From], e)
		hasParent[e.To] = true
	}

	visited := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if !hasParent[n.ID] {
			renderSubtree(&b, g, n.ID, "", 0, children, visited)
		}
	}
	// Nodes only reachable through a cycle still get printed once.
	for _, n := range g.Nodes {
		if !visited[n.ID] {
			renderSubtree(&b, g, n.ID, "", 0, children, visited)
		}
	}

	return b.String()
}

func renderSubtree(b *strings.Builder, g *schema.Graph, id, edgeLabel string, depth int, children map[string][]schema.Edge, visited map[string]bool) {
	node := g.NodeByID(id)
	if node == nil {
		return
	}

	indent := strings.Repeat("  ", depth)
	connector := ""
	if depth > 0 {
		connector = "└─ "
		if edgeLabel != "" {
			connector = fmt.Sprintf("└─[%s] ", edgeLabel)
		}
	}

	if visited[id] {
		b.WriteString(fmt.Sprintf("%s%s(%s)\n", indent, connector, id))
		return
	}
	visited[id] = true

	b.WriteString(fmt.Sprintf("%s%s%s\n", indent, connector, firstLine(node.Label)))
	for _, e := range children[id] {
		renderSubtree(b, g, e.To, e.Label, depth+1, children, visited)
	}
}
