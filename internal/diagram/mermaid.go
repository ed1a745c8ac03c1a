package diagram

import (
	"fmt"
	"strings"

	"github.com/hassviz/hassviz/pkg/schema"
)

// RenderMermaid renders an automation graph as a Mermaid flowchart string.
// Node shape follows kind: metadata is a stadium, triggers are circles,
// conditions diamonds, actions boxes. Kind colors come from the node's own
// color, falling back to the default palette.
func RenderMermaid(g *schema.Graph) string {
	var b strings.Builder

	b.WriteString("graph TD\n")

	if title := g.Metadata.Alias; title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", title))
	}

	for _, node := range g.Nodes {
		b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(node)))
	}

	for _, edge := range g.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n",
			mermaidSafeID(edge.From), label, mermaidSafeID(edge.To)))
	}

	b.WriteString("\n")
	for _, kind := range []schema.NodeKind{
		schema.NodeKindMetadata, schema.NodeKindTrigger,
		schema.NodeKindCondition, schema.NodeKindAction,
	} {
		b.WriteString(fmt.Sprintf("    classDef %s fill:%s,color:#fff\n",
			kind, schema.DefaultColors[kind]))
	}
	for _, node := range g.Nodes {
		b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(node.ID), node.Kind))
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the shape for its kind.
func mermaidNodeDef(node schema.Node) string {
	id := mermaidSafeID(node.ID)
	label := firstLine(node.Label)

	switch node.Kind {
	case schema.NodeKindMetadata:
		return fmt.Sprintf("%s([%q])", id, label)
	case schema.NodeKindTrigger:
		return fmt.Sprintf("%s((%q))", id, label)
	case schema.NodeKindCondition:
		return fmt.Sprintf("%s{%q}", id, label)
	default:
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}
