package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/hassviz/hassviz/pkg/schema"
)

// ImageFormat selects the graphviz output encoding.
type ImageFormat string

const (
	FormatPNG ImageFormat = "png"
	FormatSVG ImageFormat = "svg"
	FormatDOT ImageFormat = "dot"
)

// RenderImage renders an automation graph through graphviz in the requested
// format. DOT output is the laid-out graph description; PNG and SVG are
// rasterized/vector images.
func RenderImage(ctx context.Context, g *schema.Graph, format ImageFormat) ([]byte, error) {
	var gvFormat graphviz.Format
	switch format {
	case FormatPNG:
		gvFormat = graphviz.PNG
	case FormatSVG:
		gvFormat = graphviz.SVG
	case FormatDOT:
		gvFormat = graphviz.Format(graphviz.DOT)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unsupported image format %q", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)
	if g.Metadata.Alias != "" {
		graph.SetLabel(g.Metadata.Alias)
	}

	gvNodes := make(map[string]*cgraph.Node, len(g.Nodes))
	for _, node := range g.Nodes {
		gvNode, nErr := graph.CreateNodeByName(node.ID)
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", node.ID, nErr)
		}
		gvNode.SetLabel(firstLine(node.Label))
		applyNodeStyle(gvNode, node)
		gvNodes[node.ID] = gvNode
	}

	for _, edge := range g.Edges {
		fromGV, toGV := gvNodes[edge.From], gvNodes[edge.To]
		if fromGV == nil || toGV == nil {
			continue
		}
		e, eErr := graph.CreateEdgeByName("", fromGV, toGV)
		if eErr == nil && edge.Label != "" {
			e.SetLabel(edge.Label)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// RenderDOT renders the graph as DOT text.
func RenderDOT(ctx context.Context, g *schema.Graph) (string, error) {
	out, err := RenderImage(ctx, g, FormatDOT)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// applyNodeStyle sets graphviz shape and fill by node kind.
func applyNodeStyle(gvNode *cgraph.Node, node schema.Node) {
	switch node.Kind {
	case schema.NodeKindMetadata:
		gvNode.SetShape(cgraph.EllipseShape)
	case schema.NodeKindTrigger:
		gvNode.SetShape(cgraph.CircleShape)
	case schema.NodeKindCondition:
		gvNode.SetShape(cgraph.DiamondShape)
	default:
		gvNode.SetShape(cgraph.BoxShape)
	}

	color := node.Color
	if color == "" {
		color = schema.DefaultColors[node.Kind]
	}
	if color != "" {
		gvNode.SetStyle(cgraph.FilledNodeStyle)
		gvNode.SetFillColor(color)
		gvNode.SetFontColor("white")
	}
}
