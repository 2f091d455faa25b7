package diagram

import (
	"fmt"
	"strings"
)

// RenderDOT renders a DiagramModel in the Graphviz DOT language. The
// textual form is useful when the caller pipes output to an external
// layout tool instead of rendering an image in-process.
func RenderDOT(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("digraph flow {\n")
	b.WriteString("    rankdir=TB;\n")
	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    label=%q;\n", model.Title))
	}

	for _, node := range model.Nodes {
		b.WriteString(fmt.Sprintf("    %s [label=%q%s];\n",
			node.ID, firstLine(node.Label), dotAttrs(node.Kind)))
	}
	for _, edge := range model.Edges {
		if edge.Label != "" {
			b.WriteString(fmt.Sprintf("    %s -> %s [label=%q];\n", edge.From, edge.To, edge.Label))
		} else {
			b.WriteString(fmt.Sprintf("    %s -> %s;\n", edge.From, edge.To))
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// dotAttrs returns the shape attributes for a node kind.
func dotAttrs(kind NodeKind) string {
	switch kind {
	case NodeKindStart, NodeKindEnd:
		return ", shape=circle"
	case NodeKindDecision:
		return ", shape=diamond"
	case NodeKindChild:
		return ", shape=box3d"
	default:
		return ", shape=box"
	}
}
