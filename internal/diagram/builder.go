package diagram

import (
	"fmt"

	"github.com/rendis/flowlens/pkg/schema"
)

// Build constructs a DiagramModel from a finished execution graph. It
// consumes only the graph's node, edge and path iteration contract and
// never goes back to the analyzed source.
func Build(g *schema.Graph) (*DiagramModel, error) {
	if g == nil || len(g.Nodes) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "diagram: graph is empty")
	}

	model := &DiagramModel{Title: g.Workflow}

	for _, n := range g.Nodes {
		model.Nodes = append(model.Nodes, &Node{
			ID:    nodeID(n.ID),
			Label: n.Label,
			Kind:  kindOf(n.Kind),
		})
	}
	for _, e := range g.Edges {
		model.Edges = append(model.Edges, Edge{
			From:  nodeID(e.From),
			To:    nodeID(e.To),
			Label: e.Label,
		})
	}
	for _, p := range g.Paths {
		ids := make([]string, len(p.Nodes))
		for i, id := range p.Nodes {
			ids[i] = nodeID(id)
		}
		model.Paths = append(model.Paths, ids)
	}

	model.Levels = buildLevels(g)
	return model, nil
}

// buildLevels groups nodes by topological depth: a node sits one level
// below its deepest predecessor. The graph is acyclic by construction, so
// a pass over nodes in ID order (creation order respects edge direction)
// settles every depth.
func buildLevels(g *schema.Graph) [][]string {
	depth := make(map[int]int, len(g.Nodes))
	preds := make(map[int][]int, len(g.Nodes))
	for _, e := range g.Edges {
		preds[e.To] = append(preds[e.To], e.From)
	}

	maxLevel := 0
	for _, n := range g.Nodes {
		d := 0
		for _, p := range preds[n.ID] {
			if depth[p]+1 > d {
				d = depth[p] + 1
			}
		}
		depth[n.ID] = d
		if d > maxLevel {
			maxLevel = d
		}
	}

	levels := make([][]string, maxLevel+1)
	for _, n := range g.Nodes {
		d := depth[n.ID]
		levels[d] = append(levels[d], nodeID(n.ID))
	}
	return levels
}

func nodeID(id int) string {
	return fmt.Sprintf("n%d", id)
}

func kindOf(k schema.NodeKind) NodeKind {
	switch k {
	case schema.NodeKindStart:
		return NodeKindStart
	case schema.NodeKindChildWorkflow:
		return NodeKindChild
	case schema.NodeKindDecision:
		return NodeKindDecision
	case schema.NodeKindEnd:
		return NodeKindEnd
	default:
		return NodeKindActivity
	}
}
