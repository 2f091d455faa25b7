package validation

import (
	"github.com/rendis/flowlens/pkg/schema"
)

// CheckGraph verifies the structural invariants of a finished execution
// graph: exactly one start node with no incoming edges, at least one end
// node with no outgoing edges, every node other than an end has at least
// one outgoing edge, and every node is reachable from start. A violation
// is a construction defect, never a property of the analyzed input.
func CheckGraph(g *schema.Graph) error {
	if g == nil || len(g.Nodes) == 0 {
		return schema.NewError(schema.ErrCodeGraphIntegrity, "graph is empty")
	}

	outDegree := make(map[int]int, len(g.Nodes))
	inDegree := make(map[int]int, len(g.Nodes))
	for _, e := range g.Edges {
		outDegree[e.From]++
		inDegree[e.To]++
	}

	var start *schema.Node
	for _, n := range g.Nodes {
		switch n.Kind {
		case schema.NodeKindStart:
			if start != nil {
				return integrityErr(g, "graph has more than one start node")
			}
			start = n
		case schema.NodeKindEnd:
			if outDegree[n.ID] != 0 {
				return integrityErr(g, "end node has outgoing edges")
			}
		default:
			if outDegree[n.ID] == 0 {
				return schema.NewErrorf(schema.ErrCodeGraphIntegrity,
					"node %d (%s) has no outgoing edge", n.ID, n.Label).
					WithWorkflow(g.Workflow).WithFile(g.File)
			}
		}
	}
	if start == nil {
		return integrityErr(g, "graph has no start node")
	}
	if inDegree[start.ID] != 0 {
		return integrityErr(g, "start node has incoming edges")
	}

	// Reachability: BFS from start over forward edges.
	adj := make(map[int][]int, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	visited := make(map[int]bool, len(g.Nodes))
	queue := []int{start.ID}
	visited[start.ID] = true
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adj[id] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	for _, n := range g.Nodes {
		if !visited[n.ID] {
			return schema.NewErrorf(schema.ErrCodeGraphIntegrity,
				"node %d (%s) is unreachable from start", n.ID, n.Label).
				WithWorkflow(g.Workflow).WithFile(g.File)
		}
	}
	return nil
}

func integrityErr(g *schema.Graph, msg string) error {
	return schema.NewError(schema.ErrCodeGraphIntegrity, msg).
		WithWorkflow(g.Workflow).WithFile(g.File)
}
