package analyzer

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rendis/flowlens/pkg/schema"
)

// Enumerate produces the complete set of simple start-to-end paths. The
// depth-first traversal follows a decision node's outgoing edges in its
// declared branch order, so the "if" arm is explored before the "else"
// arm even when an arm returns early and its edge is created after the
// other arm's. Non-decision edges keep creation order. Paths are
// deduplicated by their exact node-id sequence.
//
// The builder never creates back-edges, so the graph is acyclic and the
// traversal terminates without a visited set.
func Enumerate(g *schema.Graph) ([]schema.ExecutionPath, error) {
	start := g.Start()
	if start == nil {
		return nil, schema.NewError(schema.ErrCodeGraphIntegrity, "graph has no start node").
			WithWorkflow(g.Workflow).WithFile(g.File)
	}

	// Outgoing adjacency in edge-creation order.
	adj := make(map[int][]schema.Edge, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e)
	}

	// Edges out of a decision are re-ordered to match the node's branch
	// list. Creation order alone is wrong when an arm returns early: its
	// edge to End is flushed last, after the sibling arm's edge.
	for id, edges := range adj {
		n := g.Node(id)
		if n == nil || n.Kind != schema.NodeKindDecision || len(n.Branches) == 0 {
			continue
		}
		rank := make(map[string]int, len(n.Branches))
		for i, br := range n.Branches {
			if _, ok := rank[br]; !ok {
				rank[br] = i
			}
		}
		sort.SliceStable(edges, func(i, j int) bool {
			ri, iok := rank[edges[i].Label]
			rj, jok := rank[edges[j].Label]
			if iok != jok {
				return iok // labeled branches come before stray labels
			}
			return iok && ri < rj
		})
	}

	var (
		paths  []schema.ExecutionPath
		seen   = make(map[string]bool)
		nodes  []int
		labels []string
	)

	var walk func(id int)
	walk = func(id int) {
		nodes = append(nodes, id)
		defer func() { nodes = nodes[:len(nodes)-1] }()

		if n := g.Node(id); n != nil && n.Kind == schema.NodeKindEnd {
			key := pathKey(nodes)
			if !seen[key] {
				seen[key] = true
				paths = append(paths, schema.ExecutionPath{
					Nodes:  append([]int(nil), nodes...),
					Labels: append([]string(nil), labels...),
				})
			}
			return
		}
		for _, e := range adj[id] {
			labels = append(labels, e.Label)
			walk(e.To)
			labels = labels[:len(labels)-1]
		}
	}
	walk(start.ID)

	if len(paths) == 0 {
		return nil, schema.NewError(schema.ErrCodeUnreachableEnd,
			"no end node is reachable from start").
			WithWorkflow(g.Workflow).WithFile(g.File)
	}
	return paths, nil
}

func pathKey(nodes []int) string {
	parts := make([]string, len(nodes))
	for i, id := range nodes {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ".")
}
