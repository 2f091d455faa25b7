package schema

// NodeKind classifies a graph node by the kind of call site it represents.
type NodeKind string

const (
	NodeKindStart         NodeKind = "start"
	NodeKindActivity      NodeKind = "activity"
	NodeKindChildWorkflow NodeKind = "child_workflow"
	NodeKindDecision      NodeKind = "decision"
	NodeKindEnd           NodeKind = "end"
)

// Node is a single vertex in the execution graph. Every call site produces
// its own node; two calls to the same activity are never merged.
type Node struct {
	ID       int      `json:"id"`
	Kind     NodeKind `json:"kind"`
	Label    string   `json:"label"`
	Branches []string `json:"branches,omitempty"` // decision nodes only, in source order
	Pos      string   `json:"pos,omitempty"`      // file:line of the originating call site
}

// Edge is a directed connection between two nodes. Label is empty for
// unconditional sequencing and non-empty for a decision branch.
type Edge struct {
	From  int    `json:"from"`
	To    int    `json:"to"`
	Label string `json:"label,omitempty"`
}

// ExecutionPath is one complete start-to-end route through the graph.
// Labels[i] is the branch label of the edge from Nodes[i] to Nodes[i+1]
// (empty for unconditional edges), so len(Labels) == len(Nodes)-1.
type ExecutionPath struct {
	Nodes  []int    `json:"nodes"`
	Labels []string `json:"labels"`
}

// Graph is the execution graph of one workflow's run routine. Nodes and
// edges are stored in creation order, which follows source order; this is
// the entire surface renderers consume.
type Graph struct {
	Workflow string          `json:"workflow"`
	File     string          `json:"file,omitempty"`
	Nodes    []*Node         `json:"nodes"`
	Edges    []Edge          `json:"edges"`
	Paths    []ExecutionPath `json:"paths,omitempty"`

	nextID int
}

// NewGraph creates an empty graph for the named workflow.
func NewGraph(workflow, file string) *Graph {
	return &Graph{Workflow: workflow, File: file}
}

// AddNode appends a node with the next monotonically assigned ID.
func (g *Graph) AddNode(kind NodeKind, label string) *Node {
	n := &Node{ID: g.nextID, Kind: kind, Label: label}
	g.nextID++
	g.Nodes = append(g.Nodes, n)
	return n
}

// AddEdge appends a directed edge. Edges are append-only.
func (g *Graph) AddEdge(from, to int, label string) {
	g.Edges = append(g.Edges, Edge{From: from, To: to, Label: label})
}

// Node returns the node with the given ID, or nil if it does not exist.
func (g *Graph) Node(id int) *Node {
	if id < 0 || id >= len(g.Nodes) {
		return nil
	}
	return g.Nodes[id]
}

// Start returns the start node, or nil for an empty graph.
func (g *Graph) Start() *Node {
	for _, n := range g.Nodes {
		if n.Kind == NodeKindStart {
			return n
		}
	}
	return nil
}

// Outgoing returns the edges leaving the given node, in creation order.
func (g *Graph) Outgoing(id int) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// Incoming returns the edges entering the given node, in creation order.
func (g *Graph) Incoming(id int) []Edge {
	var in []Edge
	for _, e := range g.Edges {
		if e.To == id {
			in = append(in, e)
		}
	}
	return in
}
